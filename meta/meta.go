// Package meta implements the tagged value encoding used for per-chunk
// metadata. Go's dynamic maps (map[string]interface{}) don't round-trip
// through a binary format unambiguously, so meta values are carried as
// an explicit sum type with a one-byte tag, serialized length-prefixed
// TLV: [tag:u8][...value bytes...]. The tag set is exactly
// {null, bool, i64, f64, string}.
package meta

import (
	"encoding/binary"
	"math"

	"github.com/maurocanuto/mempack/errors"
)

const (
	tagNull uint8 = iota
	tagBool
	tagI64
	tagF64
	tagString
)

// Value is a tagged metadata scalar. The zero Value is Null.
type Value struct {
	kind uint8
	b    bool
	i    int64
	f    float64
	s    string
}

// Null returns the null value.
func Null() Value { return Value{kind: tagNull} }

// Bool wraps a bool value.
func Bool(v bool) Value { return Value{kind: tagBool, b: v} }

// Int64 wraps an int64 value.
func Int64(v int64) Value { return Value{kind: tagI64, i: v} }

// Float64 wraps a float64 value.
func Float64(v float64) Value { return Value{kind: tagF64, f: v} }

// String wraps a string value.
func String(v string) Value { return Value{kind: tagString, s: v} }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == tagNull }

// Bool returns v's bool payload and whether v holds a bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == tagBool }

// Int64 returns v's int64 payload and whether v holds an int64.
func (v Value) Int64() (int64, bool) { return v.i, v.kind == tagI64 }

// Float64 returns v's float64 payload and whether v holds a float64.
func (v Value) Float64() (float64, bool) { return v.f, v.kind == tagF64 }

// String returns v's string payload and whether v holds a string.
func (v Value) String() (string, bool) { return v.s, v.kind == tagString }

// Equal reports whether v and o carry the same tag and payload. Used by
// the retriever's filter_meta equality test.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case tagNull:
		return true
	case tagBool:
		return v.b == o.b
	case tagI64:
		return v.i == o.i
	case tagF64:
		return v.f == o.f
	case tagString:
		return v.s == o.s
	default:
		return false
	}
}

// Record is an ordered set of key/value pairs, the unit stored at each
// chunk's meta_offset.
type Record []KeyValue

// KeyValue is one metadata entry.
type KeyValue struct {
	Key   string
	Value Value
}

// Get returns the value for key and whether it was present.
func (r Record) Get(key string) (Value, bool) {
	for _, kv := range r {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return Value{}, false
}

type encoder struct{ data []byte }

func (e *encoder) putUvarint(v uint64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	e.data = append(e.data, buf[:n]...)
}

func (e *encoder) putString(s string) {
	e.putUvarint(uint64(len(s)))
	e.data = append(e.data, s...)
}

func (e *encoder) putValue(v Value) {
	e.data = append(e.data, v.kind)
	switch v.kind {
	case tagNull:
	case tagBool:
		if v.b {
			e.data = append(e.data, 1)
		} else {
			e.data = append(e.data, 0)
		}
	case tagI64:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v.i))
		e.data = append(e.data, buf[:]...)
	case tagF64:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.f))
		e.data = append(e.data, buf[:]...)
	case tagString:
		e.putString(v.s)
	}
}

// Marshal encodes r as a self-contained TLV byte sequence.
func Marshal(r Record) []byte {
	e := encoder{}
	e.putUvarint(uint64(len(r)))
	for _, kv := range r {
		e.putString(kv.Key)
		e.putValue(kv.Value)
	}
	return e.data
}

type decoder struct {
	data []byte
	err  error
}

func (d *decoder) fail(kind errors.Kind, msg string) {
	if d.err == nil {
		d.err = errors.E(kind, msg)
	}
}

func (d *decoder) getByte() uint8 {
	if len(d.data) < 1 {
		d.fail(errors.HeaderCorrupt, "meta: truncated tag")
		return 0
	}
	b := d.data[0]
	d.data = d.data[1:]
	return b
}

func (d *decoder) getUvarint() uint64 {
	v, n := binary.Uvarint(d.data)
	if n <= 0 {
		d.fail(errors.HeaderCorrupt, "meta: truncated varint")
		return 0
	}
	d.data = d.data[n:]
	return v
}

func (d *decoder) getString() string {
	n := d.getUvarint()
	if d.err != nil {
		return ""
	}
	if uint64(len(d.data)) < n {
		d.fail(errors.HeaderCorrupt, "meta: truncated string")
		return ""
	}
	s := string(d.data[:n])
	d.data = d.data[n:]
	return s
}

func (d *decoder) getValue() Value {
	tag := d.getByte()
	if d.err != nil {
		return Value{}
	}
	switch tag {
	case tagNull:
		return Value{kind: tagNull}
	case tagBool:
		b := d.getByte()
		return Value{kind: tagBool, b: b != 0}
	case tagI64:
		if len(d.data) < 8 {
			d.fail(errors.HeaderCorrupt, "meta: truncated i64")
			return Value{}
		}
		v := int64(binary.LittleEndian.Uint64(d.data[:8]))
		d.data = d.data[8:]
		return Value{kind: tagI64, i: v}
	case tagF64:
		if len(d.data) < 8 {
			d.fail(errors.HeaderCorrupt, "meta: truncated f64")
			return Value{}
		}
		v := math.Float64frombits(binary.LittleEndian.Uint64(d.data[:8]))
		d.data = d.data[8:]
		return Value{kind: tagF64, f: v}
	case tagString:
		return Value{kind: tagString, s: d.getString()}
	default:
		d.fail(errors.HeaderCorrupt, "meta: unknown value tag")
		return Value{}
	}
}

// Unmarshal decodes a Record previously produced by Marshal.
func Unmarshal(data []byte) (Record, error) {
	d := decoder{data: data}
	n := d.getUvarint()
	if d.err != nil {
		return nil, d.err
	}
	r := make(Record, 0, n)
	for i := uint64(0); i < n; i++ {
		key := d.getString()
		if d.err != nil {
			return nil, d.err
		}
		val := d.getValue()
		if d.err != nil {
			return nil, d.err
		}
		r = append(r, KeyValue{Key: key, Value: val})
	}
	return r, nil
}
