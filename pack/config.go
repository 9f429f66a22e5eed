package pack

import (
	"github.com/maurocanuto/mempack/compress"
	"github.com/maurocanuto/mempack/ecc"
	"github.com/maurocanuto/mempack/meta"
)

// Config is the subset of build-time configuration recorded in a
// pack's CONFIG section, so `mempack info` can report how a file was
// built without needing the original build-time Config value.
type Config struct {
	Compressor   compress.Codec
	ChunkSize    int
	ChunkOverlap int
	ECC          *ecc.Params // nil if ECC disabled
}

// EncodeConfig serializes c as a CONFIG section using the same TLV
// encoding as chunk metadata.
func EncodeConfig(c Config) []byte {
	rec := meta.Record{
		{Key: "compressor", Value: meta.String(c.Compressor.String())},
		{Key: "chunk_size", Value: meta.Int64(int64(c.ChunkSize))},
		{Key: "chunk_overlap", Value: meta.Int64(int64(c.ChunkOverlap))},
		{Key: "ecc_enabled", Value: meta.Bool(c.ECC != nil)},
	}
	if c.ECC != nil {
		rec = append(rec,
			meta.KeyValue{Key: "ecc_k", Value: meta.Int64(int64(c.ECC.K))},
			meta.KeyValue{Key: "ecc_m", Value: meta.Int64(int64(c.ECC.M))},
		)
	}
	return meta.Marshal(rec)
}

// DecodeConfig parses a CONFIG section previously written by EncodeConfig.
func DecodeConfig(data []byte) (Config, error) {
	rec, err := meta.Unmarshal(data)
	if err != nil {
		return Config{}, err
	}
	var c Config
	if v, ok := rec.Get("compressor"); ok {
		if s, ok := v.String(); ok {
			c.Compressor, _ = compress.ParseCodec(s)
		}
	}
	if v, ok := rec.Get("chunk_size"); ok {
		if i, ok := v.Int64(); ok {
			c.ChunkSize = int(i)
		}
	}
	if v, ok := rec.Get("chunk_overlap"); ok {
		if i, ok := v.Int64(); ok {
			c.ChunkOverlap = int(i)
		}
	}
	eccEnabled := false
	if v, ok := rec.Get("ecc_enabled"); ok {
		eccEnabled, _ = v.Bool()
	}
	if eccEnabled {
		var p ecc.Params
		if v, ok := rec.Get("ecc_k"); ok {
			if i, ok := v.Int64(); ok {
				p.K = int(i)
			}
		}
		if v, ok := rec.Get("ecc_m"); ok {
			if i, ok := v.Int64(); ok {
				p.M = int(i)
			}
		}
		c.ECC = &p
	}
	return c, nil
}
