// Package compress implements the block codecs a pack's BLOCKS section
// may use. Unlike a general-purpose file compressor, the codec for a
// given block is never sniffed from its bytes: it is recorded
// explicitly in that block's TOC entry and passed in by the caller, so
// a block of `none`-compressed bytes that happens to start with a
// zstd magic number is never misdetected.
package compress

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"

	"github.com/maurocanuto/mempack/errors"
)

// Codec identifies a block compression format.
type Codec uint8

const (
	// None stores the payload as-is.
	None Codec = iota
	// Deflate is raw (headerless) DEFLATE.
	Deflate
	// Zstd is framed zstd with the content size embedded, the default
	// codec.
	Zstd
)

func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case Deflate:
		return "deflate"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseCodec maps a configuration name to its Codec value.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "none":
		return None, nil
	case "deflate":
		return Deflate, nil
	case "zstd", "":
		return Zstd, nil
	default:
		return 0, errors.E(errors.InvalidConfig, "unknown compressor "+name)
	}
}

// Compress appends the compressed form of src to dst using codec c.
func Compress(c Codec, dst, src []byte) ([]byte, error) {
	switch c {
	case None:
		return append(dst, src...), nil
	case Deflate:
		return compressDeflate(dst, src)
	case Zstd:
		return compressZstd(dst, src)
	default:
		return nil, errors.E(errors.InvalidConfig, "unknown codec")
	}
}

// Decompress appends the decompressed form of src to dst using codec
// c. It returns DecompressError if src is truncated or malformed.
func Decompress(c Codec, dst, src []byte) ([]byte, error) {
	switch c {
	case None:
		return append(dst, src...), nil
	case Deflate:
		return decompressDeflate(dst, src)
	case Zstd:
		return decompressZstd(dst, src)
	default:
		return nil, errors.E(errors.InvalidConfig, "unknown codec")
	}
}

func compressDeflate(dst, src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(dst)
	w, err := flate.NewWriter(buf, flate.DefaultCompression)
	if err != nil {
		return nil, errors.E(errors.DecompressError, err, "opening deflate writer")
	}
	if _, err := w.Write(src); err != nil {
		return nil, errors.E(errors.DecompressError, err, "writing deflate stream")
	}
	if err := w.Close(); err != nil {
		return nil, errors.E(errors.DecompressError, err, "closing deflate stream")
	}
	return buf.Bytes(), nil
}

func decompressDeflate(dst, src []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(src))
	defer r.Close()
	buf := bytes.NewBuffer(dst)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, errors.E(errors.DecompressError, err, "truncated deflate stream")
	}
	return buf.Bytes(), nil
}

func compressZstd(dst, src []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, errors.E(errors.DecompressError, err, "opening zstd encoder")
	}
	defer enc.Close()
	return enc.EncodeAll(src, dst), nil
}

func decompressZstd(dst, src []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.E(errors.DecompressError, err, "opening zstd decoder")
	}
	defer dec.Close()
	out, err := dec.DecodeAll(src, dst)
	if err != nil {
		return nil, errors.E(errors.DecompressError, err, "corrupt zstd frame")
	}
	return out, nil
}
