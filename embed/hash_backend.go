package embed

import (
	"context"

	"github.com/zeebo/xxh3"
)

// HashBackend is a deterministic, content-hash-based embedding backend
// used for tests and the spec's seed-test scenarios (spec.md §8), in
// place of a real model (out of scope per spec.md §1). It maps each
// text to a pseudo-random unit vector of dimension Dim, derived from
// XXH3 hashes of the text salted per output coordinate, so that
// semantically unrelated texts land far apart and repeated calls with
// the same text are byte-identical.
type HashBackend struct {
	dim int
}

// NewHashBackend returns a HashBackend producing dim-dimensional
// vectors.
func NewHashBackend(dim int) *HashBackend {
	return &HashBackend{dim: dim}
}

func (b *HashBackend) Dim() int    { return b.dim }
func (b *HashBackend) Name() string { return "hash-backend" }

// Encode returns one deterministic vector per text.
func (b *HashBackend) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = b.vectorFor(t)
	}
	return out, nil
}

func (b *HashBackend) vectorFor(text string) []float32 {
	v := make([]float32, b.dim)
	base := []byte(text)
	for d := 0; d < b.dim; d++ {
		buf := make([]byte, len(base)+8)
		copy(buf, base)
		salt := uint64(d)*0x9E3779B97F4A7C15 + 1
		for j := 0; j < 8; j++ {
			buf[len(base)+j] = byte(salt >> (8 * j))
		}
		h := xxh3.Hash(buf)
		// map to [-1, 1)
		v[d] = float32(int64(h%2000000007))/1e9 - 1
	}
	return v
}
