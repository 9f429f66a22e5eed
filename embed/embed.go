// Package embed defines the pluggable embedding-backend boundary
// (spec.md §1's "assumed pluggable backend") and a parallel fan-out
// helper that calls it in fixed-size batches while preserving chunk
// ordering on reassembly (spec.md §5).
package embed

import (
	"context"

	"github.com/maurocanuto/mempack/ann"
	"github.com/maurocanuto/mempack/errors"
	"github.com/maurocanuto/mempack/traverse"
)

// Backend is an embedding model boundary: it turns text into vectors.
// The core treats a Backend as opaque; no concrete model backend is
// implemented here (out of scope per spec.md §1).
type Backend interface {
	// Encode returns one embedding vector per text, in order.
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	// Dim returns the backend's output dimensionality.
	Dim() int
	// Name identifies the backend, recorded for diagnostics.
	Name() string
}

// EncodeAll embeds all texts using backend, fanning out across
// batchSize-sized batches with traverse.Parallel and writing each
// batch's output directly into a pre-sized result slice so that
// completion order never affects output order. Vectors are
// L2-normalized before return, per spec.md §3's "normalized float32
// matrix".
func EncodeAll(ctx context.Context, backend Backend, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	numBatches := (len(texts) + batchSize - 1) / batchSize
	out := make([][]float32, len(texts))
	var firstErr errors.Once

	err := traverse.Parallel(numBatches).Do(func(b int) error {
		start := b * batchSize
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := backend.Encode(ctx, texts[start:end])
		if err != nil {
			wrapped := errors.E(errors.EmbedBackendError, err, "embedding batch")
			firstErr.Set(wrapped)
			return wrapped
		}
		if len(vecs) != end-start {
			return errors.E(errors.EmbedBackendError, "backend returned wrong vector count")
		}
		for i, v := range vecs {
			if len(v) != backend.Dim() {
				return errors.E(errors.DimensionMismatch, "embedding backend returned wrong dimension")
			}
			out[start+i] = ann.Normalize(v)
		}
		return nil
	})
	if err != nil {
		if e := firstErr.Err(); e != nil {
			return nil, e
		}
		return nil, err
	}
	return out, nil
}
