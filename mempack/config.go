// Package mempack ties the chunker, embedder, pack writer/reader, ANN
// index, block cache, and retriever together into the three facades a
// caller actually uses: Encoder (build), Retriever (search), and
// Verify (integrity check) — spec.md §1-§2.
package mempack

import (
	"github.com/maurocanuto/mempack/ann"
	"github.com/maurocanuto/mempack/compress"
	"github.com/maurocanuto/mempack/ecc"
	"github.com/maurocanuto/mempack/errors"
	"github.com/maurocanuto/mempack/pack"
)

// Config collects every recognized build/open configuration option
// (spec.md §6), each with the default applied by DefaultConfig.
type Config struct {
	Compressor   compress.Codec // default Zstd
	ChunkSize    int            // default 800
	ChunkOverlap int            // default 120
	IndexM       int            // default 32
	EfConstruction int          // default 200
	EfSearch     int            // default 64
	ECC          *ecc.Params    // nil disables erasure coding
	BlockCacheSize int          // default 1024
	IOBatchSize  int            // default 8
	Mmap         bool           // default true
	Prefetch     bool           // default true
	EmbedBatchSize int          // default 32
	Seed         uint64         // default 1
	TargetBlockSize int         // default pack.DefaultTargetBlockSize
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		Compressor:      compress.Zstd,
		ChunkSize:       800,
		ChunkOverlap:    120,
		IndexM:          32,
		EfConstruction:  200,
		EfSearch:        64,
		BlockCacheSize:  1024,
		IOBatchSize:     8,
		Mmap:            true,
		Prefetch:        true,
		EmbedBatchSize:  32,
		Seed:            1,
		TargetBlockSize: pack.DefaultTargetBlockSize,
	}
}

// Validate reports InvalidConfig if any option is out of range.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.E(errors.InvalidConfig, "chunk_size must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return errors.E(errors.InvalidConfig, "chunk_overlap must be in [0, chunk_size)")
	}
	if c.IndexM <= 0 {
		return errors.E(errors.InvalidConfig, "index_params.M must be positive")
	}
	if c.EfConstruction <= 0 {
		return errors.E(errors.InvalidConfig, "index_params.efConstruction must be positive")
	}
	if c.EfSearch <= 0 {
		return errors.E(errors.InvalidConfig, "index_params.efSearch must be positive")
	}
	if c.BlockCacheSize < 0 {
		return errors.E(errors.InvalidConfig, "block_cache_size must be non-negative")
	}
	if c.IOBatchSize <= 0 {
		return errors.E(errors.InvalidConfig, "io_batch_size must be positive")
	}
	if c.EmbedBatchSize <= 0 {
		return errors.E(errors.InvalidConfig, "embed_batch_size must be positive")
	}
	if c.ECC != nil {
		if err := c.ECC.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) annParams() ann.Params {
	return ann.Params{M: c.IndexM, EfConstruction: c.EfConstruction, Seed: c.Seed}
}
