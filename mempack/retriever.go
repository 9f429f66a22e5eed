package mempack

import (
	"context"

	"github.com/maurocanuto/mempack/ann"
	"github.com/maurocanuto/mempack/embed"
	"github.com/maurocanuto/mempack/errors"
	"github.com/maurocanuto/mempack/meta"
	"github.com/maurocanuto/mempack/pack"
	"github.com/maurocanuto/mempack/retriever"
)

// Retriever opens a .mpack/.ann pair and answers queries against it,
// wiring pack.Reader, ann.Reader, the block cache, and the embedding
// backend into a single retriever.Retriever (spec.md §2's query path).
type Retriever struct {
	cfg Config
	p   *pack.Reader
	a   *ann.Reader
	r   *retriever.Retriever
}

// OpenRetriever opens packPath and annPath for querying.
func OpenRetriever(cfg Config, packPath, annPath string, backend embed.Backend) (*Retriever, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := pack.Open(packPath, cfg.Mmap)
	if err != nil {
		return nil, err
	}
	a, err := ann.Open(annPath, cfg.Mmap)
	if err != nil {
		p.Close()
		return nil, err
	}
	if a.N() != p.NumChunks() {
		p.Close()
		a.Close()
		return nil, errors.E(errors.AnnCorrupt, "ann vector count does not match pack chunk count")
	}

	rt, err := retriever.New(p, a, backend, cfg.BlockCacheSize, cfg.IOBatchSize, cfg.Prefetch, repairBlock)
	if err != nil {
		p.Close()
		a.Close()
		return nil, err
	}
	rt.EfSearch = cfg.EfSearch
	return &Retriever{cfg: cfg, p: p, a: a, r: rt}, nil
}

// Search answers query against the opened pack/index pair.
func (r *Retriever) Search(ctx context.Context, query string, topK int, filterMeta map[string]meta.Value) ([]retriever.Hit, error) {
	return r.r.Search(ctx, query, topK, filterMeta)
}

// Close releases the underlying pack and ANN readers.
func (r *Retriever) Close() error {
	err1 := r.p.Close()
	err2 := r.a.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
