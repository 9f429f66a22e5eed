package mempack

import (
	"context"
	"os"

	"github.com/maurocanuto/mempack/ann"
	"github.com/maurocanuto/mempack/chunker"
	"github.com/maurocanuto/mempack/embed"
	"github.com/maurocanuto/mempack/errors"
	"github.com/maurocanuto/mempack/log"
	"github.com/maurocanuto/mempack/meta"
	"github.com/maurocanuto/mempack/pack"
)

// Document is one input to Encoder.AddDocument: raw text plus the
// metadata recorded on every chunk derived from it.
type Document struct {
	Text string
	Meta meta.Record
	Tags []string
}

// Encoder builds a .mpack + .ann pair from a set of documents, running
// the staged pipeline of spec.md §5: single-threaded chunking,
// parallel-batched embedding preserving chunk-id order, then
// single-threaded block assembly and ANN construction.
type Encoder struct {
	cfg     Config
	backend embed.Backend

	docTexts []string
	docMetas []meta.Record
	docTags  [][]string
}

// NewEncoder creates an Encoder with cfg (validated) and backend.
func NewEncoder(cfg Config, backend embed.Backend) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, errors.E(errors.InvalidConfig, "embedding backend must not be nil")
	}
	return &Encoder{cfg: cfg, backend: backend}, nil
}

// AddDocument chunks doc.Text with the encoder's configured chunk_size
// and chunk_overlap and buffers the resulting chunks for Build.
func (e *Encoder) AddDocument(doc Document) error {
	chunks, err := chunker.Split(doc.Text, chunker.Options{
		ChunkSize:    e.cfg.ChunkSize,
		ChunkOverlap: e.cfg.ChunkOverlap,
	})
	if err != nil {
		return err
	}
	for _, text := range chunks {
		e.docTexts = append(e.docTexts, text)
		e.docMetas = append(e.docMetas, doc.Meta)
		e.docTags = append(e.docTags, doc.Tags)
	}
	return nil
}

// Build embeds every buffered chunk, assembles the .mpack container,
// and constructs the HNSW index, returning their complete byte images.
// Chunk order in the pack is identical to vector order in the index
// (identity id-map), per spec.md §3's default.
func (e *Encoder) Build(ctx context.Context) (packBytes, annBytes []byte, err error) {
	if len(e.docTexts) == 0 {
		return nil, nil, errors.E(errors.InvalidConfig, "no chunks to build (did you call AddDocument?)")
	}
	log.Info.Printf("mempack: embedding %d chunks", len(e.docTexts))
	vectors, err := embed.EncodeAll(ctx, e.backend, e.docTexts, e.cfg.EmbedBatchSize)
	if err != nil {
		return nil, nil, err
	}

	w := &pack.Writer{
		TargetBlockSize: e.cfg.TargetBlockSize,
		Codec:           e.cfg.Compressor,
		ECC:             e.cfg.ECC,
		ChunkSize:       e.cfg.ChunkSize,
		ChunkOverlap:    e.cfg.ChunkOverlap,
	}
	for i, text := range e.docTexts {
		w.AddChunk(text, e.docMetas[i], e.docTags[i])
	}
	packBytes, err = w.Build()
	if err != nil {
		return nil, nil, err
	}

	log.Info.Printf("mempack: building hnsw index over %d vectors", len(vectors))
	g, err := ann.Build(vectors, e.cfg.annParams())
	if err != nil {
		return nil, nil, err
	}
	annBytes = ann.Encode(g, nil)
	return packBytes, annBytes, nil
}

// BuildToFiles is a convenience wrapper around Build that writes the
// resulting container and index to packPath and annPath.
func (e *Encoder) BuildToFiles(ctx context.Context, packPath, annPath string) error {
	packBytes, annBytes, err := e.Build(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(packPath, packBytes, 0o644); err != nil {
		return errors.E(errors.IoError, err, "writing "+packPath)
	}
	if err := os.WriteFile(annPath, annBytes, 0o644); err != nil {
		return errors.E(errors.IoError, err, "writing "+annPath)
	}
	return nil
}
