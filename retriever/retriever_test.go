package retriever_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maurocanuto/mempack/ann"
	"github.com/maurocanuto/mempack/compress"
	"github.com/maurocanuto/mempack/embed"
	"github.com/maurocanuto/mempack/meta"
	"github.com/maurocanuto/mempack/pack"
	"github.com/maurocanuto/mempack/retriever"
)

var docs = []struct {
	text   string
	source string
	tag    string
}{
	{"the quick brown fox jumps over the lazy dog", "animals.md", "animals"},
	{"quantum superposition lets a system exist in multiple states", "physics.md", "physics"},
	{"the dog barked loudly at the mail carrier", "animals2.md", "animals"},
	{"entangled particles share state across distance", "physics2.md", "physics"},
}

func buildFixture(t *testing.T) (string, string) {
	t.Helper()
	backend := embed.NewHashBackend(8)

	w := &pack.Writer{Codec: compress.Zstd, TargetBlockSize: 64}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.text
	}
	vecs, err := embed.EncodeAll(context.Background(), backend, texts, 2)
	require.NoError(t, err)

	for _, d := range docs {
		w.AddChunk(d.text, meta.Record{{Key: "source", Value: meta.String(d.source)}}, []string{d.tag})
	}

	dir := t.TempDir()
	packPath := filepath.Join(dir, "fixture.mpack")
	require.NoError(t, w.WriteFile(packPath))

	g, err := ann.Build(vecs, ann.Params{M: 8, EfConstruction: 32, Seed: 1})
	require.NoError(t, err)
	annPath := filepath.Join(dir, "fixture.ann")
	require.NoError(t, os.WriteFile(annPath, ann.Encode(g, nil), 0o644))

	return packPath, annPath
}

func TestSearchOrdersByScore(t *testing.T) {
	packPath, annPath := buildFixture(t)
	p, err := pack.Open(packPath, true)
	require.NoError(t, err)
	defer p.Close()
	a, err := ann.Open(annPath, true)
	require.NoError(t, err)
	defer a.Close()

	backend := embed.NewHashBackend(8)
	r, err := retriever.New(p, a, backend, 16, 4, true, nil)
	require.NoError(t, err)

	hits, err := r.Search(context.Background(), docs[1].text, 2, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, docs[1].text, hits[0].Text)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestSearchFilterMeta(t *testing.T) {
	packPath, annPath := buildFixture(t)
	p, err := pack.Open(packPath, true)
	require.NoError(t, err)
	defer p.Close()
	a, err := ann.Open(annPath, true)
	require.NoError(t, err)
	defer a.Close()

	backend := embed.NewHashBackend(8)
	r, err := retriever.New(p, a, backend, 16, 4, true, nil)
	require.NoError(t, err)

	hits, err := r.Search(context.Background(), docs[0].text, 4, map[string]meta.Value{
		"source": meta.String("animals2.md"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	for _, h := range hits {
		src, ok := h.Meta.Get("source")
		require.True(t, ok)
		s, _ := src.String()
		assert.Equal(t, "animals2.md", s)
	}
}

func TestSearchTopKZero(t *testing.T) {
	packPath, annPath := buildFixture(t)
	p, err := pack.Open(packPath, true)
	require.NoError(t, err)
	defer p.Close()
	a, err := ann.Open(annPath, true)
	require.NoError(t, err)
	defer a.Close()

	backend := embed.NewHashBackend(8)
	r, err := retriever.New(p, a, backend, 16, 4, true, nil)
	require.NoError(t, err)

	hits, err := r.Search(context.Background(), "anything", 0, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchTopKExceedsN(t *testing.T) {
	packPath, annPath := buildFixture(t)
	p, err := pack.Open(packPath, true)
	require.NoError(t, err)
	defer p.Close()
	a, err := ann.Open(annPath, true)
	require.NoError(t, err)
	defer a.Close()

	backend := embed.NewHashBackend(8)
	r, err := retriever.New(p, a, backend, 16, 4, true, nil)
	require.NoError(t, err)

	hits, err := r.Search(context.Background(), docs[0].text, 1000, nil)
	require.NoError(t, err)
	assert.Len(t, hits, len(docs))
}

// TestSearchTolerantOfPoisonedBlock verifies spec.md §7's policy:
// a single block whose checksum fails (and which has no repair
// configured) is dropped as ChunkUnavailable, and Search returns the
// remaining hits instead of failing the whole call.
func TestSearchTolerantOfPoisonedBlock(t *testing.T) {
	packPath, annPath := buildFixture(t)

	data, err := os.ReadFile(packPath)
	require.NoError(t, err)
	probe, err := pack.Open(packPath, false)
	require.NoError(t, err)
	blksEntry, ok := probe.Header.Find(pack.TagBlocks)
	require.True(t, ok)
	require.Equal(t, len(docs), probe.NumBlocks(), "fixture expected to produce one block per doc")
	victim := probe.BlockEntries[0]
	require.NoError(t, probe.Close())

	data[blksEntry.Offset+victim.FileOffset] ^= 0xFF
	require.NoError(t, os.WriteFile(packPath, data, 0o644))

	p, err := pack.Open(packPath, true)
	require.NoError(t, err)
	defer p.Close()
	a, err := ann.Open(annPath, true)
	require.NoError(t, err)
	defer a.Close()

	backend := embed.NewHashBackend(8)
	// repair is nil: no ECC configured, so the poisoned block surfaces
	// as BlockCorrupt rather than being silently repaired.
	r, err := retriever.New(p, a, backend, 16, 4, true, nil)
	require.NoError(t, err)

	hits, err := r.Search(context.Background(), docs[1].text, len(docs), nil)
	require.NoError(t, err)
	assert.Less(t, len(hits), len(docs))
	for _, h := range hits {
		assert.NotEqual(t, docs[0].text, h.Text)
	}
}
