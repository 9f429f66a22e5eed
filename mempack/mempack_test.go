package mempack_test

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maurocanuto/mempack/ecc"
	"github.com/maurocanuto/mempack/embed"
	"github.com/maurocanuto/mempack/mempack"
	"github.com/maurocanuto/mempack/meta"
	"github.com/maurocanuto/mempack/pack"
)

func buildTestPack(t *testing.T, cfg mempack.Config) (string, string) {
	t.Helper()
	backend := embed.NewHashBackend(16)
	enc, err := mempack.NewEncoder(cfg, backend)
	require.NoError(t, err)

	docs := []mempack.Document{
		{Text: "the quick brown fox jumps over the lazy dog. it runs through the forest every morning.", Meta: meta.Record{{Key: "source", Value: meta.String("a.md")}}, Tags: []string{"animals"}},
		{Text: "quantum superposition lets a system exist in multiple states at once. measurement collapses it.", Meta: meta.Record{{Key: "source", Value: meta.String("b.md")}}, Tags: []string{"physics"}},
		{Text: "a third short document about nothing in particular, just filler text for the test.", Meta: meta.Record{{Key: "source", Value: meta.String("c.md")}}, Tags: nil},
	}
	for _, d := range docs {
		require.NoError(t, enc.AddDocument(d))
	}

	dir := t.TempDir()
	packPath := filepath.Join(dir, "test.mpack")
	annPath := filepath.Join(dir, "test.ann")
	require.NoError(t, enc.BuildToFiles(context.Background(), packPath, annPath))
	return packPath, annPath
}

func defaultTestConfig() mempack.Config {
	cfg := mempack.DefaultConfig()
	cfg.ChunkSize = 60
	cfg.ChunkOverlap = 10
	cfg.IndexM = 8
	cfg.EfConstruction = 32
	cfg.EfSearch = 32
	cfg.BlockCacheSize = 16
	return cfg
}

func TestEncoderBuildAndVerify(t *testing.T) {
	cfg := defaultTestConfig()
	packPath, annPath := buildTestPack(t, cfg)

	report, err := mempack.Verify(context.Background(), packPath, annPath)
	require.NoError(t, err)
	assert.Zero(t, report.Corrupted)
	assert.Zero(t, report.Unrecoverable)
	assert.Equal(t, len(report.Blocks), report.OK)
}

func TestRetrieverSearch(t *testing.T) {
	cfg := defaultTestConfig()
	packPath, annPath := buildTestPack(t, cfg)

	r, err := mempack.OpenRetriever(cfg, packPath, annPath, embed.NewHashBackend(16))
	require.NoError(t, err)
	defer r.Close()

	hits, err := r.Search(context.Background(), "quantum superposition lets a system exist in multiple states at once.", 2, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
}

func TestVerifyDetectsCorruptionAndRecoversWithECC(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.ECC = &ecc.Params{K: 1, M: 1}
	packPath, annPath := buildTestPack(t, cfg)
	backend := embed.NewHashBackend(16)
	query := "quantum superposition lets a system exist in multiple states at once."

	before, err := mempack.OpenRetriever(cfg, packPath, annPath, backend)
	require.NoError(t, err)
	wantHits, err := before.Search(context.Background(), query, 3, nil)
	require.NoError(t, err)
	require.NoError(t, before.Close())

	data, err := os.ReadFile(packPath)
	require.NoError(t, err)
	r, err := pack.Open(packPath, false)
	require.NoError(t, err)
	blksEntry, ok := r.Header.Find(pack.TagBlocks)
	require.True(t, ok)
	require.NoError(t, r.Close())

	data[blksEntry.Offset] ^= 0xFF
	require.NoError(t, os.WriteFile(packPath, data, 0o644))

	report, err := mempack.Verify(context.Background(), packPath, annPath)
	require.NoError(t, err)
	assert.Greater(t, report.Corrupted, 0)
	assert.Equal(t, 1, report.Recovered)
	assert.Zero(t, report.Unrecoverable)

	// A K=1,M=1 group tolerates losing its single data block, so Search
	// against the corrupted-but-repaired pack must return the same
	// hits as before corruption (spec.md §8 scenario 3).
	after, err := mempack.OpenRetriever(cfg, packPath, annPath, backend)
	require.NoError(t, err)
	defer after.Close()
	gotHits, err := after.Search(context.Background(), query, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, wantHits, gotHits)
}

// TestSearchToleratesUnrecoverableECCGroup verifies spec.md §8 scenario
// 4: when an ECC group loses more blocks than it has parity for, those
// chunks become unavailable, but Search still completes without a
// global error, simply omitting the affected hits.
func TestSearchToleratesUnrecoverableECCGroup(t *testing.T) {
	cfg := mempack.DefaultConfig()
	cfg.ChunkSize = 1000
	cfg.ChunkOverlap = 0
	cfg.IndexM = 8
	cfg.EfConstruction = 32
	cfg.EfSearch = 32
	cfg.BlockCacheSize = 16
	cfg.TargetBlockSize = 8 // force one chunk per block
	cfg.ECC = &ecc.Params{K: 2, M: 1}

	backend := embed.NewHashBackend(16)
	enc, err := mempack.NewEncoder(cfg, backend)
	require.NoError(t, err)
	texts := []string{
		"alpha document about foxes and dogs",
		"bravo document about foxes and dogs too",
		"charlie document about quantum entanglement",
		"delta document about quantum superposition states",
	}
	for _, text := range texts {
		require.NoError(t, enc.AddDocument(mempack.Document{Text: text}))
	}
	dir := t.TempDir()
	packPath := filepath.Join(dir, "group.mpack")
	annPath := filepath.Join(dir, "group.ann")
	require.NoError(t, enc.BuildToFiles(context.Background(), packPath, annPath))

	pr, err := pack.Open(packPath, false)
	require.NoError(t, err)
	require.Equal(t, 4, pr.NumBlocks(), "fixture expected to produce one block per chunk")
	blksEntry, ok := pr.Header.Find(pack.TagBlocks)
	require.True(t, ok)
	group0, ok := pr.BlockGroup(0)
	require.True(t, ok)
	require.ElementsMatch(t, []uint32{0, 1}, group0.BlockIDs, "K=2 groups expected to pair adjacent blocks")
	b0, b1 := pr.BlockEntries[0], pr.BlockEntries[1]
	require.NoError(t, pr.Close())

	data, err := os.ReadFile(packPath)
	require.NoError(t, err)
	data[blksEntry.Offset+b0.FileOffset] ^= 0xFF
	data[blksEntry.Offset+b1.FileOffset] ^= 0xFF
	require.NoError(t, os.WriteFile(packPath, data, 0o644))

	report, err := mempack.Verify(context.Background(), packPath, annPath)
	require.NoError(t, err)
	assert.Greater(t, report.Unrecoverable, 0)

	rt, err := mempack.OpenRetriever(cfg, packPath, annPath, backend)
	require.NoError(t, err)
	defer rt.Close()
	hits, err := rt.Search(context.Background(), texts[2], 4, nil)
	require.NoError(t, err)
	assert.Less(t, len(hits), 4)
}

// TestBuildIsDeterministic verifies spec.md §8 scenario 5: building a
// pack twice from identical documents, config, and seed produces
// byte-identical output.
func TestBuildIsDeterministic(t *testing.T) {
	cfg := defaultTestConfig()
	docs := []mempack.Document{
		{Text: "the quick brown fox jumps over the lazy dog. it runs through the forest every morning.", Meta: meta.Record{{Key: "source", Value: meta.String("a.md")}}, Tags: []string{"animals"}},
		{Text: "quantum superposition lets a system exist in multiple states at once. measurement collapses it.", Meta: meta.Record{{Key: "source", Value: meta.String("b.md")}}, Tags: []string{"physics"}},
	}

	build := func() (packBytes, annBytes []byte) {
		enc, err := mempack.NewEncoder(cfg, embed.NewHashBackend(16))
		require.NoError(t, err)
		for _, d := range docs {
			require.NoError(t, enc.AddDocument(d))
		}
		packBytes, annBytes, err = enc.Build(context.Background())
		require.NoError(t, err)
		return packBytes, annBytes
	}

	pack1, ann1 := build()
	pack2, ann2 := build()
	assert.Equal(t, sha256.Sum256(pack1), sha256.Sum256(pack2))
	assert.Equal(t, sha256.Sum256(ann1), sha256.Sum256(ann2))
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := mempack.DefaultConfig()
	cfg.ChunkSize = 0
	_, err := mempack.NewEncoder(cfg, embed.NewHashBackend(8))
	assert.Error(t, err)
}
