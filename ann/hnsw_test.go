package ann_test

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maurocanuto/mempack/ann"
)

func randomVectors(n, dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()*2 - 1
		}
		out[i] = ann.Normalize(v)
	}
	return out
}

func TestBuildDeterministic(t *testing.T) {
	vectors := randomVectors(64, 8, 1)
	p := ann.Params{M: 8, EfConstruction: 32, Seed: 42}

	g1, err := ann.Build(vectors, p)
	require.NoError(t, err)
	g2, err := ann.Build(vectors, p)
	require.NoError(t, err)

	b1 := ann.Encode(g1, nil)
	b2 := ann.Encode(g2, nil)
	assert.Equal(t, b1, b2)
}

func TestSearchFindsSelf(t *testing.T) {
	vectors := randomVectors(128, 16, 7)
	p := ann.Params{M: 16, EfConstruction: 64, Seed: 7}
	g, err := ann.Build(vectors, p)
	require.NoError(t, err)

	for _, id := range []int{0, 10, 50, 127} {
		results, err := g.Search(vectors[id], 5, 64)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, uint32(id), results[0].VectorID)
		assert.InDelta(t, 0, results[0].Distance, 1e-4)
	}
}

func TestInvalidDimension(t *testing.T) {
	vectors := randomVectors(4, 4, 1)
	g, err := ann.Build(vectors, ann.DefaultParams())
	require.NoError(t, err)
	_, err = g.Search([]float32{1, 2}, 1, 10)
	assert.Error(t, err)
}

func TestEmptyVectors(t *testing.T) {
	_, err := ann.Build(nil, ann.DefaultParams())
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	vectors := randomVectors(50, 12, 3)
	p := ann.Params{M: 12, EfConstruction: 48, Seed: 3}
	g, err := ann.Build(vectors, p)
	require.NoError(t, err)

	idMap := make([]uint64, len(vectors))
	for i := range idMap {
		idMap[i] = uint64(i) * 10
	}
	data := ann.Encode(g, idMap)

	dir := t.TempDir()
	path := filepath.Join(dir, "index.ann")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	r, err := ann.Open(path, true)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, g.Dim, r.Dim())
	assert.Equal(t, len(vectors), r.N())
	assert.Equal(t, uint64(30), r.ChunkID(3))

	inMemResults, err := g.Search(vectors[5], 5, 48)
	require.NoError(t, err)
	onDiskResults, err := r.Search(vectors[5], 5, 48)
	require.NoError(t, err)
	require.Equal(t, len(inMemResults), len(onDiskResults))
	for i := range inMemResults {
		assert.Equal(t, inMemResults[i].VectorID, onDiskResults[i].VectorID)
	}
}

func TestOpenBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.ann")
	require.NoError(t, os.WriteFile(path, []byte("not an ann file"), 0o644))
	_, err := ann.Open(path, false)
	assert.Error(t, err)
}
