package chunker_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maurocanuto/mempack/chunker"
)

func TestEmptyInput(t *testing.T) {
	got, err := chunker.Split("", chunker.Options{ChunkSize: 80, ChunkOverlap: 20})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	opts := chunker.Options{ChunkSize: 80, ChunkOverlap: 20}
	a, err := chunker.Split(text, opts)
	require.NoError(t, err)
	b, err := chunker.Split(text, opts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Greater(t, len(a), 1)
}

func TestOverlapSharesSuffixPrefix(t *testing.T) {
	text := strings.Repeat("Quantum superposition lets a system exist in multiple states at once. ", 10)
	opts := chunker.Options{ChunkSize: 80, ChunkOverlap: 20}
	chunks, err := chunker.Split(text, opts)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		found := false
		for n := len(prev); n >= opts.ChunkOverlap; n-- {
			if len(prev) < n || len(cur) < n {
				continue
			}
			if strings.HasSuffix(prev, prev[len(prev)-n:]) && strings.HasPrefix(cur, prev[len(prev)-n:]) {
				found = true
				break
			}
		}
		assert.True(t, found, "chunk %d does not share an overlap with chunk %d", i, i-1)
	}
}

func TestHardSplitLongSentence(t *testing.T) {
	text := strings.Repeat("a", 500)
	chunks, err := chunker.Split(text, chunker.Options{ChunkSize: 80, ChunkOverlap: 10})
	require.NoError(t, err)
	for _, c := range chunks[:len(chunks)-1] {
		assert.LessOrEqual(t, len([]rune(c)), 80)
	}
}

func TestInvalidOptions(t *testing.T) {
	_, err := chunker.Split("hello", chunker.Options{ChunkSize: 0, ChunkOverlap: 0})
	assert.Error(t, err)
	_, err = chunker.Split("hello", chunker.Options{ChunkSize: 10, ChunkOverlap: 10})
	assert.Error(t, err)
}
