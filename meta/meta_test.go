package meta_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maurocanuto/mempack/meta"
)

func TestRoundTrip(t *testing.T) {
	rec := meta.Record{
		{Key: "source", Value: meta.String("quantum_computing.md")},
		{Key: "line", Value: meta.Int64(42)},
		{Key: "score", Value: meta.Float64(0.5)},
		{Key: "archived", Value: meta.Bool(false)},
		{Key: "owner", Value: meta.Null()},
	}
	data := meta.Marshal(rec)
	got, err := meta.Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, got, len(rec))
	for i, kv := range rec {
		assert.Equal(t, kv.Key, got[i].Key)
		assert.True(t, kv.Value.Equal(got[i].Value))
	}
}

func TestGet(t *testing.T) {
	rec := meta.Record{{Key: "source", Value: meta.String("a.md")}}
	v, ok := rec.Get("source")
	require.True(t, ok)
	s, ok := v.String()
	require.True(t, ok)
	assert.Equal(t, "a.md", s)

	_, ok = rec.Get("missing")
	assert.False(t, ok)
}

func TestUnmarshalTruncated(t *testing.T) {
	rec := meta.Record{{Key: "k", Value: meta.String("value")}}
	data := meta.Marshal(rec)
	_, err := meta.Unmarshal(data[:len(data)-1])
	assert.Error(t, err)
}

func TestEmptyRecord(t *testing.T) {
	data := meta.Marshal(nil)
	got, err := meta.Unmarshal(data)
	require.NoError(t, err)
	assert.Len(t, got, 0)
}
