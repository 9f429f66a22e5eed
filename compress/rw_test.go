package compress_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maurocanuto/mempack/compress"
)

func TestRoundTrip(t *testing.T) {
	for _, codec := range []compress.Codec{compress.None, compress.Deflate, compress.Zstd} {
		codec := codec
		t.Run(codec.String(), func(t *testing.T) {
			src := []byte("the quick brown fox jumps over the lazy dog, repeated: " +
				"the quick brown fox jumps over the lazy dog")
			compressed, err := compress.Compress(codec, nil, src)
			require.NoError(t, err)

			got, err := compress.Decompress(codec, nil, compressed)
			require.NoError(t, err)
			assert.Equal(t, src, got)
		})
	}
}

func TestDecompressTruncated(t *testing.T) {
	src := make([]byte, 4096)
	for i := range src {
		src[i] = byte(i)
	}
	compressed, err := compress.Compress(compress.Zstd, nil, src)
	require.NoError(t, err)

	_, err = compress.Decompress(compress.Zstd, nil, compressed[:len(compressed)/2])
	assert.Error(t, err)
}

func TestParseCodec(t *testing.T) {
	for _, tc := range []struct {
		name string
		want compress.Codec
	}{
		{"none", compress.None},
		{"deflate", compress.Deflate},
		{"zstd", compress.Zstd},
		{"", compress.Zstd},
	} {
		got, err := compress.ParseCodec(tc.name)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
	_, err := compress.ParseCodec("lz4")
	assert.Error(t, err)
}
