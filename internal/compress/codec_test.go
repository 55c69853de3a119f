package compress

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samples() map[string][]byte {
	rng := rand.New(rand.NewSource(7))
	noise := make([]byte, 4096)
	rng.Read(noise)
	return map[string][]byte{
		"empty":      {},
		"repetitive": bytes.Repeat([]byte("tomography "), 500),
		"noise":      noise,
	}
}

func TestCodecs(t *testing.T) {
	for _, typ := range []Type{TypeZstd, TypeS2, TypeLZ4} {
		codec, err := Get(typ)
		require.NoError(t, err)
		for name, data := range samples() {
			t.Run(typ.String()+"/"+name, func(t *testing.T) {
				packed, err := codec.Compress(data)
				require.NoError(t, err)
				out, err := codec.Decompress(packed)
				require.NoError(t, err)
				assert.Equal(t, len(data), len(out))
				if len(data) > 0 {
					assert.Equal(t, data, out)
				}
			})
		}
	}
}

func TestRepetitiveShrinks(t *testing.T) {
	data := samples()["repetitive"]
	for _, typ := range []Type{TypeZstd, TypeS2, TypeLZ4} {
		codec, err := Get(typ)
		require.NoError(t, err)
		packed, err := codec.Compress(data)
		require.NoError(t, err)
		assert.Less(t, len(packed), len(data)/4, typ.String())
	}
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, TypeZstd, typ)

	_, err = ParseType("brotli")
	assert.ErrorIs(t, err, ErrUnknownType)
	_, err = Get(Type(99))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 4.0, Ratio(400, 100))
	assert.Equal(t, 0.0, Ratio(400, 0))
}
