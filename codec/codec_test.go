package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecsRoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"empty":        {},
		"small":        {0x01, 0x02},
		"compressible": bytes.Repeat([]byte("cached file contents "), 512),
		"binary":       {0x00, 0xff, 0x10, 0x80, 0x7f},
	}

	for _, c := range []Codec{None{}, Zstd{}, LZ4{}} {
		for name, data := range payloads {
			t.Run(c.Name()+"/"+name, func(t *testing.T) {
				enc, err := c.Encode(data)
				require.NoError(t, err)

				dec, err := c.Decode(enc)
				require.NoError(t, err)
				assert.Equal(t, len(data), len(dec))
				assert.True(t, bytes.Equal(data, dec))
			})
		}
	}
}

func TestCompressingCodecsShrinkRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 4096)

	for _, c := range []Codec{Zstd{}, LZ4{}} {
		enc, err := c.Encode(data)
		require.NoError(t, err)
		assert.Less(t, len(enc), len(data), c.Name())
	}
}

func TestIncompressibleStoredRaw(t *testing.T) {
	data := []byte{0x01}

	for _, c := range []Codec{Zstd{}, LZ4{}} {
		enc, err := c.Encode(data)
		require.NoError(t, err)
		assert.Len(t, enc, blockHeaderSize+len(data), c.Name())
	}
}

func TestDecodeShortBlock(t *testing.T) {
	for _, c := range []Codec{Zstd{}, LZ4{}} {
		_, err := c.Decode([]byte{0x01, 0x02})
		assert.ErrorIs(t, err, ErrShortBlock, c.Name())
	}
}

func TestByNameAndID(t *testing.T) {
	for _, name := range []string{"none", "zstd", "lz4"} {
		c, err := ByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())

		byID, err := ByID(c.ID())
		require.NoError(t, err)
		assert.Equal(t, c, byID)
	}

	c, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, None{}, c)

	_, err = ByName("snappy")
	assert.ErrorIs(t, err, ErrUnknownCodec)

	_, err = ByID(ID(42))
	assert.ErrorIs(t, err, ErrUnknownCodec)
}
