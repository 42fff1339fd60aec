package blobstore

import (
	"testing"

	"github.com/hupe1980/blobcache/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	for _, c := range []codec.Codec{nil, codec.None{}, codec.Zstd{}, codec.LZ4{}} {
		rec, err := EncodeRecord(c, []byte("hello record"))
		require.NoError(t, err)
		assert.Equal(t, recordMagic, rec[:4])

		got, err := DecodeRecord(rec)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello record"), got)
	}
}

func TestDecodeRecord_Corrupt(t *testing.T) {
	rec, err := EncodeRecord(codec.None{}, []byte("payload"))
	require.NoError(t, err)

	tests := map[string][]byte{
		"empty":       {},
		"bad magic":   append([]byte("XXXX"), rec[4:]...),
		"bad codec":   append(append([]byte{}, rec[:4]...), append([]byte{0x7f}, rec[5:]...)...),
		"truncated":   rec[:recordHeaderSize+3],
		"flipped bit": append(append([]byte{}, rec[:len(rec)-1]...), rec[len(rec)-1]^0x01),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRecord(data)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}
