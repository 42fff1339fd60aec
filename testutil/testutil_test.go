package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRNGDeterministic(t *testing.T) {
	a := NewRNG(4711)
	b := NewRNG(4711)

	assert.Equal(t, a.Bytes(32), b.Bytes(32))
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, int64(4711), a.Seed())
}

func TestRNGReset(t *testing.T) {
	rng := NewRNG(42)
	first := rng.Bytes(16)
	rng.Reset()
	assert.Equal(t, first, rng.Bytes(16))
}

func TestBlobs(t *testing.T) {
	rng := NewRNG(1)
	blobs := rng.Blobs(10, 64)

	assert.Len(t, blobs, 10)
	for _, b := range blobs {
		assert.LessOrEqual(t, len(b), 64)
	}
}
