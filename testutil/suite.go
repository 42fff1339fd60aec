package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/blobcache/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunEngineSuite checks the Engine contract against engines built by newEngine.
// Each subtest gets a fresh engine.
func RunEngineSuite(t *testing.T, newEngine func(t *testing.T) blobstore.Engine) {
	t.Helper()
	ctx := context.Background()

	open := func(t *testing.T, e blobstore.Engine, upgrades *int) blobstore.Handle {
		t.Helper()
		h, err := e.Open(ctx, "SuiteStore", func(ctx context.Context, s blobstore.Schema) error {
			*upgrades++
			return s.CreateCollection(ctx, "files")
		})
		require.NoError(t, err)
		return h
	}

	t.Run("UpgradeRunsOnceOnCreation", func(t *testing.T) {
		e := newEngine(t)
		upgrades := 0
		h := open(t, e, &upgrades)
		require.NoError(t, h.Close())

		h = open(t, e, &upgrades)
		defer h.Close()
		assert.Equal(t, 1, upgrades)
	})

	t.Run("FailedUpgradeIsRetried", func(t *testing.T) {
		e := newEngine(t)
		boom := errors.New("upgrade failed")
		_, err := e.Open(ctx, "SuiteStore", func(context.Context, blobstore.Schema) error { return boom })
		require.ErrorIs(t, err, boom)

		upgrades := 0
		h := open(t, e, &upgrades)
		defer h.Close()
		assert.Equal(t, 1, upgrades)
	})

	t.Run("PutGetDelete", func(t *testing.T) {
		e := newEngine(t)
		upgrades := 0
		h := open(t, e, &upgrades)
		defer h.Close()

		_, err := h.Get(ctx, "files", "missing")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)

		require.NoError(t, h.Put(ctx, "files", "file1", []byte{0x01, 0x02}))
		got, err := h.Get(ctx, "files", "file1")
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01, 0x02}, got)

		require.NoError(t, h.Put(ctx, "files", "file1", []byte{0x03}))
		got, err = h.Get(ctx, "files", "file1")
		require.NoError(t, err)
		assert.Equal(t, []byte{0x03}, got)

		require.NoError(t, h.Delete(ctx, "files", "file1"))
		_, err = h.Get(ctx, "files", "file1")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)

		assert.NoError(t, h.Delete(ctx, "files", "never-saved"))
	})

	t.Run("EmptyValue", func(t *testing.T) {
		e := newEngine(t)
		upgrades := 0
		h := open(t, e, &upgrades)
		defer h.Close()

		require.NoError(t, h.Put(ctx, "files", "empty", []byte{}))
		got, err := h.Get(ctx, "files", "empty")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("ReturnedSliceIsOwned", func(t *testing.T) {
		e := newEngine(t)
		upgrades := 0
		h := open(t, e, &upgrades)
		defer h.Close()

		value := []byte("payload")
		require.NoError(t, h.Put(ctx, "files", "k", value))
		value[0] = 'X'

		got, err := h.Get(ctx, "files", "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), got)
		got[0] = 'Y'

		again, err := h.Get(ctx, "files", "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), again)
	})

	t.Run("UnknownCollection", func(t *testing.T) {
		e := newEngine(t)
		upgrades := 0
		h := open(t, e, &upgrades)
		defer h.Close()

		err := h.Put(ctx, "other", "k", []byte("v"))
		assert.ErrorIs(t, err, blobstore.ErrNoCollection)
	})

	t.Run("PersistsAcrossHandles", func(t *testing.T) {
		e := newEngine(t)
		upgrades := 0
		h := open(t, e, &upgrades)
		require.NoError(t, h.Put(ctx, "files", "persist", []byte("v1")))
		require.NoError(t, h.Close())

		h = open(t, e, &upgrades)
		defer h.Close()
		got, err := h.Get(ctx, "files", "persist")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)
	})

	t.Run("ConcurrentKeys", func(t *testing.T) {
		e := newEngine(t)
		upgrades := 0
		h := open(t, e, &upgrades)
		defer h.Close()

		rng := NewRNG(7)
		blobs := rng.Blobs(16, 256)

		var wg sync.WaitGroup
		for i, blob := range blobs {
			wg.Add(1)
			go func(i int, blob []byte) {
				defer wg.Done()
				assert.NoError(t, h.Put(ctx, "files", fmt.Sprintf("key-%d", i), blob))
			}(i, blob)
		}
		wg.Wait()

		for i, blob := range blobs {
			got, err := h.Get(ctx, "files", fmt.Sprintf("key-%d", i))
			require.NoError(t, err)
			assert.Equal(t, len(blob), len(got))
		}
	})
}
