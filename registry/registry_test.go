package registry_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/hupe1980/blobcache"
	"github.com/hupe1980/blobcache/blobstore"
	"github.com/hupe1980/blobcache/registry"
	"github.com/hupe1980/blobcache/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	name    string
	enabled bool
	system  bool
}

func (f fakeStorage) Name() string  { return f.name }
func (f fakeStorage) Enabled() bool { return f.enabled }
func (f fakeStorage) System() bool  { return f.system }

func TestRegisterBlobCache(t *testing.T) {
	r := registry.New(nil)
	cache := blobcache.New(blobstore.NewMemoryEngine())
	defer cache.Close()

	require.True(t, r.Register(cache))
	got, ok := r.Get("cache")
	require.True(t, ok)
	assert.Same(t, cache, got)

	assert.Len(t, r.All(), 1)
	assert.Empty(t, r.UserFacing())
}

func TestRegisterSkipsDisabled(t *testing.T) {
	r := registry.New(nil)

	engine := testutil.NewRecordingEngine(nil)
	engine.ProbeErr = errors.New("unsupported")
	assert.False(t, r.Register(blobcache.New(engine)))
	assert.False(t, r.Register(nil))

	_, ok := r.Get("cache")
	assert.False(t, ok)
	assert.Empty(t, r.All())
}

func TestUserFacing(t *testing.T) {
	r := registry.New(nil)
	r.Register(fakeStorage{name: "local", enabled: true})
	r.Register(fakeStorage{name: "cloud", enabled: true})
	r.Register(fakeStorage{name: "cache", enabled: true, system: true})

	var names []string
	for _, s := range r.UserFacing() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"cloud", "local"}, names)
	assert.Len(t, r.All(), 3)
}

func TestRegisterReplaces(t *testing.T) {
	r := registry.New(nil)
	r.Register(fakeStorage{name: "a", enabled: true})
	r.Register(fakeStorage{name: "a", enabled: true, system: true})

	s, ok := r.Get("a")
	require.True(t, ok)
	assert.True(t, s.System())
	assert.Len(t, r.All(), 1)
}

func TestConcurrentRegister(t *testing.T) {
	r := registry.New(nil)
	var wg sync.WaitGroup
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register(fakeStorage{name: name, enabled: true})
			_ = r.All()
		}()
	}
	wg.Wait()
	assert.Len(t, r.All(), 8)
}
