package blobcache_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/blobcache"
	"github.com/hupe1980/blobcache/blobstore"
	"github.com/hupe1980/blobcache/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, opts ...blobcache.Option) (*blobcache.BlobCache, *testutil.RecordingEngine) {
	t.Helper()
	engine := testutil.NewRecordingEngine(nil)
	c := blobcache.New(engine, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c, engine
}

func TestMetadata(t *testing.T) {
	c, _ := newCache(t)
	assert.Equal(t, "cache", c.Name())
	assert.True(t, c.Enabled())
	assert.True(t, c.System())
	assert.Equal(t, blobcache.StateUnopened, c.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unopened", blobcache.StateUnopened.String())
	assert.Equal(t, "opening", blobcache.StateOpening.String())
	assert.Equal(t, "open", blobcache.StateOpen.String())
	assert.Equal(t, "failed", blobcache.StateFailed.String())
	assert.Equal(t, "unknown", blobcache.State(42).String())
}

func TestSaveLoadRemove(t *testing.T) {
	ctx := context.Background()
	c, engine := newCache(t)

	require.NoError(t, c.Save(ctx, "file1", []byte{0x01, 0x02}))
	assert.Equal(t, blobcache.StateOpen, c.State())

	data, err := c.Load(ctx, "file1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, data)

	require.NoError(t, c.Remove(ctx, "file1"))

	data, err = c.Load(ctx, "file1")
	require.NoError(t, err)
	assert.Nil(t, data)

	counts := engine.Counts()
	assert.Equal(t, int64(1), counts.Opens)
	assert.Equal(t, int64(1), counts.Upgrades)
}

func TestOverwrite(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t)

	require.NoError(t, c.Save(ctx, "k", []byte("first")))
	require.NoError(t, c.Save(ctx, "k", []byte("second")))

	data, err := c.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestLoadNeverSaved(t *testing.T) {
	c, _ := newCache(t)
	data, err := c.Load(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestLoadEmptyValue(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t)

	require.NoError(t, c.Save(ctx, "empty", nil))
	data, err := c.Load(ctx, "empty")
	require.NoError(t, err)
	assert.NotNil(t, data)
	assert.Empty(t, data)
}

func TestRemoveNeverSaved(t *testing.T) {
	c, _ := newCache(t)
	assert.NoError(t, c.Remove(context.Background(), "never-saved"))
}

func TestInvalidID(t *testing.T) {
	ctx := context.Background()
	c, engine := newCache(t)

	assert.ErrorIs(t, c.Save(ctx, "", []byte("x")), blobcache.ErrInvalidID)
	_, err := c.Load(ctx, "")
	assert.ErrorIs(t, err, blobcache.ErrInvalidID)
	assert.ErrorIs(t, c.Remove(ctx, ""), blobcache.ErrInvalidID)

	assert.Zero(t, engine.Counts().Total())
	assert.Equal(t, blobcache.StateUnopened, c.State())
}

func TestOpenFailureIsMemoized(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("quota exceeded")
	c, engine := newCache(t)
	engine.OpenErr = boom

	err := c.Open(ctx)
	require.ErrorIs(t, err, boom)

	var oe *blobcache.OpenError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, blobcache.DefaultStoreName, oe.Store)
	assert.Equal(t, blobcache.StateFailed, c.State())

	// Later calls replay the same error without touching the engine.
	engine.OpenErr = nil
	assert.Same(t, oe, errorAsOpen(t, c.Save(ctx, "id", []byte("v"))))
	_, err = c.Load(ctx, "id")
	assert.Same(t, oe, errorAsOpen(t, err))
	assert.Same(t, oe, errorAsOpen(t, c.Remove(ctx, "id")))
	assert.Same(t, oe, errorAsOpen(t, c.Open(ctx)))

	counts := engine.Counts()
	assert.Equal(t, int64(1), counts.Opens)
	assert.Zero(t, counts.Puts+counts.Gets+counts.Deletes)
}

func errorAsOpen(t *testing.T, err error) *blobcache.OpenError {
	t.Helper()
	var oe *blobcache.OpenError
	require.ErrorAs(t, err, &oe)
	return oe
}

func TestOpenPanicIsOpenError(t *testing.T) {
	c, engine := newCache(t)
	engine.OpenPanic = "engine exploded"

	err := c.Open(context.Background())

	var oe *blobcache.OpenError
	require.ErrorAs(t, err, &oe)
	var pe *blobcache.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "open", pe.Op)
	assert.Equal(t, "engine exploded", pe.Value)
	assert.Equal(t, blobcache.StateFailed, c.State())
}

func TestOpenFanOut(t *testing.T) {
	for _, fail := range []bool{false, true} {
		name := "Success"
		if fail {
			name = "SharedFailure"
		}
		t.Run(name, func(t *testing.T) {
			c, engine := newCache(t)
			engine.Gate = make(chan struct{})
			engine.Started = make(chan struct{}, 1)
			if fail {
				engine.OpenErr = errors.New("locked")
			}

			const callers = 8
			errs := make(chan error, callers)
			var wg sync.WaitGroup
			for range callers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- c.Open(context.Background())
				}()
			}

			<-engine.Started
			assert.Equal(t, blobcache.StateOpening, c.State())
			close(engine.Gate)
			wg.Wait()
			close(errs)

			for err := range errs {
				if fail {
					assert.ErrorIs(t, err, engine.OpenErr)
				} else {
					assert.NoError(t, err)
				}
			}
			assert.Equal(t, int64(1), engine.Counts().Opens)
		})
	}
}

func TestCancelledWaiterDoesNotFailCache(t *testing.T) {
	c, engine := newCache(t)
	engine.Gate = make(chan struct{})
	engine.Started = make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Open(ctx) }()

	<-engine.Started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, blobcache.StateOpening, c.State())

	close(engine.Gate)
	require.NoError(t, c.Save(context.Background(), "k", []byte("v")))
	assert.Equal(t, blobcache.StateOpen, c.State())
	assert.Equal(t, int64(1), engine.Counts().Opens)
}

func TestTransactionErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	c, engine := newCache(t)
	engine.PutErr = boom
	engine.GetErr = boom
	engine.DeleteErr = boom

	err := c.Save(ctx, "a", []byte("v"))
	var te *blobcache.TxError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "save", te.Op)
	assert.Equal(t, "a", te.ID)
	assert.ErrorIs(t, err, boom)

	data, err := c.Load(ctx, "a")
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "load", te.Op)
	assert.Nil(t, data)

	err = c.Remove(ctx, "a")
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "remove", te.Op)

	// Transaction failures are not memoized.
	assert.Equal(t, blobcache.StateOpen, c.State())
	engine.PutErr = nil
	assert.NoError(t, c.Save(ctx, "a", []byte("v")))
}

func TestOperationPanics(t *testing.T) {
	ctx := context.Background()
	c, engine := newCache(t)
	engine.PanicOps = map[string]bool{"put": true, "get": true, "delete": true}

	var pe *blobcache.PanicError
	var te *blobcache.TxError

	err := c.Save(ctx, "a", []byte("v"))
	require.ErrorAs(t, err, &te)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "save", pe.Op)

	_, err = c.Load(ctx, "a")
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "load", pe.Op)

	err = c.Remove(ctx, "a")
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "remove", pe.Op)

	assert.Equal(t, blobcache.StateOpen, c.State())
}

func TestDisabledCache(t *testing.T) {
	ctx := context.Background()

	t.Run("NilEngine", func(t *testing.T) {
		c := blobcache.New(nil)
		assert.False(t, c.Enabled())
		assert.ErrorIs(t, c.Open(ctx), blobcache.ErrEngineUnavailable)
		assert.ErrorIs(t, c.Save(ctx, "a", nil), blobcache.ErrEngineUnavailable)
		assert.NoError(t, c.Close())
	})

	t.Run("ProbeFails", func(t *testing.T) {
		engine := testutil.NewRecordingEngine(nil)
		engine.ProbeErr = errors.New("no such bucket")
		c := blobcache.New(engine)

		assert.False(t, c.Enabled())
		assert.ErrorIs(t, c.Save(ctx, "a", []byte("v")), blobcache.ErrEngineUnavailable)
		_, err := c.Load(ctx, "a")
		assert.ErrorIs(t, err, blobcache.ErrEngineUnavailable)
		assert.ErrorIs(t, c.Remove(ctx, "a"), blobcache.ErrEngineUnavailable)

		assert.Zero(t, engine.Counts().Total())
		assert.Equal(t, blobcache.StateUnopened, c.State())
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	c, engine := newCache(t)

	require.NoError(t, c.Save(ctx, "a", []byte("v")))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Equal(t, blobcache.StateFailed, c.State())
	assert.ErrorIs(t, c.Save(ctx, "a", []byte("v")), blobcache.ErrClosed)
	_, err := c.Load(ctx, "a")
	assert.ErrorIs(t, err, blobcache.ErrClosed)
	assert.Equal(t, int64(1), engine.Counts().Closes)
}

func TestCloseDuringOpen(t *testing.T) {
	c, engine := newCache(t)
	engine.Gate = make(chan struct{})
	engine.Started = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() { done <- c.Open(context.Background()) }()

	<-engine.Started
	require.NoError(t, c.Close())
	close(engine.Gate)

	assert.ErrorIs(t, <-done, blobcache.ErrClosed)
	assert.Equal(t, int64(1), engine.Counts().Closes)
}

func TestUpgradeRunsOncePerStore(t *testing.T) {
	ctx := context.Background()
	engine := testutil.NewRecordingEngine(blobstore.NewMemoryEngine())

	first := blobcache.New(engine)
	require.NoError(t, first.Save(ctx, "shared", []byte("v")))
	require.NoError(t, first.Close())

	second := blobcache.New(engine)
	defer second.Close()
	data, err := second.Load(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), data)

	counts := engine.Counts()
	assert.Equal(t, int64(2), counts.Opens)
	assert.Equal(t, int64(1), counts.Upgrades)
}

func TestWithStoreName(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryEngine()

	a := blobcache.New(mem, blobcache.WithStoreName("A"))
	b := blobcache.New(mem, blobcache.WithStoreName("B"))
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Save(ctx, "k", []byte("a")))
	data, err := b.Load(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestAsync(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t)

	saveCh := c.SaveAsync(ctx, "file1", []byte{0x01, 0x02})
	require.NoError(t, <-saveCh)
	_, ok := <-saveCh
	assert.False(t, ok, "channel must be closed after one value")

	res := <-c.LoadAsync(ctx, "file1")
	require.NoError(t, res.Err)
	assert.Equal(t, []byte{0x01, 0x02}, res.Data)

	require.NoError(t, <-c.RemoveAsync(ctx, "file1"))

	res = <-c.LoadAsync(ctx, "file1")
	require.NoError(t, res.Err)
	assert.Nil(t, res.Data)
}

func TestAsyncConcurrentKeys(t *testing.T) {
	ctx := context.Background()
	c, engine := newCache(t)
	rng := testutil.NewRNG(42)
	blobs := rng.Blobs(32, 512)

	chans := make([]<-chan error, len(blobs))
	keys := make([]string, len(blobs))
	for i, blob := range blobs {
		keys[i] = rng.Key()
		chans[i] = c.SaveAsync(ctx, keys[i], blob)
	}
	for _, ch := range chans {
		require.NoError(t, <-ch)
	}
	for i, blob := range blobs {
		res := <-c.LoadAsync(ctx, keys[i])
		require.NoError(t, res.Err)
		assert.Equal(t, blob, res.Data)
	}
	assert.Equal(t, int64(1), engine.Counts().Opens)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	mc := &blobcache.BasicMetricsCollector{}
	c, engine := newCache(t, blobcache.WithMetricsCollector(mc))

	require.NoError(t, c.Save(ctx, "a", []byte("1234")))
	_, _ = c.Load(ctx, "a")
	_, _ = c.Load(ctx, "missing")
	require.NoError(t, c.Remove(ctx, "a"))

	engine.DeleteErr = errors.New("boom")
	require.Error(t, c.Remove(ctx, "a"))

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.OpenCount)
	assert.Zero(t, stats.OpenErrors)
	assert.Equal(t, int64(1), stats.SaveCount)
	assert.Equal(t, int64(4), stats.SaveBytes)
	assert.Equal(t, int64(2), stats.LoadCount)
	assert.Equal(t, int64(1), stats.LoadHits)
	assert.Equal(t, int64(2), stats.RemoveCount)
	assert.Equal(t, int64(1), stats.RemoveErrors)
}

func TestLogging(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := blobcache.NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c, engine := newCache(t, blobcache.WithLogger(logger))

	require.NoError(t, c.Save(ctx, "file1", []byte{0x01}))
	out := buf.String()
	assert.Contains(t, out, `"msg":"save started"`)
	assert.Contains(t, out, `"msg":"save completed"`)
	assert.Contains(t, out, `"id":"file1"`)
	assert.Contains(t, out, `"store":"FilesCache"`)
	assert.Contains(t, out, `"elapsed"`)

	buf.Reset()
	engine.GetErr = errors.New("read failed")
	_, err := c.Load(ctx, "file1")
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), `"msg":"load failed"`)
}

func TestLoggerElapsed(t *testing.T) {
	l := blobcache.NoopLogger()
	start := l.Ts().Add(-1500 * time.Microsecond)
	d, err := time.ParseDuration(l.Elapsed(start))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d, 1500*time.Microsecond)
}
