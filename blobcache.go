package blobcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/blobcache/blobstore"
	"golang.org/x/sync/singleflight"
)

const (
	// Collection is the single engine collection holding every entry.
	Collection = "files"

	storageName = "cache"
	openKey     = "open"
)

// State is the lifecycle state of a BlobCache.
type State int32

const (
	// StateUnopened means no open attempt was made yet.
	StateUnopened State = iota
	// StateOpening means an engine open attempt is in flight.
	StateOpening
	// StateOpen means the handle is cached and used by all operations.
	StateOpen
	// StateFailed means the open error is cached and replayed to all operations.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// BlobCache is a key-value cache of opaque blobs on top of a storage engine.
//
// The engine store is opened lazily on first use. The outcome of that single
// open attempt, handle or error, is kept for the lifetime of the cache. A
// BlobCache is safe for concurrent use.
type BlobCache struct {
	engine  blobstore.Engine
	enabled bool

	storeName string
	logger    *Logger
	metrics   MetricsCollector

	group singleflight.Group

	mu      sync.Mutex
	state   State
	handle  blobstore.Handle
	openErr error
}

// New creates a BlobCache over engine and probes its availability once.
//
// A nil engine, or an engine implementing blobstore.Prober whose probe fails,
// produces a disabled cache. New never opens the store.
func New(engine blobstore.Engine, optFns ...Option) *BlobCache {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	c := &BlobCache{
		engine:    engine,
		storeName: o.storeName,
		logger:    o.logger.WithStore(o.storeName).WithSession(uuid.NewString()),
		metrics:   o.metricsCollector,
	}
	c.enabled = c.probe(o.probeTimeout)
	return c
}

func (c *BlobCache) probe(timeout time.Duration) bool {
	if c.engine == nil {
		c.logger.Warn("storage engine is nil, cache disabled")
		return false
	}
	p, ok := c.engine.(blobstore.Prober)
	if !ok {
		return true
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := p.Probe(ctx); err != nil {
		c.logger.WarnContext(ctx, "storage engine probe failed, cache disabled", "error", err)
		return false
	}
	return true
}

// Name returns the stable storage name "cache".
func (c *BlobCache) Name() string { return storageName }

// Enabled reports whether the engine was available at construction.
func (c *BlobCache) Enabled() bool { return c.enabled }

// System reports that the cache is infrastructure storage, never user-facing.
func (c *BlobCache) System() bool { return true }

// State returns the current lifecycle state.
func (c *BlobCache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open makes sure the engine store is open.
//
// Concurrent calls share one engine open attempt. The attempt runs detached
// from ctx; a caller whose ctx ends first gets ctx.Err() while the attempt
// keeps going for the other callers. Once the attempt failed, Open returns the
// same *OpenError forever without retrying.
func (c *BlobCache) Open(ctx context.Context) error {
	_, err := c.acquire(ctx)
	return err
}

func (c *BlobCache) acquire(ctx context.Context) (blobstore.Handle, error) {
	if !c.enabled {
		return nil, ErrEngineUnavailable
	}

	c.mu.Lock()
	switch c.state {
	case StateOpen:
		h := c.handle
		c.mu.Unlock()
		return h, nil
	case StateFailed:
		err := c.openErr
		c.mu.Unlock()
		return nil, err
	case StateUnopened:
		c.state = StateOpening
	}
	c.mu.Unlock()

	ch := c.group.DoChan(openKey, func() (any, error) {
		return c.openOnce(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(blobstore.Handle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// openOnce runs inside the singleflight group. A caller that observed
// StateOpening may only reach the group after the attempt finished, so the
// memoized outcome is checked again before touching the engine.
func (c *BlobCache) openOnce(ctx context.Context) (blobstore.Handle, error) {
	c.mu.Lock()
	switch c.state {
	case StateOpen:
		h := c.handle
		c.mu.Unlock()
		return h, nil
	case StateFailed:
		err := c.openErr
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	start := c.logger.Ts()
	h, err := c.openEngine(ctx)
	if err != nil {
		err = &OpenError{Store: c.storeName, cause: err}
	}

	c.mu.Lock()
	if c.state == StateFailed {
		// Closed while the attempt was in flight.
		c.mu.Unlock()
		if h != nil {
			_ = h.Close()
		}
		return nil, ErrClosed
	}
	if err != nil {
		c.state = StateFailed
		c.openErr = err
	} else {
		c.state = StateOpen
		c.handle = h
	}
	c.mu.Unlock()

	c.metrics.RecordOpen(time.Since(start), err)
	c.logger.LogOpen(ctx, start, err)
	return h, err
}

func (c *BlobCache) openEngine(ctx context.Context) (h blobstore.Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, &PanicError{Op: "open", Value: r}
		}
	}()
	return c.engine.Open(ctx, c.storeName, createFiles)
}

func createFiles(ctx context.Context, s blobstore.Schema) error {
	return s.CreateCollection(ctx, Collection)
}

// call issues one engine request, converting a panic into a *PanicError and
// wrapping failures in a *TxError.
func call(op, id string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Op: op, Value: r}
		}
		if err != nil {
			err = &TxError{Op: op, ID: id, cause: err}
		}
	}()
	return fn()
}

// Save stores data under id, replacing any previous value.
func (c *BlobCache) Save(ctx context.Context, id string, data []byte) error {
	start := c.logger.Ts()
	c.logger.LogStart(ctx, "save", id)

	err := c.save(ctx, id, data)
	c.metrics.RecordSave(time.Since(start), len(data), err)
	c.logger.LogSave(ctx, id, len(data), start, err)
	return err
}

func (c *BlobCache) save(ctx context.Context, id string, data []byte) error {
	if id == "" {
		return ErrInvalidID
	}
	h, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	return call("save", id, func() error {
		return h.Put(ctx, Collection, id, data)
	})
}

// Load returns the value stored under id. An id that was never saved, or was
// removed, yields (nil, nil).
func (c *BlobCache) Load(ctx context.Context, id string) ([]byte, error) {
	start := c.logger.Ts()
	c.logger.LogStart(ctx, "load", id)

	data, err := c.load(ctx, id)
	hit := err == nil && data != nil
	c.metrics.RecordLoad(time.Since(start), hit, err)
	c.logger.LogLoad(ctx, id, hit, start, err)
	return data, err
}

func (c *BlobCache) load(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	h, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = call("load", id, func() error {
		v, err := h.Get(ctx, Collection, id)
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if v == nil {
			v = []byte{}
		}
		data = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Remove deletes the value stored under id. Removing an absent id succeeds.
func (c *BlobCache) Remove(ctx context.Context, id string) error {
	start := c.logger.Ts()
	c.logger.LogStart(ctx, "remove", id)

	err := c.remove(ctx, id)
	c.metrics.RecordRemove(time.Since(start), err)
	c.logger.LogRemove(ctx, id, start, err)
	return err
}

func (c *BlobCache) remove(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	h, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	return call("remove", id, func() error {
		return h.Delete(ctx, Collection, id)
	})
}

// Close releases the engine handle. Afterwards every operation returns
// ErrClosed. Close is idempotent.
func (c *BlobCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.handle
	c.handle = nil
	c.state = StateFailed
	c.openErr = ErrClosed

	if h != nil {
		return h.Close()
	}
	return nil
}
