package testutil

import (
	"context"
	"sync/atomic"

	"github.com/hupe1980/blobcache/blobstore"
)

// Counts is a snapshot of the calls a RecordingEngine observed.
type Counts struct {
	Opens    int64
	Upgrades int64
	Puts     int64
	Gets     int64
	Deletes  int64
	Closes   int64
}

// Total returns the number of engine accesses of any kind.
func (c Counts) Total() int64 {
	return c.Opens + c.Puts + c.Gets + c.Deletes
}

// RecordingEngine wraps an Engine, counts every call and injects faults.
// Fault fields must be set before the engine is shared between goroutines.
type RecordingEngine struct {
	Inner blobstore.Engine

	// ProbeErr is returned by Probe.
	ProbeErr error
	// OpenErr makes Open fail without reaching Inner.
	OpenErr error
	// OpenPanic makes Open panic with the given value.
	OpenPanic any
	// Gate, when non-nil, blocks Open until it is closed.
	Gate chan struct{}
	// Started, when non-nil, receives a value each time Open begins.
	Started chan struct{}

	PutErr    error
	GetErr    error
	DeleteErr error
	// PanicOps lists handle operations ("put", "get", "delete") that panic.
	PanicOps map[string]bool

	opens, upgrades, puts, gets, deletes, closes atomic.Int64
}

// NewRecordingEngine wraps inner, or a fresh MemoryEngine when inner is nil.
func NewRecordingEngine(inner blobstore.Engine) *RecordingEngine {
	if inner == nil {
		inner = blobstore.NewMemoryEngine()
	}
	return &RecordingEngine{Inner: inner}
}

// Counts returns a snapshot of observed calls.
func (e *RecordingEngine) Counts() Counts {
	return Counts{
		Opens:    e.opens.Load(),
		Upgrades: e.upgrades.Load(),
		Puts:     e.puts.Load(),
		Gets:     e.gets.Load(),
		Deletes:  e.deletes.Load(),
		Closes:   e.closes.Load(),
	}
}

func (e *RecordingEngine) Probe(ctx context.Context) error {
	if e.ProbeErr != nil {
		return e.ProbeErr
	}
	if p, ok := e.Inner.(blobstore.Prober); ok {
		return p.Probe(ctx)
	}
	return nil
}

func (e *RecordingEngine) Open(ctx context.Context, name string, upgrade blobstore.UpgradeFunc) (blobstore.Handle, error) {
	e.opens.Add(1)
	if e.Started != nil {
		e.Started <- struct{}{}
	}
	if e.Gate != nil {
		select {
		case <-e.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.OpenPanic != nil {
		panic(e.OpenPanic)
	}
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}

	counted := func(ctx context.Context, s blobstore.Schema) error {
		e.upgrades.Add(1)
		if upgrade == nil {
			return nil
		}
		return upgrade(ctx, s)
	}
	h, err := e.Inner.Open(ctx, name, counted)
	if err != nil {
		return nil, err
	}
	return &recordingHandle{inner: h, engine: e}, nil
}

type recordingHandle struct {
	inner  blobstore.Handle
	engine *RecordingEngine
}

func (h *recordingHandle) Put(ctx context.Context, collection, key string, value []byte) error {
	h.engine.puts.Add(1)
	if h.engine.PanicOps["put"] {
		panic("injected put panic")
	}
	if h.engine.PutErr != nil {
		return h.engine.PutErr
	}
	return h.inner.Put(ctx, collection, key, value)
}

func (h *recordingHandle) Get(ctx context.Context, collection, key string) ([]byte, error) {
	h.engine.gets.Add(1)
	if h.engine.PanicOps["get"] {
		panic("injected get panic")
	}
	if h.engine.GetErr != nil {
		return nil, h.engine.GetErr
	}
	return h.inner.Get(ctx, collection, key)
}

func (h *recordingHandle) Delete(ctx context.Context, collection, key string) error {
	h.engine.deletes.Add(1)
	if h.engine.PanicOps["delete"] {
		panic("injected delete panic")
	}
	if h.engine.DeleteErr != nil {
		return h.engine.DeleteErr
	}
	return h.inner.Delete(ctx, collection, key)
}

func (h *recordingHandle) Close() error {
	h.engine.closes.Add(1)
	return h.inner.Close()
}
