package blobstore

import (
	"context"

	"github.com/hupe1980/blobcache/resource"
)

// LimitedEngine wraps an Engine and gates every Handle operation through a
// resource.Controller. Open itself is not limited.
type LimitedEngine struct {
	inner Engine
	rc    *resource.Controller
}

// NewLimitedEngine creates a new LimitedEngine. A nil controller disables limiting.
func NewLimitedEngine(inner Engine, rc *resource.Controller) *LimitedEngine {
	return &LimitedEngine{inner: inner, rc: rc}
}

// Probe forwards to the inner engine when it implements Prober.
func (e *LimitedEngine) Probe(ctx context.Context) error {
	if p, ok := e.inner.(Prober); ok {
		return p.Probe(ctx)
	}
	return nil
}

func (e *LimitedEngine) Open(ctx context.Context, name string, upgrade UpgradeFunc) (Handle, error) {
	h, err := e.inner.Open(ctx, name, upgrade)
	if err != nil {
		return nil, err
	}
	return &limitedHandle{inner: h, rc: e.rc}, nil
}

type limitedHandle struct {
	inner Handle
	rc    *resource.Controller
}

func (h *limitedHandle) Put(ctx context.Context, collection, key string, value []byte) error {
	release, err := h.rc.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return h.inner.Put(ctx, collection, key, value)
}

func (h *limitedHandle) Get(ctx context.Context, collection, key string) ([]byte, error) {
	release, err := h.rc.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return h.inner.Get(ctx, collection, key)
}

func (h *limitedHandle) Delete(ctx context.Context, collection, key string) error {
	release, err := h.rc.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return h.inner.Delete(ctx, collection, key)
}

func (h *limitedHandle) Close() error {
	return h.inner.Close()
}
