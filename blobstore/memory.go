package blobstore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryEngine is an in-memory Engine implementation for testing and
// process-local caching. Stores survive Handle.Close for the lifetime of the
// engine, so reopening a name sees the previous contents.
// Thread-safe for concurrent reads and writes.
type MemoryEngine struct {
	mu     sync.Mutex
	stores map[string]*memoryStore
}

// NewMemoryEngine creates a new in-memory engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		stores: make(map[string]*memoryStore),
	}
}

// Probe implements Prober. The memory engine is always available.
func (e *MemoryEngine) Probe(context.Context) error { return nil }

// Open opens the named store, creating it and running upgrade if it does not exist.
func (e *MemoryEngine) Open(ctx context.Context, name string, upgrade UpgradeFunc) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.stores[name]
	if !ok {
		s = &memoryStore{collections: make(map[string]map[string][]byte)}
		if upgrade != nil {
			if err := upgrade(ctx, s); err != nil {
				return nil, fmt.Errorf("upgrade %s: %w", name, err)
			}
		}
		// Only a successfully upgraded store becomes visible.
		e.stores[name] = s
	}

	return &memoryHandle{store: s}, nil
}

type memoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

func (s *memoryStore) CreateCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; !ok {
		s.collections[name] = make(map[string][]byte)
	}
	return nil
}

type memoryHandle struct {
	store  *memoryStore
	mu     sync.RWMutex
	closed bool
}

func (h *memoryHandle) check() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrHandleClosed
	}
	return nil
}

func (h *memoryHandle) Put(_ context.Context, collection, key string, value []byte) error {
	if err := h.check(); err != nil {
		return err
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	c, ok := h.store.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoCollection, collection)
	}

	// Copy to prevent external mutation
	copied := make([]byte, len(value))
	copy(copied, value)
	c[key] = copied
	return nil
}

func (h *memoryHandle) Get(_ context.Context, collection, key string) ([]byte, error) {
	if err := h.check(); err != nil {
		return nil, err
	}
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	c, ok := h.store.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCollection, collection)
	}
	data, ok := c[key]
	if !ok {
		return nil, ErrNotFound
	}

	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

func (h *memoryHandle) Delete(_ context.Context, collection, key string) error {
	if err := h.check(); err != nil {
		return err
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	c, ok := h.store.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoCollection, collection)
	}
	delete(c, key)
	return nil
}

func (h *memoryHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
