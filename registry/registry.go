// Package registry keeps track of the storage backends available to an
// application.
//
// Backends describe themselves through Storage. Disabled backends never make it
// into the registry, and system backends (such as blobcache.BlobCache) are
// hidden from UserFacing so they are never offered for export.
package registry

import (
	"log/slog"
	"sort"
	"sync"
)

// Storage is the metadata every storage backend exposes.
type Storage interface {
	Name() string
	Enabled() bool
	System() bool
}

// Registry is a set of storages keyed by name. It is safe for concurrent use.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	storages map[string]Storage
}

// New creates an empty Registry. A nil logger discards log output.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		logger:   logger,
		storages: make(map[string]Storage),
	}
}

// Register adds s and reports whether it was added. Disabled storages are
// skipped. A storage with the same name replaces the previous one.
func (r *Registry) Register(s Storage) bool {
	if s == nil {
		return false
	}
	if !s.Enabled() {
		r.logger.Info("storage disabled, not registered", "name", s.Name())
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.storages[s.Name()]; ok {
		r.logger.Warn("storage replaced", "name", s.Name())
	}
	r.storages[s.Name()] = s
	r.logger.Debug("storage registered", "name", s.Name(), "system", s.System())
	return true
}

// Get returns the storage registered under name.
func (r *Registry) Get(name string) (Storage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.storages[name]
	return s, ok
}

// All returns every registered storage sorted by name.
func (r *Registry) All() []Storage {
	return r.filter(func(Storage) bool { return true })
}

// UserFacing returns the non-system storages sorted by name.
func (r *Registry) UserFacing() []Storage {
	return r.filter(func(s Storage) bool { return !s.System() })
}

func (r *Registry) filter(keep func(Storage) bool) []Storage {
	r.mu.RLock()
	out := make([]Storage, 0, len(r.storages))
	for _, s := range r.storages {
		if keep(s) {
			out = append(out, s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
