package blobstore

import (
	"context"
	"errors"
	"os"
)

// ErrNotFound is returned when a key does not exist in a collection.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

var (
	// ErrNoCollection is returned when an operation targets a collection that
	// was never created by the schema hook.
	ErrNoCollection = errors.New("collection does not exist")

	// ErrLocked is returned by Open when the store is held by another process.
	ErrLocked = errors.New("store is locked")

	// ErrHandleClosed is returned by operations on a closed Handle.
	ErrHandleClosed = errors.New("handle is closed")
)

// Engine opens named stores.
//
// Open must invoke upgrade exactly once when the named store does not exist
// yet, before the returned Handle is usable. It must not invoke upgrade for an
// existing store.
type Engine interface {
	Open(ctx context.Context, name string, upgrade UpgradeFunc) (Handle, error)
}

// Prober is an optional interface for engines that can report whether the
// backing capability exists at all (credentials, bucket reachability, ...).
type Prober interface {
	Probe(ctx context.Context) error
}

// UpgradeFunc creates the schema of a freshly created store.
type UpgradeFunc func(ctx context.Context, s Schema) error

// Schema is the store mutation surface handed to an UpgradeFunc.
type Schema interface {
	CreateCollection(ctx context.Context, name string) error
}

// Handle is an open store. Implementations must be safe for concurrent use.
type Handle interface {
	// Put stores value at key, overwriting any existing value.
	Put(ctx context.Context, collection, key string, value []byte) error

	// Get returns the value stored at key, or ErrNotFound.
	// The returned slice is owned by the caller.
	Get(ctx context.Context, collection, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, collection, key string) error

	// Close releases the handle.
	Close() error
}
