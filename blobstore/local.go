package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/hupe1980/blobcache/codec"
	"github.com/hupe1980/blobcache/internal/fs"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700
	defaultFilePerm       = 0o600

	lockFileName   = "LOCK"
	schemaFileName = "SCHEMA"
)

// LocalEngine implements Engine using the local file system.
//
// Layout:
//
//	<root>/<store>/LOCK                     exclusive advisory lock
//	<root>/<store>/SCHEMA                   written once the upgrade hook succeeded
//	<root>/<store>/<collection>/<aa>/<hex>  one record per key, hex = sha256(key)
type LocalEngine struct {
	root           string
	fs             fs.FileSystem
	codec          codec.Codec
	dirPerm        os.FileMode
	shardPrefixLen int
}

// LocalOption configures a LocalEngine.
type LocalOption func(*LocalEngine)

// WithCodec sets the codec used for newly written entries.
func WithCodec(c codec.Codec) LocalOption {
	return func(e *LocalEngine) {
		if c == nil {
			c = codec.Default
		}
		e.codec = c
	}
}

// WithFileSystem replaces the file system. Intended for fault injection in tests.
func WithFileSystem(f fs.FileSystem) LocalOption {
	return func(e *LocalEngine) {
		if f != nil {
			e.fs = f
		}
	}
}

// WithDirPerm sets the permissions used for created directories.
func WithDirPerm(mode os.FileMode) LocalOption {
	return func(e *LocalEngine) {
		e.dirPerm = mode
	}
}

// NewLocalEngine creates a new LocalEngine rooted at the given directory.
func NewLocalEngine(root string, opts ...LocalOption) *LocalEngine {
	e := &LocalEngine{
		root:           root,
		fs:             fs.Default,
		codec:          codec.Default,
		dirPerm:        defaultDirPerm,
		shardPrefixLen: defaultShardPrefixLen,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Probe implements Prober by making sure the root directory can be created.
func (e *LocalEngine) Probe(context.Context) error {
	if e.root == "" {
		return errors.New("local engine root is empty")
	}
	return e.fs.MkdirAll(e.root, e.dirPerm)
}

// Open opens the named store, creating it and running upgrade if its schema
// was never written.
func (e *LocalEngine) Open(ctx context.Context, name string, upgrade UpgradeFunc) (Handle, error) {
	if name == "" || name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid store name %q", name)
	}
	dir := filepath.Join(e.root, name)
	if err := e.fs.MkdirAll(dir, e.dirPerm); err != nil {
		return nil, err
	}

	lock, err := e.fs.OpenFile(filepath.Join(dir, lockFileName), os.O_CREATE|os.O_RDWR, defaultFilePerm)
	if err != nil {
		return nil, err
	}
	if err := lockFile(lock); err != nil {
		_ = lock.Close()
		return nil, err
	}

	h := &localHandle{
		engine:      e,
		dir:         dir,
		lock:        lock,
		collections: make(map[string]bool),
	}

	if err := h.init(ctx, upgrade); err != nil {
		_ = h.Close()
		return nil, err
	}
	return h, nil
}

type localHandle struct {
	engine *LocalEngine
	dir    string
	lock   fs.File

	mu          sync.RWMutex
	collections map[string]bool
	closed      bool
}

func (h *localHandle) init(ctx context.Context, upgrade UpgradeFunc) error {
	schemaPath := filepath.Join(h.dir, schemaFileName)
	_, err := h.engine.fs.Stat(schemaPath)
	switch {
	case err == nil:
		return h.loadCollections()
	case !os.IsNotExist(err):
		return err
	}

	if upgrade != nil {
		if err := upgrade(ctx, h); err != nil {
			return fmt.Errorf("upgrade %s: %w", filepath.Base(h.dir), err)
		}
	}
	return h.writeFile(schemaPath, []byte(schemaFileName))
}

func (h *localHandle) loadCollections() error {
	entries, err := h.engine.fs.ReadDir(h.dir)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, entry := range entries {
		if entry.IsDir() {
			h.collections[entry.Name()] = true
		}
	}
	return nil
}

// CreateCollection implements Schema.
func (h *localHandle) CreateCollection(_ context.Context, name string) error {
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	if err := h.engine.fs.MkdirAll(filepath.Join(h.dir, name), h.engine.dirPerm); err != nil {
		return err
	}
	h.mu.Lock()
	h.collections[name] = true
	h.mu.Unlock()
	return nil
}

func (h *localHandle) path(collection, key string) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return "", ErrHandleClosed
	}
	if !h.collections[collection] {
		return "", fmt.Errorf("%w: %s", ErrNoCollection, collection)
	}

	sum := sha256.Sum256([]byte(key))
	hexKey := hex.EncodeToString(sum[:])
	prefixLen := min(h.engine.shardPrefixLen, len(hexKey))
	if prefixLen <= 0 {
		return filepath.Join(h.dir, collection, hexKey), nil
	}
	return filepath.Join(h.dir, collection, hexKey[:prefixLen], hexKey), nil
}

func (h *localHandle) Put(ctx context.Context, collection, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := h.path(collection, key)
	if err != nil {
		return err
	}
	record, err := EncodeRecord(h.engine.codec, value)
	if err != nil {
		return err
	}
	if err := h.engine.fs.MkdirAll(filepath.Dir(path), h.engine.dirPerm); err != nil {
		return err
	}
	return h.writeFile(path, record)
}

// writeFile writes data to a temp file next to path and renames it into place.
func (h *localHandle) writeFile(path string, data []byte) error {
	tmpPath := filepath.Join(filepath.Dir(path), ".tmp-"+uuid.NewString())
	tmp, err := h.engine.fs.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, defaultFilePerm)
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = h.engine.fs.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = h.engine.fs.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = h.engine.fs.Remove(tmpPath)
		return err
	}
	if err := h.engine.fs.Rename(tmpPath, path); err != nil {
		_ = h.engine.fs.Remove(tmpPath)
		return err
	}
	return nil
}

func (h *localHandle) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := h.path(collection, key)
	if err != nil {
		return nil, err
	}
	data, err := h.engine.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return DecodeRecord(data)
}

func (h *localHandle) Delete(ctx context.Context, collection, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := h.path(collection, key)
	if err != nil {
		return err
	}
	if err := h.engine.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (h *localHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	unlockErr := unlockFile(h.lock)
	if err := h.lock.Close(); err != nil {
		return err
	}
	return unlockErr
}
