package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/hupe1980/blobcache/blobstore"
	"github.com/hupe1980/blobcache/codec"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	storeMarker      = ".store"
	collectionMarker = ".collection"
)

// Engine implements blobstore.Engine for MinIO and S3-compatible storage.
type Engine struct {
	client *minio.Client
	bucket string
	prefix string
	codec  codec.Codec
	region string
}

// Option configures an Engine.
type Option func(*Engine)

// WithPrefix sets the key prefix under which stores are kept (e.g. "cache/").
func WithPrefix(prefix string) Option {
	return func(e *Engine) {
		e.prefix = strings.Trim(prefix, "/")
	}
}

// WithCodec sets the codec used for newly written values.
func WithCodec(c codec.Codec) Option {
	return func(e *Engine) {
		if c == nil {
			c = codec.Default
		}
		e.codec = c
	}
}

// WithRegion sets the region used when the bucket has to be created.
func WithRegion(region string) Option {
	return func(e *Engine) {
		e.region = region
	}
}

// NewEngine creates a new MinIO engine.
// bucket is created on first open if it does not exist.
func NewEngine(client *minio.Client, bucket string, opts ...Option) *Engine {
	e := &Engine{
		client: client,
		bucket: bucket,
		codec:  codec.Default,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// New connects to endpoint (host:port) with static credentials.
func New(endpoint, accessKey, secretKey string, secure bool, bucket string, opts ...Option) (*Engine, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return NewEngine(client, bucket, opts...), nil
}

// Probe implements blobstore.Prober. A missing bucket is not an error.
func (e *Engine) Probe(ctx context.Context) error {
	_, err := e.client.BucketExists(ctx, e.bucket)
	return err
}

func (e *Engine) storeKey(name string, parts ...string) string {
	return path.Join(append([]string{e.prefix, name}, parts...)...)
}

// Open opens the named store, running upgrade when its marker object is absent.
func (e *Engine) Open(ctx context.Context, name string, upgrade blobstore.UpgradeFunc) (blobstore.Handle, error) {
	if name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid store name %q", name)
	}
	if err := e.ensureBucket(ctx); err != nil {
		return nil, err
	}

	h := &handle{
		engine:      e,
		store:       name,
		collections: make(map[string]bool),
	}

	_, err := e.client.StatObject(ctx, e.bucket, e.storeKey(name, storeMarker), minio.StatObjectOptions{})
	switch {
	case err == nil:
		if err := h.loadCollections(ctx); err != nil {
			return nil, err
		}
		return h, nil
	case !isNotFound(err):
		return nil, err
	}

	if upgrade != nil {
		if err := upgrade(ctx, h); err != nil {
			return nil, fmt.Errorf("upgrade %s: %w", name, err)
		}
	}
	if err := e.putMarker(ctx, e.storeKey(name, storeMarker)); err != nil {
		return nil, err
	}
	return h, nil
}

func (e *Engine) ensureBucket(ctx context.Context) error {
	exists, err := e.client.BucketExists(ctx, e.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = e.client.MakeBucket(ctx, e.bucket, minio.MakeBucketOptions{Region: e.region})
	if err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return fmt.Errorf("make bucket %s: %w", e.bucket, err)
	}
	return nil
}

func (e *Engine) putMarker(ctx context.Context, key string) error {
	_, err := e.client.PutObject(ctx, e.bucket, key, bytes.NewReader(nil), 0, minio.PutObjectOptions{})
	return err
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

type handle struct {
	engine *Engine
	store  string

	mu          sync.RWMutex
	collections map[string]bool
	closed      bool
}

func (h *handle) loadCollections(ctx context.Context) error {
	prefix := h.engine.storeKey(h.store) + "/"

	h.mu.Lock()
	defer h.mu.Unlock()
	for obj := range h.engine.client.ListObjects(ctx, h.engine.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if obj.Err != nil {
			return obj.Err
		}
		name, isDir := strings.CutSuffix(strings.TrimPrefix(obj.Key, prefix), "/")
		if isDir && name != "" {
			h.collections[name] = true
		}
	}
	return nil
}

// CreateCollection implements blobstore.Schema.
func (h *handle) CreateCollection(ctx context.Context, name string) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("invalid collection name %q", name)
	}
	if err := h.engine.putMarker(ctx, h.engine.storeKey(h.store, name, collectionMarker)); err != nil {
		return err
	}
	h.mu.Lock()
	h.collections[name] = true
	h.mu.Unlock()
	return nil
}

func (h *handle) objectKey(collection, key string) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return "", blobstore.ErrHandleClosed
	}
	if !h.collections[collection] {
		return "", fmt.Errorf("%w: %s", blobstore.ErrNoCollection, collection)
	}
	return h.engine.storeKey(h.store, collection) + "/" + blobstore.EscapeKey(key), nil
}

func (h *handle) Put(ctx context.Context, collection, key string, value []byte) error {
	objKey, err := h.objectKey(collection, key)
	if err != nil {
		return err
	}
	record, err := blobstore.EncodeRecord(h.engine.codec, value)
	if err != nil {
		return err
	}
	_, err = h.engine.client.PutObject(ctx, h.engine.bucket, objKey, bytes.NewReader(record), int64(len(record)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

func (h *handle) Get(ctx context.Context, collection, key string) ([]byte, error) {
	objKey, err := h.objectKey(collection, key)
	if err != nil {
		return nil, err
	}
	obj, err := h.engine.client.GetObject(ctx, h.engine.bucket, objKey, minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	defer obj.Close()

	// GetObject is lazy; a missing key surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return blobstore.DecodeRecord(data)
}

func (h *handle) Delete(ctx context.Context, collection, key string) error {
	objKey, err := h.objectKey(collection, key)
	if err != nil {
		return err
	}
	err = h.engine.client.RemoveObject(ctx, h.engine.bucket, objKey, minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

var _ blobstore.Prober = (*Engine)(nil)
