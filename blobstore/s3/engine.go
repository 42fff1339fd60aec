package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/hupe1980/blobcache/blobstore"
	"github.com/hupe1980/blobcache/codec"
)

const (
	storeMarker      = ".store"
	collectionMarker = ".collection"
)

// Client is the subset of the S3 API used by Engine.
type Client interface {
	manager.UploadAPIClient
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Engine implements blobstore.Engine for S3.
type Engine struct {
	client   Client
	bucket   string
	prefix   string
	codec    codec.Codec
	upload   UploadConfig
	uploader *manager.Uploader
	region   string
}

// Option configures an Engine.
type Option func(*Engine)

// WithPrefix sets the root prefix prepended to all keys (e.g. "cache/").
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

// WithUploadConfig overrides DefaultUploadConfig.
func WithUploadConfig(cfg UploadConfig) Option {
	return func(e *Engine) {
		e.upload = cfg
	}
}

// WithRegion sets the AWS region used by New. Ignored by NewEngine.
func WithRegion(region string) Option {
	return func(e *Engine) {
		e.region = region
	}
}

// NewEngine creates a new S3 engine on top of an existing client.
func NewEngine(client Client, bucket string, opts ...Option) *Engine {
	e := &Engine{
		client: client,
		bucket: bucket,
		codec:  codec.Default,
		upload: DefaultUploadConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.uploader = newUploader(client, e.upload)
	return e
}

// New creates an S3 engine using the default AWS credential chain.
func New(ctx context.Context, bucket string, opts ...Option) (*Engine, error) {
	probe := &Engine{}
	for _, opt := range opts {
		opt(probe)
	}

	var loadOpts []func(*config.LoadOptions) error
	if probe.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(probe.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewEngine(s3.NewFromConfig(cfg), bucket, opts...), nil
}

// Probe implements blobstore.Prober by checking that the bucket is reachable.
func (e *Engine) Probe(ctx context.Context) error {
	_, err := e.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(e.bucket)})
	return err
}

func (e *Engine) storePrefix(name string) string {
	return path.Join(e.prefix, name)
}

// Open opens the named store, running upgrade when its store marker is absent.
func (e *Engine) Open(ctx context.Context, name string, upgrade blobstore.UpgradeFunc) (blobstore.Handle, error) {
	if name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid store name %q", name)
	}
	h := &handle{
		engine:      e,
		prefix:      e.storePrefix(name),
		collections: make(map[string]bool),
	}

	exists, err := e.exists(ctx, path.Join(h.prefix, storeMarker))
	if err != nil {
		return nil, err
	}
	if exists {
		if err := h.loadCollections(ctx); err != nil {
			return nil, err
		}
		return h, nil
	}

	if upgrade != nil {
		if err := upgrade(ctx, h); err != nil {
			return nil, fmt.Errorf("upgrade %s: %w", name, err)
		}
	}
	if err := e.putObject(ctx, path.Join(h.prefix, storeMarker), nil); err != nil {
		return nil, err
	}
	return h, nil
}

func (e *Engine) exists(ctx context.Context, key string) (bool, error) {
	_, err := e.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (e *Engine) putObject(ctx context.Context, key string, body []byte) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if e.upload.EnableChecksum {
		input.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}
	_, err := e.uploader.Upload(ctx, input)
	return err
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

type handle struct {
	engine *Engine
	prefix string

	mu          sync.RWMutex
	collections map[string]bool
	closed      bool
}

func (h *handle) loadCollections(ctx context.Context) error {
	paginator := s3.NewListObjectsV2Paginator(h.engine.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(h.engine.bucket),
		Prefix:    aws.String(h.prefix + "/"),
		Delimiter: aws.String("/"),
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), h.prefix+"/"), "/")
			if name != "" {
				h.collections[name] = true
			}
		}
	}
	return nil
}

// CreateCollection implements blobstore.Schema.
func (h *handle) CreateCollection(ctx context.Context, name string) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("invalid collection name %q", name)
	}
	if err := h.engine.putObject(ctx, path.Join(h.prefix, name, collectionMarker), nil); err != nil {
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
	// Escaped keys never contain "/" and never collide with marker objects.
	return h.prefix + "/" + collection + "/" + blobstore.EscapeKey(key), nil
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
	return h.engine.putObject(ctx, objKey, record)
}

func (h *handle) Get(ctx context.Context, collection, key string) ([]byte, error) {
	objKey, err := h.objectKey(collection, key)
	if err != nil {
		return nil, err
	}
	resp, err := h.engine.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.engine.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return blobstore.DecodeRecord(data)
}

func (h *handle) Delete(ctx context.Context, collection, key string) error {
	objKey, err := h.objectKey(collection, key)
	if err != nil {
		return err
	}
	_, err = h.engine.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.engine.bucket),
		Key:    aws.String(objKey),
	})
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
