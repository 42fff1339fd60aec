// Package blobcache provides a small persistent key-value cache for opaque
// binary blobs.
//
// A BlobCache stores, loads and removes blobs under string identifiers in a
// single collection ("files") of a pluggable storage engine. The engine handle
// is opened lazily on first use and memoized for the lifetime of the cache.
//
// # Quick Start
//
//	ctx := context.Background()
//	cache := blobcache.New(blobstore.NewLocalEngine("./cache"))
//	defer cache.Close()
//
//	_ = cache.Save(ctx, "file1", []byte{0x01, 0x02})
//	data, _ := cache.Load(ctx, "file1") // [0x01 0x02]
//	_ = cache.Remove(ctx, "file1")
//	data, _ = cache.Load(ctx, "file1") // nil, not an error
//
// Cloud engines:
//
//	s3Engine, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("cache/"))
//	cache := blobcache.New(s3Engine)
//
// Or from the environment (BLOBCACHE_ENGINE=file:///var/cache/app, ...):
//
//	cfg, _ := blobcache.ConfigFromEnv()
//	cache, _ := blobcache.NewFromConfig(ctx, cfg)
//
// # Open Semantics
//
// The first operation opens the engine store (default name "FilesCache") and,
// when the store is created, runs a one-time upgrade that creates the "files"
// collection. Concurrent callers share that single open attempt.
//
// A failed open is remembered. Every later operation returns the same
// *OpenError without touching the engine again:
//
//	if err := cache.Save(ctx, id, data); err != nil {
//	    var oe *blobcache.OpenError
//	    if errors.As(err, &oe) {
//	        // caching is off for this process; recompute instead
//	    }
//	}
//
// # Async Variants
//
// SaveAsync, LoadAsync and RemoveAsync return immediately and deliver exactly
// one result on the returned channel:
//
//	res := <-cache.LoadAsync(ctx, "file1")
//	if res.Err == nil && res.Data != nil { ... }
//
// # Availability
//
// New probes the engine once. A nil engine or a failing probe yields a
// disabled cache (Enabled reports false) whose operations return
// ErrEngineUnavailable. The registry package uses Name, Enabled and System to
// decide where a cache is listed.
package blobcache
