// Package blobstore provides the storage engine abstraction behind blobcache.
//
// An Engine opens named stores. Opening a store that does not exist yet runs
// a one-time UpgradeFunc that creates its collections. The returned Handle
// offers single-key Put, Get and Delete against a collection.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryEngine: process-local, for tests and ephemeral caches
//   - LocalEngine: local filesystem, one record file per key, advisory lock per store
//   - LimitedEngine: wraps any Engine with concurrency and rate limits
//   - s3.Engine: Amazon S3
//   - dynamodb.Engine: Amazon DynamoDB, one table per store
//   - minio.Engine: MinIO and other S3-compatible services
//
// # Custom Implementations
//
// Implement the Engine and Handle interfaces to support custom backends:
//
//	type Engine interface {
//	    Open(ctx, name, upgrade) (Handle, error)
//	}
//
//	type Handle interface {
//	    Put(ctx, collection, key, value) error
//	    Get(ctx, collection, key) ([]byte, error) // ErrNotFound when absent
//	    Delete(ctx, collection, key) error        // nil when absent
//	    Close() error
//	}
//
// Persistent engines store values with EncodeRecord, which records the codec
// and a sha256 digest so DecodeRecord can detect corruption.
package blobstore
