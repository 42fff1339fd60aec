// Package minio provides a blobstore.Engine implementation using the MinIO client.
//
// It works with MinIO and other S3-compatible storage systems like Ceph,
// SeaweedFS, and Garage, without pulling in the AWS SDK.
//
// # Basic Usage
//
//	engine, err := minio.New("localhost:9000", "minioadmin", "minioadmin", false, "blobcache",
//	    minio.WithPrefix("cache/"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cache := blobcache.New(engine)
//
// # Layout
//
//	<prefix>/<store>/.store                   written once the upgrade hook succeeded
//	<prefix>/<store>/<collection>/.collection
//	<prefix>/<store>/<collection>/<key>       path-escaped key, blobstore record
package minio
