// Package s3 provides an Amazon S3 implementation of blobstore.Engine.
//
// # Usage
//
//	engine, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("cache/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	cache := blobcache.New(engine)
//
// # Layout
//
//	<prefix>/<store>/.store                  written once the upgrade hook succeeded
//	<prefix>/<store>/<collection>/.collection
//	<prefix>/<store>/<collection>/<escaped key>
//
// Values are written in the blobstore record format, so the configured codec
// and a sha256 digest travel with every object.
package s3
