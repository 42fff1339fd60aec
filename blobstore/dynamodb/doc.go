// Package dynamodb provides a DynamoDB implementation of blobstore.Engine.
//
// Each store maps to one table named <prefix><store>, created on first open.
// Collections share the table and are distinguished by the partition key.
//
//	engine, err := dynamodb.New(ctx, dynamodb.WithTablePrefix("blobcache-"), dynamodb.WithRegion("eu-west-1"))
//	cache := blobcache.New(engine)
package dynamodb
