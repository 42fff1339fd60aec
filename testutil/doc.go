// Package testutil provides testing utilities for blobcache.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Payloads
//
//	rng := testutil.NewRNG(seed)
//	blob := rng.Bytes(1024)
//	key := rng.Key()
//
// # Recording Engine
//
// RecordingEngine wraps any blobstore.Engine, counts calls and injects open or
// operation faults:
//
//	rec := testutil.NewRecordingEngine(nil)
//	rec.OpenErr = errors.New("quota exceeded")
//	cache := blobcache.New(rec)
//	// ... assert rec.Counts()
//
// # Engine Conformance
//
//	testutil.RunEngineSuite(t, func(t *testing.T) blobstore.Engine {
//	    return blobstore.NewLocalEngine(t.TempDir())
//	})
package testutil
