//go:build !unix

package blobstore

import "github.com/hupe1980/blobcache/internal/fs"

// Advisory locking is only implemented on unix; elsewhere stores are unguarded.
func lockFile(fs.File) error { return nil }

func unlockFile(fs.File) error { return nil }
