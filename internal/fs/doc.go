// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: Represents an open file with write/sync capabilities
//   - [FileSystem]: Abstracts filesystem operations (open, read, remove, rename, etc.)
//
// # Implementations
//
//   - [LocalFS]: Production implementation using standard os package
//   - [FaultyFS]: Test utility for fault injection (simulate I/O errors per path)
//
// # Usage
//
// Production code should use fs.Default (which is [LocalFS]):
//
//	data, err := fs.Default.ReadFile(path)
//
// Tests can inject [FaultyFS] to simulate failures:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("files", fs.Fault{Ops: fs.OpRename})
//	// inject ffs into component under test
//
// This package intentionally does NOT include context.Context parameters.
// Local filesystem calls are not interruptible at the syscall level.
package fs
