package blobcache

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineUnavailable is returned by every operation of a disabled cache.
	ErrEngineUnavailable = errors.New("storage engine unavailable")

	// ErrInvalidID is returned when an identifier is empty.
	ErrInvalidID = errors.New("invalid id: must not be empty")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("blobcache closed")
)

// OpenError indicates that opening the engine store failed.
// It is memoized and returned by all later operations.
//
// The original underlying error can be accessed via errors.Unwrap.
type OpenError struct {
	Store string
	cause error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open store %s: %v", e.Store, e.cause)
}

func (e *OpenError) Unwrap() error { return e.cause }

// TxError indicates that a single-key operation failed after a successful open.
//
// The original underlying error can be accessed via errors.Unwrap.
type TxError struct {
	Op    string
	ID    string
	cause error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.ID, e.cause)
}

func (e *TxError) Unwrap() error { return e.cause }

// PanicError wraps a value recovered from a panic while issuing an engine request.
type PanicError struct {
	Op    string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic during %s: %v", e.Op, e.Value)
}

// Unwrap returns the panic value if it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
