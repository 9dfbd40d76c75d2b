package pattern

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Store operations.
var (
	// ErrNotFound is returned when an operation references an unknown id.
	ErrNotFound = errors.New("pattern not found")

	// ErrExists is returned by Add when the id is already present.
	ErrExists = errors.New("pattern already exists")
)

// ValidationError describes a structurally invalid pattern.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid pattern: %s: %s", e.Field, e.Reason)
}

// LoadError wraps a per-partition load failure. Load logs these and
// continues; it never surfaces them unless no partition is usable.
type LoadError struct {
	Partition string
	Err       error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load partition %s: %v", e.Partition, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IOError is a store-level persistence failure. Unlike per-entry load
// problems, these are surfaced to the caller.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("pattern store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
