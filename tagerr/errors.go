// Package tagerr defines the error types shared across the toolkit.
// Callers match on them with errors.As to decide whether a failure is
// fatal (connection gone) or local to one scope, tag, or path.
package tagerr

import "fmt"

// ConnectionError reports a failure to reach or keep a controller session.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connection failed: %s", e.Addr)
	}
	return fmt.Sprintf("connection failed: %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ScopeEnumerationError reports that listing one scope failed.
// A scan records these and keeps walking the remaining scopes.
type ScopeEnumerationError struct {
	Scope string
	Err   error
}

func (e *ScopeEnumerationError) Error() string {
	scope := e.Scope
	if scope == "" {
		scope = "controller"
	}
	return fmt.Sprintf("scope %s: enumeration failed: %v", scope, e.Err)
}

func (e *ScopeEnumerationError) Unwrap() error { return e.Err }

// TagDefinitionError reports that a structure definition could not be
// fetched or parsed for one tag. The tag degrades to a leaf node.
type TagDefinitionError struct {
	Tag string
	Err error
}

func (e *TagDefinitionError) Error() string {
	return fmt.Sprintf("tag %s: definition unavailable: %v", e.Tag, e.Err)
}

func (e *TagDefinitionError) Unwrap() error { return e.Err }

// ReadError reports a failed live read of one tag path.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// NotFoundError reports that a controller or tag path does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Path)
}

// PersistenceError reports a repository failure. Op names the
// operation that failed (e.g. "SaveScan", "TagSet").
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
