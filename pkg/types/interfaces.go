// Package types defines the backend capability contract that every vfskit
// storage backend implements. All higher-level behavior, including the
// composite operations in pkg/vfs, is derived from these nine primitives, so
// any conforming backend can be substituted without changing calling code.
package types

import "io"

// Backend is the minimal set of primitive operations a storage backend must
// implement. Implementations must be safe for concurrent use by multiple
// goroutines without external synchronization; each primitive runs to
// completion on the calling goroutine and holds no state across calls.
//
// Paths are strings of '/'-separated segments with no required leading slash;
// the empty string denotes the root. Cancellation and timeouts are not part
// of the contract: an in-progress primitive cannot be aborted from outside.
//
// Failures use the pkg/errors taxonomy: resolution failures are KindNotFound,
// host I/O failures are KindIO, and everything else (removing a non-empty
// directory, creating over an existing entry) is KindOther.
type Backend interface {
	// ReadDir returns the immediate child names of the directory at path,
	// without any parent-path prefix. The result is a snapshot taken no
	// later than the call; concurrent mutations may or may not be
	// reflected. Order is unspecified. Fails with KindNotFound if path
	// does not exist or is not a directory.
	ReadDir(path string) ([]string, error)

	// CreateDir creates exactly one new directory at path. It fails if the
	// parent does not exist or if path already exists as a file or a
	// directory. Idempotency, if wanted, belongs to the composite layer.
	CreateDir(path string) error

	// OpenFile opens the file at path for reading. The returned reader is
	// an independent snapshot of the content at the moment of the call:
	// later writes to, or removal of, the file do not affect it. Fails
	// with KindNotFound if path is missing or is a directory.
	OpenFile(path string) (io.ReadSeekCloser, error)

	// CreateFile opens an exclusive writer bound to a newly-truncated file
	// at path, creating the file if absent. Fails if path is an existing
	// directory.
	CreateFile(path string) (io.WriteCloser, error)

	// AppendFile opens an exclusive writer positioned at end-of-content,
	// creating the file if absent. Fails if path is an existing directory.
	AppendFile(path string) (io.WriteCloser, error)

	// Metadata returns the type and size of the entry at path. Fails with
	// KindNotFound if path is missing.
	Metadata(path string) (Metadata, error)

	// Exists reports whether path resolves to an entry. It never fails.
	Exists(path string) bool

	// RemoveFile removes the file at path. Fails if path is missing or is
	// a directory.
	RemoveFile(path string) error

	// RemoveDir removes the empty directory at path. Fails if path is
	// missing, is a file, or is non-empty.
	RemoveDir(path string) error
}
