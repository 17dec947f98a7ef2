// Package vfs provides the path-addressed API over any backend implementing
// the capability contract in pkg/types. A FileSystem owns exactly one backend
// for its lifetime; Path handles are cheap values that share the FileSystem
// by reference and delegate every primitive to the backend, adding one
// context frame to any error. The composite operations CreateDirAll and
// RemoveDirAll are pure algorithms over the primitives and work unchanged
// against every conforming backend.
package vfs

import (
	"io"

	"github.com/vfskit/vfskit/pkg/errors"
	"github.com/vfskit/vfskit/pkg/types"
)

// FileSystem binds one backend instance. It is never mutated after
// construction; only the backend's internal state changes.
type FileSystem struct {
	backend types.Backend
}

// Path pairs a path string with a shared filesystem handle. It carries no
// cached state about whether the path exists, so handles stay valid across
// arbitrary concurrent mutation.
type Path struct {
	path string
	fs   *FileSystem
}

// New binds a backend and returns the root path handle (path "").
func New(backend types.Backend) *Path {
	return &Path{path: "", fs: &FileSystem{backend: backend}}
}

// String returns the path string. The empty string denotes the root.
func (p *Path) String() string {
	return p.path
}

// Join returns a new handle for the child segment, sharing the same
// filesystem. The parent and segment are joined with '/'.
func (p *Path) Join(segment string) *Path {
	return &Path{path: p.path + "/" + segment, fs: p.fs}
}

// ReadDir lists the immediate children of this directory as path handles.
func (p *Path) ReadDir() ([]*Path, error) {
	names, err := p.fs.backend.ReadDir(p.path)
	if err != nil {
		return nil, errors.WithContextf(err, "Could not read directory '%s'", p.path)
	}
	children := make([]*Path, len(names))
	for i, name := range names {
		children[i] = p.Join(name)
	}
	return children, nil
}

// CreateDir creates exactly one new directory at this path. Creating an
// already-existing directory is an error; see CreateDirAll for the
// idempotent form.
func (p *Path) CreateDir() error {
	return errors.WithContextf(p.fs.backend.CreateDir(p.path),
		"Could not create directory '%s'", p.path)
}

// CreateDirAll creates this directory and any missing ancestors. It walks
// the path's segments left to right and issues one existence check plus at
// most one create per prefix, as independent primitive calls. Pre-existing
// ancestors are tolerated, so repeated calls are idempotent when nothing
// mutates concurrently. The check-then-create pair is not atomic: a
// concurrent creator of the same prefix can make the create fail, and that
// error is surfaced rather than masked.
func (p *Path) CreateDirAll() error {
	path := p.path
	end := 0
	for end < len(path) {
		if end == 0 || path[end] == '/' {
			end++
		}
		for end < len(path) && path[end] != '/' {
			end++
		}
		prefix := path[:end]
		if !p.fs.backend.Exists(prefix) {
			if err := p.fs.backend.CreateDir(prefix); err != nil {
				return errors.WithContextf(err, "Could not create directory '%s'", prefix)
			}
		}
	}
	return nil
}

// OpenFile opens the file at this path for reading. The reader is an
// independent snapshot of the content as of this call.
func (p *Path) OpenFile() (io.ReadSeekCloser, error) {
	reader, err := p.fs.backend.OpenFile(p.path)
	if err != nil {
		return nil, errors.WithContextf(err, "Could not open file '%s'", p.path)
	}
	return reader, nil
}

// CreateFile opens an exclusive writer bound to a newly-truncated file at
// this path, creating it if absent.
func (p *Path) CreateFile() (io.WriteCloser, error) {
	writer, err := p.fs.backend.CreateFile(p.path)
	if err != nil {
		return nil, errors.WithContextf(err, "Could not create file '%s'", p.path)
	}
	return writer, nil
}

// AppendFile opens an exclusive writer positioned at the current end of
// content, creating the file if absent.
func (p *Path) AppendFile() (io.WriteCloser, error) {
	writer, err := p.fs.backend.AppendFile(p.path)
	if err != nil {
		return nil, errors.WithContextf(err, "Could not open file '%s' for appending", p.path)
	}
	return writer, nil
}

// Metadata returns the type and size of the entry at this path.
func (p *Path) Metadata() (types.Metadata, error) {
	metadata, err := p.fs.backend.Metadata(p.path)
	if err != nil {
		return types.Metadata{}, errors.WithContextf(err, "Could not get metadata for '%s'", p.path)
	}
	return metadata, nil
}

// Exists reports whether this path resolves to an entry. It never fails.
func (p *Path) Exists() bool {
	return p.fs.backend.Exists(p.path)
}

// RemoveFile removes the file at this path.
func (p *Path) RemoveFile() error {
	return errors.WithContextf(p.fs.backend.RemoveFile(p.path),
		"Could not remove file '%s'", p.path)
}

// RemoveDir removes the empty directory at this path.
func (p *Path) RemoveDir() error {
	return errors.WithContextf(p.fs.backend.RemoveDir(p.path),
		"Could not remove directory '%s'", p.path)
}

// RemoveDirAll removes this directory and all its content. A non-existent
// path is a successful no-op. Traversal is depth-first over an explicit work
// list, so arbitrarily deep trees do not grow the call stack. The traversal
// is not atomic: the first primitive failure aborts it, and a concurrent
// actor adding or removing entries mid-walk can leave a partially-deleted
// subtree behind. Callers must treat failure as "some but not necessarily
// all content removed".
func (p *Path) RemoveDirAll() error {
	if !p.Exists() {
		return nil
	}

	stack := []*Path{p}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		children, err := current.ReadDir()
		if err != nil {
			return err
		}
		descended := false
		for _, child := range children {
			metadata, err := child.Metadata()
			if err != nil {
				return err
			}
			if metadata.IsDir() {
				stack = append(stack, child)
				descended = true
			} else {
				if err := child.RemoveFile(); err != nil {
					return err
				}
			}
		}
		if !descended {
			if err := current.RemoveDir(); err != nil {
				return err
			}
			stack = stack[:len(stack)-1]
		}
	}
	return nil
}
