// Package memfs implements the backend capability contract with an ephemeral
// in-process tree of named nodes. It exists to validate and exercise the
// contract without touching a real filesystem; its entire state vanishes with
// the owning handle.
//
// Concurrency model: the tree structure is guarded by one RWMutex and each
// file's content by a per-node mutex. Locks are held only for the duration of
// a single primitive call, never across a sequence of calls, so the composite
// operations in pkg/vfs cannot deadlock against the backend. The cost is that
// no atomicity is provided across calls.
//
// File content consistency: opening a file for reading copies its current
// buffer into an independent, immutable snapshot, so an already-open reader
// is unaffected by later writes or by the file being removed. Writers commit
// every Write into the shared buffer immediately under the node lock, visible
// to any reader or writer opened after that Write returns, never to readers
// opened before it.
package memfs

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/vfskit/vfskit/pkg/errors"
	"github.com/vfskit/vfskit/pkg/types"
)

// MemFS is an in-memory backend. The zero value is not usable; construct
// with New. Safe for concurrent use.
type MemFS struct {
	mu   sync.RWMutex
	root *node
}

// node is either a directory (children != nil) or a file. A file's buffer is
// shared by reference with any outstanding writer and guarded by contentMu.
type node struct {
	children map[string]*node

	contentMu sync.Mutex
	content   []byte
}

func (n *node) isDir() bool {
	return n.children != nil
}

func newDir() *node {
	return &node{children: make(map[string]*node)}
}

// New returns an empty in-memory backend containing only the root directory.
func New() *MemFS {
	return &MemFS{root: newDir()}
}

var _ types.Backend = (*MemFS)(nil)

// splitPath breaks a path into its non-empty segments. The empty string and
// any run of slashes resolve to the root.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// resolve walks the tree from the root. Callers must hold fs.mu.
func (fs *MemFS) resolve(path string) (*node, bool) {
	current := fs.root
	for _, segment := range splitPath(path) {
		if !current.isDir() {
			return nil, false
		}
		child, ok := current.children[segment]
		if !ok {
			return nil, false
		}
		current = child
	}
	return current, true
}

// resolveParent resolves the directory containing the last segment of path.
// Callers must hold fs.mu.
func (fs *MemFS) resolveParent(path string) (parent *node, name string, ok bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, "", false
	}
	current := fs.root
	for _, segment := range segments[:len(segments)-1] {
		if !current.isDir() {
			return nil, "", false
		}
		child, found := current.children[segment]
		if !found {
			return nil, "", false
		}
		current = child
	}
	if !current.isDir() {
		return nil, "", false
	}
	return current, segments[len(segments)-1], true
}

// ReadDir returns the child names present at call time. A child added or
// removed during a caller's subsequent iteration may or may not appear.
func (fs *MemFS) ReadDir(path string) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	dir, ok := fs.resolve(path)
	if !ok || !dir.isDir() {
		return nil, errors.NotFound(path)
	}
	names := make([]string, 0, len(dir.children))
	for name := range dir.children {
		names = append(names, name)
	}
	return names, nil
}

// CreateDir creates exactly one new directory at path.
func (fs *MemFS) CreateDir(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, name, ok := fs.resolveParent(path)
	if !ok {
		if len(splitPath(path)) == 0 {
			return errors.Otherf("directory '%s' already exists", path)
		}
		return errors.NotFound(path)
	}
	if _, exists := parent.children[name]; exists {
		return errors.Otherf("directory '%s' already exists", path)
	}
	parent.children[name] = newDir()
	return nil
}

// OpenFile returns an independent snapshot reader of the file at path.
func (fs *MemFS) OpenFile(path string) (io.ReadSeekCloser, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	file, ok := fs.resolve(path)
	if !ok || file.isDir() {
		return nil, errors.NotFound(path)
	}
	file.contentMu.Lock()
	snapshot := make([]byte, len(file.content))
	copy(snapshot, file.content)
	file.contentMu.Unlock()
	return &snapshotReader{Reader: bytes.NewReader(snapshot)}, nil
}

// CreateFile returns a writer bound to a newly-truncated file at path,
// creating the file if absent. Creating over an existing directory fails.
func (fs *MemFS) CreateFile(path string) (io.WriteCloser, error) {
	return fs.openWriter(path, true)
}

// AppendFile returns a writer positioned at the current end of content,
// creating the file if absent.
func (fs *MemFS) AppendFile(path string) (io.WriteCloser, error) {
	return fs.openWriter(path, false)
}

func (fs *MemFS) openWriter(path string, truncate bool) (io.WriteCloser, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, name, ok := fs.resolveParent(path)
	if !ok {
		if len(splitPath(path)) == 0 {
			return nil, errors.Otherf("'%s' is a directory", path)
		}
		return nil, errors.NotFound(path)
	}
	file, exists := parent.children[name]
	if exists {
		if file.isDir() {
			return nil, errors.Otherf("'%s' is a directory", path)
		}
	} else {
		file = &node{}
		parent.children[name] = file
	}
	if truncate {
		file.contentMu.Lock()
		file.content = nil
		file.contentMu.Unlock()
	}
	return &fileWriter{node: file}, nil
}

// Metadata returns the type and size of the entry at path.
func (fs *MemFS) Metadata(path string) (types.Metadata, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entry, ok := fs.resolve(path)
	if !ok {
		return types.Metadata{}, errors.NotFound(path)
	}
	if entry.isDir() {
		return types.Metadata{Type: types.FileTypeDirectory}, nil
	}
	entry.contentMu.Lock()
	size := int64(len(entry.content))
	entry.contentMu.Unlock()
	return types.Metadata{Type: types.FileTypeFile, Size: size}, nil
}

// Exists reports whether path resolves to an entry. It never fails.
func (fs *MemFS) Exists(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, ok := fs.resolve(path)
	return ok
}

// RemoveFile removes the file at path.
func (fs *MemFS) RemoveFile(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, name, ok := fs.resolveParent(path)
	if !ok {
		if len(splitPath(path)) == 0 {
			return errors.Otherf("'%s' is a directory", path)
		}
		return errors.NotFound(path)
	}
	file, exists := parent.children[name]
	if !exists {
		return errors.NotFound(path)
	}
	if file.isDir() {
		return errors.Otherf("'%s' is a directory", path)
	}
	delete(parent.children, name)
	return nil
}

// RemoveDir removes the empty directory at path. The root is never removable.
func (fs *MemFS) RemoveDir(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, name, ok := fs.resolveParent(path)
	if !ok {
		if len(splitPath(path)) == 0 {
			return errors.Other("cannot remove the root directory")
		}
		return errors.NotFound(path)
	}
	dir, exists := parent.children[name]
	if !exists {
		return errors.NotFound(path)
	}
	if !dir.isDir() {
		return errors.Otherf("'%s' is not a directory", path)
	}
	if len(dir.children) > 0 {
		return errors.Otherf("directory '%s' is not empty", path)
	}
	delete(parent.children, name)
	return nil
}

// snapshotReader reads an immutable copy of a file's content taken at open
// time. Close is a no-op; the snapshot is garbage collected with the reader.
type snapshotReader struct {
	*bytes.Reader
}

func (r *snapshotReader) Close() error {
	return nil
}

// fileWriter appends to the node's shared buffer. Every Write commits its
// bytes under the node lock before returning, so the change is visible to
// any reader or writer opened afterward.
type fileWriter struct {
	node *node
}

func (w *fileWriter) Write(p []byte) (int, error) {
	w.node.contentMu.Lock()
	defer w.node.contentMu.Unlock()
	w.node.content = append(w.node.content, p...)
	return len(p), nil
}

// Close releases the writer. Content is already committed write-by-write, so
// there is nothing to flush.
func (w *fileWriter) Close() error {
	return nil
}
