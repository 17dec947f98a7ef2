// Package osfs maps the backend capability contract onto the host operating
// system's filesystem, rooted at a directory chosen at construction. Each
// primitive forwards to the corresponding os call; host I/O failures are
// translated into KindIO and resolution failures into KindNotFound.
//
// To honor the contract's snapshot-on-open reader semantics, OpenFile reads
// the whole file into memory at the moment of the call rather than holding a
// host file descriptor open.
package osfs

import (
	"bytes"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vfskit/vfskit/pkg/errors"
	"github.com/vfskit/vfskit/pkg/types"
)

// OsFS is a backend over a host directory. Safe for concurrent use; all
// synchronization is delegated to the host filesystem.
type OsFS struct {
	root string
}

// New returns a backend rooted at the given host directory. The directory
// must already exist; it becomes the backend's root path "".
func New(root string) *OsFS {
	return &OsFS{root: filepath.Clean(root)}
}

var _ types.Backend = (*OsFS)(nil)

// hostPath converts a contract path into a host path under the root.
// Empty segments are dropped, so the empty string resolves to the root.
func (o *OsFS) hostPath(path string) string {
	segments := []string{o.root}
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return filepath.Join(segments...)
}

// ReadDir returns the immediate child names of the directory at path.
func (o *OsFS) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(o.hostPath(path))
	if err != nil {
		// Missing path and not-a-directory both fail resolution.
		return nil, errors.NotFound(path)
	}
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name()
	}
	return names, nil
}

// CreateDir creates exactly one new directory at path.
func (o *OsFS) CreateDir(path string) error {
	err := os.Mkdir(o.hostPath(path), 0o755)
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, fs.ErrExist):
		return errors.Otherf("directory '%s' already exists", path)
	case stderrors.Is(err, fs.ErrNotExist):
		return errors.NotFound(path)
	default:
		return errors.IO(err)
	}
}

// OpenFile returns an independent snapshot reader of the file at path.
func (o *OsFS) OpenFile(path string) (io.ReadSeekCloser, error) {
	host := o.hostPath(path)
	info, err := os.Stat(host)
	if err != nil || info.IsDir() {
		return nil, errors.NotFound(path)
	}
	content, err := os.ReadFile(host)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NotFound(path)
		}
		return nil, errors.IO(err)
	}
	return &snapshotReader{Reader: bytes.NewReader(content)}, nil
}

// CreateFile returns a writer bound to a newly-truncated file at path.
func (o *OsFS) CreateFile(path string) (io.WriteCloser, error) {
	return o.openWriter(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

// AppendFile returns a writer positioned at end-of-content.
func (o *OsFS) AppendFile(path string) (io.WriteCloser, error) {
	return o.openWriter(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
}

func (o *OsFS) openWriter(path string, flags int) (io.WriteCloser, error) {
	host := o.hostPath(path)
	if info, err := os.Stat(host); err == nil && info.IsDir() {
		return nil, errors.Otherf("'%s' is a directory", path)
	}
	file, err := os.OpenFile(host, flags, 0o644)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NotFound(path)
		}
		return nil, errors.IO(err)
	}
	return file, nil
}

// Metadata returns the type and size of the entry at path.
func (o *OsFS) Metadata(path string) (types.Metadata, error) {
	info, err := os.Stat(o.hostPath(path))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return types.Metadata{}, errors.NotFound(path)
		}
		return types.Metadata{}, errors.IO(err)
	}
	if info.IsDir() {
		return types.Metadata{Type: types.FileTypeDirectory}, nil
	}
	return types.Metadata{Type: types.FileTypeFile, Size: info.Size()}, nil
}

// Exists reports whether path resolves to an entry.
func (o *OsFS) Exists(path string) bool {
	_, err := os.Stat(o.hostPath(path))
	return err == nil
}

// RemoveFile removes the file at path.
func (o *OsFS) RemoveFile(path string) error {
	host := o.hostPath(path)
	info, err := os.Stat(host)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return errors.NotFound(path)
		}
		return errors.IO(err)
	}
	if info.IsDir() {
		return errors.Otherf("'%s' is a directory", path)
	}
	if err := os.Remove(host); err != nil {
		return errors.IO(err)
	}
	return nil
}

// RemoveDir removes the empty directory at path. The backend root is never
// removable.
func (o *OsFS) RemoveDir(path string) error {
	host := o.hostPath(path)
	if host == o.root {
		return errors.Other("cannot remove the root directory")
	}
	info, err := os.Stat(host)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return errors.NotFound(path)
		}
		return errors.IO(err)
	}
	if !info.IsDir() {
		return errors.Otherf("'%s' is not a directory", path)
	}
	entries, err := os.ReadDir(host)
	if err != nil {
		return errors.IO(err)
	}
	if len(entries) > 0 {
		return errors.Otherf("directory '%s' is not empty", path)
	}
	if err := os.Remove(host); err != nil {
		return errors.IO(err)
	}
	return nil
}

// snapshotReader reads an immutable copy of a file's content taken at open
// time.
type snapshotReader struct {
	*bytes.Reader
}

func (r *snapshotReader) Close() error {
	return nil
}
