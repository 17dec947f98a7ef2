// Package s3fs implements the backend capability contract on top of Amazon
// S3 or any S3-compatible object store. Path segments map onto object keys;
// directories are zero-byte marker objects with a trailing slash, and
// listing uses the delimiter convention.
//
// Reader semantics match the contract: OpenFile downloads the object body in
// full at the moment of the call, so the returned reader is an independent
// snapshot. Writers buffer locally and commit the whole content with one
// PutObject on Close; per-write commit visibility is not achievable on an
// object store and is documented as the one deviation from the in-memory
// backend's behavior.
//
// Transient S3 failures are retried with exponential backoff; everything the
// SDK reports beyond not-found translates into KindIO.
package s3fs

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vfskit/vfskit/pkg/errors"
	"github.com/vfskit/vfskit/pkg/retry"
	"github.com/vfskit/vfskit/pkg/types"
)

// objectAPI is the slice of the S3 client the backend uses. Tests substitute
// an in-process fake.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3FS is a backend over one bucket, optionally confined to a key prefix.
// Safe for concurrent use; the client is goroutine-safe and the backend
// itself holds no mutable state.
type S3FS struct {
	client  objectAPI
	bucket  string
	prefix  string // "" or "some/prefix/"
	retryer *retry.Retryer
	logger  *slog.Logger
}

var _ types.Backend = (*S3FS)(nil)

// NewWithClient creates an S3 backend around an existing client. Used by New
// and by tests.
func NewWithClient(client objectAPI, cfg *Config, logger *slog.Logger) *S3FS {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3FS{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  prefix,
		retryer: retry.New(cfg.Retry),
		logger:  logger.With("component", "s3fs", "bucket", cfg.Bucket),
	}
}

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

// fileKey maps a path onto an object key. The root maps onto the bare
// prefix, which is never a valid file key.
func (s *S3FS) fileKey(path string) string {
	return s.prefix + strings.Join(splitPath(path), "/")
}

// dirKey maps a path onto its directory marker key (trailing slash).
func (s *S3FS) dirKey(path string) string {
	segments := splitPath(path)
	if len(segments) == 0 {
		return s.prefix
	}
	return s.prefix + strings.Join(segments, "/") + "/"
}

// isNotFound reports whether the SDK error means the object is absent.
func isNotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	return stderrors.As(err, &noSuchKey) || stderrors.As(err, &notFound)
}

// objectExists heads a key, distinguishing absence from transport failure.
func (s *S3FS) objectExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.retryer.Do(func() error {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			if isNotFound(err) {
				exists = false
				return nil
			}
			return errors.IO(err)
		}
		exists = true
		return nil
	})
	return exists, err
}

// isDir reports whether path is a directory: the root, a marker object, or
// an implicit prefix with content under it.
func (s *S3FS) isDir(ctx context.Context, path string) (bool, error) {
	if len(splitPath(path)) == 0 {
		return true, nil
	}
	key := s.dirKey(path)
	if exists, err := s.objectExists(ctx, key); err != nil || exists {
		return exists, err
	}
	var hasContent bool
	err := s.retryer.Do(func() error {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(s.bucket),
			Prefix:  aws.String(key),
			MaxKeys: aws.Int32(1),
		})
		if err != nil {
			return errors.IO(err)
		}
		hasContent = len(out.Contents) > 0
		return nil
	})
	return hasContent, err
}

// ReadDir lists the immediate children of the directory at path.
func (s *S3FS) ReadDir(path string) ([]string, error) {
	ctx := context.Background()
	isDir, err := s.isDir(ctx, path)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, errors.NotFound(path)
	}

	key := s.dirKey(path)
	names := []string{}
	var token *string
	for {
		var out *s3.ListObjectsV2Output
		err := s.retryer.Do(func() error {
			var err error
			out, err = s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(s.bucket),
				Prefix:            aws.String(key),
				Delimiter:         aws.String("/"),
				ContinuationToken: token,
			})
			if err != nil {
				return errors.IO(err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		for _, common := range out.CommonPrefixes {
			child := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(common.Prefix), key), "/")
			names = append(names, child)
		}
		for _, object := range out.Contents {
			child := strings.TrimPrefix(aws.ToString(object.Key), key)
			if child == "" {
				continue // the directory's own marker
			}
			names = append(names, child)
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	s.logger.Debug("listed directory", "path", path, "children", len(names))
	return names, nil
}

// CreateDir writes a directory marker at path. The parent must exist and
// path must not.
func (s *S3FS) CreateDir(path string) error {
	ctx := context.Background()
	if len(splitPath(path)) == 0 {
		return errors.Otherf("directory '%s' already exists", path)
	}
	if exists, err := s.pathExists(ctx, path); err != nil {
		return err
	} else if exists {
		return errors.Otherf("directory '%s' already exists", path)
	}
	parent := parentPath(path)
	if isDir, err := s.isDir(ctx, parent); err != nil {
		return err
	} else if !isDir {
		return errors.NotFound(path)
	}
	return s.retryer.Do(func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.dirKey(path)),
			Body:   bytes.NewReader(nil),
		})
		if err != nil {
			return errors.IO(err)
		}
		return nil
	})
}

// OpenFile downloads the object at path into an independent snapshot reader.
func (s *S3FS) OpenFile(path string) (io.ReadSeekCloser, error) {
	ctx := context.Background()
	if len(splitPath(path)) == 0 {
		return nil, errors.NotFound(path)
	}
	var content []byte
	err := s.retryer.Do(func() error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.fileKey(path)),
		})
		if err != nil {
			if isNotFound(err) {
				return errors.NotFound(path)
			}
			return errors.IO(err)
		}
		defer out.Body.Close()
		content, err = io.ReadAll(out.Body)
		if err != nil {
			return errors.IO(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snapshotReader{Reader: bytes.NewReader(content)}, nil
}

// CreateFile returns a writer for a new or truncated object at path. The
// content is committed with one PutObject when the writer is closed.
func (s *S3FS) CreateFile(path string) (io.WriteCloser, error) {
	return s.openWriter(path, false)
}

// AppendFile returns a writer pre-seeded with the object's current content.
func (s *S3FS) AppendFile(path string) (io.WriteCloser, error) {
	return s.openWriter(path, true)
}

func (s *S3FS) openWriter(path string, preserve bool) (io.WriteCloser, error) {
	ctx := context.Background()
	if len(splitPath(path)) == 0 {
		return nil, errors.Otherf("'%s' is a directory", path)
	}
	if isDir, err := s.isDir(ctx, path); err != nil {
		return nil, err
	} else if isDir {
		return nil, errors.Otherf("'%s' is a directory", path)
	}
	if isDir, err := s.isDir(ctx, parentPath(path)); err != nil {
		return nil, err
	} else if !isDir {
		return nil, errors.NotFound(path)
	}

	writer := &objectWriter{fs: s, path: path}
	if preserve {
		reader, err := s.OpenFile(path)
		if err == nil {
			content, readErr := io.ReadAll(reader)
			if readErr != nil {
				return nil, errors.IO(readErr)
			}
			writer.buffer.Write(content)
		} else if !errors.IsNotFound(err) {
			return nil, err
		}
	}
	return writer, nil
}

// Metadata returns the type and size of the entry at path.
func (s *S3FS) Metadata(path string) (types.Metadata, error) {
	ctx := context.Background()
	if len(splitPath(path)) == 0 {
		return types.Metadata{Type: types.FileTypeDirectory}, nil
	}
	var size int64
	var found bool
	err := s.retryer.Do(func() error {
		out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.fileKey(path)),
		})
		if err != nil {
			if isNotFound(err) {
				found = false
				return nil
			}
			return errors.IO(err)
		}
		found = true
		size = aws.ToInt64(out.ContentLength)
		return nil
	})
	if err != nil {
		return types.Metadata{}, err
	}
	if found {
		return types.Metadata{Type: types.FileTypeFile, Size: size}, nil
	}
	if isDir, err := s.isDir(ctx, path); err != nil {
		return types.Metadata{}, err
	} else if isDir {
		return types.Metadata{Type: types.FileTypeDirectory}, nil
	}
	return types.Metadata{}, errors.NotFound(path)
}

// Exists reports whether path resolves to a file or directory.
func (s *S3FS) Exists(path string) bool {
	exists, err := s.pathExists(context.Background(), path)
	return err == nil && exists
}

func (s *S3FS) pathExists(ctx context.Context, path string) (bool, error) {
	if len(splitPath(path)) == 0 {
		return true, nil
	}
	if exists, err := s.objectExists(ctx, s.fileKey(path)); err != nil || exists {
		return exists, err
	}
	return s.isDir(ctx, path)
}

// RemoveFile deletes the object at path.
func (s *S3FS) RemoveFile(path string) error {
	ctx := context.Background()
	if len(splitPath(path)) == 0 {
		return errors.Otherf("'%s' is a directory", path)
	}
	key := s.fileKey(path)
	if exists, err := s.objectExists(ctx, key); err != nil {
		return err
	} else if !exists {
		if isDir, err := s.isDir(ctx, path); err != nil {
			return err
		} else if isDir {
			return errors.Otherf("'%s' is a directory", path)
		}
		return errors.NotFound(path)
	}
	return s.deleteKey(ctx, key)
}

// RemoveDir deletes the marker of the empty directory at path.
func (s *S3FS) RemoveDir(path string) error {
	ctx := context.Background()
	if len(splitPath(path)) == 0 {
		return errors.Other("cannot remove the root directory")
	}
	isDir, err := s.isDir(ctx, path)
	if err != nil {
		return err
	}
	if !isDir {
		if exists, err := s.objectExists(ctx, s.fileKey(path)); err != nil {
			return err
		} else if exists {
			return errors.Otherf("'%s' is not a directory", path)
		}
		return errors.NotFound(path)
	}
	children, err := s.ReadDir(path)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return errors.Otherf("directory '%s' is not empty", path)
	}
	return s.deleteKey(ctx, s.dirKey(path))
}

func (s *S3FS) deleteKey(ctx context.Context, key string) error {
	return s.retryer.Do(func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return errors.IO(err)
		}
		return nil
	})
}

func parentPath(path string) string {
	segments := splitPath(path)
	if len(segments) <= 1 {
		return ""
	}
	return strings.Join(segments[:len(segments)-1], "/")
}

// snapshotReader reads an immutable copy of the object body downloaded at
// open time.
type snapshotReader struct {
	*bytes.Reader
}

func (r *snapshotReader) Close() error {
	return nil
}

// objectWriter buffers writes locally and commits the whole content with one
// PutObject on Close.
type objectWriter struct {
	fs     *S3FS
	path   string
	buffer bytes.Buffer
	closed bool
}

func (w *objectWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.Other("write on closed writer")
	}
	return w.buffer.Write(p)
}

func (w *objectWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	ctx := context.Background()
	err := w.fs.retryer.Do(func() error {
		_, err := w.fs.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(w.fs.bucket),
			Key:    aws.String(w.fs.fileKey(w.path)),
			Body:   bytes.NewReader(w.buffer.Bytes()),
		})
		if err != nil {
			return errors.IO(err)
		}
		return nil
	})
	if err == nil {
		w.fs.logger.Debug("committed object", "path", w.path, "size", w.buffer.Len())
	}
	return err
}
