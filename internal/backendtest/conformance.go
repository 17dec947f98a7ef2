// Package backendtest provides a conformance suite asserting the backend
// capability contract against any implementation. Backend packages run it
// from their own tests with a fresh-backend factory.
package backendtest

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfskit/vfskit/pkg/errors"
	"github.com/vfskit/vfskit/pkg/types"
)

// Factory returns a fresh, empty backend for one subtest.
type Factory func(t *testing.T) types.Backend

// Run executes the conformance suite against the factory.
func Run(t *testing.T, factory Factory) {
	t.Run("FreshBackend", func(t *testing.T) { testFreshBackend(t, factory(t)) })
	t.Run("MissingPaths", func(t *testing.T) { testMissingPaths(t, factory(t)) })
	t.Run("CreateDir", func(t *testing.T) { testCreateDir(t, factory(t)) })
	t.Run("FileRoundTrip", func(t *testing.T) { testFileRoundTrip(t, factory(t)) })
	t.Run("TruncateOnCreate", func(t *testing.T) { testTruncateOnCreate(t, factory(t)) })
	t.Run("Append", func(t *testing.T) { testAppend(t, factory(t)) })
	t.Run("SnapshotIsolation", func(t *testing.T) { testSnapshotIsolation(t, factory(t)) })
	t.Run("ReadDir", func(t *testing.T) { testReadDir(t, factory(t)) })
	t.Run("Metadata", func(t *testing.T) { testMetadata(t, factory(t)) })
	t.Run("RemoveFile", func(t *testing.T) { testRemoveFile(t, factory(t)) })
	t.Run("RemoveDir", func(t *testing.T) { testRemoveDir(t, factory(t)) })
	t.Run("CreateFileOverDirectory", func(t *testing.T) { testCreateFileOverDirectory(t, factory(t)) })
}

// writeFile is a test helper committing content at path.
func writeFile(t *testing.T, backend types.Backend, path, content string) {
	t.Helper()
	writer, err := backend.CreateFile(path)
	require.NoError(t, err)
	_, err = writer.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
}

// readFile is a test helper reading the whole file at path.
func readFile(t *testing.T, backend types.Backend, path string) string {
	t.Helper()
	reader, err := backend.OpenFile(path)
	require.NoError(t, err)
	defer reader.Close()
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	return string(content)
}

func testFreshBackend(t *testing.T, backend types.Backend) {
	assert.True(t, backend.Exists(""), "the root must always exist")

	metadata, err := backend.Metadata("")
	require.NoError(t, err)
	assert.Equal(t, types.FileTypeDirectory, metadata.Type)
	assert.Zero(t, metadata.Size)

	names, err := backend.ReadDir("")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func testMissingPaths(t *testing.T, backend types.Backend) {
	const missing = "never/created"

	assert.False(t, backend.Exists(missing))

	_, err := backend.OpenFile(missing)
	assert.True(t, errors.IsNotFound(err), "OpenFile: %v", err)

	_, err = backend.Metadata(missing)
	assert.True(t, errors.IsNotFound(err), "Metadata: %v", err)

	err = backend.RemoveFile(missing)
	assert.True(t, errors.IsNotFound(err), "RemoveFile: %v", err)

	err = backend.RemoveDir(missing)
	assert.True(t, errors.IsNotFound(err), "RemoveDir: %v", err)

	_, err = backend.ReadDir(missing)
	assert.True(t, errors.IsNotFound(err), "ReadDir: %v", err)

	_, err = backend.CreateFile("never/created/f")
	assert.True(t, errors.IsNotFound(err), "CreateFile under missing parent: %v", err)
}

func testCreateDir(t *testing.T, backend types.Backend) {
	require.NoError(t, backend.CreateDir("a"))
	require.NoError(t, backend.CreateDir("a/b"))
	assert.True(t, backend.Exists("a"))
	assert.True(t, backend.Exists("a/b"))

	// Creating an existing directory is an error at the primitive level.
	err := backend.CreateDir("a")
	assert.True(t, errors.IsKind(err, errors.KindOther), "existing dir: %v", err)

	// A missing parent fails resolution.
	err = backend.CreateDir("no/such/parent")
	assert.True(t, errors.IsNotFound(err), "missing parent: %v", err)
}

func testFileRoundTrip(t *testing.T, backend types.Backend) {
	writeFile(t, backend, "note.txt", "hello")
	assert.Equal(t, "hello", readFile(t, backend, "note.txt"))

	// Seeking within the snapshot works.
	reader, err := backend.OpenFile("note.txt")
	require.NoError(t, err)
	defer reader.Close()
	_, err = reader.Seek(1, io.SeekStart)
	require.NoError(t, err)
	rest, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "ello", string(rest))
}

func testTruncateOnCreate(t *testing.T, backend types.Backend) {
	writeFile(t, backend, "f", "first version")
	writeFile(t, backend, "f", "second")
	assert.Equal(t, "second", readFile(t, backend, "f"))
}

func testAppend(t *testing.T, backend types.Backend) {
	// Appending to a missing file creates it.
	writer, err := backend.AppendFile("log")
	require.NoError(t, err)
	_, err = writer.Write([]byte("one"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	writer, err = backend.AppendFile("log")
	require.NoError(t, err)
	_, err = writer.Write([]byte(" two"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	assert.Equal(t, "one two", readFile(t, backend, "log"))
}

func testSnapshotIsolation(t *testing.T, backend types.Backend) {
	writeFile(t, backend, "f", "original")

	reader, err := backend.OpenFile("f")
	require.NoError(t, err)
	defer reader.Close()

	// Overwrite and remove while the reader is open.
	writeFile(t, backend, "f", "replacement")
	require.NoError(t, backend.RemoveFile("f"))

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "original", string(content),
		"an open reader must keep the content as of its open time")
}

func testReadDir(t *testing.T, backend types.Backend) {
	require.NoError(t, backend.CreateDir("d"))
	require.NoError(t, backend.CreateDir("d/x"))
	writeFile(t, backend, "d/y", "data")

	names, err := backend.ReadDir("d")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "y"}, names,
		"child names must carry no parent-path prefix")

	// A file is not listable.
	_, err = backend.ReadDir("d/y")
	assert.True(t, errors.IsNotFound(err), "ReadDir on a file: %v", err)
}

func testMetadata(t *testing.T, backend types.Backend) {
	require.NoError(t, backend.CreateDir("d"))
	writeFile(t, backend, "d/f", "12345")

	metadata, err := backend.Metadata("d/f")
	require.NoError(t, err)
	assert.Equal(t, types.FileTypeFile, metadata.Type)
	assert.EqualValues(t, 5, metadata.Size)

	metadata, err = backend.Metadata("d")
	require.NoError(t, err)
	assert.Equal(t, types.FileTypeDirectory, metadata.Type)
	assert.Zero(t, metadata.Size)
}

func testRemoveFile(t *testing.T, backend types.Backend) {
	writeFile(t, backend, "f", "x")
	require.NoError(t, backend.RemoveFile("f"))
	assert.False(t, backend.Exists("f"))

	// Removing a directory through RemoveFile is a contract violation.
	require.NoError(t, backend.CreateDir("d"))
	err := backend.RemoveFile("d")
	assert.True(t, errors.IsKind(err, errors.KindOther), "RemoveFile on dir: %v", err)
}

func testRemoveDir(t *testing.T, backend types.Backend) {
	require.NoError(t, backend.CreateDir("d"))
	writeFile(t, backend, "d/f", "x")

	// Non-empty directories are not removable.
	err := backend.RemoveDir("d")
	assert.True(t, errors.IsKind(err, errors.KindOther), "non-empty: %v", err)

	require.NoError(t, backend.RemoveFile("d/f"))
	require.NoError(t, backend.RemoveDir("d"))
	assert.False(t, backend.Exists("d"))

	// Removing a file through RemoveDir is a contract violation.
	writeFile(t, backend, "f", "x")
	err = backend.RemoveDir("f")
	assert.True(t, errors.IsKind(err, errors.KindOther), "RemoveDir on file: %v", err)

	// The root is never removable.
	err = backend.RemoveDir("")
	assert.True(t, errors.IsKind(err, errors.KindOther), "RemoveDir on root: %v", err)
}

func testCreateFileOverDirectory(t *testing.T, backend types.Backend) {
	require.NoError(t, backend.CreateDir("d"))

	_, err := backend.CreateFile("d")
	assert.True(t, errors.IsKind(err, errors.KindOther), "CreateFile over dir: %v", err)

	_, err = backend.AppendFile("d")
	assert.True(t, errors.IsKind(err, errors.KindOther), "AppendFile over dir: %v", err)
}
