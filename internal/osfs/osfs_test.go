package osfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfskit/vfskit/internal/backendtest"
	"github.com/vfskit/vfskit/pkg/errors"
	"github.com/vfskit/vfskit/pkg/types"
)

func TestConformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) types.Backend {
		return New(t.TempDir())
	})
}

func TestHostPath(t *testing.T) {
	fs := New("/base")
	tests := []struct {
		path string
		want string
	}{
		{"", "/base"},
		{"a", filepath.Join("/base", "a")},
		{"/a/b", filepath.Join("/base", "a", "b")},
		{"a//b/", filepath.Join("/base", "a", "b")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fs.hostPath(tt.path), "path %q", tt.path)
	}
}

// Entries placed on the host outside the backend are visible through it.
func TestSeesHostState(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "f.txt"), []byte("host"), 0o644))

	fs := New(root)
	assert.True(t, fs.Exists("a/b"))

	names, err := fs.ReadDir("a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "f.txt"}, names)

	metadata, err := fs.Metadata("a/f.txt")
	require.NoError(t, err)
	assert.Equal(t, types.FileTypeFile, metadata.Type)
	assert.EqualValues(t, 4, metadata.Size)
}

// Mutations through the backend land on the host filesystem.
func TestWritesReachHost(t *testing.T) {
	root := t.TempDir()
	fs := New(root)

	require.NoError(t, fs.CreateDir("out"))
	writer, err := fs.CreateFile("out/result")
	require.NoError(t, err)
	_, err = writer.Write([]byte("done"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	content, err := os.ReadFile(filepath.Join(root, "out", "result"))
	require.NoError(t, err)
	assert.Equal(t, "done", string(content))
}

func TestRootIsNotRemovable(t *testing.T) {
	fs := New(t.TempDir())
	err := fs.RemoveDir("")
	assert.True(t, errors.IsKind(err, errors.KindOther), "got %v", err)

	// Equivalent spellings of the root are rejected too.
	err = fs.RemoveDir("/")
	assert.True(t, errors.IsKind(err, errors.KindOther), "got %v", err)
}
