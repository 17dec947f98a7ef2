package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfskit/vfskit/internal/memfs"
	"github.com/vfskit/vfskit/internal/metrics"
	"github.com/vfskit/vfskit/internal/osfs"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewDefault(t *testing.T) {
	config := NewDefault()
	assert.Equal(t, BackendMemory, config.Backend.Type)
	assert.False(t, config.Metrics.Enabled)
	assert.Equal(t, "info", config.Logging.Level)
	require.NoError(t, config.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
backend:
  type: s3
  s3:
    bucket: archive
    region: eu-west-1
    prefix: tenant-1
metrics:
  enabled: true
logging:
  level: debug
`)
	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendS3, config.Backend.Type)
	assert.Equal(t, "archive", config.Backend.S3.Bucket)
	assert.Equal(t, "eu-west-1", config.Backend.S3.Region)
	assert.Equal(t, "tenant-1", config.Backend.S3.Prefix)
	assert.True(t, config.Metrics.Enabled)
	assert.Equal(t, "debug", config.Logging.Level)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, "vfskit", config.Metrics.Namespace)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "backend: [not a mapping")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Configuration)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Configuration) {},
		},
		{
			name: "os backend with root",
			mutate: func(c *Configuration) {
				c.Backend.Type = BackendOS
				c.Backend.Root = "/tmp/data"
			},
		},
		{
			name:    "unknown backend type",
			mutate:  func(c *Configuration) { c.Backend.Type = "tape" },
			wantErr: `unknown backend type "tape"`,
		},
		{
			name:    "os backend without root",
			mutate:  func(c *Configuration) { c.Backend.Type = BackendOS },
			wantErr: "requires a root directory",
		},
		{
			name:    "s3 backend without bucket",
			mutate:  func(c *Configuration) { c.Backend.Type = BackendS3 },
			wantErr: "bucket name cannot be empty",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Configuration) { c.Logging.Level = "verbose" },
			wantErr: `unknown log level "verbose"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefault()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewBackendMemory(t *testing.T) {
	backend, err := NewDefault().NewBackend(context.Background(), prometheus.NewRegistry())
	require.NoError(t, err)
	require.IsType(t, &memfs.MemFS{}, backend)

	require.NoError(t, backend.CreateDir("d"))
	assert.True(t, backend.Exists("d"))
}

func TestNewBackendOS(t *testing.T) {
	config := NewDefault()
	config.Backend.Type = BackendOS
	config.Backend.Root = t.TempDir()

	backend, err := config.NewBackend(context.Background(), prometheus.NewRegistry())
	require.NoError(t, err)
	require.IsType(t, &osfs.OsFS{}, backend)

	require.NoError(t, backend.CreateDir("d"))
	assert.DirExists(t, filepath.Join(config.Backend.Root, "d"))
}

func TestNewBackendWithMetrics(t *testing.T) {
	config := NewDefault()
	config.Metrics.Enabled = true

	registry := prometheus.NewRegistry()
	backend, err := config.NewBackend(context.Background(), registry)
	require.NoError(t, err)
	require.IsType(t, &metrics.Instrumented{}, backend)

	require.NoError(t, backend.CreateDir("d"))

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, len(families))
	for i, family := range families {
		names[i] = family.GetName()
	}
	assert.Contains(t, names, "vfskit_backend_operations_total")
}

func TestNewBackendUnknownType(t *testing.T) {
	config := NewDefault()
	config.Backend.Type = "tape"
	_, err := config.NewBackend(context.Background(), prometheus.NewRegistry())
	assert.Error(t, err)
}
