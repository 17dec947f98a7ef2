// Package config provides declarative construction of a filesystem handle:
// backend selection and options, optional Prometheus instrumentation, and
// the log level, loaded from a YAML file.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v2"

	"github.com/vfskit/vfskit/internal/memfs"
	"github.com/vfskit/vfskit/internal/metrics"
	"github.com/vfskit/vfskit/internal/osfs"
	"github.com/vfskit/vfskit/internal/s3fs"
	"github.com/vfskit/vfskit/pkg/types"
)

// Backend type names accepted in configuration.
const (
	BackendMemory = "memory"
	BackendOS     = "os"
	BackendS3     = "s3"
)

// Configuration represents the complete configuration.
type Configuration struct {
	Backend BackendConfig  `yaml:"backend"`
	Metrics metrics.Config `yaml:"metrics"`
	Logging LoggingConfig  `yaml:"logging"`
}

// BackendConfig selects and parameterizes the storage backend.
type BackendConfig struct {
	// Type is one of "memory", "os" or "s3".
	Type string `yaml:"type"`

	// Root is the host directory for the "os" backend.
	Root string `yaml:"root"`

	// S3 holds settings for the "s3" backend.
	S3 s3fs.Config `yaml:"s3"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// NewDefault returns a configuration with sensible defaults: an in-memory
// backend with metrics disabled.
func NewDefault() *Configuration {
	return &Configuration{
		Backend: BackendConfig{Type: BackendMemory},
		Metrics: metrics.Config{Enabled: false, Namespace: "vfskit", Subsystem: "backend"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	config := NewDefault()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for consistency.
func (c *Configuration) Validate() error {
	switch c.Backend.Type {
	case BackendMemory:
	case BackendOS:
		if c.Backend.Root == "" {
			return fmt.Errorf("backend type %q requires a root directory", BackendOS)
		}
	case BackendS3:
		if err := c.Backend.S3.Validate(); err != nil {
			return fmt.Errorf("backend type %q: %w", BackendS3, err)
		}
	default:
		return fmt.Errorf("unknown backend type %q", c.Backend.Type)
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// NewBackend constructs the configured backend, wrapped with Prometheus
// instrumentation when metrics are enabled.
func (c *Configuration) NewBackend(ctx context.Context, reg prometheus.Registerer) (types.Backend, error) {
	logger := c.newLogger()

	var backend types.Backend
	var err error
	switch c.Backend.Type {
	case BackendMemory:
		backend = memfs.New()
	case BackendOS:
		backend = osfs.New(c.Backend.Root)
	case BackendS3:
		backend, err = s3fs.New(ctx, &c.Backend.S3, logger)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown backend type %q", c.Backend.Type)
	}
	logger.Debug("constructed backend", "type", c.Backend.Type)

	if c.Metrics.Enabled {
		backend, err = metrics.NewInstrumented(backend, reg, &c.Metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return backend, nil
}

func (c *Configuration) newLogger() *slog.Logger {
	level, err := parseLevel(c.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func parseLevel(level string) (slog.Level, error) {
	var parsed slog.Level
	if level == "" {
		return slog.LevelInfo, nil
	}
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", level)
	}
	return parsed, nil
}
