package s3fs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vfskit/vfskit/pkg/retry"
)

// Config holds S3 backend settings.
type Config struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`

	// Endpoint overrides the S3 endpoint, for S3-compatible stores and
	// test servers.
	Endpoint string `yaml:"endpoint"`

	// ForcePathStyle uses path-style addressing instead of virtual-hosted
	// buckets; required by most S3-compatible stores.
	ForcePathStyle bool `yaml:"force_path_style"`

	// Prefix confines the backend to a key prefix inside the bucket. It
	// becomes the backend's root path "".
	Prefix string `yaml:"prefix"`

	Retry retry.Config `yaml:"retry"`
}

// NewDefaultConfig returns a configuration with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Region: "us-east-1",
		Retry:  retry.DefaultConfig(),
	}
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket name cannot be empty")
	}
	return nil
}

// New creates an S3 backend from the ambient AWS credential chain.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*S3FS, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid S3 backend config: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	return NewWithClient(client, cfg, logger), nil
}
