// Package metrics wraps any backend with Prometheus instrumentation. The
// decorator records one counter, one error counter and one duration
// histogram per primitive operation and changes no contract semantics.
package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vfskit/vfskit/pkg/types"
)

// Config represents metrics configuration.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// NewDefaultConfig returns the default metrics configuration.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Namespace: "vfskit",
		Subsystem: "backend",
	}
}

// Instrumented decorates a backend with Prometheus metrics.
type Instrumented struct {
	backend types.Backend

	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

var _ types.Backend = (*Instrumented)(nil)

// NewInstrumented wraps backend and registers its metrics with reg.
func NewInstrumented(backend types.Backend, reg prometheus.Registerer, config *Config) (*Instrumented, error) {
	if config == nil {
		config = NewDefaultConfig()
	}

	instrumented := &Instrumented{
		backend: backend,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "operations_total",
			Help:      "Total number of backend primitive operations.",
		}, []string{"operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "operation_failures_total",
			Help:      "Total number of failed backend primitive operations.",
		}, []string{"operation"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "operation_duration_seconds",
			Help:      "Latency of backend primitive operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	for _, collector := range []prometheus.Collector{
		instrumented.operations, instrumented.failures, instrumented.duration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return instrumented, nil
}

// observe records one operation outcome.
func (m *Instrumented) observe(operation string, start time.Time, err error) {
	m.operations.WithLabelValues(operation).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.failures.WithLabelValues(operation).Inc()
	}
}

func (m *Instrumented) ReadDir(path string) ([]string, error) {
	start := time.Now()
	names, err := m.backend.ReadDir(path)
	m.observe("read_dir", start, err)
	return names, err
}

func (m *Instrumented) CreateDir(path string) error {
	start := time.Now()
	err := m.backend.CreateDir(path)
	m.observe("create_dir", start, err)
	return err
}

func (m *Instrumented) OpenFile(path string) (io.ReadSeekCloser, error) {
	start := time.Now()
	reader, err := m.backend.OpenFile(path)
	m.observe("open_file", start, err)
	return reader, err
}

func (m *Instrumented) CreateFile(path string) (io.WriteCloser, error) {
	start := time.Now()
	writer, err := m.backend.CreateFile(path)
	m.observe("create_file", start, err)
	return writer, err
}

func (m *Instrumented) AppendFile(path string) (io.WriteCloser, error) {
	start := time.Now()
	writer, err := m.backend.AppendFile(path)
	m.observe("append_file", start, err)
	return writer, err
}

func (m *Instrumented) Metadata(path string) (types.Metadata, error) {
	start := time.Now()
	metadata, err := m.backend.Metadata(path)
	m.observe("metadata", start, err)
	return metadata, err
}

func (m *Instrumented) Exists(path string) bool {
	start := time.Now()
	exists := m.backend.Exists(path)
	m.observe("exists", start, nil)
	return exists
}

func (m *Instrumented) RemoveFile(path string) error {
	start := time.Now()
	err := m.backend.RemoveFile(path)
	m.observe("remove_file", start, err)
	return err
}

func (m *Instrumented) RemoveDir(path string) error {
	start := time.Now()
	err := m.backend.RemoveDir(path)
	m.observe("remove_dir", start, err)
	return err
}
