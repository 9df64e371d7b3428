package engine

// config.go mirrors pkg/config.go's functional-option pattern: a private
// config struct with sensible defaults, populated only through exported
// Option values, validated once in New.
//
// © 2025 worker authors. MIT License.

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vecmesh/worker/internal/telemetry"
)

// Option configures an Engine at construction time.
type Option func(*config)

type config struct {
	dataDir       string
	dim           int
	maxBytes      uint64
	workerThreads int
	logger        *zap.Logger
	registry      *prometheus.Registry
	sink          telemetry.Sink
}

func defaultConfig(dataDir string, dim int, maxBytes uint64) *config {
	return &config{
		dataDir:       dataDir,
		dim:           dim,
		maxBytes:      maxBytes,
		workerThreads: 2,
		logger:        zap.NewNop(),
	}
}

// WithLogger plugs an external zap.Logger. The engine never logs on the hot
// path (add/search); only checkpoint and load errors and shard creation log.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics for this engine instance, building
// a fresh telemetry.Sink registered against reg. Passing nil disables
// metrics (default). Use WithMetricsSink instead when a sink already
// registered against this registry exists elsewhere (e.g. shared with
// internal/session) — registering the same collector names twice on one
// registry panics.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) {
		c.registry = reg
	}
}

// WithMetricsSink plugs an already-constructed telemetry.Sink instead of
// having the engine build its own from a registry. Takes precedence over
// WithMetrics.
func WithMetricsSink(sink telemetry.Sink) Option {
	return func(c *config) {
		c.sink = sink
	}
}

// WithWorkerThreads overrides the number of goroutines in the engine's
// worker pool used to offload CPU-bound index operations. Clamped to at
// least 2 per the "dedicated worker thread pool (≥ 2 threads)" requirement.
func WithWorkerThreads(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workerThreads = n
		}
	}
}

func applyOptions(cfg *config, opts []Option) error {
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.dim <= 0 {
		return ErrInvalidDim
	}
	if cfg.maxBytes == 0 {
		return ErrInvalidMaxBytes
	}
	return nil
}

func (c *config) metricsSink() telemetry.Sink {
	if c.sink != nil {
		return c.sink
	}
	return telemetry.NewSink(c.registry)
}
