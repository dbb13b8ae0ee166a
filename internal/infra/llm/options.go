package llm

import "log/slog"

// Option customises an analyzer.
type Option func(*common)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *common) { c.logger = logger }
}

// WithMetrics replaces the Prometheus recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *common) { c.metrics = m }
}

// common holds what every provider adapter shares.
type common struct {
	config  Config
	logger  *slog.Logger
	metrics MetricsRecorder
}

func newCommon(cfg Config, opts []Option) common {
	c := common{
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.metrics == nil {
		c.metrics = NewPrometheusMetrics()
	}
	return c
}
