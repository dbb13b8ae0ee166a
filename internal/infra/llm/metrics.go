package llm

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder records per-call analyzer metrics.
// Tests inject a fake; production uses NewPrometheusMetrics.
type MetricsRecorder interface {
	// RecordDuration records the upstream latency of a single call.
	RecordDuration(provider string, d time.Duration)

	// RecordOutcome counts a finished call. Outcome is "success", "api_error" or "parse_error".
	RecordOutcome(provider, outcome string)
}

// PrometheusMetrics implements MetricsRecorder using Prometheus collectors.
type PrometheusMetrics struct {
	duration *prometheus.HistogramVec
	calls    *prometheus.CounterVec
}

var (
	prometheusMetricsInstance *PrometheusMetrics
	prometheusMetricsOnce     sync.Once
)

// registerOrExisting registers c or returns the collector already registered under the same
// descriptor.
func registerOrExisting[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// NewPrometheusMetrics returns the process-wide recorder registered on the default registry.
// Uses a singleton to avoid duplicate registration in tests.
func NewPrometheusMetrics() *PrometheusMetrics {
	prometheusMetricsOnce.Do(func() {
		prometheusMetricsInstance = newPrometheusMetrics(prometheus.DefaultRegisterer)
	})
	return prometheusMetricsInstance
}

func newPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	return &PrometheusMetrics{
		duration: registerOrExisting(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llm_analysis_duration_seconds",
			Help:    "Time taken by a single LLM analysis call",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"provider"})),
		calls: registerOrExisting(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_analysis_calls_total",
			Help: "Total number of LLM analysis calls by outcome",
		}, []string{"provider", "outcome"})),
	}
}

// RecordDuration implements MetricsRecorder.
func (p *PrometheusMetrics) RecordDuration(provider string, d time.Duration) {
	p.duration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordOutcome implements MetricsRecorder.
func (p *PrometheusMetrics) RecordOutcome(provider, outcome string) {
	p.calls.WithLabelValues(provider, outcome).Inc()
}

const (
	outcomeSuccess    = "success"
	outcomeAPIError   = "api_error"
	outcomeParseError = "parse_error"
)
