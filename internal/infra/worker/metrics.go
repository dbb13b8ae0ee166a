package worker

import (
	"github.com/prometheus/client_golang/prometheus"

	"nexus-letter-analyzer/pkg/config"
)

// Metrics provides Prometheus metrics for the retention worker:
//   - worker_config_* (configuration load and fallbacks)
//   - worker_retention_runs_total{status}
//   - worker_retention_duration_seconds
//   - worker_retention_last_success_timestamp
type Metrics struct {
	*config.ConfigMetrics

	RunsTotal            *prometheus.CounterVec
	DurationSeconds      prometheus.Histogram
	LastSuccessTimestamp prometheus.Gauge
}

// NewMetrics creates the worker metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_retention_runs_total",
			Help: "Total number of retention purge runs by status (success/failure)",
		}, []string{"status"}),
		DurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_retention_duration_seconds",
			Help:    "Duration of retention purge runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 60, 300, 900},
		}),
		LastSuccessTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "worker_retention_last_success_timestamp",
			Help: "Unix timestamp of the last successful retention purge",
		}),
	}

	collectors := append(m.ConfigMetrics.Collectors(), m.RunsTotal, m.DurationSeconds, m.LastSuccessTimestamp)
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordRun counts a finished run and observes its duration. A successful run also sets
// the last-success timestamp.
func (m *Metrics) RecordRun(success bool, seconds float64) {
	status := "failure"
	if success {
		status = "success"
		m.LastSuccessTimestamp.SetToCurrentTime()
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.DurationSeconds.Observe(seconds)
}
