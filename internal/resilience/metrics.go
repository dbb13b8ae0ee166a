package resilience

import "time"

// Metrics is the sink the resilience components report to.
// Implementations must be safe for concurrent use. The correlation id is passed through
// so that implementations can attach it to exemplars or logs; it must not be used as a
// metric label.
type Metrics interface {
	// IncrementCounter adds value to the counter identified by name.
	IncrementCounter(name string, value float64, correlationID string)

	// RecordTimer records a duration for the timer identified by name.
	RecordTimer(name string, d time.Duration, correlationID string)
}

// Metric names emitted by the resilience components.
const (
	MetricRetryAttempt       = "retry_attempt"
	MetricRetrySuccess       = "retry_success"
	MetricRetryExhausted     = "retry_exhausted"
	MetricRetryNonRetryable  = "retry_non_retryable"
	MetricRetryDuration      = "retry_execution"
	MetricCircuitRejected    = "circuit_rejected"
	MetricFallbackApplied    = "fallback_applied"
	MetricGuardedCallSuccess = "guarded_call_success"
	MetricGuardedCallFailure = "guarded_call_failure"
	MetricGuardedDuration    = "guarded_call"
)

// NoopMetrics discards everything.
type NoopMetrics struct{}

// IncrementCounter implements Metrics.
func (NoopMetrics) IncrementCounter(string, float64, string) {}

// RecordTimer implements Metrics.
func (NoopMetrics) RecordTimer(string, time.Duration, string) {}
