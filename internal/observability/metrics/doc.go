// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics (duration, count, size)
//   - Analysis metrics (outcomes, scores, redactions, retention)
//   - Resilience metrics (retries, circuit breakers, fallbacks)
//   - Database query metrics
//
// Package-level metrics are registered with the Prometheus default registry and exposed via
// the /metrics endpoint.
//
// Example usage:
//
//	start := time.Now()
//	// ... analyze letter ...
//	metrics.RecordAnalysis("claude", "ok", time.Since(start), scores.Total)
package metrics
