// Package observability groups the analyzer's logging, metrics and tracing packages.
//
// Subpackages:
//   - logging: slog construction and correlation-ID scoped loggers
//   - metrics: Prometheus collectors for HTTP, database, analysis and resilience events
//   - tracing: OpenTelemetry provider setup and HTTP server spans
package observability
