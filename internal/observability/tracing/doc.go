// Package tracing wires OpenTelemetry tracing: the global tracer, provider setup, and HTTP
// server spans.
//
// Spans of one analysis share the correlation_id attribute, so a request span, its guarded
// LLM call and every retry can be found together:
//
//	shutdown, err := tracing.Init(tracing.Config{ServiceName: "nexus-letter-analyzer", SampleRatio: 0.1}, logger)
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
package tracing
