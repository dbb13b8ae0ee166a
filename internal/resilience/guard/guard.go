// Package guard composes retry, circuit breaking and graceful degradation around a single
// fallible operation, and reports the outcome as a tagged Result.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nexus-letter-analyzer/internal/observability/tracing"
	"nexus-letter-analyzer/internal/resilience"
	"nexus-letter-analyzer/internal/resilience/circuitbreaker"
	"nexus-letter-analyzer/internal/resilience/degrade"
	"nexus-letter-analyzer/internal/resilience/errclass"
	"nexus-letter-analyzer/internal/resilience/retry"
)

// OutcomeKind tags how a guarded call ended.
type OutcomeKind int

const (
	// OutcomeOK means the operation returned a value.
	OutcomeOK OutcomeKind = iota
	// OutcomeRetryExhausted means every attempt failed with a retryable category.
	OutcomeRetryExhausted
	// OutcomeCircuitOpen means the breaker rejected the call without invoking it.
	OutcomeCircuitOpen
	// OutcomeTerminal means a non-retryable failure or a cancelled context.
	OutcomeTerminal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeRetryExhausted:
		return "retry_exhausted"
	case OutcomeCircuitOpen:
		return "circuit_open"
	case OutcomeTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Result is the outcome of Execute.
//
// For OutcomeOK, Value holds the operation's result. For the other kinds, Category holds
// the classified failure, UserMessage its user-facing explanation, Err the typed error
// (*retry.RetryableError, *retry.NonRetryableError or *circuitbreaker.OpenError) and, when
// fallback is enabled, Fallback the substitute response.
type Result[T any] struct {
	Kind        OutcomeKind
	Value       T
	Category    errclass.Category
	UserMessage string
	Fallback    *degrade.FallbackResponse
	Err         error
}

// Degraded reports whether the result carries a fallback instead of a value.
func (r Result[T]) Degraded() bool {
	return r.Fallback != nil
}

// Option customises a Guard.
type Option func(*Guard)

// WithCircuitBreaker routes every attempt through cb. The breaker is usually shared by all
// callers of the same upstream dependency.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(g *Guard) { g.breaker = cb }
}

// WithFallback enables graceful degradation through m.
func WithFallback(m *degrade.Manager) Option {
	return func(g *Guard) { g.fallback = m }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics resilience.Metrics) Option {
	return func(g *Guard) { g.metrics = metrics }
}

// WithTracer replaces the tracer used for the per-call span.
func WithTracer(tracer trace.Tracer) Option {
	return func(g *Guard) { g.tracer = tracer }
}

// Guard wires a retry manager, an optional circuit breaker and an optional degradation
// manager around an operation. A Guard is immutable after New and safe for concurrent use.
type Guard struct {
	retry    *retry.Manager
	breaker  *circuitbreaker.CircuitBreaker
	fallback *degrade.Manager
	logger   *slog.Logger
	metrics  resilience.Metrics
	tracer   trace.Tracer
}

// New creates a Guard around rm.
func New(rm *retry.Manager, opts ...Option) *Guard {
	g := &Guard{
		retry:   rm,
		logger:  slog.Default(),
		metrics: resilience.NoopMetrics{},
		tracer:  tracing.GetTracer(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Breaker returns the circuit breaker, or nil.
func (g *Guard) Breaker() *circuitbreaker.CircuitBreaker {
	return g.breaker
}

// FallbackEnabled reports whether terminal failures are converted into fallbacks.
func (g *Guard) FallbackEnabled() bool {
	return g.fallback != nil
}

// Execute runs op under g.
//
// Each retry attempt passes through the circuit breaker; an open circuit ends the whole
// retry loop at once. On a terminal failure with fallback enabled, the Result carries a
// Fallback and the returned error is nil. With fallback disabled, the typed error is
// returned. A cancelled ctx is always returned as an error and never degraded.
func Execute[T any](ctx context.Context, g *Guard, correlationID string, inputSizeHint int, op func(ctx context.Context) (T, error)) (Result[T], error) {
	ctx, span := g.tracer.Start(ctx, "guard.Execute", trace.WithAttributes(
		attribute.String("correlation_id", correlationID),
		attribute.Int("input_size_hint", inputSizeHint),
	))
	defer span.End()

	start := time.Now()
	attempts := 0
	var (
		value       T
		lastFailure error
	)

	err := g.retry.Execute(ctx, correlationID, func(ctx context.Context) error {
		attempts++
		var (
			v     T
			opErr error
		)
		if g.breaker != nil {
			v, opErr = circuitbreaker.Execute(g.breaker, func() (T, error) { return op(ctx) })
			if circuitbreaker.IsOpenError(opErr) {
				return retry.Abort(opErr)
			}
		} else {
			v, opErr = op(ctx)
		}
		if opErr != nil {
			lastFailure = opErr
			return opErr
		}
		value = v
		return nil
	})

	elapsed := time.Since(start)
	g.metrics.RecordTimer(resilience.MetricGuardedDuration, elapsed, correlationID)
	span.SetAttributes(attribute.Int("attempts", attempts))

	if err == nil {
		g.metrics.IncrementCounter(resilience.MetricGuardedCallSuccess, 1, correlationID)
		span.SetStatus(codes.Ok, "")
		return Result[T]{Kind: OutcomeOK, Value: value}, nil
	}

	g.metrics.IncrementCounter(resilience.MetricGuardedCallFailure, 1, correlationID)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	classifier := g.retry.Classifier()

	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		g.logger.Warn("guarded call cancelled",
			slog.String("correlation_id", correlationID),
			slog.Int("attempts", attempts),
			slog.Any("error", err))
		return Result[T]{Kind: OutcomeTerminal, Category: classifier.Classify(err), Err: err}, err
	}

	kind, ec := g.describe(err, lastFailure, attempts, elapsed, correlationID)
	span.SetAttributes(
		attribute.String("outcome", kind.String()),
		attribute.String("error_category", ec.Category.String()),
	)
	g.logger.Error("guarded call failed",
		slog.String("correlation_id", correlationID),
		slog.String("outcome", kind.String()),
		slog.String("category", ec.Category.String()),
		slog.Int("attempts", attempts),
		slog.Duration("elapsed", elapsed),
		slog.Any("error", err))

	result := Result[T]{Kind: kind, Category: ec.Category, UserMessage: ec.UserMessage, Err: err}
	if g.fallback == nil {
		return result, err
	}

	result.Fallback = g.fallback.CreateFallbackResponse(ec, inputSizeHint)
	g.metrics.IncrementCounter(resilience.MetricFallbackApplied, 1, correlationID)
	span.SetAttributes(attribute.Bool("fallback_applied", true))
	return result, nil
}

// describe maps a terminal error from the retry loop onto an outcome kind and the error
// context handed to the degradation manager. lastFailure is the last error returned by the
// operation itself, or nil when no attempt reached it.
func (g *Guard) describe(err, lastFailure error, attempts int, elapsed time.Duration, correlationID string) (OutcomeKind, errclass.ErrorContext) {
	classifier := g.retry.Classifier()
	total := g.retry.Config().MaxAttempts

	if circuitbreaker.IsOpenError(err) {
		g.metrics.IncrementCounter(resilience.MetricCircuitRejected, 1, correlationID)
		// The failure that tripped the circuit in this call keeps its category. A call
		// rejected before any attempt ran is unknown_error.
		cause := err
		if lastFailure != nil {
			cause = lastFailure
		}
		ec := classifier.NewErrorContext(cause, attempts, total, elapsed, correlationID)
		ec.UserMessage = classifier.CircuitOpenMessage()
		return OutcomeCircuitOpen, ec
	}

	var exhausted *retry.RetryableError
	if errors.As(err, &exhausted) {
		return OutcomeRetryExhausted, exhausted.ErrorContext
	}

	var terminal *retry.NonRetryableError
	if errors.As(err, &terminal) {
		return OutcomeTerminal, terminal.ErrorContext
	}

	return OutcomeTerminal, classifier.NewErrorContext(err, attempts, total, elapsed, correlationID)
}
