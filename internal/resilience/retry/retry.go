// Package retry provides retry logic with exponential backoff and jitter.
// Failures are classified with errclass; only retryable categories are attempted again.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"nexus-letter-analyzer/internal/resilience"
	"nexus-letter-analyzer/internal/resilience/errclass"
)

// Config holds the configuration for retry logic.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration

	// MaxDelay caps every computed delay, jitter included.
	MaxDelay time.Duration

	// Multiplier is the multiplier for exponential backoff.
	Multiplier float64

	// Jitter scales each delay by a random factor in [0.8, 1.2].
	Jitter bool

	// RetryableCategories lists the categories worth another attempt.
	// The zero Set means errclass.RetryableSet(); an empty NewSet() retries nothing.
	RetryableCategories errclass.Set
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:         3,
		BaseDelay:           1 * time.Second,
		MaxDelay:            30 * time.Second,
		Multiplier:          2.0,
		Jitter:              true,
		RetryableCategories: errclass.RetryableSet(),
	}
}

// LLMAPIConfig returns configuration for LLM provider calls.
// Moderate retry due to cost considerations.
func LLMAPIConfig() Config {
	return Config{
		MaxAttempts:         3,
		BaseDelay:           2 * time.Second,
		MaxDelay:            30 * time.Second,
		Multiplier:          2.0,
		Jitter:              true,
		RetryableCategories: errclass.RetryableSet(),
	}
}

// DBConfig returns configuration for database operations.
// Fast retry for transient connection issues.
func DBConfig() Config {
	return Config{
		MaxAttempts:         3,
		BaseDelay:           100 * time.Millisecond,
		MaxDelay:            1 * time.Second,
		Multiplier:          2.0,
		Jitter:              true,
		RetryableCategories: errclass.NewSet(errclass.DatabaseError, errclass.APITimeout),
	}
}

// Validate checks configuration correctness.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be positive, got %v", c.BaseDelay)
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("max delay (%v) must not be less than base delay (%v)", c.MaxDelay, c.BaseDelay)
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1, got %v", c.Multiplier)
	}
	for _, cat := range c.RetryableCategories.Slice() {
		if !cat.Valid() {
			return fmt.Errorf("unknown retryable category %q", cat)
		}
	}
	return nil
}

// Option customises a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics resilience.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithClassifier replaces the error classifier.
func WithClassifier(c *errclass.Classifier) Option {
	return func(m *Manager) { m.classifier = c }
}

// WithSleep replaces the backoff sleep. The function must return ctx.Err() when the
// context ends before d elapses.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Manager) { m.sleep = sleep }
}

// WithRand replaces the jitter source. f must return values in [0, 1).
func WithRand(f func() float64) Option {
	return func(m *Manager) { m.rand = f }
}

// WithClock replaces time.Now, for elapsed-time bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager drives repeated attempts of an operation. It holds no per-call state and is
// safe for concurrent use.
type Manager struct {
	cfg        Config
	classifier *errclass.Classifier
	logger     *slog.Logger
	metrics    resilience.Metrics
	sleep      func(ctx context.Context, d time.Duration) error
	rand       func() float64
	now        func() time.Time
}

// NewManager creates a Manager. It panics if cfg is invalid.
func NewManager(cfg Config, opts ...Option) *Manager {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("retry: %v", err))
	}
	if cfg.RetryableCategories.IsZero() {
		cfg.RetryableCategories = errclass.RetryableSet()
	}

	m := &Manager{
		cfg:        cfg,
		classifier: errclass.NewClassifier(),
		logger:     slog.Default(),
		metrics:    resilience.NoopMetrics{},
		sleep:      sleepContext,
		rand:       rand.Float64,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the manager configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Classifier returns the classifier used to categorise failures.
func (m *Manager) Classifier() *errclass.Classifier {
	return m.classifier
}

// Execute runs op until it succeeds, fails with a non-retryable category, or runs out of
// attempts. Terminal failures are returned as *RetryableError or *NonRetryableError.
// An error wrapped with Abort ends the loop and is returned as is. If ctx ends, Execute
// returns an error wrapping ctx.Err().
func (m *Manager) Execute(ctx context.Context, correlationID string, op func(ctx context.Context) error) error {
	start := m.now()
	defer func() {
		m.metrics.RecordTimer(resilience.MetricRetryDuration, m.now().Sub(start), correlationID)
	}()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry aborted: %w", err)
		}

		m.metrics.IncrementCounter(resilience.MetricRetryAttempt, 1, correlationID)
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				m.logger.Info("operation succeeded after retry",
					slog.String("correlation_id", correlationID),
					slog.Int("attempt", attempt))
			}
			m.metrics.IncrementCounter(resilience.MetricRetrySuccess, 1, correlationID)
			return nil
		}

		var abort *abortError
		if errors.As(err, &abort) {
			m.logger.Warn("retry loop aborted",
				slog.String("correlation_id", correlationID),
				slog.Int("attempt", attempt),
				slog.Any("error", abort.err))
			return abort.err
		}

		// The caller gave up; the failure is a consequence, not a cause.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("retry aborted: %w", ctxErr)
		}

		ec := m.classifier.NewErrorContext(err, attempt, m.cfg.MaxAttempts, m.now().Sub(start), correlationID)

		if !m.cfg.RetryableCategories.Has(ec.Category) {
			m.logger.Warn("non-retryable error, aborting",
				slog.String("correlation_id", correlationID),
				slog.String("category", ec.Category.String()),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			m.metrics.IncrementCounter(resilience.MetricRetryNonRetryable, 1, correlationID)
			return &NonRetryableError{ErrorContext: ec}
		}

		if attempt >= m.cfg.MaxAttempts {
			m.logger.Error("max retry attempts exceeded",
				slog.String("correlation_id", correlationID),
				slog.String("category", ec.Category.String()),
				slog.Int("attempts", attempt),
				slog.Int64("elapsed_ms", ec.ElapsedMS),
				slog.Any("error", err))
			m.metrics.IncrementCounter(resilience.MetricRetryExhausted, 1, correlationID)
			return &RetryableError{ErrorContext: ec}
		}

		delay := m.Delay(attempt, ec.Category)
		m.logger.Warn("operation failed, retrying",
			slog.String("correlation_id", correlationID),
			slog.String("category", ec.Category.String()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", m.cfg.MaxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		if err := m.sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry aborted: %w", err)
		}
	}
}

// Delay returns the backoff to wait after the given failed attempt (1-indexed).
// Rate-limit failures wait twice as long and timeouts one and a half times as long.
// The result never exceeds MaxDelay.
func (m *Manager) Delay(attempt int, category errclass.Category) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	maxDelay := float64(m.cfg.MaxDelay)

	delay := float64(m.cfg.BaseDelay) * math.Pow(m.cfg.Multiplier, float64(attempt-1))
	switch category {
	case errclass.APIRateLimit:
		delay *= 2
	case errclass.APITimeout:
		delay *= 1.5
	}
	delay = math.Min(delay, maxDelay)

	if m.cfg.Jitter {
		delay *= 0.8 + 0.4*m.rand()
		delay = math.Min(delay, maxDelay)
	}
	return time.Duration(delay)
}

// Do runs op through m and returns its value.
func Do[T any](ctx context.Context, m *Manager, correlationID string, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := m.Execute(ctx, correlationID, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
