package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"nexus-letter-analyzer/internal/resilience/errclass"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

type countingMetrics struct {
	mu       sync.Mutex
	counters map[string]float64
	timers   map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{counters: map[string]float64{}, timers: map[string]int{}}
}

func (c *countingMetrics) IncrementCounter(name string, value float64, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] += value
}

func (c *countingMetrics) RecordTimer(name string, _ time.Duration, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timers[name]++
}

func noJitter(cfg Config) Config {
	cfg.Jitter = false
	return cfg
}

func TestExecute_SuccessFirstAttempt(t *testing.T) {
	sleeper := &recordingSleep{}
	m := NewManager(DefaultConfig(), WithLogger(discard), WithSleep(sleeper.Sleep))

	attempts := 0
	err := m.Execute(context.Background(), "corr-1", func(context.Context) error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if len(sleeper.delays) != 0 {
		t.Errorf("expected no sleep, got %v", sleeper.delays)
	}
}

func TestExecute_SucceedsWithinBudget(t *testing.T) {
	cfg := noJitter(DefaultConfig())
	cfg.BaseDelay = 100 * time.Millisecond
	m := NewManager(cfg, WithLogger(discard))

	attempts := 0
	start := time.Now()
	got, err := Do(context.Background(), m, "corr-1", func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("Request timeout")
		}
		return "ok", nil
	})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "ok" {
		t.Errorf("expected ok, got %q", got)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	// 0.1s*1.5 + 0.2s*1.5 with the timeout multiplier.
	if elapsed < 450*time.Millisecond {
		t.Errorf("expected at least 450ms of backoff, got %v", elapsed)
	}
}

func TestExecute_NonRetryableFailsFast(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 5
	sleeper := &recordingSleep{}
	metrics := newCountingMetrics()
	m := NewManager(cfg, WithLogger(discard), WithSleep(sleeper.Sleep), WithMetrics(metrics))

	attempts := 0
	cause := errors.New("Invalid API key authentication failed")
	err := m.Execute(context.Background(), "corr-2", func(context.Context) error {
		attempts++
		return cause
	})

	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if len(sleeper.delays) != 0 {
		t.Errorf("expected no sleep, got %v", sleeper.delays)
	}

	var nre *NonRetryableError
	if !errors.As(err, &nre) {
		t.Fatalf("expected *NonRetryableError, got %T: %v", err, err)
	}
	if nre.Category != errclass.APIAuthentication {
		t.Errorf("expected category %s, got %s", errclass.APIAuthentication, nre.Category)
	}
	if nre.CorrelationID != "corr-2" {
		t.Errorf("expected correlation id corr-2, got %q", nre.CorrelationID)
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to unwrap to the cause")
	}
	if metrics.counters["retry_non_retryable"] != 1 {
		t.Errorf("expected one non-retryable count, got %v", metrics.counters)
	}
	if metrics.timers["retry_execution"] != 1 {
		t.Errorf("expected one execution timer, got %v", metrics.timers)
	}
}

func TestExecute_ExhaustsAttempts(t *testing.T) {
	sleeper := &recordingSleep{}
	m := NewManager(noJitter(DefaultConfig()), WithLogger(discard), WithSleep(sleeper.Sleep))

	attempts := 0
	err := m.Execute(context.Background(), "corr-3", func(context.Context) error {
		attempts++
		return errors.New("502 Bad Gateway")
	})

	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	var re *RetryableError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RetryableError, got %T: %v", err, err)
	}
	if re.Attempt != 3 || re.TotalAttempts != 3 {
		t.Errorf("expected attempt 3 of 3, got %d of %d", re.Attempt, re.TotalAttempts)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("expected delays %v, got %v", want, sleeper.delays)
	}
	for i := range want {
		if sleeper.delays[i] != want[i] {
			t.Errorf("delay %d: expected %v, got %v", i, want[i], sleeper.delays[i])
		}
	}
}

func TestExecute_SingleAttempt(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 1
	sleeper := &recordingSleep{}
	m := NewManager(cfg, WithLogger(discard), WithSleep(sleeper.Sleep))

	attempts := 0
	err := m.Execute(context.Background(), "", func(context.Context) error {
		attempts++
		return errors.New("connection refused")
	})

	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if len(sleeper.delays) != 0 {
		t.Errorf("expected no sleep, got %v", sleeper.delays)
	}
	var re *RetryableError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RetryableError, got %T", err)
	}
}

func TestExecute_CustomRetryableCategories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryableCategories = errclass.NewSet(errclass.APIRateLimit)
	m := NewManager(cfg, WithLogger(discard), WithSleep((&recordingSleep{}).Sleep))

	attempts := 0
	err := m.Execute(context.Background(), "", func(context.Context) error {
		attempts++
		return errors.New("connection refused")
	})

	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	var nre *NonRetryableError
	if !errors.As(err, &nre) {
		t.Fatalf("expected *NonRetryableError, got %T", err)
	}
}

func TestExecute_RetryableCategoriesDefaults(t *testing.T) {
	tests := []struct {
		name         string
		categories   errclass.Set
		wantAttempts int
		wantSleeps   int
	}{
		{"zero set uses defaults", errclass.Set{}, 3, 2},
		{"empty set retries nothing", errclass.NewSet(), 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := noJitter(DefaultConfig())
			cfg.RetryableCategories = tt.categories
			sleep := &recordingSleep{}
			m := NewManager(cfg, WithLogger(discard), WithSleep(sleep.Sleep))

			attempts := 0
			err := m.Execute(context.Background(), "", func(context.Context) error {
				attempts++
				return errors.New("Request timeout")
			})

			if err == nil {
				t.Fatal("expected an error")
			}
			if attempts != tt.wantAttempts {
				t.Errorf("expected %d attempts, got %d", tt.wantAttempts, attempts)
			}
			if len(sleep.delays) != tt.wantSleeps {
				t.Errorf("expected %d sleeps, got %d", tt.wantSleeps, len(sleep.delays))
			}
			var nre *NonRetryableError
			if isNonRetryable := errors.As(err, &nre); isNonRetryable != (tt.wantAttempts == 1) {
				t.Errorf("unexpected error type %T: %v", err, err)
			}
		})
	}
}

func TestExecute_ContextCancelledDuringBackoff(t *testing.T) {
	cfg := noJitter(DefaultConfig())
	cfg.BaseDelay = time.Hour
	cfg.MaxDelay = time.Hour
	m := NewManager(cfg, WithLogger(discard))

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- m.Execute(ctx, "", func(context.Context) error {
			attempts++
			return errors.New("503 Service Unavailable")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after cancellation")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecute_ContextAlreadyDone(t *testing.T) {
	m := NewManager(DefaultConfig(), WithLogger(discard))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := m.Execute(ctx, "", func(context.Context) error {
		called = true
		return nil
	})

	if called {
		t.Error("expected operation not to be called")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestExecute_Abort(t *testing.T) {
	sleeper := &recordingSleep{}
	m := NewManager(DefaultConfig(), WithLogger(discard), WithSleep(sleeper.Sleep))

	sentinel := errors.New("circuit open")
	attempts := 0
	err := m.Execute(context.Background(), "", func(context.Context) error {
		attempts++
		return Abort(sentinel)
	})

	if err != sentinel {
		t.Errorf("expected the aborted error itself, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if Abort(nil) != nil {
		t.Error("expected Abort(nil) to be nil")
	}
}

func TestDelay(t *testing.T) {
	cfg := noJitter(DefaultConfig())
	cfg.BaseDelay = 100 * time.Millisecond
	cfg.MaxDelay = 1 * time.Second
	m := NewManager(cfg)

	tests := []struct {
		name     string
		attempt  int
		category errclass.Category
		want     time.Duration
	}{
		{"first server error", 1, errclass.APIServerError, 100 * time.Millisecond},
		{"second server error", 2, errclass.APIServerError, 200 * time.Millisecond},
		{"third server error", 3, errclass.APIServerError, 400 * time.Millisecond},
		{"rate limit doubles", 1, errclass.APIRateLimit, 200 * time.Millisecond},
		{"timeout one and a half", 2, errclass.APITimeout, 300 * time.Millisecond},
		{"clamped", 10, errclass.APIServerError, time.Second},
		{"rate limit clamped", 4, errclass.APIRateLimit, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Delay(tt.attempt, tt.category); got != tt.want {
				t.Errorf("Delay(%d, %s) = %v, want %v", tt.attempt, tt.category, got, tt.want)
			}
		})
	}
}

func TestDelay_JitterBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseDelay = 100 * time.Millisecond
	cfg.MaxDelay = 10 * time.Second

	for _, r := range []float64{0, 0.25, 0.5, 0.999} {
		m := NewManager(cfg, WithRand(func() float64 { return r }))
		got := m.Delay(1, errclass.APIServerError)
		if got < 80*time.Millisecond || got > 120*time.Millisecond {
			t.Errorf("rand=%v: delay %v outside [80ms, 120ms]", r, got)
		}
	}

	// Jitter never pushes the delay past MaxDelay.
	cfg.MaxDelay = 100 * time.Millisecond
	m := NewManager(cfg, WithRand(func() float64 { return 0.999 }))
	if got := m.Delay(5, errclass.APIRateLimit); got > cfg.MaxDelay {
		t.Errorf("expected delay <= %v, got %v", cfg.MaxDelay, got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }, true},
		{"zero base delay", func(c *Config) { c.BaseDelay = 0 }, true},
		{"max below base", func(c *Config) { c.MaxDelay = c.BaseDelay / 2 }, true},
		{"multiplier below one", func(c *Config) { c.Multiplier = 0.5 }, true},
		{"unknown category", func(c *Config) { c.RetryableCategories = errclass.NewSet("bogus") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPresets(t *testing.T) {
	for name, cfg := range map[string]Config{
		"default": DefaultConfig(),
		"llm":     LLMAPIConfig(),
		"db":      DBConfig(),
	} {
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s preset invalid: %v", name, err)
		}
	}
}

func TestErrorContextOf(t *testing.T) {
	ec := errclass.ErrorContext{Category: errclass.APITimeout, Attempt: 2}

	got, ok := ErrorContextOf(&RetryableError{ErrorContext: ec})
	if !ok || got.Category != errclass.APITimeout {
		t.Errorf("expected retryable context, got %+v %v", got, ok)
	}
	if _, ok := ErrorContextOf(errors.New("plain")); ok {
		t.Error("expected no context for a plain error")
	}
}
