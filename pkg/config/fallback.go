package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadResult is the outcome of a fail-open load. Warning is set when the environment held
// a value that failed to parse or validate and Value fell back to the default.
type LoadResult[T any] struct {
	Value           T
	Warning         string
	FallbackApplied bool
}

// LoadWithFallback reads key, parses it and validates it. It never fails: an unset key
// yields defaultValue silently, a bad value yields defaultValue with a warning. validate may
// be nil.
func LoadWithFallback[T any](key string, defaultValue T, parse func(string) (T, error), validate func(T) error) LoadResult[T] {
	raw := os.Getenv(key)
	if raw == "" {
		return LoadResult[T]{Value: defaultValue}
	}

	v, err := parse(strings.TrimSpace(raw))
	if err == nil && validate != nil {
		err = validate(v)
	}
	if err != nil {
		return LoadResult[T]{
			Value:           defaultValue,
			Warning:         fmt.Sprintf("invalid %s='%s': %v, falling back to default '%v'", key, raw, err, defaultValue),
			FallbackApplied: true,
		}
	}
	return LoadResult[T]{Value: v}
}

// ParseString is the identity parser for LoadWithFallback.
func ParseString(s string) (string, error) { return s, nil }

// Parsers for LoadWithFallback.
var (
	ParseInt      = strconv.Atoi
	ParseBool     = strconv.ParseBool
	ParseDuration = time.ParseDuration
)

// FallbackTracker applies LoadResults to a config struct while logging and counting every
// fallback.
type FallbackTracker struct {
	logger  *slog.Logger
	metrics *ConfigMetrics
	applied bool
}

// NewFallbackTracker returns a tracker. metrics may be nil.
func NewFallbackTracker(logger *slog.Logger, metrics *ConfigMetrics) *FallbackTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackTracker{logger: logger, metrics: metrics}
}

// Track records r under field and returns its value.
func Track[T any](t *FallbackTracker, field string, r LoadResult[T]) T {
	if r.FallbackApplied {
		t.applied = true
		t.logger.Warn("configuration fallback applied",
			slog.String("field", field),
			slog.String("warning", r.Warning))
		if t.metrics != nil {
			t.metrics.RecordValidationError(field)
			t.metrics.RecordFallback(field)
		}
	}
	return r.Value
}

// Done publishes the fallback gauge and load timestamp, and reports whether any fallback
// was applied.
func (t *FallbackTracker) Done() bool {
	if t.metrics != nil {
		t.metrics.SetFallbackActive(t.applied)
		t.metrics.RecordLoadTimestamp()
	}
	return t.applied
}
