package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Querier is the subset of *sql.DB used by the repositories. Both *sql.DB and *GuardedDB
// satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// BreakerConfig configures the ratio-based breaker that protects the database.
type BreakerConfig struct {
	Name string

	// MaxRequests is the maximum number of requests allowed in half-open state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state to clear counts.
	Interval time.Duration

	// Timeout is how long to wait in open state before trying again.
	Timeout time.Duration

	// FailureRatio trips the breaker once at least MinRequests were seen.
	FailureRatio float64

	MinRequests uint32
}

// DefaultBreakerConfig opens after 5 requests that all failed and probes again after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:         "database",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 1.0,
		MinRequests:  5,
	}
}

// GuardedDB wraps a database connection with circuit breaker protection so that a dead
// database fails fast instead of tying up every request until its timeout.
type GuardedDB struct {
	cb *gobreaker.CircuitBreaker
	db *sql.DB
}

// NewGuardedDB wraps db. State changes are logged through logger.
func NewGuardedDB(db *sql.DB, cfg BreakerConfig, logger *slog.Logger) *GuardedDB {
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// A missing row or a caller that gave up says nothing about database health.
			return err == nil ||
				errors.Is(err, sql.ErrNoRows) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &GuardedDB{
		cb: gobreaker.NewCircuitBreaker(settings),
		db: db,
	}
}

// QueryContext executes a query with circuit breaker protection.
func (g *GuardedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	result, err := g.cb.Execute(func() (interface{}, error) {
		return g.db.QueryContext(ctx, query, args...)
	})
	if err != nil {
		return nil, g.wrap(err)
	}
	return result.(*sql.Rows), nil
}

// ExecContext executes a statement with circuit breaker protection.
func (g *GuardedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := g.cb.Execute(func() (interface{}, error) {
		return g.db.ExecContext(ctx, query, args...)
	})
	if err != nil {
		return nil, g.wrap(err)
	}
	return result.(sql.Result), nil
}

// QueryRowContext is not protected: sql.Row defers its error until Scan.
func (g *GuardedDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return g.db.QueryRowContext(ctx, query, args...)
}

// PingContext checks connectivity through the breaker.
func (g *GuardedDB) PingContext(ctx context.Context) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.db.PingContext(ctx)
	})
	return g.wrap(err)
}

// State returns the breaker state name.
func (g *GuardedDB) State() string {
	return g.cb.State().String()
}

// IsOpen returns true if the circuit breaker is in the open state.
func (g *GuardedDB) IsOpen() bool {
	return g.cb.State() == gobreaker.StateOpen
}

// DB returns the underlying database connection, for migrations and transactions.
func (g *GuardedDB) DB() *sql.DB {
	return g.db
}

// wrap names rejected calls as database failures so they classify as database errors.
func (g *GuardedDB) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("database circuit %q rejected call: %w", g.cb.Name(), err)
	}
	return err
}
