// Package circuitbreaker provides the per-dependency circuit breaker that guards outbound
// LLM calls. One breaker is shared by every caller of the same upstream dependency.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the state of a circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("unknown state: %d", int(s))
	}
}

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name identifies the protected dependency in logs, metrics and the registry.
	Name string

	// FailureThreshold is the failure count at which a closed circuit opens.
	FailureThreshold int

	// Timeout is how long the circuit stays open before a trial call is allowed.
	Timeout time.Duration

	// SuccessThreshold is the number of consecutive half-open successes that close the circuit.
	SuccessThreshold int

	// StrictConsecutive resets the failure count on any closed-state success instead of
	// decrementing it by one.
	StrictConsecutive bool

	// OnStateChange is called after every transition, outside the breaker lock.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns a default configuration for the named breaker.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		Timeout:          60 * time.Second,
		SuccessThreshold: 2,
	}
}

// LLMAPIConfig returns configuration tuned for LLM provider calls.
func LLMAPIConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 3,
		Timeout:          30 * time.Second,
		SuccessThreshold: 2,
	}
}

// Validate checks configuration correctness.
func (c Config) Validate() error {
	if c.Name == "" {
		return errors.New("circuit breaker name cannot be empty")
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be at least 1, got %d", c.FailureThreshold)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %v", c.Timeout)
	}
	if c.SuccessThreshold < 1 {
		return fmt.Errorf("success threshold must be at least 1, got %d", c.SuccessThreshold)
	}
	return nil
}

// OpenError is returned when the circuit rejects a call without invoking the operation.
// RetryAfter is the time left until the next trial call. It is zero when the rejection
// happened in the half-open state because the trial call is still in flight.
type OpenError struct {
	Name       string
	RetryAfter time.Duration
	HalfOpen   bool
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	if e.HalfOpen {
		return fmt.Sprintf("circuit breaker %q is half-open and its trial call is in flight", e.Name)
	}
	return fmt.Sprintf("circuit breaker %q is open (retry after %v)", e.Name, e.RetryAfter.Round(time.Millisecond))
}

// IsOpenError reports whether err is, or wraps, an *OpenError.
func IsOpenError(err error) bool {
	var openErr *OpenError
	return errors.As(err, &openErr)
}

// Option customises a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// CircuitBreaker is a CLOSED/OPEN/HALF_OPEN state machine.
//
// In the closed state every success decrements the failure count by one (never below
// zero), so sporadic failures leak away instead of accumulating. The circuit opens when the
// count reaches FailureThreshold. After Timeout a single trial call is let through at a
// time; SuccessThreshold consecutive trial successes close the circuit and any trial
// failure reopens it.
//
// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	cfg Config
	now func() time.Time

	mu              sync.Mutex
	state           State
	generation      uint64
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	probeInFlight   bool
}

// New creates a circuit breaker. It panics if cfg is invalid, since a misconfigured
// breaker is a programming error.
func New(cfg Config, opts ...Option) *CircuitBreaker {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("circuitbreaker: %v", err))
	}
	cb := &CircuitBreaker{
		cfg:   cfg,
		now:   time.Now,
		state: StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.cfg.Name
}

// Config returns the breaker configuration.
func (cb *CircuitBreaker) Config() Config {
	return cb.cfg
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// IsOpen returns true if the circuit breaker is in the open state.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// Call runs op through the circuit breaker. If the circuit is open, it returns an
// *OpenError and op is not invoked.
func (cb *CircuitBreaker) Call(op func() error) error {
	_, err := Execute(cb, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// Execute runs op through cb and returns its result.
func Execute[T any](cb *CircuitBreaker, op func() (T, error)) (result T, err error) {
	generation, err := cb.beforeCall()
	if err != nil {
		return result, err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.afterCall(generation, false)
			panic(r)
		}
	}()

	result, err = op()
	cb.afterCall(generation, err == nil)
	return result, err
}

// Reset force-closes the circuit and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = StateClosed
	cb.generation++
	cb.failureCount = 0
	cb.successCount = 0
	cb.probeInFlight = false
	cb.mu.Unlock()

	cb.notify(from, StateClosed)
}

// beforeCall decides whether a call may proceed and returns the generation it belongs to.
func (cb *CircuitBreaker) beforeCall() (uint64, error) {
	cb.mu.Lock()

	from := cb.state
	switch cb.state {
	case StateOpen:
		elapsed := cb.now().Sub(cb.lastFailureTime)
		if elapsed < cb.cfg.Timeout {
			cb.mu.Unlock()
			return 0, &OpenError{Name: cb.cfg.Name, RetryAfter: cb.cfg.Timeout - elapsed}
		}
		cb.setStateLocked(StateHalfOpen)
		cb.probeInFlight = true
	case StateHalfOpen:
		if cb.probeInFlight {
			cb.mu.Unlock()
			return 0, &OpenError{Name: cb.cfg.Name, HalfOpen: true}
		}
		cb.probeInFlight = true
	}

	generation := cb.generation
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return generation, nil
}

// afterCall records the outcome of a call admitted in the given generation. Outcomes from
// an earlier generation are ignored: the state they observed no longer exists.
func (cb *CircuitBreaker) afterCall(generation uint64, success bool) {
	cb.mu.Lock()

	if generation != cb.generation {
		cb.mu.Unlock()
		return
	}

	from := cb.state
	if success {
		cb.onSuccessLocked()
	} else {
		cb.onFailureLocked()
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

func (cb *CircuitBreaker) onSuccessLocked() {
	switch cb.state {
	case StateClosed:
		if cb.cfg.StrictConsecutive {
			cb.failureCount = 0
		} else if cb.failureCount > 0 {
			cb.failureCount--
		}
	case StateHalfOpen:
		cb.probeInFlight = false
		cb.successCount++
		if cb.successCount >= cb.cfg.SuccessThreshold {
			cb.failureCount = 0
			cb.setStateLocked(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) onFailureLocked() {
	cb.failureCount++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.setStateLocked(StateOpen)
		}
	case StateHalfOpen:
		cb.probeInFlight = false
		cb.setStateLocked(StateOpen)
	}
}

// setStateLocked moves to state and starts a new generation. Counters that belong to the
// previous state are cleared here.
func (cb *CircuitBreaker) setStateLocked(state State) {
	if cb.state == state {
		return
	}
	cb.state = state
	cb.generation++
	cb.successCount = 0
	if state == StateClosed {
		cb.failureCount = 0
	}
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}
