package retry

import (
	"errors"
	"fmt"

	"nexus-letter-analyzer/internal/resilience/errclass"
)

// RetryableError is returned when every attempt failed with a retryable category.
type RetryableError struct {
	errclass.ErrorContext
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded [%s]: %v", e.TotalAttempts, e.Category, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NonRetryableError is returned as soon as an attempt fails with a terminal category.
type NonRetryableError struct {
	errclass.ErrorContext
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable error on attempt %d [%s]: %v", e.Attempt, e.Category, e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// ErrorContextOf returns the error context carried by a *RetryableError or
// *NonRetryableError anywhere in err's chain.
func ErrorContextOf(err error) (errclass.ErrorContext, bool) {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.ErrorContext, true
	}
	var nre *NonRetryableError
	if errors.As(err, &nre) {
		return nre.ErrorContext, true
	}
	return errclass.ErrorContext{}, false
}

type abortError struct {
	err error
}

func (e *abortError) Error() string { return e.err.Error() }
func (e *abortError) Unwrap() error { return e.err }

// Abort marks err as ending the retry loop at once. Execute returns err itself, not the
// wrapper. Abort(nil) returns nil.
func Abort(err error) error {
	if err == nil {
		return nil
	}
	return &abortError{err: err}
}
