// Package analysis provides the letter analysis use cases: analyzing submitted text, URLs
// and HTML documents, and reading and purging stored analyses.
package analysis

import (
	"errors"
	"fmt"

	"nexus-letter-analyzer/internal/resilience/errclass"
	"nexus-letter-analyzer/internal/resilience/guard"
)

// Sentinel errors for analysis use case operations.
var (
	// ErrAnalysisNotFound indicates that the requested analysis was not found.
	ErrAnalysisNotFound = errors.New("analysis not found")

	// ErrInvalidAnalysisID indicates that the provided ID is not a UUID.
	ErrInvalidAnalysisID = errors.New("invalid analysis ID")

	// ErrFetchFailed indicates that the letter could not be retrieved from its URL.
	ErrFetchFailed = errors.New("failed to fetch letter")

	// ErrNoInput indicates that none of text, URL or HTML was supplied.
	ErrNoInput = errors.New("one of text, url or html is required")
)

// LLMError is returned by Analyze when the LLM call failed and fallback is disabled.
// It unwraps to the typed resilience error.
type LLMError struct {
	Outcome     guard.OutcomeKind
	Category    errclass.Category
	UserMessage string
	Err         error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm analysis %s (%s): %v", e.Outcome, e.Category, e.Err)
}

// Unwrap returns the resilience error.
func (e *LLMError) Unwrap() error { return e.Err }

// Unavailable reports whether the failure is an outage rather than a bad request: the
// circuit was open or every retry failed.
func (e *LLMError) Unavailable() bool {
	return e.Outcome == guard.OutcomeCircuitOpen || e.Outcome == guard.OutcomeRetryExhausted
}
