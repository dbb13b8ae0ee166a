package errclass

import "time"

// ErrorContext describes one failed attempt. It lives for the duration of a single retry
// loop and is never persisted.
type ErrorContext struct {
	Category      Category `json:"category"`
	Err           error    `json:"-"`
	Attempt       int      `json:"attempt_number"`
	TotalAttempts int      `json:"total_attempts"`
	ElapsedMS     int64    `json:"elapsed_ms"`
	CorrelationID string   `json:"correlation_id"`
	UserMessage   string   `json:"user_message"`
}

// NewErrorContext classifies err and fills in the attempt bookkeeping.
func (c *Classifier) NewErrorContext(err error, attempt, totalAttempts int, elapsed time.Duration, correlationID string) ErrorContext {
	category := c.Classify(err)
	return ErrorContext{
		Category:      category,
		Err:           err,
		Attempt:       attempt,
		TotalAttempts: totalAttempts,
		ElapsedMS:     elapsed.Milliseconds(),
		CorrelationID: correlationID,
		UserMessage:   c.UserMessage(category, attempt),
	}
}

// ErrorMessage returns the text of the original failure, or "" when there is none.
func (ec ErrorContext) ErrorMessage() string {
	if ec.Err == nil {
		return ""
	}
	return ec.Err.Error()
}
