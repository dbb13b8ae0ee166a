package errclass

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"

	"nexus-letter-analyzer/internal/resilience/circuitbreaker"
)

// HTTPStatusError is implemented by errors that carry an upstream HTTP status code.
type HTTPStatusError interface {
	HTTPStatus() int
}

// Classifier maps failures onto categories. It is stateless and safe for concurrent use.
type Classifier struct{}

// NewClassifier returns a Classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

var retryable = RetryableSet()

// IsRetryable reports whether failures of category c are transient.
// Only timeouts, rate limits, server errors, network errors and database errors are retried.
func (*Classifier) IsRetryable(c Category) bool {
	return retryable.Has(c)
}

// Classify returns the category of err. It never panics; nil and unmatched errors map to
// UnknownError.
func (c *Classifier) Classify(err error) (category Category) {
	if err == nil {
		return UnknownError
	}
	defer func() {
		// A broken Error() implementation must not take the caller down.
		if r := recover(); r != nil {
			category = UnknownError
		}
	}()

	if cat, ok := classifyTyped(err); ok {
		return cat
	}
	return classifyMessage(err.Error())
}

// classifyTyped inspects well-known error types before falling back to message matching.
// A rejection by an open circuit is not an upstream failure and is never retried.
func classifyTyped(err error) (Category, bool) {
	if circuitbreaker.IsOpenError(err) {
		return UnknownError, true
	}

	var statusErr HTTPStatusError
	if errors.As(err, &statusErr) {
		if cat, ok := classifyStatus(statusErr.HTTPStatus()); ok {
			return cat, true
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return APITimeout, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return APITimeout, true
		}
		return APINetworkError, true
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ParsingError, true
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return DatabaseError, true
	}

	return "", false
}

func classifyStatus(code int) (Category, bool) {
	switch {
	case code == 408:
		return APITimeout, true
	case code == 429:
		return APIRateLimit, true
	case code == 401 || code == 403:
		return APIAuthentication, true
	case code == 504:
		return APITimeout, true
	case code >= 500 && code <= 599:
		return APIServerError, true
	case code == 400 || code == 422:
		return ValidationError, true
	}
	return "", false
}

type rule struct {
	category Category
	keywords []string
	pattern  *regexp.Regexp
}

func (r rule) match(msg string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return r.pattern != nil && r.pattern.MatchString(msg)
}

// rules are checked in order; the first match wins.
var rules = []rule{
	{category: APITimeout, keywords: []string{"timeout", "timed out", "deadline exceeded"}},
	{category: APIRateLimit, keywords: []string{"rate limit", "ratelimit", "too many requests", "quota exceeded"}, pattern: regexp.MustCompile(`\b429\b`)},
	{category: APIAuthentication, keywords: []string{"authentication", "unauthorized", "invalid api key", "invalid x-api-key", "permission denied", "forbidden"}, pattern: regexp.MustCompile(`\b40[13]\b`)},
	{category: APIServerError, keywords: []string{"internal server error", "bad gateway", "service unavailable", "overloaded"}, pattern: regexp.MustCompile(`\b50[0-4]\b`)},
	{category: APINetworkError, keywords: []string{"connection", "network", "dns", "no such host", "broken pipe"}},
	{category: ParsingError, keywords: []string{"json", "parsing", "parse", "unmarshal", "malformed"}},
	{category: ValidationError, keywords: []string{"validation", "invalid input", "invalid request"}},
	{category: DatabaseError, keywords: []string{"database", "sqlite", "postgres", "sql:", "deadlock"}},
	{category: ConfigurationError, keywords: []string{"config", "environment", "env var", "not configured"}},
}

func classifyMessage(msg string) Category {
	lower := strings.ToLower(msg)
	for _, r := range rules {
		if r.match(lower) {
			return r.category
		}
	}
	return UnknownError
}

// UserMessage returns the human-readable message for category c after the given attempt.
// The result depends only on its arguments.
func (*Classifier) UserMessage(c Category, attempt int) string {
	if attempt < 1 {
		attempt = 1
	}
	attempts := "1 attempt"
	if attempt > 1 {
		attempts = fmt.Sprintf("%d attempts", attempt)
	}

	switch c {
	case APITimeout:
		if attempt == 1 {
			return "The analysis service is taking longer than expected. Please try again shortly."
		}
		return fmt.Sprintf("The analysis service did not respond in time after %s. Please try again in a few minutes.", attempts)
	case APIRateLimit:
		if attempt == 1 {
			return "The analysis service is receiving too many requests. Please wait a moment and try again."
		}
		return fmt.Sprintf("The analysis service is still rate limiting requests after %s. Please wait a few minutes before trying again.", attempts)
	case APIAuthentication:
		return "The analysis service rejected our credentials. Please contact your administrator."
	case APIServerError:
		if attempt == 1 {
			return "The analysis service reported an internal error. Please try again."
		}
		return fmt.Sprintf("The analysis service is experiencing problems and failed %s. Please try again later.", attempts)
	case APINetworkError:
		if attempt == 1 {
			return "We could not reach the analysis service. Please check your connection and try again."
		}
		return fmt.Sprintf("We could not reach the analysis service after %s. Please try again later.", attempts)
	case ParsingError:
		return "The analysis service returned a response we could not read. Please try again or submit a shorter letter."
	case ValidationError:
		return "The submitted letter could not be processed. Please check the text and try again."
	case DatabaseError:
		if attempt == 1 {
			return "We could not save the analysis. Please try again."
		}
		return fmt.Sprintf("We could not save the analysis after %s. Please try again later.", attempts)
	case ConfigurationError:
		return "The analysis service is not configured correctly. Please contact your administrator."
	default:
		return "An unexpected error occurred while analyzing the letter. Please try again."
	}
}

// CircuitOpenMessage is shown when the circuit breaker rejects a call without attempting it.
func (*Classifier) CircuitOpenMessage() string {
	return "The analysis service is temporarily unavailable after repeated failures. Please try again in a few minutes."
}
