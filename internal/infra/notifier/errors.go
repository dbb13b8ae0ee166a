package notifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultRetryAfter = time.Second
	maxRetryAfter     = time.Minute
)

// RateLimitError is a 429 response.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded (retry after %v)", e.Provider, e.RetryAfter)
}

// ClientError is a non-429 4xx response. It is not retried.
type ClientError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s webhook client error %d: %s", e.Provider, e.StatusCode, e.Body)
}

// ServerError is a 5xx response.
type ServerError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s webhook server error %d: %s", e.Provider, e.StatusCode, e.Body)
}

// isRetryable reports whether err is worth another attempt: server and network errors
// are, client errors are not.
func isRetryable(err error) bool {
	var clientErr *ClientError
	return !errors.As(err, &clientErr)
}

// retryAfter reads the wait from the Retry-After header, falling back to a JSON
// retry_after field in seconds. The result is clamped to [0, maxRetryAfter].
func retryAfter(resp *http.Response, body []byte) time.Duration {
	d := defaultRetryAfter
	if h := resp.Header.Get("Retry-After"); h != "" {
		if secs, err := strconv.ParseFloat(h, 64); err == nil {
			d = time.Duration(secs * float64(time.Second))
		}
	} else {
		var payload struct {
			RetryAfter float64 `json:"retry_after"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.RetryAfter > 0 {
			d = time.Duration(payload.RetryAfter * float64(time.Second))
		}
	}
	return min(max(d, 0), maxRetryAfter)
}
