package errclass

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-letter-analyzer/internal/resilience/circuitbreaker"
)

type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("upstream returned status %d", e.code) }
func (e statusErr) HTTPStatus() int { return e.code }

type panicErr struct{}

func (panicErr) Error() string { panic("boom") }

func TestClassify_Representatives(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		msg  string
		want Category
	}{
		{"Request timeout", APITimeout},
		{"Rate limit exceeded (429)", APIRateLimit},
		{"Invalid API key authentication failed", APIAuthentication},
		{"HTTP 503 from upstream", APIServerError},
		{"connection refused", APINetworkError},
		{"failed to decode JSON response", ParsingError},
		{"validation failed: letter too short", ValidationError},
		{"sqlite: database is locked", DatabaseError},
		{"ANTHROPIC_API_KEY missing from environment", ConfigurationError},
		{"something odd happened", UnknownError},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(errors.New(tt.msg)))
		})
	}
}

func TestClassify_LabeledAccuracy(t *testing.T) {
	c := NewClassifier()

	labeled := []struct {
		msg  string
		want Category
	}{
		{"Request timeout", APITimeout},
		{"read tcp 10.0.0.1:443: i/o timeout", APITimeout},
		{"operation timed out after 60s", APITimeout},
		{"Rate limit exceeded (429)", APIRateLimit},
		{"429 Too Many Requests", APIRateLimit},
		{"monthly quota exceeded", APIRateLimit},
		{"Invalid API key authentication failed", APIAuthentication},
		{"401 Unauthorized", APIAuthentication},
		{"403 Forbidden", APIAuthentication},
		{"500 Internal Server Error", APIServerError},
		{"502 Bad Gateway", APIServerError},
		{"upstream is overloaded", APIServerError},
		{"dial tcp: lookup api.anthropic.com: no such host", APINetworkError},
		{"network is unreachable", APINetworkError},
		{"connection reset by peer", APINetworkError},
		{"invalid character '}' looking for beginning of JSON", ParsingError},
		{"failed parsing findings", ParsingError},
		{"cannot unmarshal response", ParsingError},
		{"validation error: text is empty", ValidationError},
		{"invalid input: letter exceeds maximum length", ValidationError},
		{"sqlite3: database is locked", DatabaseError},
		{"postgres: deadlock detected", DatabaseError},
		{"missing config value LLM_PROVIDER", ConfigurationError},
		{"environment variable not set", ConfigurationError},
		{"unexpected nil pointer", UnknownError},
	}

	correct := 0
	for _, l := range labeled {
		got := c.Classify(errors.New(l.msg))
		if got == l.want {
			correct++
		} else {
			t.Logf("misclassified %q as %s (want %s)", l.msg, got, l.want)
		}
	}

	accuracy := float64(correct) / float64(len(labeled))
	assert.GreaterOrEqual(t, accuracy, 0.9)
}

func TestClassify_Typed(t *testing.T) {
	c := NewClassifier()

	var syntaxErr *json.SyntaxError
	err := json.Unmarshal([]byte("{oops"), &struct{}{})
	require.ErrorAs(t, err, &syntaxErr)

	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, UnknownError},
		{"deadline", context.DeadlineExceeded, APITimeout},
		{"wrapped deadline", fmt.Errorf("claude api error: %w", context.DeadlineExceeded), APITimeout},
		{"net op error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, APINetworkError},
		{"json syntax", fmt.Errorf("decode: %w", err), ParsingError},
		{"sql conn done", sql.ErrConnDone, DatabaseError},
		{"status 429", statusErr{429}, APIRateLimit},
		{"status 401", statusErr{401}, APIAuthentication},
		{"status 502", statusErr{502}, APIServerError},
		{"status 504", statusErr{504}, APITimeout},
		{"status 400", statusErr{400}, ValidationError},
		{"panicking Error()", panicErr{}, UnknownError},
		{"open circuit", &circuitbreaker.OpenError{Name: "llm", RetryAfter: time.Second}, UnknownError},
		{"wrapped open circuit", fmt.Errorf("analyze: %w", &circuitbreaker.OpenError{Name: "llm", HalfOpen: true}), UnknownError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.err)
			assert.Equal(t, tt.want, got)
			if circuitbreaker.IsOpenError(tt.err) {
				assert.False(t, c.IsRetryable(got), "an open circuit must never be retried")
			}
		})
	}
}

func TestClassify_StatusCodesNeedWordBoundary(t *testing.T) {
	c := NewClassifier()

	// "5000" must not be read as a 500 status.
	assert.Equal(t, UnknownError, c.Classify(errors.New("letter exceeds 5000 tokens")))
}

func TestIsRetryable(t *testing.T) {
	c := NewClassifier()

	want := map[Category]bool{
		APITimeout:         true,
		APIRateLimit:       true,
		APIAuthentication:  false,
		APIServerError:     true,
		APINetworkError:    true,
		ParsingError:       false,
		ValidationError:    false,
		DatabaseError:      true,
		ConfigurationError: false,
		UnknownError:       false,
	}

	for _, cat := range All() {
		assert.Equal(t, want[cat], c.IsRetryable(cat), "category %s", cat)
	}
}

func TestUserMessage(t *testing.T) {
	c := NewClassifier()

	for _, cat := range All() {
		msg := c.UserMessage(cat, 1)
		assert.NotEmpty(t, msg, "category %s", cat)
		assert.Equal(t, msg, c.UserMessage(cat, 1), "message must be deterministic")
	}

	assert.Contains(t, c.UserMessage(APITimeout, 3), "3 attempts")
	assert.NotEqual(t, c.UserMessage(APIServerError, 1), c.UserMessage(APIServerError, 2))
	assert.Equal(t, c.UserMessage(APITimeout, 1), c.UserMessage(APITimeout, 0))
}

func TestNewErrorContext(t *testing.T) {
	c := NewClassifier()
	cause := errors.New("Rate limit exceeded (429)")

	ec := c.NewErrorContext(cause, 2, 3, 1500*time.Millisecond, "corr-1")

	assert.Equal(t, APIRateLimit, ec.Category)
	assert.Equal(t, 2, ec.Attempt)
	assert.Equal(t, 3, ec.TotalAttempts)
	assert.Equal(t, int64(1500), ec.ElapsedMS)
	assert.Equal(t, "corr-1", ec.CorrelationID)
	assert.Equal(t, c.UserMessage(APIRateLimit, 2), ec.UserMessage)
	assert.Equal(t, cause.Error(), ec.ErrorMessage())
}

func TestSet(t *testing.T) {
	s := NewSet(APITimeout, APIRateLimit, APITimeout)

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has(APITimeout))
	assert.False(t, s.Has(UnknownError))
	assert.Equal(t, []Category{APIRateLimit, APITimeout}, s.Slice())

	var zero Set
	assert.False(t, zero.Has(APITimeout))
	assert.True(t, zero.IsZero())
	assert.True(t, zero.IsEmpty())

	empty := NewSet()
	assert.False(t, empty.IsZero())
	assert.True(t, empty.IsEmpty())
	assert.False(t, s.IsEmpty())
	assert.True(t, Category("api_timeout").Valid())
	assert.False(t, Category("nope").Valid())
}
