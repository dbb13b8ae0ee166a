package llm

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-letter-analyzer/internal/domain/entity"
	"nexus-letter-analyzer/internal/resilience/errclass"
)

func openAIServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req map[string]any
		require.NoError(t, json.Unmarshal(raw, &req))
		assert.Equal(t, map[string]any{"type": "json_object"}, req["response_format"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func chatCompletion(t *testing.T, content string) string {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 100, "completion_tokens": 50, "total_tokens": 150},
	})
	require.NoError(t, err)
	return string(raw)
}

func newTestOpenAI(url string, m MetricsRecorder) *OpenAI {
	cfg := DefaultOpenAIConfig()
	cfg.BaseURL = url
	cfg.Timeout = 5 * time.Second
	return NewOpenAI("test-key", cfg, WithLogger(quiet), WithMetrics(m))
}

func TestOpenAI_Analyze(t *testing.T) {
	srv := openAIServer(t, http.StatusOK, chatCompletion(t, sampleReply))
	metrics := &fakeMetrics{}

	got, err := newTestOpenAI(srv.URL, metrics).Analyze(t.Context(), "letter text")

	require.NoError(t, err)
	assert.Equal(t, entity.NexusStrong, got.NexusStrength)
	assert.Equal(t, "artillery noise exposure", got.ServiceEvent)
	assert.Equal(t, []string{"openai:success"}, metrics.outcomes)
}

func TestOpenAI_Analyze_APIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   errclass.Category
	}{
		{
			name:   "invalid key",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
			want:   errclass.APIAuthentication,
		},
		{
			name:   "rate limit",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"Rate limit reached","type":"rate_limit_error"}}`,
			want:   errclass.APIRateLimit,
		},
		{
			name:   "service unavailable",
			status: http.StatusServiceUnavailable,
			body:   `{"error":{"message":"Service temporarily unavailable","type":"server_error"}}`,
			want:   errclass.APIServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := openAIServer(t, tt.status, tt.body)

			_, err := newTestOpenAI(srv.URL, &fakeMetrics{}).Analyze(t.Context(), "letter text")

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.HTTPStatus())
			assert.Equal(t, tt.want, errclass.NewClassifier().Classify(err))
		})
	}
}

func TestOpenAI_Analyze_EmptyChoices(t *testing.T) {
	srv := openAIServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","choices":[]}`)
	metrics := &fakeMetrics{}

	_, err := newTestOpenAI(srv.URL, metrics).Analyze(t.Context(), "letter text")

	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, []string{"openai:parse_error"}, metrics.outcomes)
}
