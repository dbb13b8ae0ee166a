package requestid

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-letter-analyzer/internal/resilience/retry"
)

// serve runs one request through Middleware and returns the ID the handler observed.
func serve(t *testing.T, header string) (string, *httptest.ResponseRecorder) {
	t.Helper()
	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", nil)
	if header != "" {
		req.Header.Set(RequestIDHeader, header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return seen, rec
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"correlation ID set", WithRequestID(context.Background(), "corr-7f3a"), "corr-7f3a"},
		{"derived context keeps the ID", context.WithoutCancel(WithRequestID(context.Background(), "corr-bg")), "corr-bg"},
		{"no ID", context.Background(), ""},
		{"foreign value under the key", context.WithValue(context.Background(), RequestIDKey, 42), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromContext(tt.ctx))
		})
	}
}

func TestNew(t *testing.T) {
	id := New()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
	assert.NotEqual(t, id, New())
}

func TestMiddleware_CorrelationID(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantKeep bool
	}{
		{name: "client ID kept", header: "corr-42", wantKeep: true},
		{name: "uuid kept", header: "550e8400-e29b-41d4-a716-446655440000", wantKeep: true},
		{name: "dotted and colon ID kept", header: "batch.2024:letter-3", wantKeep: true},
		{name: "missing header", header: ""},
		{name: "newline injection", header: "abc\ninjected=1"},
		{name: "too long", header: strings.Repeat("a", 101)},
		{name: "spaces", header: "has spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, rec := serve(t, tt.header)

			assert.Equal(t, http.StatusAccepted, rec.Code)
			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader), "response echoes the ID the handler saw")
			if tt.wantKeep {
				assert.Equal(t, tt.header, seen)
				return
			}
			_, err := uuid.Parse(seen)
			assert.NoError(t, err, "missing or malformed IDs are replaced with a UUID")
		})
	}
}

func TestMiddleware_GeneratedIDsAreUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for range 10 {
		id, _ := serve(t, "")
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 10)
}

func TestMiddleware_IDReachesRetryLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	noSleep := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	rm := retry.NewManager(retry.DefaultConfig(), retry.WithLogger(logger), retry.WithSleep(noSleep))

	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls := 0
		err := rm.Execute(r.Context(), FromContext(r.Context()), func(context.Context) error {
			calls++
			if calls == 1 {
				return errors.New("503 Service Unavailable")
			}
			return nil
		})
		if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", nil)
	req.Header.Set(RequestIDHeader, "corr-retry-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []string
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		assert.Equal(t, "corr-retry-1", entry["correlation_id"], "log %q", entry["msg"])
		msgs = append(msgs, entry["msg"].(string))
	}
	assert.Equal(t, []string{"operation failed, retrying", "operation succeeded after retry"}, msgs)
}
