package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rr *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestJSON(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		data     any
		wantBody string
	}{
		{"map", http.StatusOK, map[string]string{"message": "ok"}, `{"message":"ok"}`},
		{"struct", http.StatusCreated, struct {
			ID string `json:"id"`
		}{ID: "a1"}, `{"id":"a1"}`},
		{"nil", http.StatusNoContent, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			JSON(rr, tt.code, tt.data)

			assert.Equal(t, tt.code, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantBody, strings.TrimSpace(rr.Body.String()))
		})
	}
}

func TestJSON_EncodingErrorKeepsStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, http.StatusOK, make(chan int))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSafeError(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		err      error
		wantMsg  string
		wantCode int
	}{
		{
			name:     "validation message is shown",
			code:     http.StatusBadRequest,
			err:      errors.New("letter text must be at least 50 characters, got 9"),
			wantMsg:  "letter text must be at least 50 characters, got 9",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown 4xx message is replaced by status text",
			code:     http.StatusBadRequest,
			err:      errors.New("sql: connection refused at 10.0.0.3"),
			wantMsg:  "bad request",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "5xx is always hidden",
			code:     http.StatusInternalServerError,
			err:      errors.New("invalid memory address"),
			wantMsg:  "internal server error",
			wantCode: http.StatusInternalServerError,
		},
		{
			name:     "app error wins",
			code:     http.StatusInternalServerError,
			err:      fmt.Errorf("wrapped: %w", &AppError{Code: http.StatusServiceUnavailable, UserMsg: "try later", Category: "api_timeout", Err: errors.New("deadline")}),
			wantMsg:  "try later",
			wantCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			SafeErrorWithID(rr, tt.code, tt.err, "corr-1")

			assert.Equal(t, tt.wantCode, rr.Code)
			body := decode(t, rr)
			assert.Equal(t, tt.wantMsg, body.Error)
			assert.Equal(t, "corr-1", body.CorrelationID)
		})
	}
}

func TestSafeError_NilErrorWritesNothing(t *testing.T) {
	rr := httptest.NewRecorder()
	SafeError(rr, http.StatusBadRequest, nil)
	assert.Empty(t, rr.Body.String())
}

func TestSafeError_AppErrorCategory(t *testing.T) {
	rr := httptest.NewRecorder()
	SafeError(rr, 0, NewAppError(http.StatusBadGateway, "provider failed", nil))

	body := decode(t, rr)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "provider failed", body.Error)
	assert.Empty(t, body.Category)
}

func TestAppError(t *testing.T) {
	inner := errors.New("inner")
	err := NewAppError(http.StatusTeapot, "user message", inner)

	assert.Equal(t, "inner", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "user message", NewAppError(400, "user message", nil).Error())
}
