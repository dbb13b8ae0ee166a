// Package respond writes JSON responses and error bodies that never leak internal detail.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	// Category is the error classification when the failure came from a guarded call.
	Category      string `json:"category,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// JSON writes v with status code. A nil v writes headers only.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode JSON response",
			slog.Int("status_code", code),
			slog.Any("error", err))
	}
}

// AppError carries a message that is safe to show alongside the internal error.
type AppError struct {
	Code     int
	UserMsg  string
	Category string
	Err      error
}

// NewAppError returns an AppError.
func NewAppError(code int, userMsg string, err error) *AppError {
	return &AppError{Code: code, UserMsg: userMsg, Err: err}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.UserMsg
}

// Unwrap returns the internal error.
func (e *AppError) Unwrap() error { return e.Err }

// safeFragments mark validation messages that may be shown as they are.
var safeFragments = []string{
	"required",
	"invalid",
	"not found",
	"must be",
	"must not",
	"cannot be",
	"at least",
	"too long",
	"too short",
}

// SafeError writes err as an ErrorBody.
//
// An *AppError anywhere in the chain supplies its own code, message and category. Otherwise
// 4xx messages that read like validation failures are shown, and everything else becomes
// "internal server error". Hidden errors are logged after sanitisation.
func SafeError(w http.ResponseWriter, code int, err error) {
	SafeErrorWithID(w, code, err, "")
}

// SafeErrorWithID is SafeError with the request's correlation ID in the body.
func SafeErrorWithID(w http.ResponseWriter, code int, err error, correlationID string) {
	if err == nil {
		return
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Err != nil {
			slog.Default().Error("application error",
				slog.Int("code", appErr.Code),
				slog.String("correlation_id", correlationID),
				slog.String("user_message", appErr.UserMsg),
				slog.String("error", SanitizeError(appErr.Err)))
		}
		JSON(w, appErr.Code, ErrorBody{Error: appErr.UserMsg, Category: appErr.Category, CorrelationID: correlationID})
		return
	}

	if code < 500 && isSafe(err.Error()) {
		JSON(w, code, ErrorBody{Error: SanitizeError(err), CorrelationID: correlationID})
		return
	}

	slog.Default().Error("internal server error",
		slog.Int("code", code),
		slog.String("correlation_id", correlationID),
		slog.String("error", SanitizeError(err)))
	msg := "internal server error"
	if code < 500 {
		msg = strings.ToLower(http.StatusText(code))
	}
	JSON(w, code, ErrorBody{Error: msg, CorrelationID: correlationID})
}

func isSafe(msg string) bool {
	lower := strings.ToLower(msg)
	for _, f := range safeFragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}
