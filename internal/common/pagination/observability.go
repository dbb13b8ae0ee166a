package pagination

import (
	"log/slog"
	"time"
)

// LogResponse logs a served page.
func LogResponse(logger *slog.Logger, requestID string, params Params, returned int, duration time.Duration, status int) {
	logger.Info("paginated response",
		slog.String("request_id", requestID),
		slog.Int("page", params.Page),
		slog.Int("limit", params.Limit),
		slog.Int("returned_count", returned),
		slog.Int64("duration_ms", duration.Milliseconds()),
		slog.Int("status", status))
}

// LogError logs a failed list request.
func LogError(logger *slog.Logger, requestID string, params Params, err error, errorType string) {
	logger.Error("pagination error",
		slog.String("request_id", requestID),
		slog.Int("page", params.Page),
		slog.Int("limit", params.Limit),
		slog.String("error_type", errorType),
		slog.Any("error", err))
}
