package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// webhook posts JSON payloads to one URL with rate limiting and retries.
type webhook struct {
	provider    string
	url         string
	client      *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

func newWebhook(provider, url string, timeout time.Duration, limit rate.Limit, burst int, logger *slog.Logger) *webhook {
	if logger == nil {
		logger = slog.Default()
	}
	return &webhook{
		provider:    provider,
		url:         url,
		client:      &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(limit, burst),
		maxAttempts: 2,
		baseDelay:   5 * time.Second,
		logger:      logger,
	}
}

// post sends payload, waiting for the rate limiter first.
func (w *webhook) post(ctx context.Context, payload any) error {
	requestID := uuid.New().String()
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limiter: %w", w.provider, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", w.provider, err)
	}

	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		lastErr = w.send(ctx, body)
		if lastErr == nil {
			w.logger.Info("alert delivered",
				slog.String("provider", w.provider),
				slog.String("request_id", requestID),
				slog.Int("attempt", attempt))
			return nil
		}

		if !isRetryable(lastErr) {
			w.logger.Error("alert rejected",
				slog.String("provider", w.provider),
				slog.String("request_id", requestID),
				slog.Any("error", lastErr))
			return lastErr
		}
		if attempt == w.maxAttempts {
			break
		}

		delay := w.baseDelay * time.Duration(attempt)
		var rlErr *RateLimitError
		if errors.As(lastErr, &rlErr) {
			delay = rlErr.RetryAfter
		}
		w.logger.Warn("alert delivery failed, retrying",
			slog.String("provider", w.provider),
			slog.String("request_id", requestID),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s alert cancelled during backoff: %w", w.provider, ctx.Err())
		}
	}

	w.logger.Error("alert delivery failed",
		slog.String("provider", w.provider),
		slog.String("request_id", requestID),
		slog.Int("max_attempts", w.maxAttempts),
		slog.Any("error", lastErr))
	return fmt.Errorf("%s alert failed after %d attempts: %w", w.provider, w.maxAttempts, lastErr)
}

func (w *webhook) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", w.provider, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", w.provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{Provider: w.provider, RetryAfter: retryAfter(resp, respBody)}
	case resp.StatusCode >= 500:
		return &ServerError{Provider: w.provider, StatusCode: resp.StatusCode, Body: string(respBody)}
	default:
		return &ClientError{Provider: w.provider, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
}
