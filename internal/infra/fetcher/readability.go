package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-shiori/go-readability"

	"nexus-letter-analyzer/internal/resilience/circuitbreaker"
)

// StatusError is a non-200 response from the letter's host.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string { return fmt.Sprintf("HTTP %d: %s", e.Code, e.Status) }

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.Code }

// ReadabilityFetcher fetches a web page and extracts the letter text with the Mozilla
// Readability algorithm, falling back to whole-document extraction.
//
// Thread safety: ReadabilityFetcher is safe for concurrent use.
type ReadabilityFetcher struct {
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	config  Config
	logger  *slog.Logger
}

// NewReadabilityFetcher creates a fetcher. When breaker is non-nil every request runs
// through it.
func NewReadabilityFetcher(config Config, breaker *circuitbreaker.CircuitBreaker, logger *slog.Logger) *ReadabilityFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &ReadabilityFetcher{
		breaker: breaker,
		config:  config,
		logger:  logger,
	}

	f.client = &http.Client{
		Timeout: config.Timeout + 5*time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= f.config.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
			}
			if err := validateURL(req.URL.String(), f.config.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}
			return nil
		},
	}
	return f
}

// ExtractText returns the visible text of an HTML document supplied directly by a caller.
func (f *ReadabilityFetcher) ExtractText(html string) (string, error) {
	if int64(len(html)) > f.config.MaxBodySize {
		return "", fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, len(html))
	}
	return ExtractText(html)
}

// FetchText fetches urlStr and returns the extracted letter text.
func (f *ReadabilityFetcher) FetchText(ctx context.Context, urlStr string) (string, error) {
	if err := validateURL(urlStr, f.config.DenyPrivateIPs); err != nil {
		return "", err
	}

	if f.breaker == nil {
		return f.doFetch(ctx, urlStr)
	}
	return circuitbreaker.Execute(f.breaker, func() (string, error) {
		return f.doFetch(ctx, urlStr)
	})
}

func (f *ReadabilityFetcher) doFetch(ctx context.Context, urlStr string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w: request exceeded %v", ErrTimeout, f.config.Timeout)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && (errors.Is(urlErr.Err, ErrTooManyRedirects) || errors.Is(urlErr.Err, ErrPrivateIP) || errors.Is(urlErr.Err, ErrInvalidURL)) {
			return "", urlErr.Err
		}
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	htmlBytes, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(htmlBytes)) > f.config.MaxBodySize {
		return "", fmt.Errorf("%w: response exceeds limit %d bytes", ErrBodyTooLarge, f.config.MaxBodySize)
	}

	pageURL := resp.Request.URL
	article, err := readability.FromReader(bytes.NewReader(htmlBytes), pageURL)
	if err == nil && len([]rune(article.TextContent)) >= 200 {
		if text := normalizeWhitespace(article.TextContent); text != "" {
			return text, nil
		}
	}

	// Short letters often fail readability's content heuristics; take the whole page.
	f.logger.Debug("readability extraction insufficient, using full document",
		slog.String("url", urlStr),
		slog.Any("readability_error", err))
	return ExtractText(string(htmlBytes))
}
