package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"nexus-letter-analyzer/internal/domain/entity"
)

// ProviderClaude is the Name of the Claude analyzer.
const ProviderClaude = "claude"

// DefaultClaudeConfig returns the Claude defaults.
func DefaultClaudeConfig() Config {
	return Config{
		Model:         string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens:     1024,
		Timeout:       60 * time.Second,
		MaxInputChars: 20000,
	}
}

// Claude implements Analyzer using Anthropic's Messages API.
type Claude struct {
	common
	client anthropic.Client
}

// NewClaude creates a Claude analyzer. The SDK's own retries are disabled; the caller's
// retry manager owns retry policy.
func NewClaude(apiKey string, cfg Config, opts ...Option) *Claude {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}

	c := &Claude{
		common: newCommon(cfg, opts),
		client: anthropic.NewClient(reqOpts...),
	}
	c.logger.Info("Initialized Claude analyzer",
		slog.String("model", cfg.Model),
		slog.Int("max_tokens", cfg.MaxTokens),
		slog.Duration("timeout", cfg.Timeout))
	return c
}

// Name implements Analyzer.
func (c *Claude) Name() string { return ProviderClaude }

// Analyze implements Analyzer.
func (c *Claude) Analyze(ctx context.Context, letter string) (*entity.Findings, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	requestID := uuid.New().String()
	input, truncated := truncate(letter, c.config.MaxInputChars)
	if truncated {
		c.logger.WarnContext(ctx, "letter truncated for claude api",
			slog.String("request_id", requestID),
			slog.Int("max_chars", c.config.MaxInputChars))
	}

	start := time.Now()
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(input))),
		},
	})
	duration := time.Since(start)
	c.metrics.RecordDuration(ProviderClaude, duration)

	if err != nil {
		c.metrics.RecordOutcome(ProviderClaude, outcomeAPIError)
		c.logger.ErrorContext(ctx, "Claude analysis failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return nil, claudeError(err)
	}

	var reply string
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			reply += tb.Text
		}
	}

	findings, err := parseFindings(reply)
	if err != nil {
		c.metrics.RecordOutcome(ProviderClaude, outcomeParseError)
		c.logger.ErrorContext(ctx, "Claude returned unusable findings",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return nil, err
	}

	c.metrics.RecordOutcome(ProviderClaude, outcomeSuccess)
	c.logger.InfoContext(ctx, "Claude analysis completed",
		slog.String("request_id", requestID),
		slog.String("nexus_strength", string(findings.NexusStrength)),
		slog.Duration("duration", duration))
	return findings, nil
}

func claudeError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &APIError{Provider: ProviderClaude, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &APIError{Provider: ProviderClaude, Err: fmt.Errorf("request: %w", err)}
}
