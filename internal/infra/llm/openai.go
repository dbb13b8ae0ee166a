package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"nexus-letter-analyzer/internal/domain/entity"
)

// ProviderOpenAI is the Name of the OpenAI analyzer.
const ProviderOpenAI = "openai"

// DefaultOpenAIConfig returns the OpenAI defaults.
func DefaultOpenAIConfig() Config {
	return Config{
		Model:         openai.GPT4oMini,
		MaxTokens:     1024,
		Timeout:       60 * time.Second,
		MaxInputChars: 10000,
	}
}

// OpenAI implements Analyzer using the Chat Completions API in JSON mode.
type OpenAI struct {
	common
	client *openai.Client
}

// NewOpenAI creates an OpenAI analyzer.
func NewOpenAI(apiKey string, cfg Config, opts ...Option) *OpenAI {
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	o := &OpenAI{
		common: newCommon(cfg, opts),
		client: openai.NewClientWithConfig(clientCfg),
	}
	o.logger.Info("Initialized OpenAI analyzer",
		slog.String("model", cfg.Model),
		slog.Int("max_tokens", cfg.MaxTokens),
		slog.Duration("timeout", cfg.Timeout))
	return o
}

// Name implements Analyzer.
func (o *OpenAI) Name() string { return ProviderOpenAI }

// Analyze implements Analyzer.
func (o *OpenAI) Analyze(ctx context.Context, letter string) (*entity.Findings, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	requestID := uuid.New().String()
	input, truncated := truncate(letter, o.config.MaxInputChars)
	if truncated {
		o.logger.WarnContext(ctx, "letter truncated for openai api",
			slog.String("request_id", requestID),
			slog.Int("max_chars", o.config.MaxInputChars))
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.config.Model,
		MaxTokens: o.config.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(input)},
		},
	})
	duration := time.Since(start)
	o.metrics.RecordDuration(ProviderOpenAI, duration)

	if err != nil {
		o.metrics.RecordOutcome(ProviderOpenAI, outcomeAPIError)
		o.logger.ErrorContext(ctx, "OpenAI analysis failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return nil, openAIError(err)
	}

	if len(resp.Choices) == 0 {
		o.metrics.RecordOutcome(ProviderOpenAI, outcomeParseError)
		return nil, fmt.Errorf("%w: openai returned no choices", ErrMalformedResponse)
	}

	findings, err := parseFindings(resp.Choices[0].Message.Content)
	if err != nil {
		o.metrics.RecordOutcome(ProviderOpenAI, outcomeParseError)
		o.logger.ErrorContext(ctx, "OpenAI returned unusable findings",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return nil, err
	}

	o.metrics.RecordOutcome(ProviderOpenAI, outcomeSuccess)
	o.logger.InfoContext(ctx, "OpenAI analysis completed",
		slog.String("request_id", requestID),
		slog.String("nexus_strength", string(findings.NexusStrength)),
		slog.Int("total_tokens", resp.Usage.TotalTokens),
		slog.Duration("duration", duration))
	return findings, nil
}

func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{Provider: ProviderOpenAI, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{Provider: ProviderOpenAI, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &APIError{Provider: ProviderOpenAI, Err: fmt.Errorf("request: %w", err)}
}
