// Package llm provides the LLM-backed letter analyzers.
// It includes adapters for Claude (Anthropic) and OpenAI. Each adapter performs exactly one
// upstream call per Analyze; retries and circuit breaking are applied by the caller.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"nexus-letter-analyzer/internal/domain/entity"
)

// Analyzer reads a redacted nexus letter and returns the structured findings.
type Analyzer interface {
	Analyze(ctx context.Context, letter string) (*entity.Findings, error)
	// Name identifies the provider, e.g. "claude".
	Name() string
}

// Config holds the per-provider call settings.
type Config struct {
	// Model is the provider model identifier.
	Model string

	// MaxTokens caps the reply length.
	MaxTokens int

	// Timeout bounds a single upstream call.
	Timeout time.Duration

	// MaxInputChars truncates the letter before it is sent. Zero disables truncation.
	MaxInputChars int

	// BaseURL overrides the provider endpoint. Empty uses the SDK default.
	BaseURL string
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxInputChars < 0 {
		return fmt.Errorf("max input chars must not be negative, got %d", c.MaxInputChars)
	}
	return nil
}

// ErrMalformedResponse is returned when the reply holds no usable findings object.
var ErrMalformedResponse = errors.New("malformed llm response")

// APIError is an upstream failure with the HTTP status the provider returned.
// The status lets the error classifier tell rate limits from outages.
type APIError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s api error: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s api error (status %d): %v", e.Provider, e.StatusCode, e.Err)
}

// Unwrap returns the SDK error.
func (e *APIError) Unwrap() error { return e.Err }

// HTTPStatus returns the upstream status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

const systemPrompt = `You review nexus letters: medical opinions linking a veteran's condition to military service.
Reply with a single JSON object and nothing else, using exactly these keys:
{
  "nexus_strength": "strong" | "moderate" | "weak" | "none" | "insufficient_information",
  "primary_condition": string,
  "service_event": string,
  "opinion_language": string,
  "rationale_summary": string,
  "key_findings": [string],
  "weaknesses": [string]
}
Quote the exact probability phrase in opinion_language, or use an empty string when the letter has none.
Identifiers in the letter have been replaced with [REDACTED_*] tokens; do not comment on them.`

func buildPrompt(letter string) string {
	return "Analyze the following nexus letter.\n\n<letter>\n" + letter + "\n</letter>"
}

// truncate shortens letter to at most max runes.
func truncate(letter string, max int) (string, bool) {
	if max <= 0 {
		return letter, false
	}
	runes := []rune(letter)
	if len(runes) <= max {
		return letter, false
	}
	return string(runes[:max]) + "\n[truncated]", true
}

// parseFindings extracts the findings object from a model reply. Replies wrapped in prose
// or markdown fences are accepted as long as they contain one JSON object.
func parseFindings(reply string) (*entity.Findings, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrMalformedResponse)
	}

	var f entity.Findings
	if err := json.Unmarshal([]byte(reply[start:end+1]), &f); err != nil {
		return nil, fmt.Errorf("parse findings: %w", err)
	}
	if f.NexusStrength == "" {
		f.NexusStrength = entity.NexusInsufficientInformation
	}
	if !f.NexusStrength.Valid() {
		return nil, fmt.Errorf("%w: unknown nexus_strength %q", ErrMalformedResponse, f.NexusStrength)
	}
	return &f, nil
}
