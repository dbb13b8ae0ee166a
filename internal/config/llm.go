package config

import (
	"fmt"
	"time"

	envconfig "nexus-letter-analyzer/pkg/config"
)

// LLM provider names accepted by LLM_PROVIDER.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderNoop   = "noop"
)

// LLMConfig selects and configures the analysis provider.
type LLMConfig struct {
	Provider        string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	// Model overrides the provider default when set.
	Model         string
	Timeout       time.Duration
	MaxTokens     int
	MaxInputChars int
	// BaseURL points the provider client at a proxy or test server.
	BaseURL string
}

// LoadLLMConfig reads LLM_PROVIDER, ANTHROPIC_API_KEY, OPENAI_API_KEY, LLM_MODEL,
// LLM_TIMEOUT, LLM_MAX_TOKENS, LLM_MAX_INPUT_CHARS and LLM_BASE_URL.
func LoadLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:        envconfig.GetEnvString("LLM_PROVIDER", ProviderClaude),
		AnthropicAPIKey: envconfig.GetEnvString("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    envconfig.GetEnvString("OPENAI_API_KEY", ""),
		Model:           envconfig.GetEnvString("LLM_MODEL", ""),
		Timeout:         envconfig.GetEnvDuration("LLM_TIMEOUT", 60*time.Second),
		MaxTokens:       envconfig.GetEnvInt("LLM_MAX_TOKENS", 1024),
		MaxInputChars:   envconfig.GetEnvInt("LLM_MAX_INPUT_CHARS", 20000),
		BaseURL:         envconfig.GetEnvString("LLM_BASE_URL", ""),
	}
}

// APIKey returns the key of the selected provider.
func (c LLMConfig) APIKey() string {
	switch c.Provider {
	case ProviderClaude:
		return c.AnthropicAPIKey
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	default:
		return ""
	}
}

// Validate checks the provider selection. A missing API key is not an error: the
// application starts with the noop analyzer and reports a configuration error per request.
func (c LLMConfig) Validate() error {
	switch c.Provider {
	case ProviderClaude, ProviderOpenAI, ProviderNoop:
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of claude, openai, noop; got %q", c.Provider)
	}
	if err := envconfig.ValidateDurationRange(c.Timeout, time.Second, 10*time.Minute); err != nil {
		return fmt.Errorf("LLM_TIMEOUT: %w", err)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive, got %d", c.MaxTokens)
	}
	if c.MaxInputChars < 1000 {
		return fmt.Errorf("LLM_MAX_INPUT_CHARS must be at least 1000, got %d", c.MaxInputChars)
	}
	return nil
}
