package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"nexus-letter-analyzer/internal/resilience/circuitbreaker"
	"nexus-letter-analyzer/internal/resilience/errclass"
	"nexus-letter-analyzer/internal/resilience/retry"
	envconfig "nexus-letter-analyzer/pkg/config"
)

// Breaker names used across the application.
const (
	BreakerLLM     = "llm"
	BreakerFetcher = "fetcher"
)

// ResilienceConfig is the retry, circuit breaker and fallback policy.
type ResilienceConfig struct {
	// Retry applies to LLM calls.
	Retry retry.Config
	// Store applies to repository writes.
	Store retry.Config
	// Breakers holds one config per named breaker. Unnamed breakers use Breakers[BreakerLLM].
	Breakers        map[string]circuitbreaker.Config
	FallbackEnabled bool
}

// policyFile is the YAML layout of RESILIENCE_CONFIG_FILE:
//
//	retry:
//	  max_attempts: 4
//	  base_delay: 2s
//	  retryable_categories: [api_timeout, api_rate_limit]
//	circuit_breakers:
//	  llm:
//	    failure_threshold: 3
//	    timeout: 30s
//	fallback:
//	  enabled: true
type policyFile struct {
	Retry struct {
		MaxAttempts         int           `yaml:"max_attempts"`
		BaseDelay           time.Duration `yaml:"base_delay"`
		MaxDelay            time.Duration `yaml:"max_delay"`
		Multiplier          float64       `yaml:"multiplier"`
		Jitter              *bool         `yaml:"jitter"`
		RetryableCategories []string      `yaml:"retryable_categories"`
	} `yaml:"retry"`
	CircuitBreakers map[string]struct {
		FailureThreshold  int           `yaml:"failure_threshold"`
		Timeout           time.Duration `yaml:"timeout"`
		SuccessThreshold  int           `yaml:"success_threshold"`
		StrictConsecutive bool          `yaml:"strict_consecutive"`
	} `yaml:"circuit_breakers"`
	Fallback struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"fallback"`
}

// DefaultResilienceConfig returns the LLM presets with fallback enabled.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Retry: retry.LLMAPIConfig(),
		Store: retry.DBConfig(),
		Breakers: map[string]circuitbreaker.Config{
			BreakerLLM:     circuitbreaker.LLMAPIConfig(BreakerLLM),
			BreakerFetcher: circuitbreaker.DefaultConfig(BreakerFetcher),
		},
		FallbackEnabled: true,
	}
}

// LoadResilienceConfig builds the policy from defaults, then RESILIENCE_CONFIG_FILE when
// set, then the RETRY_*, CB_* and ENABLE_FALLBACK environment variables. CB_* variables
// apply to the llm breaker.
func LoadResilienceConfig() (*ResilienceConfig, error) {
	cfg := DefaultResilienceConfig()

	if path := os.Getenv("RESILIENCE_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Retry.MaxAttempts = envconfig.GetEnvInt("RETRY_MAX_ATTEMPTS", cfg.Retry.MaxAttempts)
	cfg.Retry.BaseDelay = envconfig.GetEnvDuration("RETRY_BASE_DELAY", cfg.Retry.BaseDelay)
	cfg.Retry.MaxDelay = envconfig.GetEnvDuration("RETRY_MAX_DELAY", cfg.Retry.MaxDelay)
	cfg.Retry.Multiplier = envconfig.GetEnvFloat("RETRY_MULTIPLIER", cfg.Retry.Multiplier)
	cfg.Retry.Jitter = envconfig.GetEnvBool("RETRY_JITTER", cfg.Retry.Jitter)

	llm := cfg.Breakers[BreakerLLM]
	llm.FailureThreshold = envconfig.GetEnvInt("CB_FAILURE_THRESHOLD", llm.FailureThreshold)
	llm.Timeout = envconfig.GetEnvDuration("CB_TIMEOUT", llm.Timeout)
	llm.SuccessThreshold = envconfig.GetEnvInt("CB_SUCCESS_THRESHOLD", llm.SuccessThreshold)
	llm.StrictConsecutive = envconfig.GetEnvBool("CB_STRICT_CONSECUTIVE", llm.StrictConsecutive)
	cfg.Breakers[BreakerLLM] = llm

	cfg.FallbackEnabled = envconfig.GetEnvBool("ENABLE_FALLBACK", cfg.FallbackEnabled)

	return &cfg, nil
}

// LoadPolicyFile reads a YAML policy file over the defaults, without environment
// overrides.
func LoadPolicyFile(path string) (*ResilienceConfig, error) {
	cfg := DefaultResilienceConfig()
	if err := cfg.applyFile(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ResilienceConfig) applyFile(path string) error {
	// #nosec G304 -- path comes from the operator's environment
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read resilience config file: %w", err)
	}

	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse resilience config file: %w", err)
	}

	r := f.Retry
	if r.MaxAttempts != 0 {
		c.Retry.MaxAttempts = r.MaxAttempts
	}
	if r.BaseDelay != 0 {
		c.Retry.BaseDelay = r.BaseDelay
	}
	if r.MaxDelay != 0 {
		c.Retry.MaxDelay = r.MaxDelay
	}
	if r.Multiplier != 0 {
		c.Retry.Multiplier = r.Multiplier
	}
	if r.Jitter != nil {
		c.Retry.Jitter = *r.Jitter
	}
	// An explicit empty list disables retries; an absent key keeps the defaults.
	if r.RetryableCategories != nil {
		cats := make([]errclass.Category, 0, len(r.RetryableCategories))
		for _, name := range r.RetryableCategories {
			cat := errclass.Category(name)
			if !cat.Valid() {
				return fmt.Errorf("resilience config file: unknown retryable category %q", name)
			}
			cats = append(cats, cat)
		}
		c.Retry.RetryableCategories = errclass.NewSet(cats...)
	}

	for name, b := range f.CircuitBreakers {
		bc, ok := c.Breakers[name]
		if !ok {
			bc = circuitbreaker.DefaultConfig(name)
		}
		if b.FailureThreshold != 0 {
			bc.FailureThreshold = b.FailureThreshold
		}
		if b.Timeout != 0 {
			bc.Timeout = b.Timeout
		}
		if b.SuccessThreshold != 0 {
			bc.SuccessThreshold = b.SuccessThreshold
		}
		bc.StrictConsecutive = b.StrictConsecutive
		c.Breakers[name] = bc
	}

	if f.Fallback.Enabled != nil {
		c.FallbackEnabled = *f.Fallback.Enabled
	}
	return nil
}

// Breaker returns the config of the named breaker, defaulting to the llm policy renamed.
func (c ResilienceConfig) Breaker(name string) circuitbreaker.Config {
	if bc, ok := c.Breakers[name]; ok {
		return bc
	}
	bc := c.Breakers[BreakerLLM]
	bc.Name = name
	return bc
}

// Validate checks the retry policies and every breaker.
func (c ResilienceConfig) Validate() error {
	errs := []error{}
	if err := c.Retry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry: %w", err))
	}
	if err := c.Store.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("store retry: %w", err))
	}

	names := make([]string, 0, len(c.Breakers))
	for name := range c.Breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.Breakers[name].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("circuit breaker %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
