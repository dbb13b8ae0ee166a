// Package config loads the analyzer's runtime configuration from environment variables and
// an optional YAML resilience policy file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	envconfig "nexus-letter-analyzer/pkg/config"
)

// Config is the full configuration shared by cmd/api, cmd/analyze and cmd/worker.
type Config struct {
	Server     ServerConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Database   DatabaseConfig
	LLM        LLMConfig
	Fetcher    FetcherConfig
	Resilience ResilienceConfig
	Logging    LoggingConfig
	Alerts     AlertConfig
}

// Load reads every section and validates the result.
func Load() (*Config, error) {
	resilience, err := LoadResilienceConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:     LoadServerConfig(),
		Auth:       LoadAuthConfig(),
		RateLimit:  LoadRateLimitConfig(),
		Database:   LoadDatabaseConfig(),
		LLM:        LoadLLMConfig(),
		Fetcher:    LoadFetcherConfig(),
		Resilience: *resilience,
		Logging:    LoadLoggingConfig(),
		Alerts:     LoadAlertConfig(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section and joins the failures.
func (c *Config) Validate() error {
	return errors.Join(
		c.Server.Validate(),
		c.RateLimit.Validate(),
		c.Database.Validate(),
		c.LLM.Validate(),
		c.Fetcher.Validate(),
		c.Resilience.Validate(),
		c.Alerts.Validate(),
	)
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// MaxBodyBytes limits POST /analyses bodies.
	MaxBodyBytes int64
}

// LoadServerConfig reads SERVER_ADDR, SERVER_*_TIMEOUT and MAX_BODY_BYTES.
// The write timeout covers a full LLM retry sequence.
func LoadServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            envconfig.GetEnvString("SERVER_ADDR", ":8080"),
		ReadTimeout:     envconfig.GetEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    envconfig.GetEnvDuration("SERVER_WRITE_TIMEOUT", 180*time.Second),
		IdleTimeout:     envconfig.GetEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: envconfig.GetEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    int64(envconfig.GetEnvInt("MAX_BODY_BYTES", 1<<20)),
	}
}

// Validate checks server settings.
func (c ServerConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("SERVER_ADDR cannot be empty")
	}
	for name, d := range map[string]time.Duration{
		"SERVER_READ_TIMEOUT":     c.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":    c.WriteTimeout,
		"SERVER_SHUTDOWN_TIMEOUT": c.ShutdownTimeout,
	} {
		if err := envconfig.ValidatePositiveDuration(d); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024, got %d", c.MaxBodyBytes)
	}
	return nil
}

// AuthConfig configures bearer-token authentication. An empty JWTSecret disables it.
type AuthConfig struct {
	JWTSecret       string
	Issuer          string
	PublicEndpoints []string
}

// LoadAuthConfig reads JWT_SECRET, JWT_ISSUER and PUBLIC_ENDPOINTS.
func LoadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:       envconfig.GetEnvString("JWT_SECRET", ""),
		Issuer:          envconfig.GetEnvString("JWT_ISSUER", ""),
		PublicEndpoints: envconfig.GetEnvStringList("PUBLIC_ENDPOINTS", []string{"/health", "/ready", "/live", "/metrics"}),
	}
}

// Enabled reports whether requests must carry a bearer token.
func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

// RateLimitConfig configures the per-IP token bucket.
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerSecond is the sustained refill rate.
	RequestsPerSecond float64
	Burst             int
	// IdleTTL evicts limiters of clients not seen for this long.
	IdleTTL time.Duration
	// TrustedProxies may set X-Forwarded-For. Entries are IPs or CIDRs.
	TrustedProxies []string
}

// LoadRateLimitConfig reads RATELIMIT_ENABLED, RATELIMIT_RPS, RATELIMIT_BURST,
// RATELIMIT_IDLE_TTL and RATELIMIT_TRUSTED_PROXIES.
func LoadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           envconfig.GetEnvBool("RATELIMIT_ENABLED", true),
		RequestsPerSecond: envconfig.GetEnvFloat("RATELIMIT_RPS", 2),
		Burst:             envconfig.GetEnvInt("RATELIMIT_BURST", 10),
		IdleTTL:           envconfig.GetEnvDuration("RATELIMIT_IDLE_TTL", 10*time.Minute),
		TrustedProxies:    envconfig.GetEnvStringList("RATELIMIT_TRUSTED_PROXIES", nil),
	}
}

// Validate checks rate limit settings when enabled.
func (c RateLimitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("RATELIMIT_RPS must be positive, got %g", c.RequestsPerSecond)
	}
	if c.Burst < 1 {
		return fmt.Errorf("RATELIMIT_BURST must be at least 1, got %d", c.Burst)
	}
	return envconfig.ValidatePositiveDuration(c.IdleTTL)
}

// DatabaseConfig selects the storage backend. Pool sizing is read by db.Open.
type DatabaseConfig struct {
	Driver string
	URL    string
	// Breaker wraps the pool in a ratio circuit breaker.
	Breaker bool
}

// LoadDatabaseConfig reads DB_DRIVER, DATABASE_URL and DB_BREAKER_ENABLED.
func LoadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:  envconfig.GetEnvString("DB_DRIVER", "sqlite"),
		URL:     envconfig.GetEnvString("DATABASE_URL", "file:analyses.db?_busy_timeout=5000"),
		Breaker: envconfig.GetEnvBool("DB_BREAKER_ENABLED", true),
	}
}

// Validate checks the driver name.
func (c DatabaseConfig) Validate() error {
	switch c.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.Driver)
	}
	if c.URL == "" {
		return errors.New("DATABASE_URL cannot be empty")
	}
	return nil
}

// FetcherConfig configures letter retrieval by URL.
type FetcherConfig struct {
	Timeout        time.Duration
	MaxBodySize    int64
	MaxRedirects   int
	DenyPrivateIPs bool
}

// LoadFetcherConfig reads FETCH_TIMEOUT, FETCH_MAX_BODY_SIZE, FETCH_MAX_REDIRECTS and
// FETCH_DENY_PRIVATE_IPS.
func LoadFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:        envconfig.GetEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		MaxBodySize:    int64(envconfig.GetEnvInt("FETCH_MAX_BODY_SIZE", 5*1024*1024)),
		MaxRedirects:   envconfig.GetEnvInt("FETCH_MAX_REDIRECTS", 5),
		DenyPrivateIPs: envconfig.GetEnvBool("FETCH_DENY_PRIVATE_IPS", true),
	}
}

// Validate checks fetcher settings.
func (c FetcherConfig) Validate() error {
	if err := envconfig.ValidateDurationRange(c.Timeout, time.Second, 2*time.Minute); err != nil {
		return fmt.Errorf("FETCH_TIMEOUT: %w", err)
	}
	if err := envconfig.ValidateIntRange(c.MaxRedirects, 0, 10); err != nil {
		return fmt.Errorf("FETCH_MAX_REDIRECTS: %w", err)
	}
	return nil
}

// LoggingConfig configures slog and tracing.
type LoggingConfig struct {
	Level string
	// Format is json or text.
	Format string
	// TraceSampleRatio is the fraction of traces recorded; 0 disables tracing.
	TraceSampleRatio float64
}

// LoadLoggingConfig reads LOG_LEVEL, LOG_FORMAT and TRACE_SAMPLE_RATIO.
func LoadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:            envconfig.GetEnvString("LOG_LEVEL", "info"),
		Format:           envconfig.GetEnvString("LOG_FORMAT", "json"),
		TraceSampleRatio: envconfig.GetEnvFloat("TRACE_SAMPLE_RATIO", 0),
	}
}

// AlertConfig configures webhook alerts on circuit breaker state changes. An empty URL
// disables that channel.
type AlertConfig struct {
	SlackWebhookURL   string
	DiscordWebhookURL string
	Timeout           time.Duration
}

// LoadAlertConfig reads SLACK_WEBHOOK_URL, DISCORD_WEBHOOK_URL and ALERT_TIMEOUT.
func LoadAlertConfig() AlertConfig {
	return AlertConfig{
		SlackWebhookURL:   envconfig.GetEnvString("SLACK_WEBHOOK_URL", ""),
		DiscordWebhookURL: envconfig.GetEnvString("DISCORD_WEBHOOK_URL", ""),
		Timeout:           envconfig.GetEnvDuration("ALERT_TIMEOUT", 10*time.Second),
	}
}

// Enabled reports whether any alert channel is configured.
func (c AlertConfig) Enabled() bool {
	return c.SlackWebhookURL != "" || c.DiscordWebhookURL != ""
}

// Validate checks that configured webhooks point at the real services over HTTPS.
func (c AlertConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if err := envconfig.ValidatePositiveDuration(c.Timeout); err != nil {
		return fmt.Errorf("ALERT_TIMEOUT: %w", err)
	}
	if c.SlackWebhookURL != "" {
		if err := validateWebhook(c.SlackWebhookURL, "hooks.slack.com", "/services/"); err != nil {
			return fmt.Errorf("SLACK_WEBHOOK_URL: %w", err)
		}
	}
	if c.DiscordWebhookURL != "" {
		if err := validateWebhook(c.DiscordWebhookURL, "discord.com", "/api/webhooks/"); err != nil {
			return fmt.Errorf("DISCORD_WEBHOOK_URL: %w", err)
		}
	}
	return nil
}

func validateWebhook(raw, host, pathPrefix string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" {
		return errors.New("must use https")
	}
	if u.Host != host {
		return fmt.Errorf("host must be %s, got %q", host, u.Host)
	}
	if !strings.HasPrefix(u.Path, pathPrefix) {
		return fmt.Errorf("path must start with %s", pathPrefix)
	}
	return nil
}
