package fetcher

import (
	"fmt"
	"time"
)

// Config holds the configuration for fetching letters from URLs.
type Config struct {
	// Timeout is the maximum duration for a single HTTP request. Default: 10s
	Timeout time.Duration

	// MaxBodySize is the maximum response body size in bytes, enforced while reading.
	// Default: 5MB
	MaxBodySize int64

	// MaxRedirects is the maximum number of redirects to follow. Every redirect target is
	// validated like the original URL. Default: 5
	MaxRedirects int

	// DenyPrivateIPs blocks URLs resolving to private addresses (SSRF prevention).
	// Should always be true in production. Default: true
	DenyPrivateIPs bool

	// UserAgent is sent with every request.
	UserAgent string
}

// DefaultConfig returns the default fetch configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		MaxBodySize:    5 * 1024 * 1024,
		MaxRedirects:   5,
		DenyPrivateIPs: true,
		UserAgent:      "NexusLetterAnalyzer/1.0",
	}
}

// Validate checks if the configuration values are valid and safe.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}

	minBodySize := int64(1024)             // 1KB
	maxBodySize := int64(50 * 1024 * 1024) // 50MB
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize)
	}

	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}

	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
