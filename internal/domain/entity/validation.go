package entity

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode/utf8"
)

// maxURLLength bounds submitted URLs.
const maxURLLength = 2048

// ValidateURL validates a letter URL submitted for fetching. The URL must be well-formed,
// use http or https, and must not resolve to a private address.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "url", Message: "URL is required"}
	}

	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Field: "url", Message: "URL must use http or https scheme"}
	}

	if parsedURL.Host == "" {
		return &ValidationError{Field: "url", Message: "URL must have a valid host"}
	}

	// Block private addresses so a submitted URL cannot reach internal services.
	host := parsedURL.Hostname()
	ips, err := net.LookupIP(host)
	if err == nil && len(ips) > 0 {
		for _, ip := range ips {
			if IsPrivateIP(ip) {
				return &ValidationError{
					Field:   "url",
					Message: "url cannot point to private network",
				}
			}
		}
	}

	return nil
}

// IsPrivateIP reports whether ip is loopback, link-local (which covers cloud metadata
// endpoints), private or unspecified.
func IsPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() ||
		ip.IsUnspecified()
}

// Letter length limits, in runes.
const (
	MinLetterRunes = 50
	MaxLetterRunes = 50000
)

// ValidateLetterText checks that text is a plausible letter body.
func ValidateLetterText(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &ValidationError{Field: "text", Message: "letter text is required"}
	}

	n := utf8.RuneCountInString(trimmed)
	if n < MinLetterRunes {
		return &ValidationError{
			Field:   "text",
			Message: fmt.Sprintf("letter text must be at least %d characters, got %d", MinLetterRunes, n),
		}
	}
	if n > MaxLetterRunes {
		return &ValidationError{
			Field:   "text",
			Message: fmt.Sprintf("letter text must not exceed %d characters, got %d", MaxLetterRunes, n),
		}
	}
	return nil
}
