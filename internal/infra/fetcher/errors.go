// Package fetcher retrieves nexus letters published as web pages and turns HTML into the
// plain text the analyzer works on.
package fetcher

import "errors"

// Sentinel errors for fetch operations.
var (
	// ErrInvalidURL indicates a malformed URL or a scheme other than http/https.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrPrivateIP indicates the host resolves to a private, loopback or link-local address.
	ErrPrivateIP = errors.New("URL resolves to private IP address")

	// ErrTooManyRedirects indicates the redirect limit was exceeded.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrTimeout indicates the request exceeded the configured timeout.
	ErrTimeout = errors.New("fetch timeout")

	// ErrBodyTooLarge indicates the response exceeded MaxBodySize.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrNoText indicates the document held no readable text.
	ErrNoText = errors.New("no readable text found")
)
