package auth

import "strings"

// DefaultPublicEndpoints are reachable without a token: the probes and the Prometheus
// scrape endpoint.
var DefaultPublicEndpoints = []string{"/health", "/ready", "/live", "/metrics"}

// IsPublicEndpoint reports whether path is one of endpoints.
// Entries ending in '/' match by prefix. Other entries match exactly, with an optional
// trailing slash, so "/health" does not open "/healthcheck" or "/health/detail".
func IsPublicEndpoint(path string, endpoints []string) bool {
	for _, endpoint := range endpoints {
		if strings.HasSuffix(endpoint, "/") {
			if strings.HasPrefix(path, endpoint) {
				return true
			}
			continue
		}
		if path == endpoint || path == endpoint+"/" {
			return true
		}
	}
	return false
}
