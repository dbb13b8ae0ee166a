// Package pathutil maps request paths onto route templates for metric labels.
package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern is a compiled route pattern and the template it collapses to.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

// Most specific first.
var pathPatterns = []*PathPattern{
	{Pattern: regexp.MustCompile(`^/analyses/[^/]+$`), Template: "/analyses/:id"},
	{Pattern: regexp.MustCompile(`^/circuit-breakers/[^/]+/reset$`), Template: "/circuit-breakers/:name/reset"},
}

// NormalizePath replaces identifiers in path with their template placeholder so that
// metric labels stay bounded. Query strings and a trailing slash are dropped. Paths that
// match no pattern are returned unchanged.
//
//	NormalizePath("/analyses/4f1c...")              // "/analyses/:id"
//	NormalizePath("/circuit-breakers/llm/reset")    // "/circuit-breakers/:name/reset"
//	NormalizePath("/analyses?limit=5")              // "/analyses"
func NormalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}
	return path
}
