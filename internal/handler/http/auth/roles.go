package auth

import (
	"net/http"
	"slices"
	"strings"
)

const (
	// RoleAdmin may do everything, including resetting circuit breakers.
	RoleAdmin = "admin"
	// RoleAnalyst may submit letters and read analyses.
	RoleAnalyst = "analyst"
	// RoleViewer may only read.
	RoleViewer = "viewer"
)

// Permission is the set of methods and path patterns a role may use.
// A pattern ending in "/*" matches the prefix itself and everything below it.
type Permission struct {
	Methods []string
	Paths   []string
}

// RolePermissions maps each role to its permission.
var RolePermissions = map[string]Permission{
	RoleAdmin: {
		Methods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		Paths:   []string{"/*"},
	},
	RoleAnalyst: {
		Methods: []string{http.MethodGet, http.MethodPost},
		Paths:   []string{"/analyses", "/analyses/*", "/circuit-breakers"},
	},
	RoleViewer: {
		Methods: []string{http.MethodGet},
		Paths:   []string{"/analyses", "/analyses/*", "/circuit-breakers"},
	},
}

// Allowed reports whether role may call method on path.
func Allowed(role, method, path string) bool {
	perm, ok := RolePermissions[role]
	if !ok {
		return false
	}
	if !slices.Contains(perm.Methods, method) {
		return false
	}
	for _, pattern := range perm.Paths {
		if matchPath(pattern, path) {
			return true
		}
	}
	return false
}

func matchPath(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return path == pattern
}
