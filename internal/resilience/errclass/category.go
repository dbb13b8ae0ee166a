// Package errclass maps arbitrary failures onto a closed set of error categories and
// answers whether a category is worth retrying and what the user should be told.
package errclass

import "sort"

// Category is the classification of a failed operation.
type Category string

const (
	APITimeout         Category = "api_timeout"
	APIRateLimit       Category = "api_rate_limit"
	APIAuthentication  Category = "api_authentication"
	APIServerError     Category = "api_server_error"
	APINetworkError    Category = "api_network_error"
	ParsingError       Category = "parsing_error"
	ValidationError    Category = "validation_error"
	DatabaseError      Category = "database_error"
	ConfigurationError Category = "configuration_error"
	UnknownError       Category = "unknown_error"
)

// String returns the wire name of the category.
func (c Category) String() string {
	return string(c)
}

// Valid reports whether c is one of the ten known categories.
func (c Category) Valid() bool {
	for _, known := range All() {
		if c == known {
			return true
		}
	}
	return false
}

// All returns every category in declaration order.
func All() []Category {
	return []Category{
		APITimeout,
		APIRateLimit,
		APIAuthentication,
		APIServerError,
		APINetworkError,
		ParsingError,
		ValidationError,
		DatabaseError,
		ConfigurationError,
		UnknownError,
	}
}

// Set is an immutable set of categories.
// The zero value is an empty set. IsZero tells it apart from NewSet().
type Set struct {
	m map[Category]struct{}
}

// NewSet returns a set holding the given categories.
func NewSet(categories ...Category) Set {
	m := make(map[Category]struct{}, len(categories))
	for _, c := range categories {
		m[c] = struct{}{}
	}
	return Set{m: m}
}

// RetryableSet returns the categories that are retryable by default.
func RetryableSet() Set {
	return NewSet(APITimeout, APIRateLimit, APIServerError, APINetworkError, DatabaseError)
}

// Has reports whether c is in the set.
func (s Set) Has(c Category) bool {
	_, ok := s.m[c]
	return ok
}

// IsZero reports whether s is the zero Set, as opposed to an empty one built by NewSet.
func (s Set) IsZero() bool {
	return s.m == nil
}

// IsEmpty reports whether s holds no categories.
func (s Set) IsEmpty() bool {
	return len(s.m) == 0
}

// Len returns the number of categories in the set.
func (s Set) Len() int {
	return len(s.m)
}

// Slice returns the categories sorted by name.
func (s Set) Slice() []Category {
	out := make([]Category, 0, len(s.m))
	for c := range s.m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
