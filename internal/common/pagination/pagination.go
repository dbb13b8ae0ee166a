// Package pagination parses page/limit query parameters for the analysis list endpoint
// and builds the page metadata returned with it.
package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"nexus-letter-analyzer/pkg/config"
)

// ErrInvalidParams wraps every query parameter error.
var ErrInvalidParams = errors.New("invalid pagination parameters")

// Config bounds page parameters.
type Config struct {
	DefaultPage  int
	DefaultLimit int
	MaxLimit     int
}

// DefaultConfig returns page=1, limit=20, max=100.
func DefaultConfig() Config {
	return Config{DefaultPage: 1, DefaultLimit: 20, MaxLimit: 100}
}

// LoadFromEnv reads PAGINATION_DEFAULT_PAGE, PAGINATION_DEFAULT_LIMIT and
// PAGINATION_MAX_LIMIT, falling back to DefaultConfig for unset or malformed values.
func LoadFromEnv() Config {
	d := DefaultConfig()
	return Config{
		DefaultPage:  config.GetEnvInt("PAGINATION_DEFAULT_PAGE", d.DefaultPage),
		DefaultLimit: config.GetEnvInt("PAGINATION_DEFAULT_LIMIT", d.DefaultLimit),
		MaxLimit:     config.GetEnvInt("PAGINATION_MAX_LIMIT", d.MaxLimit),
	}
}

// Params is a 1-based page request.
type Params struct {
	Page  int
	Limit int
}

// Validate checks p against cfg.
func (p Params) Validate(cfg Config) error {
	if p.Page < 1 {
		return fmt.Errorf("%w: page must be a positive integer", ErrInvalidParams)
	}
	if p.Limit < 1 || p.Limit > cfg.MaxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidParams, cfg.MaxLimit)
	}
	return nil
}

// WithDefaults fills unset fields from cfg and caps Limit at cfg.MaxLimit.
func (p Params) WithDefaults(cfg Config) Params {
	if p.Page <= 0 {
		p.Page = cfg.DefaultPage
	}
	if p.Limit <= 0 {
		p.Limit = cfg.DefaultLimit
	}
	if p.Limit > cfg.MaxLimit {
		p.Limit = cfg.MaxLimit
	}
	return p
}

// ParseQueryParams reads page and limit from r. Missing values take their defaults;
// malformed or out-of-range values are an error.
func ParseQueryParams(r *http.Request, cfg Config) (Params, error) {
	p := Params{Page: cfg.DefaultPage, Limit: cfg.DefaultLimit}
	q := r.URL.Query()

	if s := q.Get("page"); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil {
			return p, fmt.Errorf("%w: page must be a positive integer", ErrInvalidParams)
		}
		p.Page = page
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			return p, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidParams, cfg.MaxLimit)
		}
		p.Limit = limit
	}

	return p, p.Validate(cfg)
}

// CalculateOffset returns the OFFSET of a 1-based page.
func CalculateOffset(page, limit int) int {
	return (page - 1) * limit
}

// CalculateTotalPages returns ceil(total/limit), and 1 for an empty set.
func CalculateTotalPages(total int64, limit int) int {
	if total == 0 || limit <= 0 {
		return 1
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// Metadata describes one page of a result set.
type Metadata struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// Response is the JSON envelope of a paginated list.
type Response[T any] struct {
	Data       []T      `json:"data"`
	Pagination Metadata `json:"pagination"`
}

// NewResponse wraps data and metadata. A nil slice is encoded as [].
func NewResponse[T any](data []T, metadata Metadata) Response[T] {
	if data == nil {
		data = []T{}
	}
	return Response[T]{Data: data, Pagination: metadata}
}
