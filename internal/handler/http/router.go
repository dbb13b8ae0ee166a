package http

import (
	"database/sql"
	"log/slog"
	"net/http"

	"nexus-letter-analyzer/internal/common/pagination"
	"nexus-letter-analyzer/internal/handler/http/analysis"
	"nexus-letter-analyzer/internal/handler/http/auth"
	"nexus-letter-analyzer/internal/handler/http/breaker"
	"nexus-letter-analyzer/internal/handler/http/middleware"
	"nexus-letter-analyzer/internal/handler/http/requestid"
	"nexus-letter-analyzer/internal/observability/tracing"
	"nexus-letter-analyzer/internal/resilience/circuitbreaker"
)

// RouterConfig carries everything NewRouter mounts. Auth and RateLimiter are optional.
type RouterConfig struct {
	Analyses     analysis.Service
	Breakers     *circuitbreaker.Registry
	DB           *sql.DB
	DBBreaker    StateReporter
	Pagination   pagination.Config
	Auth         *auth.Authenticator
	RateLimiter  *middleware.RateLimiter
	MaxBodyBytes int64
	// ReadinessBreakers fail /ready while any of them is open.
	ReadinessBreakers []string
	Version           string
	Logger            *slog.Logger
}

// NewRouter builds the API handler.
//
// Probes and /metrics bypass authentication and rate limiting. Every request gets a
// correlation ID, a span, panic recovery, an access log line and HTTP metrics.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := http.NewServeMux()
	analysis.Register(api, cfg.Analyses, cfg.Pagination, logger)
	breaker.Register(api, cfg.Breakers, logger)

	var apiMiddleware []func(http.Handler) http.Handler
	if cfg.RateLimiter != nil {
		apiMiddleware = append(apiMiddleware, cfg.RateLimiter.Middleware)
	}
	if cfg.Auth != nil {
		apiMiddleware = append(apiMiddleware, cfg.Auth.Middleware)
	}
	if cfg.MaxBodyBytes > 0 {
		apiMiddleware = append(apiMiddleware, LimitRequestBody(cfg.MaxBodyBytes))
	}

	root := http.NewServeMux()
	root.Handle("GET /health", &HealthHandler{DB: cfg.DB, DBBreaker: cfg.DBBreaker, Breakers: cfg.Breakers, Version: cfg.Version})
	root.Handle("GET /ready", &ReadyHandler{DB: cfg.DB, Breakers: cfg.Breakers, Critical: cfg.ReadinessBreakers})
	root.Handle("GET /live", LiveHandler{})
	root.Handle("GET /metrics", MetricsHandler())
	root.Handle("/", Chain(api, apiMiddleware...))

	return Chain(root,
		requestid.Middleware,
		tracing.Middleware,
		Recover(logger),
		Logging(logger),
		MetricsMiddleware,
	)
}
