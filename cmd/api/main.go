package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"nexus-letter-analyzer/internal/app"
	"nexus-letter-analyzer/internal/common/pagination"
	"nexus-letter-analyzer/internal/config"
	hhttp "nexus-letter-analyzer/internal/handler/http"
	"nexus-letter-analyzer/internal/handler/http/auth"
	"nexus-letter-analyzer/internal/handler/http/middleware"
	"nexus-letter-analyzer/internal/observability/logging"
	"nexus-letter-analyzer/internal/observability/tracing"
	envconfig "nexus-letter-analyzer/pkg/config"
)

func main() {
	logger := initLogger()
	cfg := loadConfig(logger)

	shutdownTracing, err := tracing.Init(tracing.Config{
		ServiceName: "nexus-letter-analyzer-api",
		SampleRatio: cfg.Logging.TraceSampleRatio,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, cfg, prometheus.DefaultRegisterer, logger)
	if err != nil {
		logger.Error("failed to initialize application", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	version := envconfig.GetEnvString("VERSION", "dev")
	handler := setupServer(logger, cfg, application, version)
	runServer(ctx, logger, cfg.Server, handler, version)

	if err := shutdownTracing(context.Background()); err != nil {
		logger.Error("tracing shutdown failed", slog.Any("error", err))
	}
}

// initLogger initializes the JSON logger and installs it as the default.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// loadConfig loads and validates the configuration, exiting on failure.
func loadConfig(logger *slog.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.String("db_driver", cfg.Database.Driver),
		slog.Bool("fallback_enabled", cfg.Resilience.FallbackEnabled),
		slog.Int("retry_max_attempts", cfg.Resilience.Retry.MaxAttempts),
		slog.Bool("auth_enabled", cfg.Auth.Enabled()),
		slog.Bool("rate_limit_enabled", cfg.RateLimit.Enabled))
	return cfg
}

// setupServer builds the routed handler with rate limiting and authentication.
func setupServer(logger *slog.Logger, cfg *config.Config, application *app.App, version string) http.Handler {
	routerCfg := hhttp.RouterConfig{
		Analyses:          application.Analyses,
		Breakers:          application.Breakers,
		DB:                application.Store.DB,
		Pagination:        pagination.LoadFromEnv(),
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
		ReadinessBreakers: []string{config.BreakerLLM},
		Version:           version,
		Logger:            logger,
	}
	if application.Store.Guarded != nil {
		routerCfg.DBBreaker = application.Store.Guarded
	}

	if cfg.RateLimit.Enabled {
		trusted, err := middleware.ParseProxies(cfg.RateLimit.TrustedProxies)
		if err != nil {
			logger.Error("invalid trusted proxy configuration", slog.Any("error", err))
			os.Exit(1)
		}
		routerCfg.RateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL, trusted)
		logger.Info("rate limiting initialized",
			slog.Float64("rps", cfg.RateLimit.RequestsPerSecond),
			slog.Int("burst", cfg.RateLimit.Burst),
			slog.Int("trusted_proxies", len(trusted)))
	} else {
		logger.Warn("rate limiting is DISABLED - not recommended for production")
	}

	if cfg.Auth.Enabled() {
		if len(cfg.Auth.JWTSecret) < 32 {
			logger.Error("JWT_SECRET must be at least 32 characters (256 bits)")
			os.Exit(1)
		}
		routerCfg.Auth = auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.PublicEndpoints, logger)
	} else {
		logger.Warn("authentication is DISABLED: JWT_SECRET is not set")
	}

	return hhttp.NewRouter(routerCfg)
}

// runServer serves until ctx is cancelled, then drains in-flight requests.
func runServer(ctx context.Context, logger *slog.Logger, cfg config.ServerConfig, handler http.Handler, version string) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadTimeout, // Prevent Slowloris attacks
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", cfg.Addr),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error("server failed", slog.Any("error", err))
		return
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
