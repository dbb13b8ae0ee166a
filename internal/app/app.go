// Package app assembles the analyzer's components from configuration. cmd/api, cmd/analyze
// and cmd/worker share it so that every process wires retries, breakers and storage the
// same way.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"nexus-letter-analyzer/internal/config"
	"nexus-letter-analyzer/internal/infra/adapter/persistence/postgres"
	"nexus-letter-analyzer/internal/infra/adapter/persistence/sqlite"
	"nexus-letter-analyzer/internal/infra/db"
	"nexus-letter-analyzer/internal/infra/fetcher"
	"nexus-letter-analyzer/internal/infra/llm"
	"nexus-letter-analyzer/internal/infra/notifier"
	"nexus-letter-analyzer/internal/observability/metrics"
	"nexus-letter-analyzer/internal/repository"
	"nexus-letter-analyzer/internal/resilience"
	"nexus-letter-analyzer/internal/resilience/circuitbreaker"
	"nexus-letter-analyzer/internal/resilience/degrade"
	"nexus-letter-analyzer/internal/resilience/guard"
	"nexus-letter-analyzer/internal/resilience/retry"
	"nexus-letter-analyzer/internal/usecase/analysis"
)

// App holds the long-lived components of one process.
type App struct {
	Config   *config.Config
	Breakers *circuitbreaker.Registry
	Store    *Store
	Analyses *analysis.Service
	// Alerts is nil when no webhook is configured.
	Alerts *notifier.Dispatcher
}

// Close flushes pending alerts and releases the database.
func (a *App) Close() error {
	if a.Alerts != nil {
		a.Alerts.Close()
	}
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

// Build opens storage and wires the analysis service. Resilience collectors are
// registered on reg.
func Build(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (*App, error) {
	res, err := metrics.NewResilience(reg)
	if err != nil {
		return nil, fmt.Errorf("register resilience metrics: %w", err)
	}

	alerts := NewAlerts(cfg.Alerts, logger)
	breakers, err := NewBreakerRegistry(cfg.Resilience, res, alerts, logger)
	if err != nil {
		if alerts != nil {
			alerts.Close()
		}
		return nil, err
	}

	store, err := OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		if alerts != nil {
			alerts.Close()
		}
		return nil, err
	}

	svc := &analysis.Service{
		Repo:     store.Repo,
		Analyzer: NewAnalyzer(cfg.LLM, logger),
		Guard:    NewGuard(cfg.Resilience, breakers.Get(config.BreakerLLM), res, logger),
		Store:    retry.NewManager(cfg.Resilience.Store, retry.WithLogger(logger), retry.WithMetrics(res)),
		Fetcher:  NewFetcher(cfg.Fetcher, breakers.Get(config.BreakerFetcher), logger),
		Logger:   logger,
	}

	return &App{Config: cfg, Breakers: breakers, Store: store, Analyses: svc, Alerts: alerts}, nil
}

// alertService names the process in alert messages.
const alertService = "nexus-letter-analyzer"

// NewAlerts returns a dispatcher for the configured webhooks, or nil when none is set.
func NewAlerts(cfg config.AlertConfig, logger *slog.Logger) *notifier.Dispatcher {
	var targets notifier.Multi
	if cfg.SlackWebhookURL != "" {
		targets = append(targets, notifier.NewSlack(cfg.SlackWebhookURL, cfg.Timeout, logger))
	}
	if cfg.DiscordWebhookURL != "" {
		targets = append(targets, notifier.NewDiscord(cfg.DiscordWebhookURL, cfg.Timeout, logger))
	}
	if len(targets) == 0 {
		return nil
	}
	logger.Info("circuit breaker alerts enabled", slog.Int("channels", len(targets)))
	// Each delivery may wait out a retry, so it gets three request timeouts.
	return notifier.NewDispatcher(targets, 32, 3*cfg.Timeout, logger)
}

// NewBreakerRegistry registers every configured breaker. State changes are logged,
// exported as the circuit_breaker_state gauge and queued as alerts. m and alerts may be nil.
func NewBreakerRegistry(cfg config.ResilienceConfig, m *metrics.Resilience, alerts *notifier.Dispatcher, logger *slog.Logger) (*circuitbreaker.Registry, error) {
	onChange := func(name string, from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state changed",
			slog.String("circuit", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()))
		if m != nil {
			m.SetCircuitState(name, int(to))
		}
		if alerts != nil {
			alerts.Enqueue(notifier.Alert{
				Service: alertService,
				Circuit: name,
				From:    from.String(),
				To:      to.String(),
				At:      time.Now(),
			})
		}
	}

	defaults := cfg.Breaker(config.BreakerLLM)
	defaults.OnStateChange = onChange
	reg := circuitbreaker.NewRegistry(defaults)

	for _, name := range []string{config.BreakerLLM, config.BreakerFetcher} {
		bc := cfg.Breaker(name)
		bc.Name = name
		bc.OnStateChange = onChange
		if _, err := reg.Register(bc); err != nil {
			return nil, err
		}
		if m != nil {
			m.SetCircuitState(name, int(circuitbreaker.StateClosed))
		}
	}
	for name, bc := range cfg.Breakers {
		if _, ok := reg.Lookup(name); ok {
			continue
		}
		bc.Name = name
		bc.OnStateChange = onChange
		if _, err := reg.Register(bc); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// NewAnalyzer returns the configured provider. A provider without an API key falls back
// to the noop analyzer, whose configuration error is terminal for every call.
func NewAnalyzer(cfg config.LLMConfig, logger *slog.Logger) llm.Analyzer {
	if cfg.Provider != config.ProviderNoop && cfg.APIKey() == "" {
		logger.Warn("LLM API key not set, analyses will fail with a configuration error",
			slog.String("provider", cfg.Provider))
		return llm.NewNoop()
	}

	switch cfg.Provider {
	case config.ProviderClaude:
		return llm.NewClaude(cfg.APIKey(), providerConfig(llm.DefaultClaudeConfig(), cfg), llm.WithLogger(logger))
	case config.ProviderOpenAI:
		return llm.NewOpenAI(cfg.APIKey(), providerConfig(llm.DefaultOpenAIConfig(), cfg), llm.WithLogger(logger))
	default:
		logger.Info("LLM provider disabled")
		return llm.NewNoop()
	}
}

func providerConfig(base llm.Config, cfg config.LLMConfig) llm.Config {
	if cfg.Model != "" {
		base.Model = cfg.Model
	}
	base.MaxTokens = cfg.MaxTokens
	base.Timeout = cfg.Timeout
	base.MaxInputChars = cfg.MaxInputChars
	base.BaseURL = cfg.BaseURL
	return base
}

// NewGuard builds the guard around LLM calls.
func NewGuard(cfg config.ResilienceConfig, breaker *circuitbreaker.CircuitBreaker, m resilience.Metrics, logger *slog.Logger) *guard.Guard {
	if m == nil {
		m = resilience.NoopMetrics{}
	}
	rm := retry.NewManager(cfg.Retry, retry.WithLogger(logger), retry.WithMetrics(m))
	opts := []guard.Option{
		guard.WithCircuitBreaker(breaker),
		guard.WithLogger(logger),
		guard.WithMetrics(m),
	}
	if cfg.FallbackEnabled {
		opts = append(opts, guard.WithFallback(degrade.NewManager(logger)))
	}
	return guard.New(rm, opts...)
}

// NewFetcher builds the URL fetcher. breaker may be nil.
func NewFetcher(cfg config.FetcherConfig, breaker *circuitbreaker.CircuitBreaker, logger *slog.Logger) *fetcher.ReadabilityFetcher {
	fc := fetcher.DefaultConfig()
	fc.Timeout = cfg.Timeout
	fc.MaxBodySize = cfg.MaxBodySize
	fc.MaxRedirects = cfg.MaxRedirects
	fc.DenyPrivateIPs = cfg.DenyPrivateIPs
	return fetcher.NewReadabilityFetcher(fc, breaker, logger)
}

// Store is an open, migrated database and the repository on top of it.
type Store struct {
	DB *sql.DB
	// Guarded is nil when the database breaker is disabled.
	Guarded *db.GuardedDB
	Repo    repository.AnalysisRepository
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.DB.Close()
}

// OpenStore opens the configured database, creates the schema and builds the repository.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	driver := db.Driver(cfg.Driver)
	sqlDB, err := db.Open(ctx, driver, cfg.URL)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(ctx, sqlDB, driver); err != nil {
		return nil, errors.Join(fmt.Errorf("migrate: %w", err), sqlDB.Close())
	}

	store := &Store{DB: sqlDB}
	var q db.Querier = sqlDB
	if cfg.Breaker {
		store.Guarded = db.NewGuardedDB(sqlDB, db.DefaultBreakerConfig(), logger)
		q = store.Guarded
	}

	switch driver {
	case db.DriverPostgres:
		store.Repo = postgres.NewAnalysisRepo(q)
	default:
		store.Repo = sqlite.NewAnalysisRepo(q)
	}
	return store, nil
}
