// Package worker provides the retention worker's configuration, metrics, health server and
// purge job.
package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nexus-letter-analyzer/pkg/config"
)

// Config holds the configuration for the retention worker.
//
// Environment variables:
//   - RETENTION_CRON: five-field cron expression (default "0 3 * * *")
//   - WORKER_TIMEZONE: IANA timezone of the schedule (default "UTC")
//   - RETENTION_DAYS: analyses older than this are purged, 1-3650 (default 90)
//   - RETENTION_JOB_TIMEOUT: upper bound of one purge run, 1m-4h (default 10m)
//   - WORKER_HEALTH_PORT: port of the health and metrics server, 1024-65535 (default 9091)
type Config struct {
	CronSchedule  string
	Timezone      string
	RetentionDays int
	JobTimeout    time.Duration
	HealthPort    int
}

// DefaultConfig returns the production defaults: a nightly purge at 03:00 UTC of analyses
// older than 90 days.
func DefaultConfig() Config {
	return Config{
		CronSchedule:  "0 3 * * *",
		Timezone:      "UTC",
		RetentionDays: 90,
		JobTimeout:    10 * time.Minute,
		HealthPort:    9091,
	}
}

func validateRetentionDays(v int) error { return config.ValidateIntRange(v, 1, 3650) }
func validateHealthPort(v int) error    { return config.ValidateIntRange(v, 1024, 65535) }
func validateJobTimeout(d time.Duration) error {
	return config.ValidateDurationRange(d, time.Minute, 4*time.Hour)
}

// Validate checks every field and joins the failures.
func (c *Config) Validate() error {
	var errs []error
	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := validateRetentionDays(c.RetentionDays); err != nil {
		errs = append(errs, fmt.Errorf("retention days: %w", err))
	}
	if err := validateJobTimeout(c.JobTimeout); err != nil {
		errs = append(errs, fmt.Errorf("job timeout: %w", err))
	}
	if err := validateHealthPort(c.HealthPort); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}
	return errors.Join(errs...)
}

// Retention returns the retention period as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// LoadConfigFromEnv loads the worker configuration with a fail-open strategy: a value that
// does not parse or validate falls back to its default, is logged as a warning and is
// counted in metrics. The returned config is always valid. metrics may be nil.
func LoadConfigFromEnv(logger *slog.Logger, metrics *Metrics) *Config {
	cfg := DefaultConfig()

	var cm *config.ConfigMetrics
	if metrics != nil {
		cm = metrics.ConfigMetrics
	}
	t := config.NewFallbackTracker(logger, cm)

	cfg.CronSchedule = config.Track(t, "cron_schedule",
		config.LoadWithFallback("RETENTION_CRON", cfg.CronSchedule, config.ParseString, config.ValidateCronSchedule))
	cfg.Timezone = config.Track(t, "timezone",
		config.LoadWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ParseString, config.ValidateTimezone))
	cfg.RetentionDays = config.Track(t, "retention_days",
		config.LoadWithFallback("RETENTION_DAYS", cfg.RetentionDays, config.ParseInt, validateRetentionDays))
	cfg.JobTimeout = config.Track(t, "job_timeout",
		config.LoadWithFallback("RETENTION_JOB_TIMEOUT", cfg.JobTimeout, config.ParseDuration, validateJobTimeout))
	cfg.HealthPort = config.Track(t, "health_port",
		config.LoadWithFallback("WORKER_HEALTH_PORT", cfg.HealthPort, config.ParseInt, validateHealthPort))

	t.Done()
	return &cfg
}
