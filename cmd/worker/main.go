// Command worker runs the retention job that purges stored analyses on a cron schedule.
//
//	worker [-once]
//
// With -once it purges immediately and exits. Otherwise it serves /health, /health/ready
// and /metrics on WORKER_HEALTH_PORT until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"nexus-letter-analyzer/internal/app"
	"nexus-letter-analyzer/internal/config"
	"nexus-letter-analyzer/internal/infra/worker"
	"nexus-letter-analyzer/internal/observability/logging"
)

func main() {
	once := flag.Bool("once", false, "run the retention job once and exit")
	flag.Parse()

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	workerMetrics, err := worker.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error("failed to register worker metrics", slog.Any("error", err))
		os.Exit(1)
	}
	workerCfg := worker.LoadConfigFromEnv(logger, workerMetrics)
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerCfg.CronSchedule),
		slog.String("timezone", workerCfg.Timezone),
		slog.Int("retention_days", workerCfg.RetentionDays),
		slog.Duration("job_timeout", workerCfg.JobTimeout),
		slog.Int("health_port", workerCfg.HealthPort))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, cfg, prometheus.DefaultRegisterer, logger)
	if err != nil {
		logger.Error("failed to initialize application", slog.Any("error", err))
		os.Exit(1)
	}

	job := worker.NewRetentionJob(application.Analyses, *workerCfg, workerMetrics, logger)
	code := 0
	if *once {
		if err := job.Run(ctx); err != nil {
			code = 1
		}
	} else if err := serve(ctx, logger, job, workerCfg); err != nil {
		logger.Error("worker failed", slog.Any("error", err))
		code = 1
	}

	stop()
	if err := application.Close(); err != nil {
		logger.Error("failed to close database", slog.Any("error", err))
	}
	os.Exit(code)
}

// serve runs the scheduler and the health server until ctx is done, then waits for an
// in-flight purge to finish.
func serve(ctx context.Context, logger *slog.Logger, job *worker.RetentionJob, cfg *worker.Config) error {
	scheduler, err := job.Schedule(ctx)
	if err != nil {
		return err
	}

	healthServer := worker.NewHealthServer(fmt.Sprintf(":%d", cfg.HealthPort), prometheus.DefaultGatherer, logger)
	healthErr := make(chan error, 1)
	go func() {
		healthErr <- healthServer.Start(ctx)
	}()

	scheduler.Start()
	healthServer.SetReady(true)
	logger.Info("retention worker started",
		slog.String("schedule", cfg.CronSchedule),
		slog.String("timezone", cfg.Timezone))

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-healthErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("health server: %w", err)
		}
	}

	healthServer.SetReady(false)
	<-scheduler.Stop().Done()
	logger.Info("retention worker stopped")
	return runErr
}
