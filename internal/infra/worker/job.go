package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger deletes analyses created before cutoff.
type Purger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob purges analyses older than the configured retention period.
type RetentionJob struct {
	purger  Purger
	cfg     Config
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewRetentionJob creates a job. metrics may be nil.
func NewRetentionJob(purger Purger, cfg Config, metrics *Metrics, logger *slog.Logger) *RetentionJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionJob{
		purger:  purger,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Run performs one purge bounded by the job timeout.
func (j *RetentionJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.cfg.JobTimeout)
	defer cancel()

	start := j.now()
	cutoff := start.Add(-j.cfg.Retention())

	j.logger.Info("retention job started",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", j.cfg.RetentionDays))

	deleted, err := j.purger.PurgeOlderThan(ctx, cutoff)
	elapsed := time.Since(start)
	if j.metrics != nil {
		j.metrics.RecordRun(err == nil, elapsed.Seconds())
	}
	if err != nil {
		j.logger.Error("retention job failed",
			slog.Any("error", err),
			slog.Duration("duration", elapsed))
		return err
	}

	j.logger.Info("retention job completed",
		slog.Int64("deleted", deleted),
		slog.Duration("duration", elapsed))
	return nil
}

// Schedule registers the job on a new cron scheduler in the configured timezone. The
// scheduler is returned unstarted. Runs derive their context from ctx and never overlap.
func (j *RetentionJob) Schedule(ctx context.Context) (*cron.Cron, error) {
	loc, err := time.LoadLocation(j.cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", j.cfg.Timezone, err)
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(j.cfg.CronSchedule, func() {
		_ = j.Run(ctx)
	}); err != nil {
		return nil, fmt.Errorf("add retention job %q: %w", j.cfg.CronSchedule, err)
	}
	return c, nil
}
