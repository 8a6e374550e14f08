package usecase

import (
	"context"
	"io"
	"log/slog"
	"time"

	"PaperDigest/internal/ports"
)

// Scheduler binds a recurring job to the cron-like driver.
type Scheduler struct {
	driver ports.Scheduler
	job    func(context.Context, time.Time) error
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop the recurring job.
func NewScheduler(driver ports.Scheduler, job func(context.Context, time.Time) error, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{driver: driver, job: job, logger: logger}
}

// Start registers the job with the provided scheduler. Job failures are
// logged, never propagated: the next trigger retries naturally.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.job == nil {
		return nil
	}

	return s.driver.Start(ctx, func(trigger time.Time) {
		if err := s.job(ctx, trigger); err != nil {
			s.logger.Error("scheduled run failed", "trigger", trigger, "error", err)
		}
	})
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
