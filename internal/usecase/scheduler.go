package usecase

import (
	"context"
	"log/slog"
	"time"

	"SurveyInsights/internal/ports"
)

// Scheduler wires the interval driver with the batch runner.
type Scheduler struct {
	driver ports.Scheduler
	batch  *BatchRunner
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring batches.
func NewScheduler(driver ports.Scheduler, batch *BatchRunner, logger *slog.Logger) *Scheduler {
	if logger != nil {
		logger = logger.With("component", "scheduler")
	}
	return &Scheduler{driver: driver, batch: batch, logger: logger}
}

// Start registers the batch with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.batch == nil {
		return nil
	}

	job := func(trigger time.Time) {
		reports, err := s.batch.Run(ctx)
		if s.logger == nil {
			return
		}
		if err != nil {
			s.logger.Error("batch finished with errors", "trigger", trigger, "answered", len(reports), "error", err)
			return
		}
		s.logger.Info("batch finished", "trigger", trigger, "answered", len(reports))
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
