package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"content_ingester/internal/domain"
	"content_ingester/internal/service"
)

// Runner performs one ingestion pass.
type Runner interface {
	Run(ctx context.Context) (*domain.RunReport, error)
}

type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start runs once immediately and then on every tick until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	report, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, service.ErrRunInProgress):
		s.logger.Info("skipping tick, run already in progress")
	case err != nil:
		s.logger.Error("run failed", "error", err)
	case report.Failed():
		s.logger.Error("run fetched nothing and recorded errors", "errors", report.Errors)
	}
}
