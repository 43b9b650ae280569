// Package scheduler wraps the single relay pass in an interval loop for
// deployments without an external cron.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"slackbrew/internal/domain"
)

// Relayer defines the interface for one relay pass.
type Relayer interface {
	Run(ctx context.Context) (*domain.RunStats, error)
}

type Scheduler struct {
	relayer  Relayer
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(relayer Relayer, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		relayer:  relayer,
		interval: interval,
		logger:   logger,
	}
}

// Start runs one pass immediately, then one per tick until the context is
// canceled. In loop mode a failed pass is logged rather than fatal; the
// next tick is the retry, mirroring what external cron would do.
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
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if _, err := s.relayer.Run(runCtx); err != nil {
		s.logger.Error("relay run failed", "error", err)
	}
}
