package core

// scheduler.go provides the background jobs of the inbox.
//
// Two jobs run on their own tickers:
//  1. review notifications, mailing photographers about finished entries
//  2. copy cleanup, removing done and rejected files after the keep period
//
// The scheduler is long-running and context-aware for graceful shutdown.
// Failed runs are logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// JobsConfig holds the scheduler intervals. A non-positive interval
// disables that job.
type JobsConfig struct {
	NotifyInterval  time.Duration
	CleanupInterval time.Duration
	KeepCopies      time.Duration
}

// StartScheduler runs the background jobs until ctx is cancelled. Each job
// runs immediately on start, then every interval.
func (s *Service) StartScheduler(ctx context.Context, cfg JobsConfig) {
	slog.Info("inbox scheduler started",
		"notify_interval", cfg.NotifyInterval.String(),
		"cleanup_interval", cfg.CleanupInterval.String(),
		"keep_copies", cfg.KeepCopies.String(),
	)

	var wg sync.WaitGroup
	if cfg.NotifyInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runEvery(ctx, cfg.NotifyInterval, s.runNotifyJob)
		}()
	}
	if cfg.CleanupInterval > 0 && cfg.KeepCopies > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runEvery(ctx, cfg.CleanupInterval, func(ctx context.Context) {
				s.runCleanupJob(ctx, cfg.KeepCopies)
			})
		}()
	}
	wg.Wait()
	slog.Info("inbox scheduler stopped")
}

func runEvery(ctx context.Context, interval time.Duration, job func(context.Context)) {
	job(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job(ctx)
		}
	}
}

func (s *Service) runNotifyJob(ctx context.Context) {
	start := time.Now()
	if err := s.NotifyUsers(ctx); err != nil {
		slog.Error("notify job failed", "error", err)
		return
	}
	slog.Debug("notify job completed", "duration_ms", time.Since(start).Milliseconds())
}

func (s *Service) runCleanupJob(ctx context.Context, keep time.Duration) {
	start := time.Now()
	removed, err := s.storage.CleanupOldCopies(ctx, keep)
	if err != nil {
		slog.Error("cleanup job failed", "error", err, "files_removed", removed)
		return
	}
	slog.Info("old inbox copies removed",
		"files_removed", removed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
