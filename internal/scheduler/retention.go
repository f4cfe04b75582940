package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetrun/fleetrun/internal/metrics"
)

// StartRetentionLoop runs the retention sweep on a standalone ticker,
// independent of cron fires, so history stays capped even during long
// gaps between scheduled runs (or when no scheduled jobs are enabled
// at all). Returns once ctx is cancelled.
func (s *Scheduler) StartRetentionLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("retention loop started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention loop: shut down")
			return
		case <-ticker.C:
			if err := s.sweepRetention(ctx); err != nil {
				s.logger.ErrorContext(ctx, "retention loop: sweep failed", "error", err)
			}
		}
	}
}

// sweepRetention: if Settings.CronHistoryLimit > 0 and the cron HostLog
// count exceeds it, delete the oldest rows so exactly the limit
// remains. A limit of 0 disables sweeping; ad-hoc logs are never
// touched.
func (s *Scheduler) sweepRetention(ctx context.Context) error {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if settings.CronHistoryLimit <= 0 {
		return nil
	}

	count, err := s.hostLogs.CountCronLogs(ctx)
	if err != nil {
		return fmt.Errorf("count cron logs: %w", err)
	}
	if count <= settings.CronHistoryLimit {
		return nil
	}

	deleted, err := s.hostLogs.DeleteOldestCronLogs(ctx, settings.CronHistoryLimit)
	if err != nil {
		return fmt.Errorf("delete oldest cron logs: %w", err)
	}

	metrics.RetentionRowsDeletedTotal.Add(float64(deleted))
	s.logger.InfoContext(ctx, "retention sweep deleted rows", "deleted", deleted, "limit", settings.CronHistoryLimit)
	return nil
}
