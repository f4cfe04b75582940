// Package scheduler is the cron trigger engine: it keeps a *cron.Cron
// instance in sync with the catalog's enabled scheduled jobs, fires
// dispatches non-reentrantly, and runs the cron history retention
// sweep both after every fire and on its own standalone interval.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fleetrun/fleetrun/internal/domain"
	"github.com/fleetrun/fleetrun/internal/metrics"
	"github.com/fleetrun/fleetrun/internal/repository"
	"github.com/robfig/cron/v3"
)

// Dispatcher is the subset of the job runner's fan-out the scheduler
// needs: resolve the frozen host set, dispatch per host, wait.
type Dispatcher interface {
	RunScheduled(ctx context.Context, job *domain.ScheduledJob) error
}

// Scheduler maintains the invariant "an enabled scheduled job ↔ exactly
// one trigger" over a *cron.Cron instance.
type Scheduler struct {
	cron          *cron.Cron
	scheduledJobs repository.ScheduledJobRepository
	hostLogs      repository.HostLogRepository
	settings      repository.SettingsRepository
	dispatcher    Dispatcher
	locks         *lockRegistry
	logger        *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID // ScheduledJob.ID -> installed trigger
}

func New(
	scheduledJobs repository.ScheduledJobRepository,
	hostLogs repository.HostLogRepository,
	settings repository.SettingsRepository,
	dispatcher Dispatcher,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		cron:          cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
		scheduledJobs: scheduledJobs,
		hostLogs:      hostLogs,
		settings:      settings,
		dispatcher:    dispatcher,
		locks:         newLockRegistry(),
		logger:        logger.With("component", "scheduler"),
		entries:       make(map[string]cron.EntryID),
	}
}

// ValidateExpr rejects malformed cron expressions at save time; no
// scheduled job may be persisted with an invalid expression.
func ValidateExpr(expr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidCronExpr, err)
	}
	return nil
}

// Start loads every enabled scheduled job and installs its trigger, then
// starts the cron engine's background timer.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs, err := s.scheduledJobs.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list enabled scheduled jobs: %w", err)
	}

	for _, job := range jobs {
		if err := s.Install(job); err != nil {
			s.logger.ErrorContext(ctx, "install trigger failed at startup", "job_id", job.ID, "error", err)
		}
	}

	s.cron.Start()
	metrics.SchedulerTriggersInstalled.Set(float64(len(s.entries)))
	return nil
}

// Stop shuts the scheduler down cleanly; in-flight fire invocations are
// allowed to complete.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// Install registers job's trigger, atomically replacing any existing
// trigger under the same id.
func (s *Scheduler) Install(job *domain.ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[job.ID]; ok {
		s.cron.Remove(existing)
		delete(s.entries, job.ID)
	}

	jobID := job.ID
	entryID, err := s.cron.AddFunc(job.Schedule, func() {
		s.fire(context.Background(), jobID)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidCronExpr, err)
	}

	s.entries[job.ID] = entryID
	metrics.SchedulerTriggersInstalled.Set(float64(len(s.entries)))
	return nil
}

// Remove uninstalls job's trigger, if any (disable or delete path).
func (s *Scheduler) Remove(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[jobID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, jobID)
		metrics.SchedulerTriggersInstalled.Set(float64(len(s.entries)))
	}
}

// fire runs one cron trigger to completion: lock, dispatch, record.
func (s *Scheduler) fire(ctx context.Context, jobID string) {
	start := time.Now()
	defer func() {
		metrics.SchedulerFireDuration.Observe(time.Since(start).Seconds())
	}()

	job, err := s.scheduledJobs.GetByID(ctx, jobID)
	if err != nil {
		s.logger.WarnContext(ctx, "fire: scheduled job missing, skipping", "job_id", jobID, "error", err)
		metrics.SchedulerFiresTotal.WithLabelValues("skipped_missing").Inc()
		return
	}
	if !job.Enabled {
		s.logger.InfoContext(ctx, "fire: scheduled job disabled, skipping", "job_id", jobID)
		metrics.SchedulerFiresTotal.WithLabelValues("skipped_disabled").Inc()
		return
	}

	release, ok := s.locks.TryAcquire(jobID)
	if !ok {
		s.logger.WarnContext(ctx, "fire: previous run still in progress", "job_id", jobID)
		metrics.SchedulerFiresTotal.WithLabelValues("skipped_locked").Inc()
		return
	}
	defer release()

	firedAt := time.Now().UTC()

	if err := s.dispatcher.RunScheduled(ctx, job); err != nil {
		s.logger.ErrorContext(ctx, "fire: dispatch failed", "job_id", jobID, "error", err)
	}

	nextRun := s.nextRunTime(jobID)
	if err := s.scheduledJobs.UpdateRunTimes(ctx, jobID, firedAt, nextRun); err != nil {
		s.logger.ErrorContext(ctx, "fire: update run times failed", "job_id", jobID, "error", err)
	}

	if err := s.sweepRetention(ctx); err != nil {
		s.logger.ErrorContext(ctx, "fire: retention sweep failed", "job_id", jobID, "error", err)
	}

	metrics.SchedulerFiresTotal.WithLabelValues("ran").Inc()
}

func (s *Scheduler) nextRunTime(jobID string) *time.Time {
	s.mu.Lock()
	entryID, ok := s.entries[jobID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	entry := s.cron.Entry(entryID)
	if entry.Next.IsZero() {
		return nil
	}
	next := entry.Next
	return &next
}
