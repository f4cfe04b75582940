// Package runner is the ad-hoc job runner: it resolves a target set,
// fans out independent SSH executions in parallel, and rolls the
// results up into one job status.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fleetrun/fleetrun/internal/domain"
	"github.com/fleetrun/fleetrun/internal/executor"
	"github.com/fleetrun/fleetrun/internal/metrics"
	"github.com/fleetrun/fleetrun/internal/repository"
)

// Runner dispatches one ad-hoc job across N hosts and rolls the outcome
// up into the job's final status.
type Runner struct {
	templates   repository.TemplateRepository
	credentials repository.CredentialRepository
	hosts       repository.HostRepository
	adHocJobs   repository.AdHocJobRepository
	hostLogs    repository.HostLogRepository
	executor    *executor.Executor
	logger      *slog.Logger
}

func New(
	templates repository.TemplateRepository,
	credentials repository.CredentialRepository,
	hosts repository.HostRepository,
	adHocJobs repository.AdHocJobRepository,
	hostLogs repository.HostLogRepository,
	exec *executor.Executor,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		templates:   templates,
		credentials: credentials,
		hosts:       hosts,
		adHocJobs:   adHocJobs,
		hostLogs:    hostLogs,
		executor:    exec,
		logger:      logger.With("component", "runner"),
	}
}

// Run resolves targets and admits the job. It blocks only up to AdHocJob row
// creation; the fan-out across hosts runs on background workers the
// caller does not wait on.
func (r *Runner) Run(ctx context.Context, templateID string, hostIDs, groupIDs []string, credentialID string) (string, error) {
	targets, err := r.resolveTargets(ctx, hostIDs, groupIDs)
	if err != nil {
		return "", err
	}
	if len(targets) == 0 {
		return "", domain.ErrEmptyTargetSet
	}

	tmpl, err := r.templates.GetByID(ctx, templateID)
	if err != nil {
		return "", fmt.Errorf("load template: %w", err)
	}

	// Credential existence is checked up front; the plaintext key itself
	// is re-decrypted per host inside dispatch so no key material
	// outlives a single connection attempt longer than necessary.
	if _, err := r.credentials.PrivateKey(ctx, credentialID); err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}

	job, err := r.adHocJobs.Create(ctx, tmpl.Name)
	if err != nil {
		return "", fmt.Errorf("create adhoc job: %w", err)
	}

	go r.dispatch(context.WithoutCancel(ctx), job.ID, tmpl, credentialID, targets)

	return job.ID, nil
}

// dispatch fans out in the background: one worker per resolved host,
// no shared SSH clients, then a rollup read of the persisted logs.
func (r *Runner) dispatch(ctx context.Context, jobID string, tmpl *domain.Template, credentialID string, targets []*domain.Host) {
	metrics.JobRunsInFlight.Inc()
	defer metrics.JobRunsInFlight.Dec()

	// A panic in this goroutine is recorded as a synthetic "N/A" host
	// log and marks the job errored rather than leaving it stuck running.
	// The per-host worker goroutines started below have no recover of
	// their own.
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "dispatch panicked", "job_id", jobID, "panic", rec)
			r.DispatchFailure(ctx, jobID, fmt.Errorf("dispatch panic: %v", rec))
		}
	}()

	var wg sync.WaitGroup
	for _, host := range targets {
		wg.Add(1)
		go func(h *domain.Host) {
			defer wg.Done()
			r.runOnHost(ctx, jobID, tmpl, credentialID, h)
		}(host)
	}
	wg.Wait()

	outcome := r.rollup(ctx, jobID)
	if err := r.adHocJobs.SetStatus(ctx, jobID, outcome); err != nil {
		r.logger.ErrorContext(ctx, "set adhoc job status failed", "job_id", jobID, "error", err)
	}
	metrics.JobsCompletedTotal.WithLabelValues(string(outcome)).Inc()
}

func (r *Runner) runOnHost(ctx context.Context, jobID string, tmpl *domain.Template, credentialID string, host *domain.Host) {
	privateKey, err := r.credentials.PrivateKey(ctx, credentialID)
	if err != nil {
		r.logger.ErrorContext(ctx, "credential decrypt failed mid-dispatch", "job_id", jobID, "host", host.Hostname, "error", err)
		log, createErr := r.hostLogs.CreateRunning(ctx, domain.OwnerKindAdHoc, jobID, host.Hostname)
		if createErr != nil {
			r.logger.ErrorContext(ctx, "dispatch-failure log create failed", "job_id", jobID, "host", host.Hostname, "error", createErr)
			return
		}
		if finalizeErr := r.hostLogs.Finalize(ctx, log.ID, domain.HostLogStatusError, "", err.Error()); finalizeErr != nil {
			r.logger.ErrorContext(ctx, "dispatch-failure log finalize failed", "job_id", jobID, "host", host.Hostname, "error", finalizeErr)
		}
		return
	}

	_, err = r.executor.Execute(ctx, host, privateKey, tmpl.Content, tmpl.Type, domain.OwnerKindAdHoc, jobID)
	if err != nil {
		r.logger.ErrorContext(ctx, "execute failed", "job_id", jobID, "host", host.Hostname, "error", err)
	}
}

// rollup aggregates a job's final status: failed if any log ended in
// {error, connection_failed}, else completed.
func (r *Runner) rollup(ctx context.Context, jobID string) domain.JobStatus {
	counts, err := r.hostLogs.StatusCounts(ctx, domain.OwnerKindAdHoc, jobID)
	if err != nil {
		r.logger.ErrorContext(ctx, "rollup status count failed", "job_id", jobID, "error", err)
		return domain.JobStatusError
	}
	if counts[domain.HostLogStatusError] > 0 || counts[domain.HostLogStatusConnectionFailed] > 0 {
		return domain.JobStatusFailed
	}
	return domain.JobStatusCompleted
}

// resolveTargets unions explicit host ids with the live members of every
// referenced group, deduplicated into a set.
func (r *Runner) resolveTargets(ctx context.Context, hostIDs, groupIDs []string) ([]*domain.Host, error) {
	seen := make(map[string]*domain.Host)

	for _, id := range hostIDs {
		h, err := r.hosts.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve host %s: %w", id, err)
		}
		seen[h.ID] = h
	}

	for _, groupID := range groupIDs {
		members, err := r.hosts.MembersOf(ctx, groupID)
		if err != nil {
			return nil, fmt.Errorf("resolve group %s: %w", groupID, err)
		}
		for _, h := range members {
			seen[h.ID] = h
		}
	}

	targets := make([]*domain.Host, 0, len(seen))
	for _, h := range seen {
		targets = append(targets, h)
	}
	return targets, nil
}

// DispatchFailure records a failure for an already-created job: a
// synthetic HostLog with hostname "N/A" records cause, and the job itself
// is marked errored. dispatch calls it when the fan-out panics. Target
// resolution and template/credential lookup failures in Run happen before
// any job row exists and are returned to the caller instead; a credential
// lookup that fails inside a per-host worker is recorded as an error log
// for that host, and the job then rolls up to failed, not errored.
func (r *Runner) DispatchFailure(ctx context.Context, jobID string, cause error) {
	log, err := r.hostLogs.CreateRunning(ctx, domain.OwnerKindAdHoc, jobID, "N/A")
	if err != nil {
		r.logger.ErrorContext(ctx, "synthetic dispatch-failure log create failed", "job_id", jobID, "error", err)
		return
	}
	if err := r.hostLogs.Finalize(ctx, log.ID, domain.HostLogStatusError, "", cause.Error()); err != nil {
		r.logger.ErrorContext(ctx, "synthetic dispatch-failure log finalize failed", "job_id", jobID, "error", err)
	}
	if err := r.adHocJobs.SetStatus(ctx, jobID, domain.JobStatusError); err != nil {
		r.logger.ErrorContext(ctx, "set adhoc job error status failed", "job_id", jobID, "error", err)
	}
}

// RunScheduled implements scheduler.Dispatcher: it resolves the frozen
// host_ids snapshot on job, dispatches per host in parallel, and
// waits for all of them. Logs are owned by the
// ScheduledJob itself rather than by a separate per-fire record, per the
// polymorphic HostLog.owner_kind/owner_id shape.
func (r *Runner) RunScheduled(ctx context.Context, job *domain.ScheduledJob) error {
	tmpl, err := r.templates.GetByID(ctx, job.TemplateID)
	if err != nil {
		return fmt.Errorf("load template: %w", err)
	}

	targets := make([]*domain.Host, 0, len(job.HostIDs))
	for _, id := range job.HostIDs {
		h, err := r.hosts.GetByID(ctx, id)
		if err != nil {
			// A host deleted after the job froze its id becomes a no-op
			// target rather than a dispatch failure.
			r.logger.WarnContext(ctx, "scheduled job target no longer exists", "job_id", job.ID, "host_id", id, "error", err)
			continue
		}
		targets = append(targets, h)
	}

	var wg sync.WaitGroup
	for _, host := range targets {
		wg.Add(1)
		go func(h *domain.Host) {
			defer wg.Done()
			r.runScheduledOnHost(ctx, job.ID, tmpl, job.CredentialID, h)
		}(host)
	}
	wg.Wait()

	return nil
}

func (r *Runner) runScheduledOnHost(ctx context.Context, scheduledJobID string, tmpl *domain.Template, credentialID string, host *domain.Host) {
	privateKey, err := r.credentials.PrivateKey(ctx, credentialID)
	if err != nil {
		r.logger.ErrorContext(ctx, "credential decrypt failed mid-dispatch", "job_id", scheduledJobID, "host", host.Hostname, "error", err)
		log, createErr := r.hostLogs.CreateRunning(ctx, domain.OwnerKindScheduled, scheduledJobID, host.Hostname)
		if createErr != nil {
			r.logger.ErrorContext(ctx, "dispatch-failure log create failed", "job_id", scheduledJobID, "host", host.Hostname, "error", createErr)
			return
		}
		if finalizeErr := r.hostLogs.Finalize(ctx, log.ID, domain.HostLogStatusError, "", err.Error()); finalizeErr != nil {
			r.logger.ErrorContext(ctx, "dispatch-failure log finalize failed", "job_id", scheduledJobID, "host", host.Hostname, "error", finalizeErr)
		}
		return
	}

	_, err = r.executor.Execute(ctx, host, privateKey, tmpl.Content, tmpl.Type, domain.OwnerKindScheduled, scheduledJobID)
	if err != nil {
		r.logger.ErrorContext(ctx, "execute failed", "job_id", scheduledJobID, "host", host.Hostname, "error", err)
	}
}
