package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fleetrun/fleetrun/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ScheduledJobRepository struct {
	pool *pgxpool.Pool
}

func NewScheduledJobRepository(pool *pgxpool.Pool) *ScheduledJobRepository {
	return &ScheduledJobRepository{pool: pool}
}

func (r *ScheduledJobRepository) Create(ctx context.Context, s *domain.ScheduledJob) (*domain.ScheduledJob, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO scheduled_jobs (id, name, schedule, template_id, credential_id, host_ids, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, name, schedule, template_id, credential_id, host_ids, enabled, last_run, next_run, created_at`

	row := r.pool.QueryRow(ctx, query, id, s.Name, s.Schedule, s.TemplateID, s.CredentialID, s.HostIDs, s.Enabled)
	created, err := scanScheduledJob(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrScheduledJobNameConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *ScheduledJobRepository) GetByID(ctx context.Context, id string) (*domain.ScheduledJob, error) {
	query := `
		SELECT id, name, schedule, template_id, credential_id, host_ids, enabled, last_run, next_run, created_at
		FROM scheduled_jobs WHERE id = $1`
	return scanScheduledJob(r.pool.QueryRow(ctx, query, id))
}

func (r *ScheduledJobRepository) GetByName(ctx context.Context, name string) (*domain.ScheduledJob, error) {
	query := `
		SELECT id, name, schedule, template_id, credential_id, host_ids, enabled, last_run, next_run, created_at
		FROM scheduled_jobs WHERE name = $1`
	return scanScheduledJob(r.pool.QueryRow(ctx, query, name))
}

// ListEnabled is what the scheduler reads at startup to install its
// cron triggers.
func (r *ScheduledJobRepository) ListEnabled(ctx context.Context) ([]*domain.ScheduledJob, error) {
	query := `
		SELECT id, name, schedule, template_id, credential_id, host_ids, enabled, last_run, next_run, created_at
		FROM scheduled_jobs WHERE enabled = TRUE ORDER BY created_at`
	return r.queryScheduledJobs(ctx, query)
}

func (r *ScheduledJobRepository) List(ctx context.Context) ([]*domain.ScheduledJob, error) {
	query := `
		SELECT id, name, schedule, template_id, credential_id, host_ids, enabled, last_run, next_run, created_at
		FROM scheduled_jobs ORDER BY created_at DESC`
	return r.queryScheduledJobs(ctx, query)
}

func (r *ScheduledJobRepository) queryScheduledJobs(ctx context.Context, query string, args ...any) ([]*domain.ScheduledJob, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scheduled jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.ScheduledJob
	for rows.Next() {
		j, err := scanScheduledJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *ScheduledJobRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE scheduled_jobs SET enabled = $2 WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("set scheduled job enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduledJobNotFound
	}
	return nil
}

// UpdateRunTimes records the outcome of one cron fire.
func (r *ScheduledJobRepository) UpdateRunTimes(ctx context.Context, id string, lastRun time.Time, nextRun *time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE scheduled_jobs SET last_run = $2, next_run = $3 WHERE id = $1`, id, lastRun, nextRun)
	if err != nil {
		return fmt.Errorf("update scheduled job run times: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduledJobNotFound
	}
	return nil
}

// Delete cascades to the job's HostLogs, which the polymorphic
// owner_kind/owner_id pair has no native FK to enforce.
func (r *ScheduledJobRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete scheduled job: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM host_logs WHERE owner_kind = $1 AND owner_id = $2`, domain.OwnerKindScheduled, id); err != nil {
		return fmt.Errorf("delete scheduled job host logs: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM scheduled_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete scheduled job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduledJobNotFound
	}

	return tx.Commit(ctx)
}

func (r *ScheduledJobRepository) ReferencingTemplate(ctx context.Context, templateID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM scheduled_jobs WHERE template_id = $1`, templateID)
	if err != nil {
		return nil, fmt.Errorf("query referencing scheduled jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan referencing id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanScheduledJob(row rowScanner) (*domain.ScheduledJob, error) {
	var s domain.ScheduledJob
	err := row.Scan(
		&s.ID, &s.Name, &s.Schedule, &s.TemplateID, &s.CredentialID,
		&s.HostIDs, &s.Enabled, &s.LastRun, &s.NextRun, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduledJobNotFound
		}
		return nil, fmt.Errorf("scan scheduled job: %w", err)
	}
	return &s, nil
}
