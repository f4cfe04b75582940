package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleetrun/fleetrun/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdHocJobRepository struct {
	pool *pgxpool.Pool
}

func NewAdHocJobRepository(pool *pgxpool.Pool) *AdHocJobRepository {
	return &AdHocJobRepository{pool: pool}
}

func (r *AdHocJobRepository) Create(ctx context.Context, templateName string) (*domain.AdHocJob, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO adhoc_jobs (id, template_name, status)
		VALUES ($1, $2, $3)
		RETURNING id, template_name, status, created_at`

	row := r.pool.QueryRow(ctx, query, id, templateName, domain.JobStatusRunning)
	return scanAdHocJob(row)
}

func (r *AdHocJobRepository) GetByID(ctx context.Context, id string) (*domain.AdHocJob, error) {
	query := `SELECT id, template_name, status, created_at FROM adhoc_jobs WHERE id = $1`
	return scanAdHocJob(r.pool.QueryRow(ctx, query, id))
}

func (r *AdHocJobRepository) SetStatus(ctx context.Context, id string, status domain.JobStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE adhoc_jobs SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set adhoc job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAdHocJobNotFound
	}
	return nil
}

// Delete cascades to the job's HostLogs, which the polymorphic
// owner_kind/owner_id pair has no native FK to enforce.
func (r *AdHocJobRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete adhoc job: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM host_logs WHERE owner_kind = $1 AND owner_id = $2`, domain.OwnerKindAdHoc, id); err != nil {
		return fmt.Errorf("delete adhoc job host logs: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM adhoc_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete adhoc job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAdHocJobNotFound
	}

	return tx.Commit(ctx)
}

func scanAdHocJob(row rowScanner) (*domain.AdHocJob, error) {
	var j domain.AdHocJob
	err := row.Scan(&j.ID, &j.TemplateName, &j.Status, &j.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAdHocJobNotFound
		}
		return nil, fmt.Errorf("scan adhoc job: %w", err)
	}
	return &j, nil
}
