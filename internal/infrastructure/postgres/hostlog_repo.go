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

type HostLogRepository struct {
	pool *pgxpool.Pool
}

func NewHostLogRepository(pool *pgxpool.Pool) *HostLogRepository {
	return &HostLogRepository{pool: pool}
}

func (r *HostLogRepository) CreateRunning(ctx context.Context, owner domain.OwnerKind, ownerID, hostname string) (*domain.HostLog, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO host_logs (id, owner_kind, owner_id, hostname, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, owner_kind, owner_id, hostname, stdout, stderr, status, created_at`

	row := r.pool.QueryRow(ctx, query, id, owner, ownerID, hostname, domain.HostLogStatusRunning)
	return scanHostLog(row)
}

// Finalize writes the terminal outcome exactly once; callers never
// transition a row back to running.
func (r *HostLogRepository) Finalize(ctx context.Context, id string, status domain.HostLogStatus, stdout, stderr string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE host_logs SET status = $2, stdout = $3, stderr = $4 WHERE id = $1`,
		id, status, stdout, stderr,
	)
	if err != nil {
		return fmt.Errorf("finalize host log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrHostLogNotFound
	}
	return nil
}

func (r *HostLogRepository) ListByOwner(ctx context.Context, owner domain.OwnerKind, ownerID string) ([]*domain.HostLog, error) {
	query := `
		SELECT id, owner_kind, owner_id, hostname, stdout, stderr, status, created_at
		FROM host_logs WHERE owner_kind = $1 AND owner_id = $2 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, owner, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list host logs by owner: %w", err)
	}
	defer rows.Close()

	var logs []*domain.HostLog
	for rows.Next() {
		l, err := scanHostLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// StatusCounts powers job-level rollup: count of host logs per
// terminal status for one owner.
func (r *HostLogRepository) StatusCounts(ctx context.Context, owner domain.OwnerKind, ownerID string) (map[domain.HostLogStatus]int, error) {
	query := `
		SELECT status, COUNT(*) FROM host_logs
		WHERE owner_kind = $1 AND owner_id = $2
		GROUP BY status`

	rows, err := r.pool.Query(ctx, query, owner, ownerID)
	if err != nil {
		return nil, fmt.Errorf("count host log statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.HostLogStatus]int)
	for rows.Next() {
		var status domain.HostLogStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// CountCronLogs counts only scheduled-job-owned logs — the retention
// sweep never touches ad-hoc history.
func (r *HostLogRepository) CountCronLogs(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM host_logs WHERE owner_kind = $1`, domain.OwnerKindScheduled).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count cron host logs: %w", err)
	}
	return n, nil
}

// DeleteOldestCronLogs deletes the oldest scheduled-job-owned logs past
// keep, returning the number removed.
func (r *HostLogRepository) DeleteOldestCronLogs(ctx context.Context, keep int) (int, error) {
	query := `
		DELETE FROM host_logs
		WHERE id IN (
			SELECT id FROM host_logs
			WHERE owner_kind = $1
			ORDER BY created_at DESC
			OFFSET $2
		)`

	tag, err := r.pool.Exec(ctx, query, domain.OwnerKindScheduled, keep)
	if err != nil {
		return 0, fmt.Errorf("delete oldest cron host logs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanHostLog(row rowScanner) (*domain.HostLog, error) {
	var l domain.HostLog
	err := row.Scan(&l.ID, &l.OwnerKind, &l.OwnerID, &l.Hostname, &l.Stdout, &l.Stderr, &l.Status, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrHostLogNotFound
		}
		return nil, fmt.Errorf("scan host log: %w", err)
	}
	return &l, nil
}
