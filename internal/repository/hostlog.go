package repository

import (
	"context"

	"github.com/fleetrun/fleetrun/internal/domain"
)

type HostLogRepository interface {
	// CreateRunning inserts the initial "running" row bound to an owner.
	CreateRunning(ctx context.Context, owner domain.OwnerKind, ownerID, hostname string) (*domain.HostLog, error)

	// Finalize writes the terminal outcome exactly once.
	Finalize(ctx context.Context, id string, status domain.HostLogStatus, stdout, stderr string) error

	ListByOwner(ctx context.Context, owner domain.OwnerKind, ownerID string) ([]*domain.HostLog, error)

	// StatusCounts powers job-level rollup: count of logs per terminal
	// status for an owner.
	StatusCounts(ctx context.Context, owner domain.OwnerKind, ownerID string) (map[domain.HostLogStatus]int, error)

	// CountCronLogs and DeleteOldestCronLogs implement the retention
	// sweep, which applies only to scheduled-job (cron) logs.
	CountCronLogs(ctx context.Context) (int, error)
	DeleteOldestCronLogs(ctx context.Context, keep int) (int, error)
}
