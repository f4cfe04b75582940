package repository

import (
	"context"

	"github.com/fleetrun/fleetrun/internal/domain"
)

type AdHocJobRepository interface {
	Create(ctx context.Context, templateName string) (*domain.AdHocJob, error)
	GetByID(ctx context.Context, id string) (*domain.AdHocJob, error)
	SetStatus(ctx context.Context, id string, status domain.JobStatus) error

	// Delete cascades to the job's HostLogs.
	Delete(ctx context.Context, id string) error
}
