package repository

import (
	"context"
	"time"

	"github.com/fleetrun/fleetrun/internal/domain"
)

type ScheduledJobRepository interface {
	Create(ctx context.Context, s *domain.ScheduledJob) (*domain.ScheduledJob, error)
	GetByID(ctx context.Context, id string) (*domain.ScheduledJob, error)
	GetByName(ctx context.Context, name string) (*domain.ScheduledJob, error)
	ListEnabled(ctx context.Context) ([]*domain.ScheduledJob, error)
	List(ctx context.Context) ([]*domain.ScheduledJob, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
	UpdateRunTimes(ctx context.Context, id string, lastRun time.Time, nextRun *time.Time) error
	Delete(ctx context.Context, id string) error

	// ReferencingTemplate lists the ids of scheduled jobs that still
	// reference templateID, used to build the referential-integrity error
	// on template delete.
	ReferencingTemplate(ctx context.Context, templateID string) ([]string, error)
}
