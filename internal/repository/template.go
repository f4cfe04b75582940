package repository

import (
	"context"

	"github.com/fleetrun/fleetrun/internal/domain"
)

// TemplateRepository is the catalog contract for Template rows. Callers
// depend on this interface, never on the postgres package directly — the
// scheduler/runner are swappable against a fake in tests.
type TemplateRepository interface {
	Create(ctx context.Context, t *domain.Template) (*domain.Template, error)
	GetByID(ctx context.Context, id string) (*domain.Template, error)
	GetByName(ctx context.Context, name string) (*domain.Template, error)
	Update(ctx context.Context, t *domain.Template) (*domain.Template, error)
	List(ctx context.Context) ([]*domain.Template, error)

	// Delete refuses with a *domain.TemplateInUseError when any
	// ScheduledJob still references id.
	Delete(ctx context.Context, id string) error
}
