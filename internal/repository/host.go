package repository

import (
	"context"

	"github.com/fleetrun/fleetrun/internal/domain"
)

type HostRepository interface {
	Create(ctx context.Context, h *domain.Host) (*domain.Host, error)
	GetByID(ctx context.Context, id string) (*domain.Host, error)
	List(ctx context.Context) ([]*domain.Host, error)
	Update(ctx context.Context, h *domain.Host) (*domain.Host, error)

	// Delete cascades only the host_groups membership rows; scheduled
	// jobs that froze this host id at save time keep referencing it as a
	// no-op target.
	Delete(ctx context.Context, id string) error

	AddToGroup(ctx context.Context, hostID, groupID string) error
	RemoveFromGroup(ctx context.Context, hostID, groupID string) error

	// MembersOf resolves a group's deduplicated host set at run dispatch
	// time for ad-hoc runs.
	MembersOf(ctx context.Context, groupID string) ([]*domain.Host, error)
}
