package repository

import (
	"context"

	"github.com/fleetrun/fleetrun/internal/domain"
)

type GroupRepository interface {
	Create(ctx context.Context, g *domain.Group) (*domain.Group, error)
	GetByID(ctx context.Context, id string) (*domain.Group, error)
	GetByName(ctx context.Context, name string) (*domain.Group, error)
	List(ctx context.Context) ([]*domain.Group, error)
	Delete(ctx context.Context, id string) error
}
