package repository

import (
	"context"

	"github.com/fleetrun/fleetrun/internal/domain"
)

// SettingsRepository is a get-or-create accessor for the id=1 singleton
// row — never implicit global state.
type SettingsRepository interface {
	Get(ctx context.Context) (*domain.Settings, error)
	SetCronHistoryLimit(ctx context.Context, limit int) error
}
