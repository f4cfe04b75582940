package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleetrun/fleetrun/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SettingsRepository struct {
	pool *pgxpool.Pool
}

func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// Get materialises the id=1 row on first read, rather than relying on a
// migration-seeded default.
func (r *SettingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	var s domain.Settings
	err := r.pool.QueryRow(ctx, `SELECT id, cron_history_limit FROM settings WHERE id = 1`).Scan(&s.ID, &s.CronHistoryLimit)
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	query := `
		INSERT INTO settings (id, cron_history_limit) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET id = settings.id
		RETURNING id, cron_history_limit`

	err = r.pool.QueryRow(ctx, query, domain.DefaultSettings.CronHistoryLimit).Scan(&s.ID, &s.CronHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("create default settings: %w", err)
	}
	return &s, nil
}

func (r *SettingsRepository) SetCronHistoryLimit(ctx context.Context, limit int) error {
	query := `
		INSERT INTO settings (id, cron_history_limit) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET cron_history_limit = EXCLUDED.cron_history_limit`

	_, err := r.pool.Exec(ctx, query, limit)
	if err != nil {
		return fmt.Errorf("set cron history limit: %w", err)
	}
	return nil
}
