package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleetrun/fleetrun/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GroupRepository struct {
	pool *pgxpool.Pool
}

func NewGroupRepository(pool *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

func (r *GroupRepository) Create(ctx context.Context, g *domain.Group) (*domain.Group, error) {
	id := uuid.NewString()
	query := `INSERT INTO groups (id, name) VALUES ($1, $2) RETURNING id, name`

	row := r.pool.QueryRow(ctx, query, id, g.Name)
	created, err := scanGroup(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrGroupNameConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *GroupRepository) GetByID(ctx context.Context, id string) (*domain.Group, error) {
	query := `SELECT id, name FROM groups WHERE id = $1`
	return scanGroup(r.pool.QueryRow(ctx, query, id))
}

func (r *GroupRepository) GetByName(ctx context.Context, name string) (*domain.Group, error) {
	query := `SELECT id, name FROM groups WHERE name = $1`
	return scanGroup(r.pool.QueryRow(ctx, query, name))
}

func (r *GroupRepository) List(ctx context.Context) ([]*domain.Group, error) {
	query := `SELECT id, name FROM groups ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []*domain.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Delete cascades host_groups membership rows via the FK's ON DELETE
// CASCADE; any scheduled job that froze this group's resolved host ids
// at save time is unaffected.
func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

func scanGroup(row rowScanner) (*domain.Group, error) {
	var g domain.Group
	err := row.Scan(&g.ID, &g.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGroupNotFound
		}
		return nil, fmt.Errorf("scan group: %w", err)
	}
	return &g, nil
}
