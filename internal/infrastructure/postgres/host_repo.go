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

type HostRepository struct {
	pool *pgxpool.Pool
}

func NewHostRepository(pool *pgxpool.Pool) *HostRepository {
	return &HostRepository{pool: pool}
}

func (r *HostRepository) Create(ctx context.Context, h *domain.Host) (*domain.Host, error) {
	d := h.WithDefaults()
	d.ID = uuid.NewString()
	query := `
		INSERT INTO hosts (id, name, hostname, username, port, shell)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, name, hostname, username, port, shell`

	row := r.pool.QueryRow(ctx, query, d.ID, d.Name, d.Hostname, d.Username, d.Port, d.Shell)
	return scanHost(row)
}

func (r *HostRepository) GetByID(ctx context.Context, id string) (*domain.Host, error) {
	query := `SELECT id, name, hostname, username, port, shell FROM hosts WHERE id = $1`
	return scanHost(r.pool.QueryRow(ctx, query, id))
}

func (r *HostRepository) List(ctx context.Context) ([]*domain.Host, error) {
	query := `SELECT id, name, hostname, username, port, shell FROM hosts ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []*domain.Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

func (r *HostRepository) Update(ctx context.Context, h *domain.Host) (*domain.Host, error) {
	d := h.WithDefaults()
	query := `
		UPDATE hosts
		SET name = $2, hostname = $3, username = $4, port = $5, shell = $6
		WHERE id = $1
		RETURNING id, name, hostname, username, port, shell`

	row := r.pool.QueryRow(ctx, query, d.ID, d.Name, d.Hostname, d.Username, d.Port, d.Shell)
	return scanHost(row)
}

// Delete cascades only host_groups membership rows via the FK's ON
// DELETE CASCADE; frozen scheduled-job host_ids snapshots are left
// untouched and simply become no-op dispatch targets.
func (r *HostRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM hosts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete host: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrHostNotFound
	}
	return nil
}

func (r *HostRepository) AddToGroup(ctx context.Context, hostID, groupID string) error {
	query := `INSERT INTO host_groups (host_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := r.pool.Exec(ctx, query, hostID, groupID)
	if err != nil {
		return fmt.Errorf("add host to group: %w", err)
	}
	return nil
}

func (r *HostRepository) RemoveFromGroup(ctx context.Context, hostID, groupID string) error {
	query := `DELETE FROM host_groups WHERE host_id = $1 AND group_id = $2`
	_, err := r.pool.Exec(ctx, query, hostID, groupID)
	if err != nil {
		return fmt.Errorf("remove host from group: %w", err)
	}
	return nil
}

// MembersOf resolves a group's deduplicated host set for ad-hoc run
// dispatch, which re-resolves membership live rather than freezing it.
func (r *HostRepository) MembersOf(ctx context.Context, groupID string) ([]*domain.Host, error) {
	query := `
		SELECT h.id, h.name, h.hostname, h.username, h.port, h.shell
		FROM hosts h
		JOIN host_groups hg ON hg.host_id = h.id
		WHERE hg.group_id = $1
		ORDER BY h.name`

	rows, err := r.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()

	var hosts []*domain.Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

func scanHost(row rowScanner) (*domain.Host, error) {
	var h domain.Host
	err := row.Scan(&h.ID, &h.Name, &h.Hostname, &h.Username, &h.Port, &h.Shell)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrHostNotFound
		}
		return nil, fmt.Errorf("scan host: %w", err)
	}
	return &h, nil
}
