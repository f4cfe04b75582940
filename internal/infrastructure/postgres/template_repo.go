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

type TemplateRepository struct {
	pool *pgxpool.Pool
}

func NewTemplateRepository(pool *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

func (r *TemplateRepository) Create(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO templates (id, name, content, script_type, arguments)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, content, script_type, arguments, created_at`

	row := r.pool.QueryRow(ctx, query, id, t.Name, t.Content, t.Type, t.Arguments)
	created, err := scanTemplate(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrTemplateNameConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*domain.Template, error) {
	query := `SELECT id, name, content, script_type, arguments, created_at FROM templates WHERE id = $1`
	return scanTemplate(r.pool.QueryRow(ctx, query, id))
}

func (r *TemplateRepository) GetByName(ctx context.Context, name string) (*domain.Template, error) {
	query := `SELECT id, name, content, script_type, arguments, created_at FROM templates WHERE name = $1`
	return scanTemplate(r.pool.QueryRow(ctx, query, name))
}

func (r *TemplateRepository) Update(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	query := `
		UPDATE templates
		SET name = $2, content = $3, script_type = $4, arguments = $5
		WHERE id = $1
		RETURNING id, name, content, script_type, arguments, created_at`

	row := r.pool.QueryRow(ctx, query, t.ID, t.Name, t.Content, t.Type, t.Arguments)
	updated, err := scanTemplate(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrTemplateNameConflict
		}
		return nil, err
	}
	return updated, nil
}

func (r *TemplateRepository) List(ctx context.Context) ([]*domain.Template, error) {
	query := `SELECT id, name, content, script_type, arguments, created_at FROM templates ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []*domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// Delete refuses while any ScheduledJob references id, naming the
// dependents in a *domain.TemplateInUseError.
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	var dependents []string
	rows, err := r.pool.Query(ctx, `SELECT id FROM scheduled_jobs WHERE template_id = $1`, id)
	if err != nil {
		return fmt.Errorf("check dependents: %w", err)
	}
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			rows.Close()
			return fmt.Errorf("scan dependent id: %w", err)
		}
		dependents = append(dependents, sid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate dependents: %w", err)
	}
	if len(dependents) > 0 {
		return &domain.TemplateInUseError{TemplateID: id, ScheduledJobIDs: dependents}
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTemplateNotFound
	}
	return nil
}

func scanTemplate(row rowScanner) (*domain.Template, error) {
	var t domain.Template
	err := row.Scan(&t.ID, &t.Name, &t.Content, &t.Type, &t.Arguments, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("scan template: %w", err)
	}
	return &t, nil
}
