package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleetrun/fleetrun/internal/domain"
	"github.com/fleetrun/fleetrun/internal/vault"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CredentialRepository is the only place ciphertext and plaintext
// private keys ever meet; the vault lives here and nowhere else in the
// catalog layer.
type CredentialRepository struct {
	pool  *pgxpool.Pool
	vault *vault.Vault
}

func NewCredentialRepository(pool *pgxpool.Pool, v *vault.Vault) *CredentialRepository {
	return &CredentialRepository{pool: pool, vault: v}
}

func (r *CredentialRepository) Create(ctx context.Context, name, privateKeyPlaintext string) (*domain.Credential, error) {
	ciphertext, err := r.vault.Encrypt(privateKeyPlaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypt private key: %w", err)
	}

	id := uuid.NewString()
	query := `
		INSERT INTO credentials (id, name, private_key_ciphertext)
		VALUES ($1, $2, $3)
		RETURNING id, name, private_key_ciphertext`

	row := r.pool.QueryRow(ctx, query, id, name, ciphertext)
	created, err := scanCredential(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrCredentialNameConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *CredentialRepository) GetByID(ctx context.Context, id string) (*domain.Credential, error) {
	query := `SELECT id, name, private_key_ciphertext FROM credentials WHERE id = $1`
	return scanCredential(r.pool.QueryRow(ctx, query, id))
}

func (r *CredentialRepository) GetByName(ctx context.Context, name string) (*domain.Credential, error) {
	query := `SELECT id, name, private_key_ciphertext FROM credentials WHERE name = $1`
	return scanCredential(r.pool.QueryRow(ctx, query, name))
}

func (r *CredentialRepository) List(ctx context.Context) ([]*domain.Credential, error) {
	query := `SELECT id, name, private_key_ciphertext FROM credentials ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []*domain.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (r *CredentialRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM credentials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCredentialNotFound
	}
	return nil
}

// PrivateKey decrypts the stored ciphertext for id, returning it only
// for the lifetime of a single SSH connect attempt.
func (r *CredentialRepository) PrivateKey(ctx context.Context, id string) (string, error) {
	var ciphertext string
	err := r.pool.QueryRow(ctx, `SELECT private_key_ciphertext FROM credentials WHERE id = $1`, id).Scan(&ciphertext)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrCredentialNotFound
		}
		return "", fmt.Errorf("load credential: %w", err)
	}
	return r.vault.Decrypt(ciphertext), nil
}

func scanCredential(row rowScanner) (*domain.Credential, error) {
	var c domain.Credential
	err := row.Scan(&c.ID, &c.Name, &c.PrivateKeyCiphertext)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	return &c, nil
}
