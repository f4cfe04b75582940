package repository

import (
	"context"

	"github.com/fleetrun/fleetrun/internal/domain"
)

// CredentialRepository hides the vault from callers: Create takes a
// plaintext key and PrivateKey returns a plaintext key. GetByID,
// GetByName and List return the stored ciphertext in
// Credential.PrivateKeyCiphertext, not the plaintext.
type CredentialRepository interface {
	// Create encrypts privateKeyPlaintext via the vault before persisting.
	Create(ctx context.Context, name, privateKeyPlaintext string) (*domain.Credential, error)
	GetByID(ctx context.Context, id string) (*domain.Credential, error)
	GetByName(ctx context.Context, name string) (*domain.Credential, error)
	List(ctx context.Context) ([]*domain.Credential, error)
	Delete(ctx context.Context, id string) error

	// PrivateKey decrypts and returns the plaintext key for id, for the
	// duration of a single SSH connection attempt.
	PrivateKey(ctx context.Context, id string) (string, error)
}
