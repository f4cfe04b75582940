// Package vault provides the symmetric encryption and password hashing
// primitives the catalog relies on to keep secret columns off disk in
// plaintext.
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/chacha20poly1305"
)

// devKey is the hard-coded fallback used when Config.EncryptionKey is
// unset. Never use this outside local development — a startup warning is
// logged every time it is in effect.
var devKey = [chacha20poly1305.KeySize]byte{
	'f', 'l', 'e', 'e', 't', 'r', 'u', 'n',
	'-', 'd', 'e', 'v', '-', 'o', 'n', 'l',
	'y', '-', 'd', 'o', '-', 'n', 'o', 't',
	'-', 'u', 's', 'e', '-', 'i', 'n', 'p',
}

// Vault encrypts/decrypts secret columns with an XChaCha20-Poly1305 AEAD
// and hashes/verifies local-user passwords with bcrypt.
type Vault struct {
	key [chacha20poly1305.KeySize]byte
}

// New builds a Vault from the raw FLEETRUN_ENCRYPTION_KEY value read by
// config.Load. If empty, it falls back to devKey and logs a warning — the
// key is still fully functional, it is just not secret.
func New(rawKey string, logger *slog.Logger) (*Vault, error) {
	if rawKey == "" {
		logger.Warn("encryption key not set, using insecure development default",
			"env_var", "FLEETRUN_ENCRYPTION_KEY")
		return &Vault{key: devKey}, nil
	}
	return NewFromKey(rawKey)
}

// NewFromKey decodes a base64-encoded or raw 32-byte key.
func NewFromKey(raw string) (*Vault, error) {
	var v Vault
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) == chacha20poly1305.KeySize {
		copy(v.key[:], decoded)
		return &v, nil
	}
	if len(raw) == chacha20poly1305.KeySize {
		copy(v.key[:], raw)
		return &v, nil
	}
	return nil, fmt.Errorf("vault: encryption key must be %d raw bytes or their base64 encoding", chacha20poly1305.KeySize)
}

// Encrypt seals plaintext and returns base64-encoded (nonce || ciphertext).
// Encryption failure is fatal to the calling write.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(v.key[:])
	if err != nil {
		return "", fmt.Errorf("vault: init aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt. On any failure — bad
// base64, truncated payload, AEAD authentication failure (e.g. after a
// key rotation) — it returns the raw input UNCHANGED rather than an
// error, so already-plaintext legacy rows stay readable; callers detect
// this case downstream when the "decrypted" value fails to parse as a
// key.
func (v *Vault) Decrypt(stored string) string {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return stored
	}

	aead, err := chacha20poly1305.NewX(v.key[:])
	if err != nil {
		return stored
	}

	if len(raw) < aead.NonceSize() {
		return stored
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return stored
	}
	return string(plaintext)
}

// HashPassword salts and hashes pw for storage.
func (v *Vault) HashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("vault: hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether pw matches hash, in constant time.
func (v *Vault) VerifyPassword(pw, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
