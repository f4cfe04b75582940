package domain

import "errors"

var (
	ErrCredentialNotFound     = errors.New("credential not found")
	ErrCredentialNameConflict = errors.New("credential with this name already exists")
)

// Credential is a named, encrypted private key. PrivateKeyCiphertext is
// the AEAD ciphertext as it sits in the catalog; the plaintext is only
// ever materialised in-process for the duration of a single SSH connect
// attempt.
type Credential struct {
	ID                   string
	Name                 string
	PrivateKeyCiphertext string
}
