package secrets

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned (wrapped) by backends for unknown secret names.
var ErrNotFound = errors.New("secret not found")

// Backend persists sealed secret values.
type Backend interface {
	SaveSecret(ctx context.Context, name, sealed string) error
	GetSecret(ctx context.Context, name string) (string, error)
	DeleteSecret(ctx context.Context, name string) error
}

// Store seals values before handing them to its backend.
type Store struct {
	backend Backend
	cipher  *Cipher
}

// NewStore creates a secret store.
func NewStore(backend Backend, c *Cipher) *Store {
	return &Store{backend: backend, cipher: c}
}

// Set seals and saves a secret.
func (s *Store) Set(ctx context.Context, name string, value []byte) error {
	if name == "" {
		return fmt.Errorf("secret name is required")
	}
	sealed, err := s.cipher.Seal(value)
	if err != nil {
		return fmt.Errorf("seal secret: %w", err)
	}
	return s.backend.SaveSecret(ctx, name, sealed)
}

// Get loads and opens a secret.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	sealed, err := s.backend.GetSecret(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.cipher.Open(sealed)
}

// Delete removes a secret.
func (s *Store) Delete(ctx context.Context, name string) error {
	return s.backend.DeleteSecret(ctx, name)
}
