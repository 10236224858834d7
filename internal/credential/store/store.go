package store

import (
	"context"
	"errors"

	"vcregistry/internal/credential/models"
)

var (
	// ErrNotFound is returned when no credential exists under a key.
	ErrNotFound = errors.New("credential not found")
	// ErrAlreadyExists is returned by Insert when the key is taken, whether
	// or not the existing credential is revoked.
	ErrAlreadyExists = errors.New("credential already exists")
)

// Store persists credentials by key. Implementations translate backend errors
// into the sentinels above; the service maps them to domain errors.
type Store interface {
	// Insert adds a new credential. It never overwrites.
	Insert(ctx context.Context, credential models.Credential) error
	FindByKey(ctx context.Context, key models.Key) (*models.Credential, error)
	// Update writes back a full record that must already exist.
	Update(ctx context.Context, credential models.Credential) error
}
