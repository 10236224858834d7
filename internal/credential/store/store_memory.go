package store

import (
	"context"
	"sync"

	"vcregistry/internal/credential/models"
)

// InMemoryStore keeps credentials in a map. It is safe for concurrent use but
// does not persist across restarts.
type InMemoryStore struct {
	mu          sync.RWMutex
	credentials map[models.Key]models.Credential
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{credentials: make(map[models.Key]models.Credential)}
}

func (s *InMemoryStore) Insert(_ context.Context, credential models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := credential.Key()
	if _, ok := s.credentials[key]; ok {
		return ErrAlreadyExists
	}
	s.credentials[key] = cloneCredential(credential)
	return nil
}

func (s *InMemoryStore) FindByKey(_ context.Context, key models.Key) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[key]
	if !ok {
		return nil, ErrNotFound
	}
	c = cloneCredential(c)
	return &c, nil
}

func (s *InMemoryStore) Update(_ context.Context, credential models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := credential.Key()
	if _, ok := s.credentials[key]; !ok {
		return ErrNotFound
	}
	s.credentials[key] = cloneCredential(credential)
	return nil
}

// Len reports how many credentials are stored.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.credentials)
}

// cloneCredential detaches the ExpiresAt pointer so callers cannot mutate
// stored state.
func cloneCredential(c models.Credential) models.Credential {
	if c.ExpiresAt != nil {
		e := *c.ExpiresAt
		c.ExpiresAt = &e
	}
	return c
}
