package store

import (
	"context"
	"sync"
	"time"
)

// Ensure MemoryStore implements the store interface
var _ CredentialStore = (*MemoryStore)(nil)

// MemoryStore is a process-local credential store for single-instance
// deployments and tests. Records are copied on read and write so callers
// never share memory with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	credentials map[string]*Credential
}

// NewMemoryStore creates a new in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		credentials: make(map[string]*Credential),
	}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.credentials[userID]
	if !ok {
		return nil, ErrCredentialNotFound
	}

	copied := *cred
	copied.Scopes = append([]string(nil), cred.Scopes...)
	return &copied, nil
}

func (s *MemoryStore) Upsert(_ context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	copied := *cred
	copied.Scopes = append([]string(nil), cred.Scopes...)
	copied.UpdatedAt = now

	if existing, ok := s.credentials[cred.UserID]; ok {
		copied.CreatedAt = existing.CreatedAt
	} else if copied.CreatedAt.IsZero() {
		copied.CreatedAt = now
	}

	// The whole record is swapped under one lock, so a reader never sees a
	// stale access token paired with a rotated refresh token.
	s.credentials[cred.UserID] = &copied
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.credentials, userID)
	return nil
}

// Count returns the number of stored credentials.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.credentials)
}
