package licensestore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. It is intended for tests
// and single-process deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Save(_ context.Context, workspaceID, ciphertext string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[workspaceID] = Record{
		WorkspaceID: workspaceID,
		Ciphertext:  ciphertext,
		UpdatedAt:   time.Now(),
	}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, workspaceID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[workspaceID]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) Delete(_ context.Context, workspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, workspaceID)
	return nil
}

func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}
