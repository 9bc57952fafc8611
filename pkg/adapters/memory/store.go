// Package memory provides in-process implementations of the persistence
// ports: a session state store and a cosine-similarity vector index. Both
// are safe for concurrent use and intended for tests, demos and single-node
// deployments.
package memory

import (
	"context"
	"sync"

	"github.com/avhart/espalier/pkg/domain"
)

// Store implements ports.StateStore in memory.
type Store struct {
	mu   sync.RWMutex
	data map[string]*domain.State
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{data: make(map[string]*domain.State)}
}

// Save persists a deep copy of the state so later mutations by the caller
// cannot leak into the stored snapshot.
func (s *Store) Save(ctx context.Context, sessionID string, state *domain.State) error {
	snapshot := state.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = snapshot
	return nil
}

// Load retrieves a copy of the stored state.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return state.Clone(), nil
}

// Delete removes the state.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns the active session IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	return sessions, nil
}
