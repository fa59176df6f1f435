// ABOUTME: In-memory session store backed by a mutex-guarded map
// ABOUTME: The default backend for single-instance deployments and tests

package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. Entries are lost on
// restart, which forces clients back through credential resumption.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Record
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Record),
	}
}

// Get returns the record for a token, or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, token string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Put stores a record under its token.
func (m *MemoryStore) Put(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[rec.Token] = rec
	return nil
}

// Delete removes a token. Unknown tokens are a no-op.
func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, token)
	return nil
}

// Len reports the number of live sessions, for diagnostics.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
