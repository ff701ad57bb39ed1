// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

package session

import (
	"context"
	"sync"

	"github.com/samber/oops"
)

// MemoryStore keeps sessions in process memory. It is the degraded boot
// backing used until the document store connects; sessions in it do not
// survive a restart. Expired records are dropped lazily on read.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

// Create stores a session.
func (m *MemoryStore) Create(_ context.Context, s Session) error {
	if s.ID == "" {
		return oops.Code("SESSION_INVALID_ID").Errorf("session id cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

// Get retrieves a live session by id.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	if s.IsExpired() {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, oops.Code("SESSION_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	return &s, nil
}

// Delete removes a session. Deleting an absent session is not an error.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len reports the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
