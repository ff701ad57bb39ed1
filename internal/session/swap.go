// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

package session

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// holder boxes a Store with its backend name so both swap atomically.
type holder struct {
	store Store
	name  string
}

// Swappable is the indirection the request pipeline holds instead of a
// concrete store. The pipeline boots on a memory backing and is upgraded
// in place once the document store connects; the reference is replaced,
// never mutated, so a concurrent request can never observe a
// half-initialized store.
//
// Sessions created before the upgrade live only in the old backing and are
// lost by the swap. That is the accepted failure mode: those clients
// re-authenticate, typically with a token that is still valid.
type Swappable struct {
	cur atomic.Pointer[holder]
}

// NewSwappable creates a Swappable starting on the given store.
func NewSwappable(initial Store, name string) *Swappable {
	s := &Swappable{}
	s.cur.Store(&holder{store: initial, name: name})
	return s
}

// Swap replaces the live store and returns the name of the previous
// backing.
func (s *Swappable) Swap(next Store, name string, logger *slog.Logger) string {
	prev := s.cur.Swap(&holder{store: next, name: name})
	if logger != nil {
		logger.Info("session store swapped",
			"from", prev.name,
			"to", name,
			"note", "sessions created on the previous backing are dropped",
		)
	}
	return prev.name
}

// BackendName reports the live backing's name.
func (s *Swappable) BackendName() string {
	return s.cur.Load().name
}

// Create stores a session in the live backing.
func (s *Swappable) Create(ctx context.Context, sess Session) error {
	return s.cur.Load().store.Create(ctx, sess)
}

// Get retrieves a session from the live backing.
func (s *Swappable) Get(ctx context.Context, id string) (*Session, error) {
	return s.cur.Load().store.Get(ctx, id)
}

// Delete removes a session from the live backing.
func (s *Swappable) Delete(ctx context.Context, id string) error {
	return s.cur.Load().store.Delete(ctx, id)
}
