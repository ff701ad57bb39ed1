// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

// Package session persists web sessions and manages the hot-swappable
// store backing them.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Lifetime is the fixed session validity, matching the token lifetime.
const Lifetime = 7 * 24 * time.Hour

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Session links an opaque session id to a user id. The client holds only
// the id, delivered via cookie.
type Session struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	CreatedAt time.Time `bson:"createdAt"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

// New creates a session for the given user key with the standard lifetime.
func New(userID string) (Session, error) {
	if userID == "" {
		return Session{}, oops.Code("SESSION_INVALID_USER").Errorf("user id cannot be empty")
	}

	now := time.Now()
	return Session{
		ID:        ulid.Make().String(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(Lifetime),
	}, nil
}

// IsExpiredAt reports whether the session would be expired at t.
func (s Session) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// IsExpired reports whether the session has expired.
func (s Session) IsExpired() bool {
	return s.IsExpiredAt(time.Now())
}

// Store persists sessions. Implementations must treat expired records as
// absent.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}
