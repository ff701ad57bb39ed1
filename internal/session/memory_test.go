// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/necrotome/necrotome/internal/session"
)

func TestNew(t *testing.T) {
	first, err := session.New("user-1")
	require.NoError(t, err)
	second, err := session.New("user-1")
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "user-1", first.UserID)
	assert.WithinDuration(t, first.CreatedAt.Add(session.Lifetime), first.ExpiresAt, time.Second)
	assert.False(t, first.IsExpired())

	_, err = session.New("")
	require.Error(t, err)
}

func TestMemoryStore_CreateGetDelete(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	sess, err := session.New("user-1")
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "user-1", got.UserID)

	require.NoError(t, store.Delete(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMemoryStore_MissingSession(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	_, err := store.Get(ctx, "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrNotFound)

	// Deleting an absent session is not an error.
	assert.NoError(t, store.Delete(ctx, "nope"))
}

func TestMemoryStore_ExpiredSessionIsDropped(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	expired := session.Session{
		ID:        "stale",
		UserID:    "user-1",
		CreatedAt: time.Now().Add(-8 * 24 * time.Hour),
		ExpiresAt: time.Now().Add(-24 * time.Hour),
	}
	require.NoError(t, store.Create(ctx, expired))
	require.Equal(t, 1, store.Len())

	_, err := store.Get(ctx, "stale")
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Equal(t, 0, store.Len(), "expired session is dropped on read")
}

func TestMemoryStore_RejectsEmptyID(t *testing.T) {
	err := session.NewMemoryStore().Create(context.Background(), session.Session{UserID: "user-1"})
	require.Error(t, err)
}
