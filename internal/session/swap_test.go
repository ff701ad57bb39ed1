// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

package session_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/necrotome/necrotome/internal/session"
)

func TestSwappable_DelegatesToInitialStore(t *testing.T) {
	ctx := context.Background()
	mem := session.NewMemoryStore()
	swap := session.NewSwappable(mem, "memory")

	assert.Equal(t, "memory", swap.BackendName())

	sess, err := session.New("user-1")
	require.NoError(t, err)
	require.NoError(t, swap.Create(ctx, sess))

	got, err := swap.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	require.NoError(t, swap.Delete(ctx, sess.ID))
	assert.Equal(t, 0, mem.Len())
}

func TestSwappable_SwapRedirectsTraffic(t *testing.T) {
	ctx := context.Background()
	boot := session.NewMemoryStore()
	upgraded := session.NewMemoryStore()
	swap := session.NewSwappable(boot, "memory")

	early, err := session.New("user-early")
	require.NoError(t, err)
	require.NoError(t, swap.Create(ctx, early))

	prev := swap.Swap(upgraded, "mongodb", nil)
	assert.Equal(t, "memory", prev)
	assert.Equal(t, "mongodb", swap.BackendName())

	// New sessions land in the new backing.
	late, err := session.New("user-late")
	require.NoError(t, err)
	require.NoError(t, swap.Create(ctx, late))
	assert.Equal(t, 1, upgraded.Len())

	// Sessions from before the swap are gone.
	_, err = swap.Get(ctx, early.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSwappable_ConcurrentAccessDuringSwap(t *testing.T) {
	ctx := context.Background()
	swap := session.NewSwappable(session.NewMemoryStore(), "memory")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				sess, err := session.New("user-1")
				assert.NoError(t, err)
				assert.NoError(t, swap.Create(ctx, sess))
				_, _ = swap.Get(ctx, sess.ID)
			}
		}()
	}

	for range 10 {
		swap.Swap(session.NewMemoryStore(), "memory", nil)
	}
	wg.Wait()
}
