// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/necrotome/necrotome/internal/auth"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	hasher := auth.NewBcryptHasherWithCost(bcrypt.MinCost)

	digest, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, digest)
	assert.NotContains(t, digest, "correct horse")

	ok, err := hasher.Verify("correct horse battery staple", digest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("wrong password", digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBcryptHasher_EmptyPassword(t *testing.T) {
	hasher := auth.NewBcryptHasherWithCost(bcrypt.MinCost)

	_, err := hasher.Hash("")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrEmptyPassword)
}

func TestBcryptHasher_InvalidDigest(t *testing.T) {
	hasher := auth.NewBcryptHasherWithCost(bcrypt.MinCost)

	ok, err := hasher.Verify("password", "not-a-bcrypt-digest")
	require.Error(t, err)
	assert.False(t, ok)
}
