// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/necrotome/necrotome/internal/auth"
)

func TestParseUserID(t *testing.T) {
	t.Run("valid hex parses as native", func(t *testing.T) {
		raw := "507f1f77bcf86cd799439011"
		id := auth.ParseUserID(raw)

		oid, native := id.Native()
		require.True(t, native)
		assert.Equal(t, raw, oid.Hex())
		assert.Equal(t, raw, id.String())
	})

	t.Run("opaque string stays opaque", func(t *testing.T) {
		tests := []string{
			"legacy-user-42",
			"507f1f77bcf86cd79943901g", // 24 chars, not hex
			"507f1f77",                 // too short
			"",
		}
		for _, raw := range tests {
			id := auth.ParseUserID(raw)
			_, native := id.Native()
			assert.False(t, native, "%q should not parse as native", raw)
			assert.Equal(t, raw, id.String())
		}
	})
}

func TestUserID_Filters(t *testing.T) {
	t.Run("native tries ObjectID first then string", func(t *testing.T) {
		raw := "507f1f77bcf86cd799439011"
		filters := auth.ParseUserID(raw).Filters()
		require.Len(t, filters, 2)

		oid, ok := filters[0]["_id"].(primitive.ObjectID)
		require.True(t, ok)
		assert.Equal(t, raw, oid.Hex())
		assert.Equal(t, bson.M{"_id": raw}, filters[1])
	})

	t.Run("opaque tries string only", func(t *testing.T) {
		filters := auth.ParseUserID("legacy-user-42").Filters()
		require.Len(t, filters, 1)
		assert.Equal(t, bson.M{"_id": "legacy-user-42"}, filters[0])
	})
}

func TestIdentity_Sanitized(t *testing.T) {
	identity := auth.Identity{
		ID:             "user-1",
		Email:          "merlin@necrotome.dev",
		Name:           "Merlin",
		PasswordDigest: "$2a$10$abcdef",
	}

	clean := identity.Sanitized()
	assert.Empty(t, clean.PasswordDigest)
	assert.Equal(t, identity.ID, clean.ID)
	assert.Equal(t, identity.Email, clean.Email)
	assert.Equal(t, identity.Name, clean.Name)

	// The original is untouched.
	assert.NotEmpty(t, identity.PasswordDigest)
}

func TestSessionKeyOf(t *testing.T) {
	identity := auth.Identity{ID: "507f1f77bcf86cd799439011"}
	assert.Equal(t, identity.ID, auth.SessionKeyOf(identity))
}
