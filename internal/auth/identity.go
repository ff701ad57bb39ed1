// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

// Package auth provides identity, token, and credential primitives for
// Necrotome.
package auth

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Identity is a registered user record. PasswordDigest is only populated on
// the credential-verification path; lookups outside that boundary carry an
// empty digest.
type Identity struct {
	ID             string
	Email          string
	Name           string
	PasswordDigest string
	CreatedAt      time.Time
}

// Sanitized returns a copy with the password digest stripped.
func (i Identity) Sanitized() Identity {
	i.PasswordDigest = ""
	return i
}

// SessionKeyOf maps an identity to the opaque subject key stored in
// sessions and minted into tokens.
func SessionKeyOf(identity Identity) string {
	return identity.ID
}

// UserID is a user identifier in one of two shapes: a store-native
// ObjectID, or an opaque string for records that originated outside the
// normal insertion path. Lookups must tolerate both.
type UserID struct {
	raw    string
	oid    primitive.ObjectID
	native bool
}

// ParseUserID classifies an identifier string. A 24-character hex string
// parses as native; everything else stays opaque.
func ParseUserID(s string) UserID {
	id := UserID{raw: s}
	if len(s) == 24 {
		if oid, err := primitive.ObjectIDFromHex(s); err == nil {
			id.oid = oid
			id.native = true
		}
	}
	return id
}

// Native returns the ObjectID form, if the identifier has one.
func (id UserID) Native() (primitive.ObjectID, bool) {
	return id.oid, id.native
}

// String returns the original string form.
func (id UserID) String() string {
	return id.raw
}

// Filters returns the _id filters to try, native form first. A record
// inserted through one path may be referenced by a key minted from either
// representation, so both are candidates.
func (id UserID) Filters() []bson.M {
	if id.native {
		return []bson.M{
			{"_id": id.oid},
			{"_id": id.raw},
		}
	}
	return []bson.M{{"_id": id.raw}}
}

// NewIdentity carries the fields for a registration insert.
type NewIdentity struct {
	Email          string
	Name           string
	PasswordDigest string
}

// IdentityRepository looks up and creates user records in the document
// store.
type IdentityRepository interface {
	// Lookup retrieves an identity by id, tolerating both id shapes.
	// The password digest is stripped by projection.
	Lookup(ctx context.Context, id string) (*Identity, error)

	// FindByEmail retrieves an identity including its password digest.
	// Only the credential-verification path may call it.
	FindByEmail(ctx context.Context, email string) (*Identity, error)

	// Create inserts a new identity and returns the stored record.
	Create(ctx context.Context, in NewIdentity) (*Identity, error)
}
