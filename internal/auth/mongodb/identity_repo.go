// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

// Package mongodb implements auth repositories on the document store.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/necrotome/necrotome/internal/auth"
	"github.com/necrotome/necrotome/internal/store"
)

// identityDoc is the wire shape of a users document. _id is decoded as any
// because records created outside the registration path carry plain string
// ids instead of ObjectIDs.
type identityDoc struct {
	ID        any       `bson:"_id"`
	Email     string    `bson:"email"`
	Name      string    `bson:"name"`
	Password  string    `bson:"password,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (d identityDoc) toIdentity() *auth.Identity {
	return &auth.Identity{
		ID:             idString(d.ID),
		Email:          d.Email,
		Name:           d.Name,
		PasswordDigest: d.Password,
		CreatedAt:      d.CreatedAt,
	}
}

func idString(id any) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// IdentityRepository implements auth.IdentityRepository using MongoDB.
type IdentityRepository struct {
	manager *store.Manager
}

// NewIdentityRepository creates a repository backed by the connection
// manager.
func NewIdentityRepository(manager *store.Manager) *IdentityRepository {
	return &IdentityRepository{manager: manager}
}

func (r *IdentityRepository) users(ctx context.Context) (*mongo.Collection, error) {
	db, err := r.manager.EnsureConnected(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(store.CollectionUsers), nil
}

// Lookup retrieves an identity by id. The native ObjectID form is tried
// first when the string matches the native format, then raw string
// equality. The password digest is stripped by projection.
func (r *IdentityRepository) Lookup(ctx context.Context, id string) (*auth.Identity, error) {
	coll, err := r.users(ctx)
	if err != nil {
		return nil, err
	}

	projection := options.FindOne().SetProjection(bson.M{"password": 0})

	for _, filter := range auth.ParseUserID(id).Filters() {
		var doc identityDoc
		err := coll.FindOne(ctx, filter, projection).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			continue
		}
		if err != nil {
			return nil, oops.Code("IDENTITY_LOOKUP_FAILED").
				With("id", id).
				Wrap(err)
		}
		return doc.toIdentity(), nil
	}

	return nil, oops.Code("AUTH_IDENTITY_NOT_FOUND").
		With("id", id).
		Wrap(auth.ErrNotFound)
}

// FindByEmail retrieves an identity including its password digest. Only
// the credential-verification path may call it.
func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	coll, err := r.users(ctx)
	if err != nil {
		return nil, err
	}

	var doc identityDoc
	err = coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, oops.Code("AUTH_IDENTITY_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_LOOKUP_FAILED").
			With("email", email).
			Wrap(err)
	}
	return doc.toIdentity(), nil
}

// Create inserts a new identity. A duplicate email, racing past the
// pre-check, surfaces as AUTH_EMAIL_TAKEN via the unique index.
func (r *IdentityRepository) Create(ctx context.Context, in auth.NewIdentity) (*auth.Identity, error) {
	coll, err := r.users(ctx)
	if err != nil {
		return nil, err
	}

	doc := identityDoc{
		ID:        primitive.NewObjectID(),
		Email:     in.Email,
		Name:      in.Name,
		Password:  in.PasswordDigest,
		CreatedAt: time.Now(),
	}

	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, oops.Code("AUTH_EMAIL_TAKEN").
				With("email", in.Email).
				Wrap(err)
		}
		return nil, oops.Code("IDENTITY_CREATE_FAILED").
			With("email", in.Email).
			Wrap(err)
	}

	return doc.toIdentity(), nil
}
