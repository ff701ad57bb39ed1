// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

package session

import (
	"context"
	"errors"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/necrotome/necrotome/internal/store"
)

// MongoStore persists sessions in the document store's sessions collection.
// Expiry is enforced server-side by a TTL index on expiresAt; Get still
// checks client-side because the TTL sweeper only runs periodically.
type MongoStore struct {
	manager *store.Manager
}

// NewMongoStore creates a session store backed by the connection manager.
func NewMongoStore(manager *store.Manager) *MongoStore {
	return &MongoStore{manager: manager}
}

func (m *MongoStore) collection(ctx context.Context) (*mongo.Collection, error) {
	db, err := m.manager.EnsureConnected(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(store.CollectionSessions), nil
}

// Create stores a session.
func (m *MongoStore) Create(ctx context.Context, s Session) error {
	coll, err := m.collection(ctx)
	if err != nil {
		return err
	}

	if _, err := coll.InsertOne(ctx, s); err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("user_id", s.UserID).
			Wrap(err)
	}
	return nil
}

// Get retrieves a live session by id.
func (m *MongoStore) Get(ctx context.Context, id string) (*Session, error) {
	coll, err := m.collection(ctx)
	if err != nil {
		return nil, err
	}

	var s Session
	err = coll.FindOne(ctx, bson.M{"_id": id}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, oops.Code("SESSION_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").With("id", id).Wrap(err)
	}
	if s.IsExpired() {
		return nil, oops.Code("SESSION_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	return &s, nil
}

// Delete removes a session. Deleting an absent session is not an error.
func (m *MongoStore) Delete(ctx context.Context, id string) error {
	coll, err := m.collection(ctx)
	if err != nil {
		return err
	}

	if _, err := coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("id", id).Wrap(err)
	}
	return nil
}
