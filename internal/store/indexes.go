// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

package store

import (
	"context"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names used by the authentication core.
const (
	CollectionUsers    = "users"
	CollectionSessions = "sessions"
)

func pingCommand() bson.D {
	return bson.D{{Key: "ping", Value: 1}}
}

// EnsureIndexes creates the indexes the authentication core relies on:
// a unique index on users.email and a server-enforced TTL on
// sessions.expiresAt. Mongo's createIndexes is idempotent for identical
// definitions, so this is safe to run on every startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	users := db.Collection(CollectionUsers)
	if _, err := users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return oops.Code("STORE_INDEX_FAILED").
			With("collection", CollectionUsers).
			With("index", "email_unique").
			Wrap(err)
	}

	sessions := db.Collection(CollectionSessions)
	models := []mongo.IndexModel{
		{
			// expireAfterSeconds 0 makes expiresAt the absolute deadline.
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}},
		},
	}
	if _, err := sessions.Indexes().CreateMany(ctx, models); err != nil {
		return oops.Code("STORE_INDEX_FAILED").
			With("collection", CollectionSessions).
			Wrap(err)
	}

	return nil
}
