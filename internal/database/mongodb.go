package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names for the three persisted aggregates.
const (
	UsersCollection    = "users"
	SessionsCollection = "sessions"
	PasskeysCollection = "passkeys"
)

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique indexes the service relies on for
// its atomicity guarantees: user email, passkey credential id and
// session token uniqueness are all store-level constraints, not
// application-level pre-checks.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)
	uniqueSparse := options.Index().SetUnique(true).SetSparse(true)

	specs := []struct {
		collection string
		models     []mongo.IndexModel
	}{
		{
			collection: UsersCollection,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
				{Keys: bson.D{{Key: "externalId", Value: 1}}, Options: uniqueSparse},
			},
		},
		{
			collection: SessionsCollection,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "token", Value: 1}}, Options: unique},
				{Keys: bson.D{{Key: "userId", Value: 1}}},
				{Keys: bson.D{{Key: "expiresAt", Value: 1}}},
			},
		},
		{
			collection: PasskeysCollection,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "credentialId", Value: 1}}, Options: unique},
				{Keys: bson.D{{Key: "userId", Value: 1}}},
			},
		},
	}

	for _, spec := range specs {
		col := db.Collection(spec.collection)
		if _, err := col.Indexes().CreateMany(ctx, spec.models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", spec.collection, err)
		}
	}
	return nil
}
