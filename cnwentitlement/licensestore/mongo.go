package licensestore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const defaultMongoCollection = "cnw_entitlement_licenses"

// validCollectionName matches safe MongoDB collection names.
var validCollectionName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// MongoOption configures a MongoStore.
type MongoOption func(*MongoStore)

// WithCollectionName sets the MongoDB collection name. Default: "cnw_entitlement_licenses".
func WithCollectionName(name string) MongoOption {
	return func(s *MongoStore) {
		s.collectionName = name
	}
}

// MongoStore implements Store using MongoDB.
type MongoStore struct {
	collection     *mongo.Collection
	collectionName string
}

// NewMongoStore creates a new MongoDB-backed license store.
// It creates the necessary indexes on initialization.
func NewMongoStore(ctx context.Context, db *mongo.Database, opts ...MongoOption) (*MongoStore, error) {
	s := &MongoStore{
		collectionName: defaultMongoCollection,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !validCollectionName.MatchString(s.collectionName) {
		return nil, fmt.Errorf("invalid collection name %q: must match [a-zA-Z_][a-zA-Z0-9_]*", s.collectionName)
	}
	s.collection = db.Collection(s.collectionName)

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "workspace_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoStore) Save(ctx context.Context, workspaceID, ciphertext string) error {
	filter := bson.M{"workspace_id": workspaceID}
	update := bson.M{
		"$set": bson.M{
			"ciphertext": ciphertext,
			"updated_at": time.Now(),
		},
	}
	_, err := s.collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save license: %w", err)
	}
	return nil
}

func (s *MongoStore) Load(ctx context.Context, workspaceID string) (*Record, error) {
	var r Record
	err := s.collection.FindOne(ctx, bson.M{"workspace_id": workspaceID}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load license: %w", err)
	}
	return &r, nil
}

func (s *MongoStore) Delete(ctx context.Context, workspaceID string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"workspace_id": workspaceID})
	if err != nil {
		return fmt.Errorf("delete license: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(_ context.Context) error {
	return nil // user manages the mongo.Database lifecycle
}
