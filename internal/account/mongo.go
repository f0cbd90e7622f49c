package account

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoStore keeps accounts in the "users" collection with _id = uid.
type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection("users")}
}

func (m *MongoStore) Create(ctx context.Context, a *Account) error {
	d := toDocument(a)
	d.Version = 1
	if _, err := m.collection.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAccountExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	a.Version = 1
	return nil
}

func (m *MongoStore) Get(ctx context.Context, uid string) (*Account, error) {
	var d document
	err := m.collection.FindOne(ctx, bson.M{"_id": uid}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return d.toAccount()
}

func (m *MongoStore) Replace(ctx context.Context, a *Account) error {
	d := toDocument(a)
	d.Version = a.Version + 1

	filter := bson.M{"_id": a.UID, "version": a.Version}
	res, err := m.collection.ReplaceOne(ctx, filter, d)
	if err != nil {
		return fmt.Errorf("replace account: %w", err)
	}
	if res.MatchedCount == 0 {
		return m.missOrConflict(ctx, a.UID)
	}
	a.Version = d.Version
	return nil
}

func (m *MongoStore) missOrConflict(ctx context.Context, uid string) error {
	n, err := m.collection.CountDocuments(ctx, bson.M{"_id": uid})
	if err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return ErrVersionConflict
}
