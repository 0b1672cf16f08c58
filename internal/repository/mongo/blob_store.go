package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
)

// stateDoc — документ коллекции app_state с одним именованным блобом.
type stateDoc struct {
	Key   string `bson:"_id"`
	Value []byte `bson:"value"`
}

// BlobStore реализует repository.BlobStore поверх MongoDB.
type BlobStore struct {
	collection *mongo.Collection
}

// NewBlobStore создает хранилище блобов в коллекции app_state.
func NewBlobStore(client *mongo.Client, dbName string) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("Mongo client cannot be nil for BlobStore")
	}
	if dbName == "" {
		dbName = "decoder"
	}
	return &BlobStore{
		collection: client.Database(dbName).Collection("app_state"),
	}, nil
}

// Load читает блоб по ключу
func (s *BlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	var doc stateDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("load blob %q failed: %w", key, err)
	}
	return doc.Value, nil
}

// Save записывает блоб через upsert
func (s *BlobStore) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.collection.UpdateOne(
		ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"value": data}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save blob %q failed: %w", key, err)
	}
	return nil
}

// Delete удаляет блоб. Отсутствие документа ошибкой не считается.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return fmt.Errorf("delete blob %q failed: %w", key, err)
	}
	return nil
}
