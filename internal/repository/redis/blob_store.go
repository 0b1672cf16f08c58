package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
)

// keyPrefix отделяет блобы приложения от прочих ключей Redis.
const keyPrefix = "decoder:state:"

// BlobStore реализует repository.BlobStore поверх Redis.
type BlobStore struct {
	client redis.UniversalClient
}

// NewBlobStore создает новое хранилище и возвращает ошибку при проблемах
func NewBlobStore(client redis.UniversalClient) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("Redis client cannot be nil for BlobStore")
	}
	return &BlobStore{client: client}, nil
}

// Load получает блоб из Redis
func (s *BlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Save сохраняет блоб без срока истечения: состояние приложения
// живет до явного удаления.
func (s *BlobStore) Save(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, keyPrefix+key, data, 0).Err()
}

// Delete удаляет блоб
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}
