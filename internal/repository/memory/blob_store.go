package memory

import (
	"context"
	"sync"

	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
)

// BlobStore — потокобезопасное хранилище блобов в памяти.
// Используется в тестах и при запуске без внешней базы.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewBlobStore создает пустое хранилище.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		blobs: make(map[string][]byte),
	}
}

// Load возвращает копию блоба по ключу.
func (s *BlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[key]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	// Копия, чтобы вызывающий код не мог изменить внутреннее состояние
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Save сохраняет копию блоба под ключом.
func (s *BlobStore) Save(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[key] = stored
	return nil
}

// Delete удаляет блоб. Отсутствие ключа ошибкой не считается.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, key)
	return nil
}
