package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
)

func TestBlobStore_SaveAndLoad(t *testing.T) {
	// Arrange
	store := NewBlobStore()
	ctx := context.Background()

	// Act
	require.NoError(t, store.Save(ctx, "key", []byte("value")))
	data, err := store.Load(ctx, "key")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), data)
}

func TestBlobStore_LoadMissingKey(t *testing.T) {
	// Arrange
	store := NewBlobStore()

	// Act
	_, err := store.Load(context.Background(), "missing")

	// Assert
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestBlobStore_Delete(t *testing.T) {
	// Arrange
	store := NewBlobStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "key", []byte("value")))

	// Act
	require.NoError(t, store.Delete(ctx, "key"))

	// Assert
	_, err := store.Load(ctx, "key")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	// Повторное удаление не считается ошибкой
	assert.NoError(t, store.Delete(ctx, "key"))
}

func TestBlobStore_LoadReturnsCopy(t *testing.T) {
	// Arrange
	store := NewBlobStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "key", []byte("value")))

	// Act: портим полученный срез
	data, err := store.Load(ctx, "key")
	require.NoError(t, err)
	data[0] = 'X'

	// Assert: содержимое хранилища не затронуто
	fresh, err := store.Load(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), fresh)
}

func TestBlobStore_ConcurrentAccess(t *testing.T) {
	// Arrange
	store := NewBlobStore()
	ctx := context.Background()

	// Act: параллельные записи и чтения одного ключа
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Save(ctx, "shared", []byte("payload"))
		}()
		go func() {
			defer wg.Done()
			_, _ = store.Load(ctx, "shared")
		}()
	}
	wg.Wait()

	// Assert
	data, err := store.Load(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}
