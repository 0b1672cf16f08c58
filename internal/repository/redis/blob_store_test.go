package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
)

func newRedisStoreForTest(t *testing.T) (*BlobStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewBlobStore(client)
	require.NoError(t, err)
	return store, mr
}

func TestBlobStore_SaveAndLoad(t *testing.T) {
	// Arrange
	store, _ := newRedisStoreForTest(t)
	ctx := context.Background()

	// Act
	require.NoError(t, store.Save(ctx, "quizSettings", []byte(`{"welcomeTitle":"Hi"}`)))
	data, err := store.Load(ctx, "quizSettings")

	// Assert
	require.NoError(t, err)
	assert.JSONEq(t, `{"welcomeTitle":"Hi"}`, string(data))
}

func TestBlobStore_LoadMissingKey(t *testing.T) {
	// Arrange
	store, _ := newRedisStoreForTest(t)

	// Act
	_, err := store.Load(context.Background(), "missing")

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestBlobStore_KeysArePrefixed(t *testing.T) {
	// Arrange
	store, mr := newRedisStoreForTest(t)
	ctx := context.Background()

	// Act
	require.NoError(t, store.Save(ctx, "quizQuestions", []byte("[]")))

	// Assert: в Redis ключ лежит под служебным префиксом и без TTL
	assert.True(t, mr.Exists("decoder:state:quizQuestions"))
	assert.Zero(t, mr.TTL("decoder:state:quizQuestions"))
}

func TestBlobStore_Delete(t *testing.T) {
	// Arrange
	store, _ := newRedisStoreForTest(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "key", []byte("value")))

	// Act
	require.NoError(t, store.Delete(ctx, "key"))

	// Assert
	_, err := store.Load(ctx, "key")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, store.Delete(ctx, "key"))
}

func TestBlobStore_NilClientRejected(t *testing.T) {
	// Act
	_, err := NewBlobStore(nil)

	// Assert
	assert.Error(t, err)
}
