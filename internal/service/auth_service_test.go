package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
	"github.com/yourusername/decoder-api/internal/repository/memory"
	"github.com/yourusername/decoder-api/pkg/auth"
)

func newAuthForTest(t *testing.T, maxFailures, lockoutSeconds int) *AuthService {
	t.Helper()
	tokens, err := auth.NewTokenService(60 * time.Minute)
	require.NoError(t, err)
	return NewAuthService(memory.NewBlobStore(), tokens, "admin", "secret123", maxFailures, lockoutSeconds)
}

func TestAuthService_Login_Success(t *testing.T) {
	// Arrange
	svc := newAuthForTest(t, 5, 30)

	// Act
	token, err := svc.Login(context.Background(), "admin", "secret123")

	// Assert
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	// Arrange
	svc := newAuthForTest(t, 5, 30)

	// Act
	_, err := svc.Login(context.Background(), "admin", "wrong")

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAuthService_Login_WrongUsernameSameError(t *testing.T) {
	// Arrange
	svc := newAuthForTest(t, 5, 30)
	ctx := context.Background()

	// Act
	_, errUser := svc.Login(ctx, "nobody", "secret123")
	_, errPass := svc.Login(ctx, "admin", "wrong")

	// Assert: по ошибке нельзя понять, что именно не совпало
	assert.ErrorIs(t, errUser, apperrors.ErrUnauthorized)
	assert.ErrorIs(t, errPass, apperrors.ErrUnauthorized)
	assert.Equal(t, errUser.Error(), errPass.Error())
}

func TestAuthService_Login_LockoutAfterFailures(t *testing.T) {
	// Arrange: порог в три неудачи
	svc := newAuthForTest(t, 3, 30)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.Login(ctx, "admin", "wrong")
		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	}

	// Act: даже верный пароль во время блокировки отклоняется
	_, err := svc.Login(ctx, "admin", "secret123")

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrLocked)
}

func TestAuthService_Login_SuccessResetsFailures(t *testing.T) {
	// Arrange: две неудачи при пороге в три, затем успех
	svc := newAuthForTest(t, 3, 30)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, _ = svc.Login(ctx, "admin", "wrong")
	}
	_, err := svc.Login(ctx, "admin", "secret123")
	require.NoError(t, err)

	// Act: счетчик обнулен, две новые неудачи блокировку не вызывают
	for i := 0; i < 2; i++ {
		_, err = svc.Login(ctx, "admin", "wrong")
		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	}
	_, err = svc.Login(ctx, "admin", "secret123")

	// Assert
	assert.NoError(t, err)
}

func TestAuthService_Login_LockoutExpires(t *testing.T) {
	// Arrange: короткая блокировка
	svc := newAuthForTest(t, 1, 30)
	ctx := context.Background()
	_, err := svc.Login(ctx, "admin", "wrong")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = svc.Login(ctx, "admin", "secret123")
	require.ErrorIs(t, err, apperrors.ErrLocked)

	// Act: переводим момент разблокировки в прошлое
	svc.mu.Lock()
	svc.lockedUntil = time.Now().Add(-time.Second)
	svc.mu.Unlock()
	_, err = svc.Login(ctx, "admin", "secret123")

	// Assert
	assert.NoError(t, err)
}

func TestAuthService_Login_NotConfigured(t *testing.T) {
	// Arrange: ни хранилище, ни конфигурация не содержат учетных данных
	tokens, err := auth.NewTokenService(60 * time.Minute)
	require.NoError(t, err)
	svc := NewAuthService(memory.NewBlobStore(), tokens, "", "", 5, 30)

	// Act
	_, err = svc.Login(context.Background(), "admin", "anything")

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestAuthService_ChangePassword(t *testing.T) {
	// Arrange
	svc := newAuthForTest(t, 5, 30)
	ctx := context.Background()
	_, err := svc.Login(ctx, "admin", "secret123")
	require.NoError(t, err)

	// Act
	err = svc.ChangePassword(ctx, "secret123", "newsecret")

	// Assert: старый пароль больше не действует
	require.NoError(t, err)
	_, err = svc.Login(ctx, "admin", "secret123")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = svc.Login(ctx, "admin", "newsecret")
	assert.NoError(t, err)
}

func TestAuthService_ChangePassword_WrongOld(t *testing.T) {
	// Arrange
	svc := newAuthForTest(t, 5, 30)

	// Act
	err := svc.ChangePassword(context.Background(), "wrong", "newsecret")

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAuthService_ChangePassword_TooShort(t *testing.T) {
	// Arrange
	svc := newAuthForTest(t, 5, 30)

	// Act
	err := svc.ChangePassword(context.Background(), "secret123", "123")

	// Assert
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestAuthService_ParseToken_Garbage(t *testing.T) {
	// Arrange
	svc := newAuthForTest(t, 5, 30)

	// Act
	_, err := svc.ParseToken("not-a-token")

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
