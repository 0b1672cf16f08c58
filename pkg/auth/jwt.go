package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"

	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
)

// AdminClaims содержит поля токена администратора
type AdminClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenService выдает и проверяет токены администратора.
// Ключ подписи генерируется случайно при старте процесса и нигде не
// сохраняется, поэтому после перезапуска все выданные токены
// становятся недействительными. Это требование, а не ограничение:
// сессия администратора не должна переживать полный перезапуск.
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
}

// NewTokenService создает сервис токенов со случайным ключом подписи
func NewTokenService(ttl time.Duration) (*TokenService, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return &TokenService{
		signingKey: key,
		ttl:        ttl,
	}, nil
}

// Generate создает новый токен администратора
func (s *TokenService) Generate(username string) (string, error) {
	now := time.Now()
	claims := &AdminClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "decoder-api",
			Subject:   username,
			Audience:  jwt.ClaimStrings{"decoder-admin"},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.signingKey)
	if err != nil {
		log.Printf("[Auth] Ошибка генерации токена для администратора %s: %v", username, err)
		return "", err
	}
	return tokenString, nil
}

// Parse проверяет токен и возвращает его claims
func (s *TokenService) Parse(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})

	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, apperrors.ErrExpiredToken
		}
		return nil, apperrors.ErrUnauthorized
	}

	if !token.Valid {
		return nil, apperrors.ErrUnauthorized
	}
	return claims, nil
}
