package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/yourusername/decoder-api/internal/domain/entity"
	"github.com/yourusername/decoder-api/internal/domain/repository"
	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
	"github.com/yourusername/decoder-api/pkg/auth"
)

// AuthService отвечает за вход администратора: проверку учетных
// данных, блокировку после серии неудач и выдачу токенов.
// Счетчик неудач и блокировка живут только в памяти процесса.
type AuthService struct {
	store       repository.BlobStore
	tokens      *auth.TokenService
	maxFailures int
	lockout     time.Duration

	// Учетные данные для засева хранилища при первом запуске
	defaultUsername string
	defaultPassword string

	mu          sync.Mutex
	failures    int
	lockedUntil time.Time
}

// NewAuthService создает сервис аутентификации администратора
func NewAuthService(store repository.BlobStore, tokens *auth.TokenService, defaultUsername, defaultPassword string, maxFailures, lockoutSeconds int) *AuthService {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if lockoutSeconds <= 0 {
		lockoutSeconds = 30
	}
	return &AuthService{
		store:           store,
		tokens:          tokens,
		maxFailures:     maxFailures,
		lockout:         time.Duration(lockoutSeconds) * time.Second,
		defaultUsername: defaultUsername,
		defaultPassword: defaultPassword,
	}
}

// Login проверяет учетные данные и возвращает токен администратора.
// Сообщение об ошибке не раскрывает, что именно не совпало: имя или
// пароль. После maxFailures подряд неудачных попыток вход блокируется
// на lockout, счетчик при срабатывании блокировки обнуляется.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	s.mu.Lock()
	if remaining := time.Until(s.lockedUntil); remaining > 0 {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: try again in %d seconds", apperrors.ErrLocked, int(remaining.Seconds())+1)
	}
	s.mu.Unlock()

	creds, err := s.credentials(ctx)
	if err != nil {
		return "", err
	}
	if creds == nil {
		// Пароль не настроен ни в хранилище, ни в конфигурации
		log.Printf("[AuthService] Попытка входа при ненастроенных учетных данных администратора")
		return "", fmt.Errorf("%w: admin credentials are not configured", apperrors.ErrForbidden)
	}

	if creds.Username != username || !creds.CheckPassword(password) {
		s.registerFailure()
		return "", apperrors.ErrUnauthorized
	}

	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()

	token, err := s.tokens.Generate(username)
	if err != nil {
		return "", fmt.Errorf("generate admin token failed: %w", err)
	}
	log.Printf("[AuthService] Администратор %s вошел в систему", username)
	return token, nil
}

// ChangePassword меняет пароль администратора после проверки старого
func (s *AuthService) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", apperrors.ErrValidation)
	}

	creds, err := s.credentials(ctx)
	if err != nil {
		return err
	}
	if creds == nil || !creds.CheckPassword(oldPassword) {
		return apperrors.ErrUnauthorized
	}

	if err := creds.SetPassword(newPassword); err != nil {
		return fmt.Errorf("hash new password failed: %w", err)
	}
	if err := s.saveCredentials(ctx, creds); err != nil {
		return err
	}
	log.Printf("[AuthService] Пароль администратора изменен")
	return nil
}

// ParseToken проверяет токен администратора
func (s *AuthService) ParseToken(token string) (*auth.AdminClaims, error) {
	return s.tokens.Parse(token)
}

// registerFailure учитывает неудачную попытку входа
func (s *AuthService) registerFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures++
	if s.failures >= s.maxFailures {
		s.lockedUntil = time.Now().Add(s.lockout)
		s.failures = 0
		log.Printf("[AuthService] Вход заблокирован на %v после серии неудачных попыток", s.lockout)
	}
}

// credentials загружает учетные данные, при первом обращении засевая
// их значениями из конфигурации. Возвращает nil, если данные не
// настроены нигде.
func (s *AuthService) credentials(ctx context.Context) (*entity.AdminCredentials, error) {
	data, err := s.store.Load(ctx, repository.KeyAdminCredentials)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("load admin credentials failed: %w", err)
		}
		if s.defaultUsername == "" || s.defaultPassword == "" {
			return nil, nil
		}
		creds, err := entity.NewAdminCredentials(s.defaultUsername, s.defaultPassword)
		if err != nil {
			return nil, fmt.Errorf("seed admin credentials failed: %w", err)
		}
		if err := s.saveCredentials(ctx, creds); err != nil {
			return nil, err
		}
		log.Printf("[AuthService] Учетные данные администратора засеяны из конфигурации")
		return creds, nil
	}

	var creds entity.AdminCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("unmarshal admin credentials failed: %w", err)
	}
	return &creds, nil
}

func (s *AuthService) saveCredentials(ctx context.Context, creds *entity.AdminCredentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal admin credentials failed: %w", err)
	}
	if err := s.store.Save(ctx, repository.KeyAdminCredentials, data); err != nil {
		return fmt.Errorf("save admin credentials failed: %w", err)
	}
	return nil
}
