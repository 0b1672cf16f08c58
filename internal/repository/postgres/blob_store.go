package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
)

// appState — строка таблицы app_state с одним именованным блобом.
type appState struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     []byte    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName определяет имя таблицы для GORM
func (appState) TableName() string {
	return "app_state"
}

// BlobStore реализует repository.BlobStore поверх PostgreSQL.
type BlobStore struct {
	db *gorm.DB
}

// NewBlobStore создает новое хранилище блобов
func NewBlobStore(db *gorm.DB) *BlobStore {
	return &BlobStore{db: db}
}

// Load читает блоб по ключу
func (s *BlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	var row appState
	err := s.db.WithContext(ctx).First(&row, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("load blob %q failed: %w", key, err)
	}
	return row.Value, nil
}

// Save записывает блоб, создавая строку при необходимости.
// Гонка двух одновременных вставок разрешается через unique violation:
// проигравший повторяет запись как обновление.
func (s *BlobStore) Save(ctx context.Context, key string, data []byte) error {
	res := s.db.WithContext(ctx).
		Model(&appState{}).
		Where("key = ?", key).
		Update("value", data)
	if res.Error != nil {
		return fmt.Errorf("save blob %q failed: %w", key, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Create(&appState{Key: key, Value: data}).Error
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		// Строку успел вставить конкурент, дописываем значение поверх
		retry := s.db.WithContext(ctx).
			Model(&appState{}).
			Where("key = ?", key).
			Update("value", data)
		if retry.Error != nil {
			return fmt.Errorf("save blob %q failed after conflict: %w", key, retry.Error)
		}
		return nil
	}
	return fmt.Errorf("save blob %q failed: %w", key, err)
}

// Delete удаляет блоб. Отсутствие строки ошибкой не считается.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Delete(&appState{}, "key = ?", key).Error
	if err != nil {
		return fmt.Errorf("delete blob %q failed: %w", key, err)
	}
	return nil
}

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
