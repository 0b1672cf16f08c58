package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/yourusername/decoder-api/internal/domain/entity"
	"github.com/yourusername/decoder-api/internal/domain/repository"
	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
)

// SettingsService управляет текстами публичных экранов.
type SettingsService struct {
	store repository.BlobStore
}

// NewSettingsService создает сервис настроек
func NewSettingsService(store repository.BlobStore) *SettingsService {
	return &SettingsService{store: store}
}

// Get возвращает настройки сайта. Отсутствующие и пустые поля
// заполняются значениями по умолчанию.
func (s *SettingsService) Get(ctx context.Context) (entity.SiteSettings, error) {
	data, err := s.store.Load(ctx, repository.KeySettings)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return entity.DefaultSiteSettings(), nil
		}
		return entity.SiteSettings{}, fmt.Errorf("load settings failed: %w", err)
	}

	var settings entity.SiteSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		log.Printf("[SettingsService] Поврежденный блоб настроек, использую значения по умолчанию: %v", err)
		return entity.DefaultSiteSettings(), nil
	}
	return settings.WithDefaults(), nil
}

// Save сохраняет настройки сайта
func (s *SettingsService) Save(ctx context.Context, settings entity.SiteSettings) error {
	data, err := json.Marshal(settings.WithDefaults())
	if err != nil {
		return fmt.Errorf("marshal settings failed: %w", err)
	}
	if err := s.store.Save(ctx, repository.KeySettings, data); err != nil {
		return fmt.Errorf("save settings failed: %w", err)
	}
	log.Printf("[SettingsService] Настройки сайта обновлены")
	return nil
}
