package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/yourusername/decoder-api/internal/domain/entity"
	"github.com/yourusername/decoder-api/internal/domain/repository"
	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
)

// CooldownStatus — результат проверки окна между попытками.
// Блокировка — это не ошибка, а штатный ответ политики.
type CooldownStatus struct {
	Allowed      bool
	BlockedUntil time.Time
	Remaining    time.Duration
}

// LeaderboardService управляет таблицей лидеров: политика замещения
// записей, сортировка и окно между попытками одного участника.
type LeaderboardService struct {
	store    repository.BlobStore
	cooldown time.Duration
	exempt   map[string]bool
}

// NewLeaderboardService создает сервис таблицы лидеров.
// exemptIdentities — идентификаторы, на которые окно не действует.
func NewLeaderboardService(store repository.BlobStore, cooldown time.Duration, exemptIdentities []string) *LeaderboardService {
	exempt := make(map[string]bool, len(exemptIdentities))
	for _, id := range exemptIdentities {
		if norm := entity.NormalizeIdentity(id); norm != "" {
			exempt[norm] = true
		}
	}
	return &LeaderboardService{
		store:    store,
		cooldown: cooldown,
		exempt:   exempt,
	}
}

// List возвращает все записи в ранговом порядке.
// Отсутствующий или поврежденный блоб дает пустую таблицу.
func (s *LeaderboardService) List(ctx context.Context) ([]entity.ParticipationRecord, error) {
	data, err := s.store.Load(ctx, repository.KeyLeaderboard)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return []entity.ParticipationRecord{}, nil
		}
		return nil, fmt.Errorf("load leaderboard failed: %w", err)
	}

	var records []entity.ParticipationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		log.Printf("[LeaderboardService] Поврежденный блоб таблицы лидеров, считаю пустым: %v", err)
		return []entity.ParticipationRecord{}, nil
	}

	sortRecords(records)
	return records, nil
}

// Top возвращает первые n записей таблицы
func (s *LeaderboardService) Top(ctx context.Context, n int) ([]entity.ParticipationRecord, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(records) > n {
		records = records[:n]
	}
	return records, nil
}

// CheckCooldown проверяет, может ли участник начать новую попытку.
// Считается самая свежая отметка времени среди записей участника,
// включая отметки, оставленные неулучшившими попытками.
func (s *LeaderboardService) CheckCooldown(ctx context.Context, identity string) (*CooldownStatus, error) {
	identity = entity.NormalizeIdentity(identity)
	if s.cooldown <= 0 || s.exempt[identity] {
		return &CooldownStatus{Allowed: true}, nil
	}

	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var latest int64
	for i := range records {
		if records[i].Identity() == identity && records[i].Timestamp > latest {
			latest = records[i].Timestamp
		}
	}
	if latest == 0 {
		return &CooldownStatus{Allowed: true}, nil
	}

	blockedUntil := time.UnixMilli(latest).Add(s.cooldown)
	remaining := time.Until(blockedUntil)
	if remaining <= 0 {
		return &CooldownStatus{Allowed: true}, nil
	}

	return &CooldownStatus{
		Allowed:      false,
		BlockedUntil: blockedUntil,
		Remaining:    remaining,
	}, nil
}

// Upsert добавляет результат попытки. На каждого участника хранится
// ровно одна запись: новая замещает старую только при строго лучшем
// счете либо том же счете за меньшее время. Неулучшившая попытка
// все равно обновляет отметку времени старой записи, чтобы окно
// между попытками отсчитывалось от последней игры.
func (s *LeaderboardService) Upsert(ctx context.Context, record entity.ParticipationRecord) error {
	records, err := s.List(ctx)
	if err != nil {
		return err
	}

	identity := record.Identity()
	replaced := false
	found := false
	for i := range records {
		if records[i].Identity() != identity {
			continue
		}
		found = true
		if record.Score > records[i].Score ||
			(record.Score == records[i].Score && record.TimeTaken < records[i].TimeTaken) {
			records[i] = record
			replaced = true
		} else {
			records[i].Timestamp = record.Timestamp
		}
		break
	}
	if !found {
		records = append(records, record)
		replaced = true
	}

	sortRecords(records)
	if err := s.save(ctx, records); err != nil {
		return err
	}

	if replaced {
		log.Printf("[LeaderboardService] Запись участника %q обновлена: %d/%d за %d сек",
			identity, record.Score, record.TotalQuestions, record.TimeTaken)
	} else {
		log.Printf("[LeaderboardService] Попытка участника %q не улучшила результат, обновлена только отметка времени", identity)
	}
	return nil
}

// Reset очищает таблицу лидеров
func (s *LeaderboardService) Reset(ctx context.Context) error {
	if err := s.store.Delete(ctx, repository.KeyLeaderboard); err != nil {
		return fmt.Errorf("reset leaderboard failed: %w", err)
	}
	log.Printf("[LeaderboardService] Таблица лидеров очищена")
	return nil
}

func (s *LeaderboardService) save(ctx context.Context, records []entity.ParticipationRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal leaderboard failed: %w", err)
	}
	if err := s.store.Save(ctx, repository.KeyLeaderboard, data); err != nil {
		return fmt.Errorf("save leaderboard failed: %w", err)
	}
	return nil
}

// sortRecords упорядочивает записи: счет по убыванию, при равном
// счете время по возрастанию. Сортировка стабильная, дальше порядок
// не определяется.
func sortRecords(records []entity.ParticipationRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		return records[i].TimeTaken < records[j].TimeTaken
	})
}
