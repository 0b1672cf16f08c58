package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/yourusername/decoder-api/internal/domain/entity"
	"github.com/yourusername/decoder-api/internal/domain/repository"
	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
)

// Assignment описывает один выданный в ходе награждения промокод.
type Assignment struct {
	Rank     int    `json:"rank"`
	Identity string `json:"identity"`
	Code     string `json:"code"`
	Email    string `json:"email,omitempty"`
}

// RedeemService управляет пулом из пяти промокодов для идеальных
// результатов. Каждый слот выдается не более одного раза, участник
// не может держать больше одного слота.
type RedeemService struct {
	store repository.BlobStore
	email EmailService
}

// NewRedeemService создает сервис промокодов
func NewRedeemService(store repository.BlobStore, email EmailService) *RedeemService {
	if email == nil {
		email = &NoopEmailService{}
	}
	return &RedeemService{store: store, email: email}
}

// Pool возвращает текущее состояние пула, лениво генерируя коды
// и при необходимости поднимая данные устаревшего формата.
func (s *RedeemService) Pool(ctx context.Context) (*entity.RedeemPool, error) {
	pool := entity.NewRedeemPool()
	changed := false

	if err := s.loadMap(ctx, repository.KeyRedeemCodes, &pool.Codes); err != nil {
		return nil, err
	}
	if err := s.loadMap(ctx, repository.KeyRedeemGiven, &pool.Given); err != nil {
		return nil, err
	}
	if err := s.loadMap(ctx, repository.KeyRedeemRecipients, &pool.Recipients); err != nil {
		return nil, err
	}

	if s.migrateLegacy(ctx, pool) {
		changed = true
	}
	if pool.EnsureCodes() {
		changed = true
	}

	if changed {
		if err := s.save(ctx, pool); err != nil {
			return nil, err
		}
	}
	return pool, nil
}

// AssignToPerfectScorer закрепляет слот за идентификатором.
// Возвращает ранг и код выданного слота; ранг 0 означает, что выдача
// не состоялась (участник уже держит слот или свободных не осталось).
// Желаемый ранг применяется, если он в пределах 1..5 и слот свободен,
// иначе берется наименьший свободный.
func (s *RedeemService) AssignToPerfectScorer(ctx context.Context, identity string, desiredRank int) (int, string, error) {
	identity = entity.NormalizeIdentity(identity)
	if identity == "" {
		return 0, "", fmt.Errorf("%w: identity is required", apperrors.ErrValidation)
	}

	pool, err := s.Pool(ctx)
	if err != nil {
		return 0, "", err
	}

	if pool.HolderSlot(identity) > 0 {
		return 0, "", nil
	}

	rank := 0
	if desiredRank >= 1 && desiredRank <= entity.RedeemSlots && !pool.SlotUsed(desiredRank) {
		rank = desiredRank
	} else {
		for r := 1; r <= entity.RedeemSlots; r++ {
			if !pool.SlotUsed(r) {
				rank = r
				break
			}
		}
	}
	if rank == 0 {
		return 0, "", nil
	}

	pool.Assign(rank, identity)
	if err := s.save(ctx, pool); err != nil {
		return 0, "", err
	}
	log.Printf("[RedeemService] Слот %d закреплен за %q", rank, identity)
	return rank, pool.Code(rank), nil
}

// AwardTopPerfectScorers раздает слоты лучшим идеальным результатам.
// Кандидаты — записи с идеальным счетом при текущем размере банка,
// упорядоченные по времени прохождения, затем по отметке времени.
// Кандидат на позиции i получает слот i+1 и только его: занятые слоты
// не перераспределяются. Возвращает выданные назначения и ранг слота
// участника currentIdentity (0, если слота у него нет).
func (s *RedeemService) AwardTopPerfectScorers(ctx context.Context, records []entity.ParticipationRecord, questionCount int, currentIdentity string) ([]Assignment, int, error) {
	pool, err := s.Pool(ctx)
	if err != nil {
		return nil, 0, err
	}

	var candidates []entity.ParticipationRecord
	for i := range records {
		if records[i].IsPerfect(questionCount) {
			candidates = append(candidates, records[i])
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].TimeTaken != candidates[j].TimeTaken {
			return candidates[i].TimeTaken < candidates[j].TimeTaken
		}
		return candidates[i].Timestamp < candidates[j].Timestamp
	})
	if len(candidates) > entity.RedeemSlots {
		candidates = candidates[:entity.RedeemSlots]
	}

	var assigned []Assignment
	changed := false
	for i := range candidates {
		identity := candidates[i].Identity()
		if identity == "" {
			continue
		}
		if pool.HolderSlot(identity) > 0 {
			continue
		}
		rank := i + 1
		if pool.SlotUsed(rank) {
			continue
		}
		pool.Assign(rank, identity)
		changed = true
		assigned = append(assigned, Assignment{
			Rank:     rank,
			Identity: identity,
			Code:     pool.Code(rank),
			Email:    strings.TrimSpace(candidates[i].Email),
		})
	}

	if changed {
		if err := s.save(ctx, pool); err != nil {
			return nil, 0, err
		}
	}

	for _, a := range assigned {
		if a.Email == "" {
			continue
		}
		// Неудачная отправка письма не отменяет выдачу слота
		if err := s.email.SendRedeemCode(ctx, a.Email, a.Code, a.Rank); err != nil {
			log.Printf("[RedeemService] Не удалось отправить код слота %d на %s: %v", a.Rank, a.Email, err)
		}
	}

	currentRank := 0
	if norm := entity.NormalizeIdentity(currentIdentity); norm != "" {
		currentRank = pool.HolderSlot(norm)
	}
	if len(assigned) > 0 {
		log.Printf("[RedeemService] Награждение: выдано %d слотов", len(assigned))
	}
	return assigned, currentRank, nil
}

// Regenerate заменяет все пять кодов новыми. Флаги выдачи и
// получатели при этом сохраняются.
func (s *RedeemService) Regenerate(ctx context.Context) (*entity.RedeemPool, error) {
	pool, err := s.Pool(ctx)
	if err != nil {
		return nil, err
	}
	for rank := 1; rank <= entity.RedeemSlots; rank++ {
		pool.Codes[entity.RankKey(rank)] = entity.GenerateRedeemCode(rank)
	}
	if err := s.save(ctx, pool); err != nil {
		return nil, err
	}
	log.Printf("[RedeemService] Все промокоды перегенерированы")
	return pool, nil
}

// ResetGiven очищает флаги выдачи и получателей, не трогая коды.
// Это отдельная операция от Regenerate.
func (s *RedeemService) ResetGiven(ctx context.Context) (*entity.RedeemPool, error) {
	pool, err := s.Pool(ctx)
	if err != nil {
		return nil, err
	}
	pool.Given = make(map[string]bool)
	pool.Recipients = make(map[string]string)
	if err := s.save(ctx, pool); err != nil {
		return nil, err
	}
	log.Printf("[RedeemService] Выдача промокодов сброшена")
	return pool, nil
}

// migrateLegacy поднимает единственный код устаревшего формата в
// первый слот пула. Выполняется однократно: после миграции
// устаревшие ключи удаляются.
func (s *RedeemService) migrateLegacy(ctx context.Context, pool *entity.RedeemPool) bool {
	if pool.Codes[entity.RankKey(1)] != "" {
		return false
	}

	data, err := s.store.Load(ctx, repository.KeyLegacyRedeemCode)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[RedeemService] Не удалось прочитать устаревший ключ промокода: %v", err)
		}
		return false
	}

	legacyCode := decodeLegacyString(data)
	if legacyCode == "" {
		return false
	}

	pool.EnsureCodes()
	pool.Codes[entity.RankKey(1)] = legacyCode

	if err := s.store.Delete(ctx, repository.KeyLegacyRedeemCode); err != nil {
		log.Printf("[RedeemService] Не удалось удалить устаревший ключ кода: %v", err)
	}
	if err := s.store.Delete(ctx, repository.KeyLegacyRedeemGiven); err != nil {
		log.Printf("[RedeemService] Не удалось удалить устаревший ключ выдачи: %v", err)
	}
	log.Printf("[RedeemService] Промокод устаревшего формата перенесен в слот 1")
	return true
}

// decodeLegacyString принимает как голую строку, так и JSON-строку
func decodeLegacyString(data []byte) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(data))
}

// loadMap читает JSON-карту из блоба. Отсутствие и повреждение
// блоба оставляют карту пустой.
func (s *RedeemService) loadMap(ctx context.Context, key string, dest interface{}) error {
	data, err := s.store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load %s failed: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		log.Printf("[RedeemService] Поврежденный блоб %s, считаю пустым: %v", key, err)
	}
	return nil
}

func (s *RedeemService) save(ctx context.Context, pool *entity.RedeemPool) error {
	parts := []struct {
		key   string
		value interface{}
	}{
		{repository.KeyRedeemCodes, pool.Codes},
		{repository.KeyRedeemGiven, pool.Given},
		{repository.KeyRedeemRecipients, pool.Recipients},
	}
	for _, part := range parts {
		data, err := json.Marshal(part.value)
		if err != nil {
			return fmt.Errorf("marshal %s failed: %w", part.key, err)
		}
		if err := s.store.Save(ctx, part.key, data); err != nil {
			return fmt.Errorf("save %s failed: %w", part.key, err)
		}
	}
	return nil
}
