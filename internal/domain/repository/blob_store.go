package repository

import "context"

// Ключи именованных блобов состояния приложения.
// Имена стабильны: под ними же данные лежали в прежних установках,
// поэтому менять их нельзя без миграции.
const (
	KeyQuestions        = "quizQuestions"
	KeyLeaderboard      = "quizLeaderboard"
	KeySettings         = "quizSettings"
	KeyRedeemCodes      = "quizRedeemCodes"
	KeyRedeemGiven      = "redeemCodesGiven"
	KeyRedeemRecipients = "redeemRecipients"
	KeyAdminCredentials = "adminCredentials"

	// Ключи устаревшего формата с единственным промокодом.
	// Читаются только для одноразовой миграции в пятислотовый пул.
	KeyLegacyRedeemCode  = "quizRedeemCode"
	KeyLegacyRedeemGiven = "redeemCodeGiven"
)

// BlobStore — шлюз к хранилищу именованных блобов состояния.
// Load возвращает apperrors.ErrNotFound, если ключ отсутствует.
// Реализации должны быть безопасны для конкурентного использования.
type BlobStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
