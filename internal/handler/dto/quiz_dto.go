package dto

import (
	"github.com/yourusername/decoder-api/internal/domain/entity"
	"github.com/yourusername/decoder-api/internal/service"
	"github.com/yourusername/decoder-api/internal/service/importer"
)

// StartQuizRequest представляет запрос на начало попытки
type StartQuizRequest struct {
	Name  string `json:"name" binding:"omitempty,max=100"`
	Email string `json:"email" binding:"omitempty,email,max=200"`
}

// AnswerRequest представляет ответ участника на текущий вопрос.
// Option равен -1, когда участник пропускает вопрос.
type AnswerRequest struct {
	Option *int `json:"option" binding:"required"`
}

// StartQuizResponse представляет начатую попытку
type StartQuizResponse struct {
	SessionID string                `json:"sessionId"`
	Question  *service.QuestionView `json:"question"`
}

// CooldownResponse сообщает, что окно между попытками еще не истекло
type CooldownResponse struct {
	Error            string `json:"error"`
	BlockedUntil     int64  `json:"blockedUntil"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

// LeaderboardEntryResponse представляет одну строку таблицы лидеров
type LeaderboardEntryResponse struct {
	Rank           int    `json:"rank"`
	Name           string `json:"name"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
	TimeTaken      int    `json:"timeTaken"`
	Timestamp      int64  `json:"timestamp"`
}

// NewLeaderboardResponse собирает строки таблицы лидеров.
// Email участников наружу не отдается.
func NewLeaderboardResponse(records []entity.ParticipationRecord) []LeaderboardEntryResponse {
	out := make([]LeaderboardEntryResponse, 0, len(records))
	for i, r := range records {
		name := r.DisplayName
		if name == "" {
			name = r.Name
		}
		if name == "" {
			name = "Anonymous"
		}
		out = append(out, LeaderboardEntryResponse{
			Rank:           i + 1,
			Name:           name,
			Score:          r.Score,
			TotalQuestions: r.TotalQuestions,
			TimeTaken:      r.TimeTaken,
			Timestamp:      r.Timestamp,
		})
	}
	return out
}

// LoginRequest представляет запрос на вход администратора
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse содержит токен администратора
type LoginResponse struct {
	Token string `json:"token"`
}

// ChangePasswordRequest представляет запрос на смену пароля
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

// QuestionRequest представляет вопрос при создании и правке
type QuestionRequest struct {
	Text    string   `json:"question" binding:"required,min=1,max=500"`
	Options []string `json:"options" binding:"required,min=2,max=4"`
	Answer  *int     `json:"correctAnswer" binding:"required,min=0"`
}

// ToEntity преобразует запрос в доменный вопрос
func (r QuestionRequest) ToEntity() entity.Question {
	answer := 0
	if r.Answer != nil {
		answer = *r.Answer
	}
	return entity.Question{
		Text:    r.Text,
		Options: r.Options,
		Answer:  answer,
	}
}

// ImportQuestionsRequest несет сырой текст для импорта вопросов
type ImportQuestionsRequest struct {
	Text string `json:"text" binding:"required"`
}

// ImportReportResponse представляет итог импорта или предпросмотра
type ImportReportResponse struct {
	ValidCount      int      `json:"validCount"`
	InvalidCount    int      `json:"invalidCount"`
	CorrectionCount int      `json:"correctionCount"`
	InvalidDetails  []string `json:"invalidDetails,omitempty"`
}

// NewImportReportResponse преобразует отчет импортера в DTO
func NewImportReportResponse(report *importer.Report) ImportReportResponse {
	return ImportReportResponse{
		ValidCount:      report.ValidCount,
		InvalidCount:    report.InvalidCount,
		CorrectionCount: report.CorrectionCount,
		InvalidDetails:  report.InvalidDetails,
	}
}

// RedeemSlotResponse представляет один слот пула промокодов
type RedeemSlotResponse struct {
	Rank      int    `json:"rank"`
	Code      string `json:"code"`
	Given     bool   `json:"given"`
	Recipient string `json:"recipient,omitempty"`
}

// NewRedeemPoolResponse собирает представление пула по слотам
func NewRedeemPoolResponse(pool *entity.RedeemPool) []RedeemSlotResponse {
	out := make([]RedeemSlotResponse, 0, entity.RedeemSlots)
	for rank := 1; rank <= entity.RedeemSlots; rank++ {
		key := entity.RankKey(rank)
		out = append(out, RedeemSlotResponse{
			Rank:      rank,
			Code:      pool.Codes[key],
			Given:     pool.Given[key],
			Recipient: pool.Recipients[key],
		})
	}
	return out
}

// SettingsRequest представляет правку настроек сайта
type SettingsRequest struct {
	WelcomeTitle     string `json:"welcomeTitle" binding:"omitempty,max=200"`
	WelcomeSubtitle  string `json:"welcomeSubtitle" binding:"omitempty,max=300"`
	QuizInstructions string `json:"quizInstructions" binding:"omitempty,max=1000"`
}

// ToEntity преобразует запрос в доменные настройки
func (r SettingsRequest) ToEntity() entity.SiteSettings {
	return entity.SiteSettings{
		WelcomeTitle:     r.WelcomeTitle,
		WelcomeSubtitle:  r.WelcomeSubtitle,
		QuizInstructions: r.QuizInstructions,
	}
}
