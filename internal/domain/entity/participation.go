package entity

import "strings"

// ParticipationRecord представляет одну запись таблицы лидеров.
// Timestamp хранится в миллисекундах Unix, TimeTaken в секундах.
type ParticipationRecord struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	UserID         string `json:"userId"`
	DisplayName    string `json:"displayName"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
	TimeTaken      int    `json:"timeTaken"`
	Timestamp      int64  `json:"timestamp"`
}

// Identity возвращает канонический идентификатор участника:
// email в нижнем регистре, при его отсутствии имя в нижнем регистре.
// Пустая строка допустима и означает общую "анонимную" корзину.
func (r *ParticipationRecord) Identity() string {
	if email := strings.ToLower(strings.TrimSpace(r.Email)); email != "" {
		return email
	}
	return strings.ToLower(strings.TrimSpace(r.Name))
}

// IsPerfect сообщает, является ли результат идеальным для банка
// из questionCount вопросов. Запись, сделанная при другом размере
// банка, идеальной не считается.
func (r *ParticipationRecord) IsPerfect(questionCount int) bool {
	return questionCount > 0 &&
		r.TotalQuestions == questionCount &&
		r.Score == r.TotalQuestions
}

// NormalizeIdentity приводит произвольный идентификатор участника
// к каноническому виду (trim + нижний регистр).
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
