package entity

import "strings"

// Question представляет вопрос викторины.
// Поле Answer содержит индекс правильного варианта в Options.
type Question struct {
	ID      string   `json:"id,omitempty"`
	Text    string   `json:"question"`
	Options []string `json:"options"`
	Answer  int      `json:"correctAnswer"`
}

// IsCorrect проверяет, является ли выбранный вариант правильным.
// Отрицательный индекс (ответ не дан) всегда считается неправильным.
func (q *Question) IsCorrect(selectedOption int) bool {
	return selectedOption >= 0 && selectedOption == q.Answer
}

// OptionsCount возвращает количество вариантов ответа
func (q *Question) OptionsCount() int {
	return len(q.Options)
}

// IsValidOption проверяет, является ли выбранный вариант допустимым
func (q *Question) IsValidOption(selectedOption int) bool {
	return selectedOption >= 0 && selectedOption < len(q.Options)
}

// Validate проверяет инварианты вопроса: непустой текст,
// от 2 до 4 вариантов и индекс ответа в пределах вариантов.
func (q *Question) Validate() bool {
	if strings.TrimSpace(q.Text) == "" {
		return false
	}
	if len(q.Options) < 2 || len(q.Options) > 4 {
		return false
	}
	return q.Answer >= 0 && q.Answer < len(q.Options)
}

// SampleQuestions возвращает стартовый набор вопросов,
// который используется при первом запуске с пустым хранилищем.
func SampleQuestions() []Question {
	return []Question{
		{
			Text:    "What is the capital of France?",
			Options: []string{"London", "Berlin", "Paris", "Madrid"},
			Answer:  2,
		},
		{
			Text:    "Which planet is known as the Red Planet?",
			Options: []string{"Venus", "Mars", "Jupiter", "Saturn"},
			Answer:  1,
		},
		{
			Text:    "What is 2 + 2?",
			Options: []string{"3", "4", "5", "6"},
			Answer:  1,
		},
	}
}
