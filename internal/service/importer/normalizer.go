// Package importer разбирает банки вопросов из внешних файлов.
// Формат входа заранее неизвестен: принимаются строгий JSON, JSON с
// типичными ошибками рук (комментарии, висячие запятые, одинарные
// кавычки), вложенные структуры экспортов чужих систем и простой
// текст с разделителями. Разбор максимально снисходителен: всё, что
// можно однозначно починить, чинится и помечается как исправление,
// остальное попадает в отчет как брак.
package importer

import (
	"fmt"
	"strings"

	"github.com/yourusername/decoder-api/internal/domain/entity"
)

// maxOptions — верхний предел вариантов ответа у одного вопроса.
const maxOptions = 4

// Синонимы полей, встречающиеся в чужих экспортах.
var (
	textKeys    = []string{"question", "q", "prompt", "title"}
	optionKeys  = []string{"options", "responses", "answers", "choices"}
	labelKeys   = []string{"text", "value", "label"}
	correctKeys = []string{"correct", "isCorrect"}
	answerKeys  = []string{"correctAnswer", "correctAnswerIndex", "correct_answer", "answer"}
)

// NormalizeResult описывает итог нормализации одного сырого вопроса.
type NormalizeResult struct {
	Question  entity.Question
	Valid     bool
	Corrected bool
	Detail    string
}

// NormalizeQuestion приводит произвольный объект вопроса к каноническому
// виду. index используется только в текстах отчета (нумерация с единицы).
func NormalizeQuestion(raw map[string]interface{}, index int) NormalizeResult {
	text := firstNonEmptyString(raw, textKeys)
	if text == "" {
		return NormalizeResult{
			Detail: fmt.Sprintf("Question %d: missing question text", index),
		}
	}

	options, flaggedIndex, optionsCorrected := extractOptions(raw)
	if len(options) < 2 {
		return NormalizeResult{
			Detail: fmt.Sprintf("Question %d: options must have at least 2 items", index),
		}
	}

	corrected := optionsCorrected
	if len(options) > maxOptions {
		options = options[:maxOptions]
		corrected = true
	}

	answer, answerCorrected := resolveAnswer(raw, options, flaggedIndex)
	corrected = corrected || answerCorrected

	return NormalizeResult{
		Question: entity.Question{
			Text:    text,
			Options: options,
			Answer:  answer,
		},
		Valid:     true,
		Corrected: corrected,
	}
}

// firstNonEmptyString возвращает первое непустое строковое значение
// среди перечисленных ключей.
func firstNonEmptyString(raw map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			if s := strings.TrimSpace(stringify(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// extractOptions собирает варианты ответа из первого найденного
// синонимичного поля. Возвращает сами варианты, индекс варианта с
// флагом правильности (-1, если флага не было) и признак того, что
// по дороге пришлось чинить форму данных.
func extractOptions(raw map[string]interface{}) ([]string, int, bool) {
	var source interface{}
	for _, key := range optionKeys {
		if v, ok := raw[key]; ok && v != nil {
			source = v
			break
		}
	}
	if source == nil {
		return nil, -1, false
	}

	switch v := source.(type) {
	case []interface{}:
		options := make([]string, 0, len(v))
		flagged := -1
		for _, item := range v {
			if obj, ok := item.(map[string]interface{}); ok {
				// Вариант-объект: метка и флаг правильности
				label := firstNonEmptyString(obj, labelKeys)
				if label == "" {
					continue
				}
				if flagged < 0 && objectCorrectFlag(obj) {
					flagged = len(options)
				}
				options = append(options, label)
				continue
			}
			if s := strings.TrimSpace(stringify(item)); s != "" {
				options = append(options, s)
			}
		}
		return options, flagged, false
	case string:
		// Единственная строка трактуется как список через запятую
		parts := strings.Split(v, ",")
		options := make([]string, 0, len(parts))
		for _, part := range parts {
			if s := strings.TrimSpace(part); s != "" {
				options = append(options, s)
			}
		}
		return options, -1, len(options) >= 2
	default:
		return nil, -1, false
	}
}

// objectCorrectFlag проверяет флаг правильности у варианта-объекта.
func objectCorrectFlag(obj map[string]interface{}) bool {
	for _, key := range correctKeys {
		if v, ok := obj[key]; ok {
			if b, ok := v.(bool); ok && b {
				return true
			}
		}
	}
	return false
}

// resolveAnswer определяет индекс правильного ответа.
// Порядок: флаг у варианта-объекта, затем числовое поле из answerKeys,
// затем строковое совпадение "answer" и "correctAnswer" с вариантами
// без учета регистра. По умолчанию 0. Индекс за пределами вариантов
// сбрасывается в 0 и считается исправлением.
func resolveAnswer(raw map[string]interface{}, options []string, flaggedIndex int) (int, bool) {
	// Флаг правильности в структурных вариантах перекрывает
	// числовые поля ответа, если они расходятся.
	if flaggedIndex >= 0 && flaggedIndex < len(options) {
		return flaggedIndex, false
	}

	for _, key := range answerKeys {
		if v, ok := raw[key]; ok {
			if n, ok := asInt(v); ok {
				if n >= 0 && n < len(options) {
					return n, false
				}
				return 0, true
			}
		}
	}

	for _, key := range []string{"answer", "correctAnswer"} {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok {
				if idx := matchOption(options, s); idx >= 0 {
					return idx, false
				}
			}
		}
	}

	return 0, false
}

// matchOption ищет вариант, совпадающий со строкой без учета регистра.
func matchOption(options []string, answer string) int {
	needle := strings.ToLower(strings.TrimSpace(answer))
	if needle == "" {
		return -1
	}
	for i, option := range options {
		if strings.ToLower(strings.TrimSpace(option)) == needle {
			return i
		}
	}
	return -1
}

// asInt приводит значение JSON к целому индексу.
// encoding/json отдает числа как float64.
func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// stringify приводит скалярное значение к строке.
func stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		// Целые числа печатаем без дробной части
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%v", s)
	case bool:
		return fmt.Sprintf("%t", s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
