package importer

import (
	"fmt"
	"strings"

	"github.com/yourusername/decoder-api/internal/domain/entity"
	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
)

// Report — итог разбора одного файла импорта.
type Report struct {
	Questions       []entity.Question `json:"-"`
	ValidCount      int               `json:"validCount"`
	InvalidCount    int               `json:"invalidCount"`
	CorrectionCount int               `json:"correctionCount"`
	InvalidDetails  []string          `json:"invalidDetails"`
}

// Parse разбирает текст файла импорта. Сначала текст пробуется как
// JSON (со всеми послаблениями ParseLenientJSON), при неудаче — как
// построчный текстовый формат. Ошибка возвращается только если не
// удалось получить ни одного валидного вопроса.
func Parse(text string) (*Report, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: import file is empty", apperrors.ErrValidation)
	}

	var results []NormalizeResult

	parsed, jsonErr := ParseLenientJSON(text)
	if jsonErr == nil {
		results = normalizeParsed(parsed)
	} else {
		results = ParsePlainText(text)
	}

	report := &Report{InvalidDetails: []string{}}
	for _, r := range results {
		if !r.Valid {
			report.InvalidCount++
			report.InvalidDetails = append(report.InvalidDetails, r.Detail)
			continue
		}
		report.ValidCount++
		if r.Corrected {
			report.CorrectionCount++
		}
		report.Questions = append(report.Questions, r.Question)
	}

	if report.ValidCount == 0 {
		if len(report.InvalidDetails) > 0 {
			return nil, fmt.Errorf("%w: no valid questions found (%s)",
				apperrors.ErrValidation, strings.Join(report.InvalidDetails, "; "))
		}
		if jsonErr != nil {
			return nil, fmt.Errorf("%w: no valid questions found: %v", apperrors.ErrValidation, jsonErr)
		}
		return nil, fmt.Errorf("%w: no valid questions found", apperrors.ErrValidation)
	}

	return report, nil
}

// normalizeParsed превращает результат разбора JSON в набор вопросов.
// Принимаются: массив вопросов, объект одного вопроса и произвольная
// обертка, внутри которой FindQuestionsArray находит массив вопросов.
func normalizeParsed(parsed interface{}) []NormalizeResult {
	var rows []interface{}

	switch v := parsed.(type) {
	case []interface{}:
		rows = v
	case map[string]interface{}:
		if found := FindQuestionsArray(v); found != nil {
			rows = found
		} else {
			// Возможно, файл содержит единственный вопрос без массива
			rows = []interface{}{v}
		}
	default:
		return []NormalizeResult{{
			Detail: "Import file must contain an array of questions",
		}}
	}

	results := make([]NormalizeResult, 0, len(rows))
	for i, row := range rows {
		obj, ok := row.(map[string]interface{})
		if !ok {
			results = append(results, NormalizeResult{
				Detail: fmt.Sprintf("Question %d: not an object", i+1),
			})
			continue
		}
		results = append(results, NormalizeQuestion(obj, i+1))
	}
	return results
}
