package importer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yourusername/decoder-api/internal/domain/entity"
)

// delimiters перечисляет разделители в порядке приоритета.
// Запятая требует минимум двух вхождений: одиночная запятая чаще
// встречается внутри текста вопроса, чем как разделитель.
var delimiters = []struct {
	sep      string
	minCount int
}{
	{"|", 1},
	{"\t", 1},
	{";", 1},
	{",", 2},
	{" - ", 1},
	{" : ", 1},
}

// ParsePlainText разбирает текстовый формат "вопрос <sep> варианты <sep> ответ".
// Каждая строка — один вопрос, первый фрагмент — текст, последний —
// ответ, все между ними — варианты. Строки, похожие на JSON,
// пропускаются: это почти всегда обрывки неудачно вставленного файла.
func ParsePlainText(text string) []NormalizeResult {
	var results []NormalizeResult

	lineNo := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lineNo++
		if looksLikeJSONLine(line) {
			continue
		}
		results = append(results, parseLine(line, lineNo))
	}

	return results
}

// looksLikeJSONLine отсеивает строки, являющиеся фрагментами JSON.
func looksLikeJSONLine(line string) bool {
	if strings.ContainsAny(line, "{}[]") {
		return true
	}
	lower := strings.ToLower(line)
	for _, token := range []string{`"question"`, `"options"`, `"correctanswer"`, `"answers"`, `"answer"`} {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// parseLine разбирает одну строку текстового формата.
func parseLine(line string, lineNo int) NormalizeResult {
	parts := splitLine(line)
	if len(parts) < 3 {
		return NormalizeResult{
			Detail: fmt.Sprintf("Line %d: expected question, options and answer", lineNo),
		}
	}

	question := strings.TrimSpace(parts[0])
	if question == "" {
		return NormalizeResult{
			Detail: fmt.Sprintf("Line %d: missing question text", lineNo),
		}
	}

	answerRaw := strings.TrimSpace(parts[len(parts)-1])
	options := make([]string, 0, len(parts)-2)
	for _, part := range parts[1 : len(parts)-1] {
		option := stripQuotes(strings.TrimSpace(part))
		if option != "" {
			options = append(options, option)
		}
	}

	if len(options) < 2 {
		return NormalizeResult{
			Detail: fmt.Sprintf("Line %d: options must have at least 2 items", lineNo),
		}
	}

	answer, corrected := resolveTextAnswer(answerRaw, options)

	if len(options) > maxOptions {
		options = options[:maxOptions]
		corrected = true
		if answer >= maxOptions {
			answer = 0
		}
	}

	return NormalizeResult{
		Question: entity.Question{
			Text:    stripQuotes(question),
			Options: options,
			Answer:  answer,
		},
		Valid:     true,
		Corrected: corrected,
	}
}

// splitLine делит строку по первому подходящему разделителю.
func splitLine(line string) []string {
	for _, d := range delimiters {
		if strings.Count(line, d.sep) >= d.minCount {
			return strings.Split(line, d.sep)
		}
	}
	return strings.Split(line, "|")
}

// resolveTextAnswer превращает текстовый ответ в индекс варианта.
// Числовой ответ трактуется сначала как нумерация с единицы, затем
// с нуля; совсем выпадающий из диапазона — приводится к ближайшему
// краю и считается исправлением. Нечисловой ответ ищется среди
// вариантов без учета регистра, иначе берется первый вариант.
func resolveTextAnswer(answerRaw string, options []string) (int, bool) {
	if n, err := strconv.Atoi(answerRaw); err == nil {
		if n >= 1 && n <= len(options) {
			return n - 1, false
		}
		if n >= 0 && n < len(options) {
			return n, false
		}
		idx := n - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(options) {
			idx = len(options) - 1
		}
		return idx, true
	}

	if idx := matchOption(options, stripQuotes(answerRaw)); idx >= 0 {
		return idx, false
	}
	return 0, true
}

// stripQuotes снимает одну пару обрамляющих кавычек.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
