package importer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Регулярные выражения починки JSON. Они сознательно наивны и могут
// задеть содержимое строк, но на практике спасают типичные файлы,
// набранные руками или скопированные из мессенджеров.
var (
	blockCommentRe  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentRe   = regexp.MustCompile(`(?m)//[^\n]*`)
	trailingCommaRe = regexp.MustCompile(`,\s*([\]}])`)
	bareKeyRe       = regexp.MustCompile(`([{,]\s*)([A-Za-z0-9_\-]+)\s*:`)
)

// ParseLenientJSON разбирает текст как JSON, последовательно ослабляя
// требования: сначала строгий разбор, затем разбор после починки
// типичных ошибок, затем попытка обернуть текст в массив (файлы вида
// "{...}, {...}"). Возвращает ошибку последней попытки.
func ParseLenientJSON(text string) (interface{}, error) {
	var parsed interface{}

	strictErr := json.Unmarshal([]byte(text), &parsed)
	if strictErr == nil {
		return parsed, nil
	}

	sanitized := sanitizeJSON(text)
	if err := json.Unmarshal([]byte(sanitized), &parsed); err == nil {
		return parsed, nil
	}

	wrapped := "[" + sanitized + "]"
	if err := json.Unmarshal([]byte(wrapped), &parsed); err != nil {
		return nil, fmt.Errorf("lenient json parse failed: %w", err)
	}
	return parsed, nil
}

// sanitizeJSON чинит типичные повреждения JSON, набранного руками.
func sanitizeJSON(text string) string {
	s := text

	// Типографские кавычки из текстовых редакторов
	replacer := strings.NewReplacer(
		"“", `"`, "”", `"`, // “ ”
		"‘", "'", "’", "'", // ‘ ’
	)
	s = replacer.Replace(s)

	// Комментарии в стиле JS
	s = blockCommentRe.ReplaceAllString(s, "")
	s = lineCommentRe.ReplaceAllString(s, "")

	// Висячие запятые перед закрывающей скобкой
	s = trailingCommaRe.ReplaceAllString(s, "$1")

	// Обратные кавычки вместо двойных
	s = strings.ReplaceAll(s, "`", `"`)

	// Одинарные кавычки вместо двойных, но только если двойных нет
	// совсем: иначе есть риск сломать апострофы внутри строк
	if !strings.Contains(s, `"`) {
		s = strings.ReplaceAll(s, "'", `"`)
	}

	// Ключи без кавычек: {question: ...} -> {"question": ...}
	s = bareKeyRe.ReplaceAllString(s, `$1"$2":`)

	return s
}

// FindQuestionsArray ищет в разобранной структуре первый массив,
// каждый элемент которого выглядит как вопрос (объект с одним из
// ключей question, q или prompt). Обход в глубину, ключи объектов
// просматриваются в отсортированном порядке, поэтому результат
// детерминирован. Это осознанно негарантированная починка: если в
// файле несколько подходящих массивов, берется первый найденный.
func FindQuestionsArray(node interface{}) []interface{} {
	switch v := node.(type) {
	case []interface{}:
		if len(v) > 0 && allLookLikeQuestions(v) {
			return v
		}
		for _, item := range v {
			if found := FindQuestionsArray(item); found != nil {
				return found
			}
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if found := FindQuestionsArray(v[key]); found != nil {
				return found
			}
		}
	}
	return nil
}

// allLookLikeQuestions проверяет, что каждый элемент массива — объект
// с текстом вопроса под одним из известных ключей.
func allLookLikeQuestions(items []interface{}) bool {
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return false
		}
		hasText := false
		for _, key := range []string{"question", "q", "prompt"} {
			if _, ok := obj[key]; ok {
				hasText = true
				break
			}
		}
		if !hasText {
			return false
		}
	}
	return true
}
