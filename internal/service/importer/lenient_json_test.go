package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLenientJSON_StrictJSON(t *testing.T) {
	// Act
	parsed, err := ParseLenientJSON(`[{"question":"Q","options":["A","B"],"correctAnswer":1}]`)

	// Assert
	require.NoError(t, err)
	arr, ok := parsed.([]interface{})
	require.True(t, ok, "Результат должен быть массивом")
	assert.Len(t, arr, 1)
}

func TestParseLenientJSON_TrailingCommasAndComments(t *testing.T) {
	// Arrange: типичный файл, набранный руками
	text := `[
		// первый вопрос
		{"question": "Q1", "options": ["A", "B",], "correctAnswer": 0,},
		/* второй
		   вопрос */
		{"question": "Q2", "options": ["C", "D"], "correctAnswer": 1},
	]`

	// Act
	parsed, err := ParseLenientJSON(text)

	// Assert
	require.NoError(t, err, "Комментарии и висячие запятые должны чиниться")
	arr := parsed.([]interface{})
	assert.Len(t, arr, 2)
}

func TestParseLenientJSON_SingleQuotesAndBareKeys(t *testing.T) {
	// Arrange: одинарные кавычки и ключи без кавычек
	text := `[{question: 'Q', options: ['A', 'B'], correctAnswer: 1}]`

	// Act
	parsed, err := ParseLenientJSON(text)

	// Assert
	require.NoError(t, err)
	arr := parsed.([]interface{})
	require.Len(t, arr, 1)
	obj := arr[0].(map[string]interface{})
	assert.Equal(t, "Q", obj["question"])
}

func TestParseLenientJSON_SmartQuotes(t *testing.T) {
	// Arrange: типографские кавычки из текстового редактора
	text := "[{“question”: “Q”, “options”: [“A”, “B”]}]"

	// Act
	parsed, err := ParseLenientJSON(text)

	// Assert
	require.NoError(t, err)
	arr := parsed.([]interface{})
	assert.Len(t, arr, 1)
}

func TestParseLenientJSON_WrapsBareObjectList(t *testing.T) {
	// Arrange: список объектов без обрамляющего массива
	text := `{"question": "Q1", "options": ["A", "B"]}, {"question": "Q2", "options": ["C", "D"]}`

	// Act
	parsed, err := ParseLenientJSON(text)

	// Assert
	require.NoError(t, err, "Список объектов должен оборачиваться в массив")
	arr := parsed.([]interface{})
	assert.Len(t, arr, 2)
}

func TestParseLenientJSON_Garbage(t *testing.T) {
	// Act
	_, err := ParseLenientJSON("это вообще не JSON {{{")

	// Assert
	assert.Error(t, err, "Непочиняемый текст должен вернуть ошибку разбора")
}

func TestFindQuestionsArray_Nested(t *testing.T) {
	// Arrange: массив вопросов спрятан глубоко в обертке экспорта
	parsed, err := ParseLenientJSON(`{
		"meta": {"version": 2},
		"data": {
			"quiz": {
				"items": [
					{"question": "Q1", "options": ["A", "B"]},
					{"question": "Q2", "options": ["C", "D"]}
				]
			}
		}
	}`)
	require.NoError(t, err)

	// Act
	found := FindQuestionsArray(parsed)

	// Assert
	require.NotNil(t, found, "Вложенный массив вопросов должен находиться")
	assert.Len(t, found, 2)
}

func TestFindQuestionsArray_IgnoresNonQuestionArrays(t *testing.T) {
	// Arrange: массивы без вопросов не должны приниматься за банк
	parsed, err := ParseLenientJSON(`{"tags": ["a", "b"], "numbers": [1, 2, 3]}`)
	require.NoError(t, err)

	// Act
	found := FindQuestionsArray(parsed)

	// Assert
	assert.Nil(t, found)
}
