package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/decoder-api/internal/domain/entity"
	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
	"github.com/yourusername/decoder-api/internal/repository/memory"
)

// newQuizForTest собирает полный стек сервисов над одним хранилищем
// в памяти и наполняет банк двумя вопросами с известными ответами.
func newQuizForTest(t *testing.T, cooldown time.Duration) *QuizService {
	t.Helper()
	store := memory.NewBlobStore()
	questions := NewQuestionService(store)
	ctx := context.Background()

	_, err := questions.List(ctx)
	require.NoError(t, err)
	require.NoError(t, questions.Clear(ctx))
	_, err = questions.Add(ctx, entity.Question{
		Text:    "Сколько будет 2+2?",
		Options: []string{"3", "4"},
		Answer:  1,
	})
	require.NoError(t, err)
	_, err = questions.Add(ctx, entity.Question{
		Text:    "Столица Франции?",
		Options: []string{"Париж", "Лион"},
		Answer:  0,
	})
	require.NoError(t, err)

	leaderboard := NewLeaderboardService(store, cooldown, nil)
	redeem := NewRedeemService(store, &NoopEmailService{})
	// Большой запас времени на вопрос, чтобы таймер не вмешивался в тест
	return NewQuizService(context.Background(), questions, leaderboard, redeem, 300)
}

func TestQuizService_PerfectRun(t *testing.T) {
	// Arrange
	svc := newQuizForTest(t, 0)
	ctx := context.Background()

	view, sessionID, status, err := svc.Start(ctx, "Alice", "alice@x.com")
	require.NoError(t, err)
	require.True(t, status.Allowed)
	require.NotEmpty(t, sessionID)
	require.Equal(t, 0, view.Index)
	require.Equal(t, 2, view.TotalQuestions)

	// Act: оба ответа верные
	first, err := svc.SubmitAnswer(ctx, sessionID, 1)
	require.NoError(t, err)
	require.True(t, first.Correct)
	require.False(t, first.Finished)
	require.NotNil(t, first.Next)
	require.Equal(t, 1, first.Next.Index)

	second, err := svc.SubmitAnswer(ctx, sessionID, 0)

	// Assert: идеальный результат получает первый слот промокода
	require.NoError(t, err)
	require.True(t, second.Finished)
	require.NotNil(t, second.Summary)
	assert.Equal(t, 2, second.Summary.Score)
	assert.True(t, second.Summary.Perfect)
	assert.Equal(t, 1, second.Summary.RedeemRank)
	assert.NotEmpty(t, second.Summary.RedeemCode)

	summary, err := svc.Summary(sessionID)
	require.NoError(t, err)
	assert.Equal(t, second.Summary, summary)
}

func TestQuizService_ImperfectRunGetsNoCode(t *testing.T) {
	// Arrange
	svc := newQuizForTest(t, 0)
	ctx := context.Background()
	_, sessionID, _, err := svc.Start(ctx, "Bob", "bob@x.com")
	require.NoError(t, err)

	// Act: одна ошибка
	first, err := svc.SubmitAnswer(ctx, sessionID, 0)
	require.NoError(t, err)
	require.False(t, first.Correct)
	assert.Equal(t, 1, first.Answer, "Наружу отдается индекс правильного ответа")

	second, err := svc.SubmitAnswer(ctx, sessionID, 0)

	// Assert
	require.NoError(t, err)
	require.True(t, second.Finished)
	assert.Equal(t, 1, second.Summary.Score)
	assert.False(t, second.Summary.Perfect)
	assert.Zero(t, second.Summary.RedeemRank)
	assert.Empty(t, second.Summary.RedeemCode)
}

func TestQuizService_NoAnswerIsAlwaysWrong(t *testing.T) {
	// Arrange
	svc := newQuizForTest(t, 0)
	ctx := context.Background()
	_, sessionID, _, err := svc.Start(ctx, "Carol", "carol@x.com")
	require.NoError(t, err)

	// Act
	outcome, err := svc.SubmitAnswer(ctx, sessionID, NoAnswer)

	// Assert
	require.NoError(t, err)
	assert.False(t, outcome.Correct)
	require.NotNil(t, outcome.Next)
}

func TestQuizService_InvalidOptionRejected(t *testing.T) {
	// Arrange
	svc := newQuizForTest(t, 0)
	ctx := context.Background()
	_, sessionID, _, err := svc.Start(ctx, "Dave", "dave@x.com")
	require.NoError(t, err)

	// Act
	_, err = svc.SubmitAnswer(ctx, sessionID, 7)

	// Assert: сессия остается на том же вопросе
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	view, err := svc.Current(sessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Index)
}

func TestQuizService_CooldownBlocksSecondAttempt(t *testing.T) {
	// Arrange: завершаем первую попытку при окне 48 часов
	svc := newQuizForTest(t, 48*time.Hour)
	ctx := context.Background()
	_, sessionID, _, err := svc.Start(ctx, "Eve", "eve@x.com")
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, sessionID, 1)
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, sessionID, 0)
	require.NoError(t, err)

	// Act
	view, newID, status, err := svc.Start(ctx, "Eve", "eve@x.com")

	// Assert: блокировка возвращается статусом, а не ошибкой
	require.NoError(t, err)
	assert.Nil(t, view)
	assert.Empty(t, newID)
	require.NotNil(t, status)
	assert.False(t, status.Allowed)
	assert.True(t, status.Remaining > 0)
}

func TestQuizService_AnswerAfterFinishRejected(t *testing.T) {
	// Arrange
	svc := newQuizForTest(t, 0)
	ctx := context.Background()
	_, sessionID, _, err := svc.Start(ctx, "Frank", "frank@x.com")
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, sessionID, 1)
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, sessionID, 0)
	require.NoError(t, err)

	// Act
	_, err = svc.SubmitAnswer(ctx, sessionID, 0)

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestQuizService_UnknownSession(t *testing.T) {
	// Arrange
	svc := newQuizForTest(t, 0)

	// Act
	_, err := svc.Current("no-such-session")

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestQuizService_SubscribeReceivesFinish(t *testing.T) {
	// Arrange
	svc := newQuizForTest(t, 0)
	ctx := context.Background()
	_, sessionID, _, err := svc.Start(ctx, "Grace", "grace@x.com")
	require.NoError(t, err)

	events, unsubscribe, err := svc.Subscribe(sessionID)
	require.NoError(t, err)
	defer unsubscribe()

	// Act
	_, err = svc.SubmitAnswer(ctx, sessionID, 1)
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, sessionID, 0)
	require.NoError(t, err)

	// Assert: в ленте есть смена вопроса и завершение
	var types []string
	for {
		select {
		case ev := <-events:
			types = append(types, ev.Type)
			if ev.Type == "finished" {
				assert.Contains(t, types, "question")
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Событие finished не пришло")
		}
	}
}

func TestQuizService_EmailStaysEmptyWithoutEmail(t *testing.T) {
	// Arrange: участник представился только именем
	svc := newQuizForTest(t, 0)
	ctx := context.Background()
	_, sessionID, _, err := svc.Start(ctx, "John Doe", "")
	require.NoError(t, err)

	// Act
	_, err = svc.SubmitAnswer(ctx, sessionID, 1)
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, sessionID, 0)
	require.NoError(t, err)

	// Assert: email в записи не подменяется именем
	records, err := svc.leaderboard.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Email, "Email должен оставаться пустым, если участник его не указал")
	assert.Equal(t, "John Doe", records[0].Name)
	assert.Equal(t, "john doe", records[0].UserID)
}

func TestQuizService_ConcurrentSessionsSameIdentity(t *testing.T) {
	// Arrange: окно между попытками включено, но ни одна не завершена
	svc := newQuizForTest(t, 48*time.Hour)
	ctx := context.Background()

	// Act
	_, firstID, firstStatus, err := svc.Start(ctx, "Ivan", "ivan@x.com")
	require.NoError(t, err)
	_, secondID, secondStatus, err := svc.Start(ctx, "Ivan", "ivan@x.com")
	require.NoError(t, err)

	// Assert: открытые сессии не блокируют друг друга и идут независимо
	require.True(t, firstStatus.Allowed)
	require.True(t, secondStatus.Allowed)
	require.NotEqual(t, firstID, secondID)

	_, err = svc.SubmitAnswer(ctx, firstID, 1)
	require.NoError(t, err)
	view, err := svc.Current(secondID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Index, "Ответ в одной сессии не двигает другую")
}

func TestQuizService_UnsubscribeAfterCleanup(t *testing.T) {
	// Arrange: завершенная сессия с живым подписчиком
	svc := newQuizForTest(t, 0)
	ctx := context.Background()
	_, sessionID, _, err := svc.Start(ctx, "Kate", "kate@x.com")
	require.NoError(t, err)

	events, unsubscribe, err := svc.Subscribe(sessionID)
	require.NoError(t, err)

	_, err = svc.SubmitAnswer(ctx, sessionID, 1)
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, sessionID, 0)
	require.NoError(t, err)

	// Act: уборка удаляет сессию и закрывает канал подписчика
	removed := svc.removeExpiredSessions(time.Now().Add(time.Minute))
	require.Equal(t, 1, removed)

	// Assert: повторное снятие подписки не приводит к панике
	require.NotPanics(t, unsubscribe)
	for {
		if _, open := <-events; !open {
			return
		}
	}
}

func TestQuizService_TimerExpiryClosesQuestion(t *testing.T) {
	// Arrange: одна секунда на вопрос
	store := memory.NewBlobStore()
	questions := NewQuestionService(store)
	ctx := context.Background()
	_, err := questions.List(ctx)
	require.NoError(t, err)
	require.NoError(t, questions.Clear(ctx))
	_, err = questions.Add(ctx, entity.Question{Text: "Вопрос?", Options: []string{"да", "нет"}, Answer: 0})
	require.NoError(t, err)

	leaderboard := NewLeaderboardService(store, 0, nil)
	redeem := NewRedeemService(store, &NoopEmailService{})
	svc := NewQuizService(context.Background(), questions, leaderboard, redeem, 1)

	_, sessionID, _, err := svc.Start(ctx, "Henry", "henry@x.com")
	require.NoError(t, err)

	// Act: ждем истечения таймера единственного вопроса
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if summary, err := svc.Summary(sessionID); err == nil {
			// Assert: вопрос закрыт без ответа, счет нулевой
			assert.Equal(t, 0, summary.Score)
			assert.False(t, summary.Perfect)
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("Сессия не завершилась по таймеру")
}
