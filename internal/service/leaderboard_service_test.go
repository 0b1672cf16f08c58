package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/decoder-api/internal/domain/entity"
	"github.com/yourusername/decoder-api/internal/repository/memory"
)

func newLeaderboardForTest(t *testing.T, cooldown time.Duration, exempt []string) *LeaderboardService {
	t.Helper()
	return NewLeaderboardService(memory.NewBlobStore(), cooldown, exempt)
}

func record(name, email string, score, total, timeTaken int, ts time.Time) entity.ParticipationRecord {
	return entity.ParticipationRecord{
		ID:             name + "-id",
		Name:           name,
		Email:          email,
		DisplayName:    name,
		Score:          score,
		TotalQuestions: total,
		TimeTaken:      timeTaken,
		Timestamp:      ts.UnixMilli(),
	}
}

func TestLeaderboardService_Upsert_NewParticipant(t *testing.T) {
	// Arrange
	svc := newLeaderboardForTest(t, 48*time.Hour, nil)
	ctx := context.Background()

	// Act
	err := svc.Upsert(ctx, record("Alice", "alice@example.com", 3, 5, 40, time.Now()))

	// Assert
	require.NoError(t, err)
	records, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1, "Новый участник должен попасть в таблицу")
}

func TestLeaderboardService_Upsert_BetterScoreReplaces(t *testing.T) {
	// Arrange
	svc := newLeaderboardForTest(t, 48*time.Hour, nil)
	ctx := context.Background()
	require.NoError(t, svc.Upsert(ctx, record("Alice", "alice@example.com", 3, 5, 40, time.Now())))

	// Act: та же личность, лучший счет
	require.NoError(t, svc.Upsert(ctx, record("Alice", "ALICE@example.com", 4, 5, 50, time.Now())))

	// Assert: ровно одна запись, счет обновлен
	records, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1, "На участника должна остаться одна запись")
	assert.Equal(t, 4, records[0].Score)
}

func TestLeaderboardService_Upsert_SameScoreFasterReplaces(t *testing.T) {
	// Arrange
	svc := newLeaderboardForTest(t, 48*time.Hour, nil)
	ctx := context.Background()
	require.NoError(t, svc.Upsert(ctx, record("Alice", "alice@example.com", 3, 5, 40, time.Now())))

	// Act: тот же счет, быстрее
	require.NoError(t, svc.Upsert(ctx, record("Alice", "alice@example.com", 3, 5, 30, time.Now())))

	// Assert
	records, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 30, records[0].TimeTaken)
}

func TestLeaderboardService_Upsert_WorseAttemptKeepsRecordButRefreshesTimestamp(t *testing.T) {
	// Arrange
	svc := newLeaderboardForTest(t, 48*time.Hour, nil)
	ctx := context.Background()
	oldTime := time.Now().Add(-time.Hour)
	require.NoError(t, svc.Upsert(ctx, record("Alice", "alice@example.com", 4, 5, 40, oldTime)))

	// Act: худшая попытка
	newTime := time.Now()
	require.NoError(t, svc.Upsert(ctx, record("Alice", "alice@example.com", 2, 5, 20, newTime)))

	// Assert: счет прежний, отметка времени — от новой попытки
	records, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 4, records[0].Score, "Худшая попытка не должна затирать результат")
	assert.Equal(t, newTime.UnixMilli(), records[0].Timestamp, "Отметка времени должна обновиться")
}

func TestLeaderboardService_Ordering(t *testing.T) {
	// Arrange
	svc := newLeaderboardForTest(t, 0, nil)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, svc.Upsert(ctx, record("Slow", "slow@x.com", 5, 5, 60, now)))
	require.NoError(t, svc.Upsert(ctx, record("Fast", "fast@x.com", 5, 5, 20, now)))
	require.NoError(t, svc.Upsert(ctx, record("Low", "low@x.com", 2, 5, 10, now)))

	// Act
	records, err := svc.List(ctx)

	// Assert: счет по убыванию, при равном счете время по возрастанию
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Fast", records[0].Name)
	assert.Equal(t, "Slow", records[1].Name)
	assert.Equal(t, "Low", records[2].Name)
}

func TestLeaderboardService_Top(t *testing.T) {
	// Arrange
	svc := newLeaderboardForTest(t, 0, nil)
	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 12; i++ {
		rec := record("P", "", i, 12, 10, now)
		rec.Name = rec.Name + string(rune('a'+i))
		rec.Email = rec.Name + "@x.com"
		require.NoError(t, svc.Upsert(ctx, rec))
	}

	// Act
	top, err := svc.Top(ctx, 10)

	// Assert
	require.NoError(t, err)
	assert.Len(t, top, 10, "Публичная таблица ограничена десятью записями")
}

func TestLeaderboardService_CheckCooldown_Blocked(t *testing.T) {
	// Arrange: попытка час назад при окне 48 часов
	svc := newLeaderboardForTest(t, 48*time.Hour, nil)
	ctx := context.Background()
	require.NoError(t, svc.Upsert(ctx, record("Alice", "alice@example.com", 3, 5, 40, time.Now().Add(-time.Hour))))

	// Act
	status, err := svc.CheckCooldown(ctx, "alice@example.com")

	// Assert
	require.NoError(t, err)
	assert.False(t, status.Allowed, "Окно не истекло, попытка должна блокироваться")
	assert.True(t, status.Remaining > 0)
}

func TestLeaderboardService_CheckCooldown_ExpiredWindowAllows(t *testing.T) {
	// Arrange: попытка 49 часов назад
	svc := newLeaderboardForTest(t, 48*time.Hour, nil)
	ctx := context.Background()
	require.NoError(t, svc.Upsert(ctx, record("Alice", "alice@example.com", 3, 5, 40, time.Now().Add(-49*time.Hour))))

	// Act
	status, err := svc.CheckCooldown(ctx, "alice@example.com")

	// Assert
	require.NoError(t, err)
	assert.True(t, status.Allowed)
}

func TestLeaderboardService_CheckCooldown_ExemptIdentity(t *testing.T) {
	// Arrange: участник из списка исключений
	svc := newLeaderboardForTest(t, 48*time.Hour, []string{"VIP@example.com"})
	ctx := context.Background()
	require.NoError(t, svc.Upsert(ctx, record("VIP", "vip@example.com", 3, 5, 40, time.Now())))

	// Act
	status, err := svc.CheckCooldown(ctx, "vip@example.com")

	// Assert
	require.NoError(t, err)
	assert.True(t, status.Allowed, "Исключение должно обходить окно между попытками")
}

func TestLeaderboardService_CheckCooldown_WorseAttemptStillRearms(t *testing.T) {
	// Arrange: старый хороший результат, затем свежая худшая попытка
	svc := newLeaderboardForTest(t, 48*time.Hour, nil)
	ctx := context.Background()
	require.NoError(t, svc.Upsert(ctx, record("Alice", "alice@example.com", 5, 5, 30, time.Now().Add(-72*time.Hour))))
	require.NoError(t, svc.Upsert(ctx, record("Alice", "alice@example.com", 1, 5, 10, time.Now())))

	// Act
	status, err := svc.CheckCooldown(ctx, "alice@example.com")

	// Assert: отметка времени от худшей попытки тоже перевзводит окно
	require.NoError(t, err)
	assert.False(t, status.Allowed)
}

func TestLeaderboardService_EmptyIdentitySharedBucket(t *testing.T) {
	// Arrange: две записи без email и имени делят одну корзину
	svc := newLeaderboardForTest(t, 48*time.Hour, nil)
	ctx := context.Background()
	require.NoError(t, svc.Upsert(ctx, record("", "", 2, 5, 30, time.Now())))
	require.NoError(t, svc.Upsert(ctx, record("", "", 4, 5, 30, time.Now())))

	// Act
	records, err := svc.List(ctx)

	// Assert
	require.NoError(t, err)
	require.Len(t, records, 1, "Пустая личность — одна общая корзина")
	assert.Equal(t, 4, records[0].Score)
}

func TestLeaderboardService_Reset(t *testing.T) {
	// Arrange
	svc := newLeaderboardForTest(t, 0, nil)
	ctx := context.Background()
	require.NoError(t, svc.Upsert(ctx, record("Alice", "alice@example.com", 3, 5, 40, time.Now())))

	// Act
	require.NoError(t, svc.Reset(ctx))

	// Assert
	records, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}
