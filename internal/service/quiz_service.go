package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/decoder-api/internal/domain/entity"
	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
)

// Состояния сессии викторины.
const (
	sessionInProgress = "in_progress"
	sessionFinished   = "finished"
)

// NoAnswer — сигнальное значение "ответ не дан". Всегда неверно.
const NoAnswer = -1

// finishedSessionTTL определяет, сколько завершенная сессия остается
// доступной для чтения итогов.
const finishedSessionTTL = time.Hour

// SessionEvent — событие живой ленты сессии (WebSocket).
type SessionEvent struct {
	Type     string `json:"type"` // tick, question, finished
	Index    int    `json:"index"`
	TimeLeft int    `json:"timeLeft,omitempty"`
	Score    int    `json:"score,omitempty"`
}

// QuestionView — вопрос в том виде, в котором его видит участник.
// Индекс правильного ответа наружу не отдается.
type QuestionView struct {
	Index          int      `json:"index"`
	TotalQuestions int      `json:"totalQuestions"`
	Text           string   `json:"question"`
	Options        []string `json:"options"`
	TimeLeft       int      `json:"timeLeft"`
}

// SessionSummary — итог завершенной сессии.
type SessionSummary struct {
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
	TimeTaken      int    `json:"timeTaken"`
	Perfect        bool   `json:"perfect"`
	RedeemRank     int    `json:"redeemRank,omitempty"`
	RedeemCode     string `json:"redeemCode,omitempty"`
}

// AnswerOutcome — результат обработки одного ответа.
type AnswerOutcome struct {
	Correct  bool            `json:"correct"`
	Answer   int             `json:"correctAnswer"`
	Finished bool            `json:"finished"`
	Next     *QuestionView   `json:"next,omitempty"`
	Summary  *SessionSummary `json:"summary,omitempty"`
}

// quizSession — состояние одной попытки прохождения.
type quizSession struct {
	id        string
	name      string
	email     string
	questions []entity.Question
	index     int
	score     int
	state     string
	startedAt time.Time

	// Дедлайн текущего вопроса и отмена его таймера.
	// На сессию в любой момент живет не больше одного таймера.
	deadline    time.Time
	cancelTimer context.CancelFunc

	finishedAt  time.Time
	summary     *SessionSummary
	subscribers map[chan SessionEvent]struct{}
}

func (sess *quizSession) identity() string {
	if email := entity.NormalizeIdentity(sess.email); email != "" {
		return email
	}
	return entity.NormalizeIdentity(sess.name)
}

// QuizService проводит сессии викторины: выдает вопросы, ведет
// пер-вопросный обратный отсчет и по завершении прогоняет результат
// через таблицу лидеров и пул промокодов.
type QuizService struct {
	questions   *QuestionService
	leaderboard *LeaderboardService
	redeem      *RedeemService

	questionSeconds int
	appCtx          context.Context

	mu       sync.Mutex
	sessions map[string]*quizSession
}

// NewQuizService создает сервис сессий и запускает уборку
// завершенных сессий. Горутины живут до отмены appCtx.
func NewQuizService(appCtx context.Context, questions *QuestionService, leaderboard *LeaderboardService, redeem *RedeemService, questionSeconds int) *QuizService {
	if questionSeconds <= 0 {
		questionSeconds = 15
	}
	s := &QuizService{
		questions:       questions,
		leaderboard:     leaderboard,
		redeem:          redeem,
		questionSeconds: questionSeconds,
		appCtx:          appCtx,
		sessions:        make(map[string]*quizSession),
	}
	go s.runCleanupRoutine()
	return s
}

// Start начинает новую попытку. Если окно между попытками участника
// еще не истекло, возвращается статус блокировки, а не ошибка.
func (s *QuizService) Start(ctx context.Context, name, email string) (*QuestionView, string, *CooldownStatus, error) {
	identity := entity.NormalizeIdentity(email)
	if identity == "" {
		identity = entity.NormalizeIdentity(name)
	}

	status, err := s.leaderboard.CheckCooldown(ctx, identity)
	if err != nil {
		return nil, "", nil, err
	}
	if !status.Allowed {
		return nil, "", status, nil
	}

	questions, err := s.questions.List(ctx)
	if err != nil {
		return nil, "", nil, err
	}
	if len(questions) == 0 {
		return nil, "", nil, fmt.Errorf("%w: question bank is empty", apperrors.ErrConflict)
	}

	sess := &quizSession{
		id:          uuid.NewString(),
		name:        strings.TrimSpace(name),
		email:       strings.TrimSpace(email),
		questions:   questions,
		state:       sessionInProgress,
		startedAt:   time.Now(),
		subscribers: make(map[chan SessionEvent]struct{}),
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.armTimerLocked(sess)
	view := s.questionViewLocked(sess)
	s.mu.Unlock()

	log.Printf("[QuizService] Сессия %s начата участником %q, вопросов: %d", sess.id, identity, len(questions))
	return view, sess.id, status, nil
}

// Current возвращает текущий вопрос сессии
func (s *QuizService) Current(sessionID string) (*QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", apperrors.ErrNotFound, sessionID)
	}
	if sess.state != sessionInProgress {
		return nil, fmt.Errorf("%w: session is finished", apperrors.ErrConflict)
	}
	return s.questionViewLocked(sess), nil
}

// Summary возвращает итог завершенной сессии
func (s *QuizService) Summary(sessionID string) (*SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", apperrors.ErrNotFound, sessionID)
	}
	if sess.summary == nil {
		return nil, fmt.Errorf("%w: session is not finished", apperrors.ErrConflict)
	}
	return sess.summary, nil
}

// SubmitAnswer обрабатывает явный ответ участника на текущий вопрос.
// option может быть NoAnswer: такой ответ всегда неверен.
func (s *QuizService) SubmitAnswer(ctx context.Context, sessionID string, option int) (*AnswerOutcome, error) {
	return s.submit(ctx, sessionID, option, -1)
}

// submit — общая точка для явных ответов и срабатываний таймера.
// expectedIndex >= 0 означает ответ от таймера: он применяется только
// если сессия все еще стоит на том же вопросе.
func (s *QuizService) submit(ctx context.Context, sessionID string, option int, expectedIndex int) (*AnswerOutcome, error) {
	s.mu.Lock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s", apperrors.ErrNotFound, sessionID)
	}
	if sess.state != sessionInProgress {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session is finished", apperrors.ErrConflict)
	}
	if expectedIndex >= 0 && sess.index != expectedIndex {
		// Таймер отработал по уже отвеченному вопросу
		s.mu.Unlock()
		return nil, nil
	}

	question := sess.questions[sess.index]
	if option != NoAnswer && !question.IsValidOption(option) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: option %d is out of range", apperrors.ErrValidation, option)
	}

	// Останавливаем таймер текущего вопроса до любого продвижения
	if sess.cancelTimer != nil {
		sess.cancelTimer()
		sess.cancelTimer = nil
	}

	correct := question.IsCorrect(option)
	if correct {
		sess.score++
	}

	outcome := &AnswerOutcome{
		Correct: correct,
		Answer:  question.Answer,
	}

	sess.index++
	if sess.index < len(sess.questions) {
		s.armTimerLocked(sess)
		outcome.Next = s.questionViewLocked(sess)
		s.broadcastLocked(sess, SessionEvent{Type: "question", Index: sess.index, TimeLeft: s.questionSeconds})
		s.mu.Unlock()
		return outcome, nil
	}

	// Последний вопрос отвечен, завершаем попытку
	sess.state = sessionFinished
	sess.finishedAt = time.Now()
	s.mu.Unlock()

	summary, err := s.finish(ctx, sess)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	sess.summary = summary
	s.broadcastLocked(sess, SessionEvent{Type: "finished", Index: len(sess.questions), Score: summary.Score})
	s.mu.Unlock()

	outcome.Finished = true
	outcome.Summary = summary
	return outcome, nil
}

// finish фиксирует результат попытки: запись в таблицу лидеров и,
// при идеальном счете, награждение промокодами.
func (s *QuizService) finish(ctx context.Context, sess *quizSession) (*SessionSummary, error) {
	timeTaken := int(sess.finishedAt.Sub(sess.startedAt).Seconds())

	identity := sess.identity()
	record := entity.ParticipationRecord{
		ID:             uuid.NewString(),
		Name:           sess.name,
		Email:          entity.NormalizeIdentity(sess.email),
		UserID:         identity,
		DisplayName:    sess.name,
		Score:          sess.score,
		TotalQuestions: len(sess.questions),
		TimeTaken:      timeTaken,
		Timestamp:      sess.finishedAt.UnixMilli(),
	}

	if err := s.leaderboard.Upsert(ctx, record); err != nil {
		return nil, err
	}

	summary := &SessionSummary{
		Score:          sess.score,
		TotalQuestions: len(sess.questions),
		TimeTaken:      timeTaken,
		Perfect:        record.IsPerfect(len(sess.questions)),
	}

	if summary.Perfect {
		records, err := s.leaderboard.List(ctx)
		if err != nil {
			return nil, err
		}
		_, rank, err := s.redeem.AwardTopPerfectScorers(ctx, records, len(sess.questions), identity)
		if err != nil {
			return nil, err
		}
		if rank > 0 {
			summary.RedeemRank = rank
			pool, err := s.redeem.Pool(ctx)
			if err == nil {
				summary.RedeemCode = pool.Code(rank)
			}
		}
	}

	log.Printf("[QuizService] Сессия %s завершена: %d/%d за %d сек (perfect=%t)",
		sess.id, summary.Score, summary.TotalQuestions, timeTaken, summary.Perfect)
	return summary, nil
}

// Subscribe подписывает на события сессии. Возвращенная функция
// снимает подписку и закрывает канал.
func (s *QuizService) Subscribe(sessionID string) (<-chan SessionEvent, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: session %s", apperrors.ErrNotFound, sessionID)
	}

	ch := make(chan SessionEvent, 16)
	sess.subscribers[ch] = struct{}{}

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := sess.subscribers[ch]; ok {
			delete(sess.subscribers, ch)
			close(ch)
		}
	}
	return ch, unsubscribe, nil
}

// questionViewLocked собирает представление текущего вопроса.
// Вызывается под s.mu.
func (s *QuizService) questionViewLocked(sess *quizSession) *QuestionView {
	question := sess.questions[sess.index]
	timeLeft := int(time.Until(sess.deadline).Seconds())
	if timeLeft < 0 {
		timeLeft = 0
	}
	return &QuestionView{
		Index:          sess.index,
		TotalQuestions: len(sess.questions),
		Text:           question.Text,
		Options:        question.Options,
		TimeLeft:       timeLeft,
	}
}

// armTimerLocked взводит обратный отсчет текущего вопроса.
// Предыдущий таймер обязан быть отменен к этому моменту.
// Вызывается под s.mu.
func (s *QuizService) armTimerLocked(sess *quizSession) {
	timerCtx, cancel := context.WithCancel(s.appCtx)
	sess.cancelTimer = cancel
	sess.deadline = time.Now().Add(time.Duration(s.questionSeconds) * time.Second)
	go s.runCountdown(timerCtx, sess.id, sess.index)
}

// runCountdown ведет посекундный отсчет одного вопроса. По истечении
// времени вопрос закрывается сигнальным ответом NoAnswer.
func (s *QuizService) runCountdown(ctx context.Context, sessionID string, index int) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	remaining := s.questionSeconds
	for {
		select {
		case <-ticker.C:
			remaining--
			if remaining <= 0 {
				if _, err := s.submit(context.Background(), sessionID, NoAnswer, index); err != nil {
					log.Printf("[QuizService] Ошибка автозакрытия вопроса %d сессии %s: %v", index, sessionID, err)
				}
				return
			}
			s.mu.Lock()
			if sess, ok := s.sessions[sessionID]; ok {
				s.broadcastLocked(sess, SessionEvent{Type: "tick", Index: index, TimeLeft: remaining})
			}
			s.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// broadcastLocked рассылает событие подписчикам сессии.
// Медленный подписчик событие теряет, отсчет из-за него не встает.
// Вызывается под s.mu.
func (s *QuizService) broadcastLocked(sess *quizSession, event SessionEvent) {
	for ch := range sess.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// runCleanupRoutine периодически удаляет давно завершенные сессии
func (s *QuizService) runCleanupRoutine() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.removeExpiredSessions(time.Now().Add(-finishedSessionTTL)); removed > 0 {
				log.Printf("[QuizService] Удалено завершенных сессий: %d", removed)
			}
		case <-s.appCtx.Done():
			return
		}
	}
}

// removeExpiredSessions удаляет сессии, завершенные до cutoff.
// Канал подписчика сначала снимается с учета и только потом
// закрывается: иначе отложенный unsubscribe закрыл бы его повторно.
func (s *QuizService) removeExpiredSessions(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.state == sessionFinished && sess.finishedAt.Before(cutoff) {
			for ch := range sess.subscribers {
				delete(sess.subscribers, ch)
				close(ch)
			}
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
