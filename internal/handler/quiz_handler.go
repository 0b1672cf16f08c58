package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/decoder-api/internal/handler/dto"
	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
	"github.com/yourusername/decoder-api/internal/service"
)

// publicLeaderboardSize ограничивает публичную таблицу лидеров
const publicLeaderboardSize = 10

// QuizHandler обрабатывает публичные запросы викторины
type QuizHandler struct {
	quizService        *service.QuizService
	questionService    *service.QuestionService
	leaderboardService *service.LeaderboardService
	settingsService    *service.SettingsService
}

// NewQuizHandler создает новый публичный обработчик
func NewQuizHandler(
	quizService *service.QuizService,
	questionService *service.QuestionService,
	leaderboardService *service.LeaderboardService,
	settingsService *service.SettingsService,
) *QuizHandler {
	return &QuizHandler{
		quizService:        quizService,
		questionService:    questionService,
		leaderboardService: leaderboardService,
		settingsService:    settingsService,
	}
}

// GetSettings возвращает тексты публичных экранов
// GET /api/settings
func (h *QuizHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.Get(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// GetQuestionCount возвращает размер банка вопросов
// GET /api/questions/count
func (h *QuizHandler) GetQuestionCount(c *gin.Context) {
	count, err := h.questionService.Count(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// StartQuiz начинает новую попытку
// POST /api/quiz/start
func (h *QuizHandler) StartQuiz(c *gin.Context) {
	var req dto.StartQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, sessionID, status, err := h.quizService.Start(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if status != nil && !status.Allowed {
		c.JSON(http.StatusTooManyRequests, dto.CooldownResponse{
			Error:            "You have already played recently. Please come back later.",
			BlockedUntil:     status.BlockedUntil.UnixMilli(),
			RemainingSeconds: int(status.Remaining.Seconds()),
		})
		return
	}

	c.JSON(http.StatusCreated, dto.StartQuizResponse{
		SessionID: sessionID,
		Question:  view,
	})
}

// GetCurrentQuestion возвращает текущий вопрос сессии
// GET /api/quiz/:sessionId/current
func (h *QuizHandler) GetCurrentQuestion(c *gin.Context) {
	view, err := h.quizService.Current(c.Param("sessionId"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SubmitAnswer принимает ответ на текущий вопрос
// POST /api/quiz/:sessionId/answer
func (h *QuizHandler) SubmitAnswer(c *gin.Context) {
	var req dto.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.quizService.SubmitAnswer(c.Request.Context(), c.Param("sessionId"), *req.Option)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// GetSummary возвращает итог завершенной сессии
// GET /api/quiz/:sessionId/summary
func (h *QuizHandler) GetSummary(c *gin.Context) {
	summary, err := h.quizService.Summary(c.Param("sessionId"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetLeaderboard возвращает публичную таблицу лидеров
// GET /api/leaderboard
func (h *QuizHandler) GetLeaderboard(c *gin.Context) {
	records, err := h.leaderboardService.Top(c.Request.Context(), publicLeaderboardSize)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":   dto.NewLeaderboardResponse(records),
		"updatedAt": time.Now().UnixMilli(),
	})
}

// handleError преобразует ошибки сервисов в HTTP ответы
func (h *QuizHandler) handleError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrLocked) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in QuizHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
