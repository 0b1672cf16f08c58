package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/decoder-api/internal/domain/entity"
	"github.com/yourusername/decoder-api/internal/handler/dto"
	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
	"github.com/yourusername/decoder-api/internal/service"
)

// AdminHandler обрабатывает запросы панели администратора
type AdminHandler struct {
	authService        *service.AuthService
	questionService    *service.QuestionService
	leaderboardService *service.LeaderboardService
	redeemService      *service.RedeemService
	settingsService    *service.SettingsService
}

// NewAdminHandler создает новый обработчик панели администратора
func NewAdminHandler(
	authService *service.AuthService,
	questionService *service.QuestionService,
	leaderboardService *service.LeaderboardService,
	redeemService *service.RedeemService,
	settingsService *service.SettingsService,
) *AdminHandler {
	return &AdminHandler{
		authService:        authService,
		questionService:    questionService,
		leaderboardService: leaderboardService,
		redeemService:      redeemService,
		settingsService:    settingsService,
	}
}

// Login выполняет вход администратора
// POST /api/admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.LoginResponse{Token: token})
}

// ChangePassword меняет пароль администратора
// POST /api/admin/password
func (h *AdminHandler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), req.OldPassword, req.NewPassword); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed"})
}

// ListQuestions возвращает банк вопросов целиком
// GET /api/admin/questions
func (h *AdminHandler) ListQuestions(c *gin.Context) {
	questions, err := h.questionService.List(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

// CreateQuestion добавляет вопрос в банк
// POST /api/admin/questions
func (h *AdminHandler) CreateQuestion(c *gin.Context) {
	var req dto.QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	question, err := h.questionService.Add(c.Request.Context(), req.ToEntity())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, question)
}

// UpdateQuestion правит вопрос банка
// PUT /api/admin/questions/:id
func (h *AdminHandler) UpdateQuestion(c *gin.Context) {
	var req dto.QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.questionService.Update(c.Request.Context(), c.Param("id"), req.ToEntity()); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Question updated"})
}

// DeleteQuestion удаляет вопрос банка
// DELETE /api/admin/questions/:id
func (h *AdminHandler) DeleteQuestion(c *gin.Context) {
	if err := h.questionService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Question deleted"})
}

// ClearQuestions очищает банк вопросов
// POST /api/admin/questions/clear
func (h *AdminHandler) ClearQuestions(c *gin.Context) {
	if err := h.questionService.Clear(c.Request.Context()); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Question bank cleared"})
}

// PreviewImport разбирает текст импорта, не меняя банк
// POST /api/admin/questions/preview
func (h *AdminHandler) PreviewImport(c *gin.Context) {
	var req dto.ImportQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.questionService.Preview(req.Text)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewImportReportResponse(report))
}

// ImportQuestions разбирает текст и дополняет банк вопросов
// POST /api/admin/questions/import
func (h *AdminHandler) ImportQuestions(c *gin.Context) {
	var req dto.ImportQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.questionService.Import(c.Request.Context(), req.Text)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewImportReportResponse(report))
}

// ExportQuestions выгружает банк вопросов в JSON без идентификаторов
// GET /api/admin/questions/export
func (h *AdminHandler) ExportQuestions(c *gin.Context) {
	exported, err := h.questionService.Export(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	filename := fmt.Sprintf("questions_%s.json", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.JSON(http.StatusOK, exported)
}

// GetLeaderboard возвращает полную таблицу лидеров
// GET /api/admin/leaderboard
func (h *AdminHandler) GetLeaderboard(c *gin.Context) {
	records, err := h.leaderboardService.List(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// ResetLeaderboard очищает таблицу лидеров
// POST /api/admin/leaderboard/reset
func (h *AdminHandler) ResetLeaderboard(c *gin.Context) {
	if err := h.leaderboardService.Reset(c.Request.Context()); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Leaderboard reset"})
}

// ExportLeaderboard выгружает таблицу лидеров в CSV или XLSX
// GET /api/admin/leaderboard/export?format=csv|xlsx
func (h *AdminHandler) ExportLeaderboard(c *gin.Context) {
	records, err := h.leaderboardService.List(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	filename := fmt.Sprintf("leaderboard_%s", time.Now().Format("2006-01-02"))
	switch c.DefaultQuery("format", "csv") {
	case "xlsx":
		h.exportXLSX(c, records, filename)
	default:
		h.exportCSV(c, records, filename)
	}
}

// exportCSV выгружает таблицу лидеров в CSV с корректным экранированием
func (h *AdminHandler) exportCSV(c *gin.Context, records []entity.ParticipationRecord, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"Место", "Имя", "Email", "Очки", "Всего вопросов", "Время (сек)", "Дата"})
	for i, r := range records {
		writer.Write([]string{
			strconv.Itoa(i + 1),
			sanitizeForExcel(r.Name),
			sanitizeForExcel(r.Email),
			strconv.Itoa(r.Score),
			strconv.Itoa(r.TotalQuestions),
			strconv.Itoa(r.TimeTaken),
			time.UnixMilli(r.Timestamp).Format("2006-01-02 15:04:05"),
		})
	}
}

// exportXLSX выгружает таблицу лидеров в Excel через StreamWriter
func (h *AdminHandler) exportXLSX(c *gin.Context, records []entity.ParticipationRecord, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Лидеры"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[AdminHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := []interface{}{"Место", "Имя", "Email", "Очки", "Всего вопросов", "Время (сек)", "Дата"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[AdminHandler] Ошибка записи заголовков: %v", err)
	}

	for i, r := range records {
		cell := fmt.Sprintf("A%d", i+2)
		row := []interface{}{
			i + 1,
			sanitizeForExcel(r.Name),
			sanitizeForExcel(r.Email),
			r.Score,
			r.TotalQuestions,
			r.TimeTaken,
			time.UnixMilli(r.Timestamp).Format("2006-01-02 15:04:05"),
		}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[AdminHandler] Ошибка записи строки %d: %v", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[AdminHandler] Ошибка при Flush: %v", err)
	}
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[AdminHandler] Ошибка записи Excel в response: %v", err)
	}
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

// GetRedeemPool возвращает состояние пула промокодов
// GET /api/admin/redeem
func (h *AdminHandler) GetRedeemPool(c *gin.Context) {
	pool, err := h.redeemService.Pool(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRedeemPoolResponse(pool))
}

// RegenerateRedeemCodes заменяет все промокоды новыми
// POST /api/admin/redeem/regenerate
func (h *AdminHandler) RegenerateRedeemCodes(c *gin.Context) {
	pool, err := h.redeemService.Regenerate(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRedeemPoolResponse(pool))
}

// ResetRedeemGiven сбрасывает флаги выдачи промокодов
// POST /api/admin/redeem/reset
func (h *AdminHandler) ResetRedeemGiven(c *gin.Context) {
	pool, err := h.redeemService.ResetGiven(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRedeemPoolResponse(pool))
}

// UpdateSettings сохраняет тексты публичных экранов
// PUT /api/admin/settings
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var req dto.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.settingsService.Save(c.Request.Context(), req.ToEntity()); err != nil {
		h.handleError(c, err)
		return
	}

	settings, err := h.settingsService.Get(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// handleError преобразует ошибки сервисов в HTTP ответы
func (h *AdminHandler) handleError(c *gin.Context, err error) {
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
		log.Printf("ERROR: Internal server error in AdminHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
