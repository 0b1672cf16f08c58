package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/yourusername/decoder-api/internal/domain/entity"
	"github.com/yourusername/decoder-api/internal/domain/repository"
	apperrors "github.com/yourusername/decoder-api/internal/pkg/errors"
	"github.com/yourusername/decoder-api/internal/service/importer"
)

// QuestionService управляет банком вопросов.
type QuestionService struct {
	store repository.BlobStore
}

// NewQuestionService создает новый сервис вопросов
func NewQuestionService(store repository.BlobStore) *QuestionService {
	return &QuestionService{store: store}
}

// List возвращает все вопросы банка. Пустое хранилище засевается
// стартовым набором, поврежденный блоб тоже считается пустым:
// терять работоспособность из-за битых данных нельзя.
func (s *QuestionService) List(ctx context.Context) ([]entity.Question, error) {
	data, err := s.store.Load(ctx, repository.KeyQuestions)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.seedSamples(ctx)
		}
		return nil, fmt.Errorf("load questions failed: %w", err)
	}

	var questions []entity.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		log.Printf("[QuestionService] Поврежденный блоб вопросов, восстанавливаю стартовый набор: %v", err)
		return s.seedSamples(ctx)
	}
	return questions, nil
}

// Count возвращает текущий размер банка вопросов
func (s *QuestionService) Count(ctx context.Context) (int, error) {
	questions, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(questions), nil
}

// Add добавляет вопрос в банк и возвращает его с присвоенным ID
func (s *QuestionService) Add(ctx context.Context, question entity.Question) (*entity.Question, error) {
	if !question.Validate() {
		return nil, fmt.Errorf("%w: question must have text, 2..4 options and a valid answer index", apperrors.ErrValidation)
	}

	questions, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	question.ID = uuid.NewString()
	questions = append(questions, question)

	if err := s.save(ctx, questions); err != nil {
		return nil, err
	}
	log.Printf("[QuestionService] Добавлен вопрос %s, всего в банке %d", question.ID, len(questions))
	return &question, nil
}

// Update заменяет вопрос с данным ID
func (s *QuestionService) Update(ctx context.Context, id string, question entity.Question) error {
	if !question.Validate() {
		return fmt.Errorf("%w: question must have text, 2..4 options and a valid answer index", apperrors.ErrValidation)
	}

	questions, err := s.List(ctx)
	if err != nil {
		return err
	}

	for i := range questions {
		if questions[i].ID == id {
			question.ID = id
			questions[i] = question
			return s.save(ctx, questions)
		}
	}
	return fmt.Errorf("%w: question %s", apperrors.ErrNotFound, id)
}

// Delete удаляет вопрос с данным ID
func (s *QuestionService) Delete(ctx context.Context, id string) error {
	questions, err := s.List(ctx)
	if err != nil {
		return err
	}

	for i := range questions {
		if questions[i].ID == id {
			questions = append(questions[:i], questions[i+1:]...)
			return s.save(ctx, questions)
		}
	}
	return fmt.Errorf("%w: question %s", apperrors.ErrNotFound, id)
}

// Clear опустошает банк вопросов. Пустой банк не засевается заново:
// очистка — осознанное действие администратора.
func (s *QuestionService) Clear(ctx context.Context) error {
	return s.save(ctx, []entity.Question{})
}

// ExportedQuestion — представление вопроса для файла экспорта.
// Внутренние ID в экспорт не попадают.
type ExportedQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// Export возвращает банк в формате файла экспорта
func (s *QuestionService) Export(ctx context.Context) ([]ExportedQuestion, error) {
	questions, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	exported := make([]ExportedQuestion, 0, len(questions))
	for _, q := range questions {
		exported = append(exported, ExportedQuestion{
			Question:      q.Text,
			Options:       q.Options,
			CorrectAnswer: q.Answer,
		})
	}
	return exported, nil
}

// Preview разбирает файл импорта без изменения банка
func (s *QuestionService) Preview(text string) (*importer.Report, error) {
	return importer.Parse(text)
}

// Import разбирает файл и ДОБАВЛЯЕТ валидные вопросы к банку.
// Существующие вопросы никогда не затираются импортом.
func (s *QuestionService) Import(ctx context.Context, text string) (*importer.Report, error) {
	report, err := importer.Parse(text)
	if err != nil {
		return nil, err
	}

	questions, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	for i := range report.Questions {
		report.Questions[i].ID = uuid.NewString()
		questions = append(questions, report.Questions[i])
	}

	if err := s.save(ctx, questions); err != nil {
		return nil, err
	}

	log.Printf("[QuestionService] Импорт: %d валидных, %d брака, %d исправлений, в банке %d",
		report.ValidCount, report.InvalidCount, report.CorrectionCount, len(questions))
	return report, nil
}

// seedSamples записывает стартовый набор вопросов и возвращает его
func (s *QuestionService) seedSamples(ctx context.Context) ([]entity.Question, error) {
	questions := entity.SampleQuestions()
	for i := range questions {
		questions[i].ID = uuid.NewString()
	}
	if err := s.save(ctx, questions); err != nil {
		return nil, err
	}
	log.Printf("[QuestionService] Банк вопросов пуст, записан стартовый набор из %d вопросов", len(questions))
	return questions, nil
}

func (s *QuestionService) save(ctx context.Context, questions []entity.Question) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions failed: %w", err)
	}
	if err := s.store.Save(ctx, repository.KeyQuestions, data); err != nil {
		return fmt.Errorf("save questions failed: %w", err)
	}
	return nil
}
