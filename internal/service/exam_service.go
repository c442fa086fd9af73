package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/testem-api/internal/dto"
	"github.com/noah-isme/testem-api/internal/models"
	"github.com/noah-isme/testem-api/internal/pipeline"
	"github.com/noah-isme/testem-api/internal/repository"
	"github.com/noah-isme/testem-api/internal/reqctx"
)

var (
	// ErrExamNotFound indicates the exam does not exist or belongs to another user.
	ErrExamNotFound = errors.New("exam not found")
	// ErrDocumentNotFound indicates one of the selected documents does not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDocumentForbidden indicates a selected document belongs to another user.
	ErrDocumentForbidden = errors.New("document does not belong to user")
	// ErrAnswerCountMismatch indicates the answers do not line up with the exam questions.
	ErrAnswerCountMismatch = errors.New("answer count does not match question count")
	// ErrExamAlreadyGraded indicates the exam already has results.
	ErrExamAlreadyGraded = errors.New("exam already graded")
)

const defaultPipelineTimeout = 5 * time.Minute

// ExamRunner executes generation and grading runs.
type ExamRunner interface {
	Generate(ctx context.Context, input pipeline.GenerateInput) (pipeline.GenerateResult, error)
	Grade(ctx context.Context, input pipeline.GradeInput) (pipeline.GradeResult, error)
}

// ExamService generates, stores and grades exams.
type ExamService interface {
	Generate(ctx context.Context, userID string, req dto.GenerateExamRequest) (dto.ExamResponse, error)
	Grade(ctx context.Context, userID, examID string, req dto.GradeExamRequest) (dto.GradeExamResponse, error)
	Get(ctx context.Context, userID, examID string) (dto.ExamResponse, error)
}

// ExamServiceConfig tunes exam runs and event publishing.
type ExamServiceConfig struct {
	PipelineTimeout time.Duration
	// ChannelBase prefixes the redis channel and nats subjects for exam events.
	ChannelBase string
}

type examService struct {
	exams       repository.ExamRepository
	documents   repository.DocumentRepository
	assistants  AssistantService
	runner      ExamRunner
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	redis       *redis.Client
	nats        *nats.Conn
	redisStream string
	natsSubject string
	timeout     time.Duration
	logger      zerolog.Logger
	tracer      trace.Tracer
}

type examEvent struct {
	Type       string    `json:"type"`
	ExamID     string    `json:"exam_id"`
	UserID     string    `json:"user_id"`
	Questions  int       `json:"questions"`
	Score      *int      `json:"score,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewExamService constructs an exam service. redisClient and natsConn may be nil.
func NewExamService(exams repository.ExamRepository, documents repository.DocumentRepository, assistants AssistantService, runner ExamRunner, redisClient *redis.Client, natsConn *nats.Conn, validate *validator.Validate, cfg ExamServiceConfig, logger zerolog.Logger) ExamService {
	if cfg.PipelineTimeout <= 0 {
		cfg.PipelineTimeout = defaultPipelineTimeout
	}
	stream := ""
	subject := ""
	if cfg.ChannelBase != "" {
		stream = cfg.ChannelBase + ":exams"
		subject = strings.ReplaceAll(cfg.ChannelBase, ":", ".") + ".exams"
	}
	if validate == nil {
		validate = validator.New()
	}

	return &examService{
		exams:       exams,
		documents:   documents,
		assistants:  assistants,
		runner:      runner,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		redis:       redisClient,
		nats:        natsConn,
		redisStream: stream,
		natsSubject: subject,
		timeout:     cfg.PipelineTimeout,
		logger:      logger.With().Str("component", "exam_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/testem-api/internal/service/exam"),
	}
}

func (s *examService) Generate(ctx context.Context, userID string, req dto.GenerateExamRequest) (dto.ExamResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return dto.ExamResponse{}, ErrMissingUser
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ExamResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "exams.generate", trace.WithAttributes(
		attribute.String("exam.user_id", userID),
		attribute.Int("exam.documents", len(req.DocumentIDs)),
	))
	defer span.End()

	documentIDs := uniqueStrings(req.DocumentIDs)
	refs, err := s.resolveDocuments(ctx, userID, documentIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "document resolution failed")
		return dto.ExamResponse{}, err
	}

	assistant, err := s.assistants.Ensure(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assistant resolution failed")
		return dto.ExamResponse{}, err
	}

	cfg := pipeline.ExamConfig{
		NumberOfQuestions: req.NumberOfQuestions,
		Difficulty:        pipeline.Difficulty(strings.ToLower(req.Difficulty)),
		SubjectContext:    s.sanitize(req.Subject),
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.runner.Generate(runCtx, pipeline.GenerateInput{
		AssistantID: assistant.ID,
		Documents:   refs,
		Config:      cfg,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return dto.ExamResponse{}, err
	}

	failedLines := pipeline.GenerationParse{Failures: result.Failures}.FailedLines()
	exam := models.Exam{
		ID:                uuid.NewString(),
		UserID:            userID,
		AssistantID:       assistant.ID,
		Difficulty:        string(cfg.Difficulty),
		NumberOfQuestions: cfg.NumberOfQuestions,
		SubjectContext:    cfg.SubjectContext,
		Status:            models.ExamStatusGenerated,
		DocumentIDs:       documentIDs,
		Questions:         toExamQuestions(result.Questions),
		FailedLines:       failedLines,
	}
	if err := s.exams.Create(ctx, &exam); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.ExamResponse{}, fmt.Errorf("store exam: %w", err)
	}

	reqctx.Logger(ctx, s.logger).Info().
		Str("exam_id", exam.ID).
		Str("user_id", userID).
		Int("questions", len(exam.Questions)).
		Int("failed_lines", len(failedLines)).
		Msg("exam generated")
	s.emit(ctx, examEvent{Type: "exam.generated", ExamID: exam.ID, UserID: userID, Questions: len(exam.Questions)})

	span.SetAttributes(attribute.String("exam.id", exam.ID))
	span.SetStatus(codes.Ok, "generated")
	return toExamResponse(exam), nil
}

func (s *examService) Grade(ctx context.Context, userID, examID string, req dto.GradeExamRequest) (dto.GradeExamResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return dto.GradeExamResponse{}, ErrMissingUser
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.GradeExamResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "exams.grade", trace.WithAttributes(
		attribute.String("exam.user_id", userID),
		attribute.String("exam.id", examID),
	))
	defer span.End()

	exam, err := s.findOwned(ctx, userID, examID)
	if err != nil {
		return dto.GradeExamResponse{}, err
	}
	if exam.Status == models.ExamStatusGraded {
		return dto.GradeExamResponse{}, ErrExamAlreadyGraded
	}
	if len(req.Answers) != len(exam.Questions) {
		return dto.GradeExamResponse{}, fmt.Errorf("%w: got %d answers for %d questions", ErrAnswerCountMismatch, len(req.Answers), len(exam.Questions))
	}

	refs, err := s.resolveDocuments(ctx, userID, exam.DocumentIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "document resolution failed")
		return dto.GradeExamResponse{}, err
	}

	assistantID := exam.AssistantID
	if assistantID == "" {
		assistant, err := s.assistants.Ensure(ctx, userID)
		if err != nil {
			return dto.GradeExamResponse{}, err
		}
		assistantID = assistant.ID
	}

	answered := make([]pipeline.AnsweredQuestion, len(exam.Questions))
	for i, q := range exam.Questions {
		answered[i] = pipeline.AnsweredQuestion{
			Question: pipeline.Question{
				Prompt:        q.Question,
				Type:          pipeline.QuestionType(q.Type),
				Options:       q.Options,
				CorrectAnswer: q.CorrectAnswer,
			},
			UserAnswer: strings.TrimSpace(req.Answers[i]),
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.runner.Grade(runCtx, pipeline.GradeInput{
		AssistantID: assistantID,
		Documents:   refs,
		Questions:   answered,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grading failed")
		return dto.GradeExamResponse{}, err
	}

	results := make([]models.ExamResult, len(result.Records))
	correct := 0
	for i, record := range result.Records {
		if record.Verdict {
			correct++
		}
		results[i] = models.ExamResult{
			UserAnswer:  answered[i].UserAnswer,
			IsCorrect:   record.Verdict,
			ModelAnswer: record.ModelAnswer,
		}
	}
	score := ScorePercent(correct, len(results))
	gradedAt := time.Now().UTC()

	exam.Status = models.ExamStatusGraded
	exam.Results = results
	exam.Score = &score
	exam.GradedAt = &gradedAt
	if err := s.exams.SaveResults(ctx, exam); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.GradeExamResponse{}, fmt.Errorf("store grading results: %w", err)
	}

	reqctx.Logger(ctx, s.logger).Info().Str("exam_id", exam.ID).Int("score", score).Int("correct", correct).Msg("exam graded")
	s.emit(ctx, examEvent{Type: "exam.graded", ExamID: exam.ID, UserID: userID, Questions: len(results), Score: &score})

	span.SetAttributes(attribute.Int("exam.score", score))
	span.SetStatus(codes.Ok, "graded")
	return dto.GradeExamResponse{
		ExamID:  exam.ID,
		Score:   score,
		Correct: correct,
		Total:   len(results),
		Results: toResultResponses(*exam),
	}, nil
}

func (s *examService) Get(ctx context.Context, userID, examID string) (dto.ExamResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return dto.ExamResponse{}, ErrMissingUser
	}
	exam, err := s.findOwned(ctx, userID, examID)
	if err != nil {
		return dto.ExamResponse{}, err
	}
	return toExamResponse(*exam), nil
}

func (s *examService) findOwned(ctx context.Context, userID, examID string) (*models.Exam, error) {
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	if exam.UserID != userID {
		return nil, ErrExamNotFound
	}
	return exam, nil
}

// resolveDocuments loads the selected documents in request order and checks ownership.
func (s *examService) resolveDocuments(ctx context.Context, userID string, ids []string) ([]pipeline.DocumentRef, error) {
	documents, err := s.documents.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	byID := make(map[string]models.Document, len(documents))
	for _, doc := range documents {
		byID[doc.ID] = doc
	}

	refs := make([]pipeline.DocumentRef, 0, len(ids))
	for _, id := range ids {
		doc, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
		}
		if doc.OwnerID != userID {
			return nil, fmt.Errorf("%w: %s", ErrDocumentForbidden, id)
		}
		refs = append(refs, pipeline.DocumentRef{
			ID:          doc.ID,
			DisplayName: doc.FileName,
			StoragePath: doc.StoragePath,
			OwnerID:     doc.OwnerID,
		})
	}
	return refs, nil
}

func (s *examService) sanitize(subject string) string {
	clean := s.sanitizer.Sanitize(subject)
	return strings.TrimSpace(html.UnescapeString(clean))
}

func (s *examService) emit(ctx context.Context, event examEvent) {
	event.OccurredAt = time.Now().UTC()
	payload, err := json.Marshal(event)
	if err != nil {
		reqctx.Logger(ctx, s.logger).Warn().Err(err).Msg("failed to encode exam event")
		return
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			reqctx.Logger(ctx, s.logger).Warn().Err(err).Str("event", event.Type).Msg("failed to publish exam event to redis")
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		subject := s.natsSubject + "." + strings.TrimPrefix(event.Type, "exam.")
		if err := s.nats.Publish(subject, payload); err != nil {
			reqctx.Logger(ctx, s.logger).Warn().Err(err).Str("event", event.Type).Msg("failed to publish exam event to nats")
		}
	}
}

// ScorePercent returns round(100 * correct / total), or 0 for an empty exam.
func ScorePercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}

func toExamQuestions(questions []pipeline.Question) []models.ExamQuestion {
	result := make([]models.ExamQuestion, len(questions))
	for i, q := range questions {
		options := q.Options
		if options == nil {
			options = []string{}
		}
		result[i] = models.ExamQuestion{
			Question:      q.Prompt,
			Type:          string(q.Type),
			Options:       options,
			CorrectAnswer: q.CorrectAnswer,
		}
	}
	return result
}

func toExamResponse(exam models.Exam) dto.ExamResponse {
	questions := make([]dto.ExamQuestionResponse, len(exam.Questions))
	for i, q := range exam.Questions {
		questions[i] = dto.ExamQuestionResponse{
			Question:      q.Question,
			Type:          q.Type,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
		}
	}

	failed := []int(exam.FailedLines)
	if failed == nil {
		failed = []int{}
	}
	documentIDs := []string(exam.DocumentIDs)
	if documentIDs == nil {
		documentIDs = []string{}
	}

	return dto.ExamResponse{
		ID:                exam.ID,
		Status:            exam.Status,
		Difficulty:        exam.Difficulty,
		NumberOfQuestions: exam.NumberOfQuestions,
		DocumentIDs:       documentIDs,
		Questions:         questions,
		FailedLines:       failed,
		Results:           toResultResponses(exam),
		Score:             exam.Score,
		GradedAt:          exam.GradedAt,
		CreatedAt:         exam.CreatedAt,
	}
}

func toResultResponses(exam models.Exam) []dto.ExamResultResponse {
	if len(exam.Results) == 0 {
		return nil
	}
	results := make([]dto.ExamResultResponse, len(exam.Results))
	for i, r := range exam.Results {
		question := ""
		if i < len(exam.Questions) {
			question = exam.Questions[i].Question
		}
		results[i] = dto.ExamResultResponse{
			Question:    question,
			UserAnswer:  r.UserAnswer,
			IsCorrect:   r.IsCorrect,
			ModelAnswer: r.ModelAnswer,
		}
	}
	return results
}
