package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/testem-api/internal/config"
	"github.com/noah-isme/testem-api/internal/dto"
	"github.com/noah-isme/testem-api/internal/handler"
	"github.com/noah-isme/testem-api/internal/pipeline"
	"github.com/noah-isme/testem-api/internal/router"
	"github.com/noah-isme/testem-api/internal/service"
)

type stubExamService struct {
	exam      dto.ExamResponse
	graded    dto.GradeExamResponse
	err       error
	userID    string
	examID    string
	generated dto.GenerateExamRequest
	answers   []string
}

func (s *stubExamService) Generate(_ context.Context, userID string, req dto.GenerateExamRequest) (dto.ExamResponse, error) {
	s.userID = userID
	s.generated = req
	return s.exam, s.err
}

func (s *stubExamService) Grade(_ context.Context, userID, examID string, req dto.GradeExamRequest) (dto.GradeExamResponse, error) {
	s.userID = userID
	s.examID = examID
	s.answers = req.Answers
	return s.graded, s.err
}

func (s *stubExamService) Get(_ context.Context, userID, examID string) (dto.ExamResponse, error) {
	s.userID = userID
	s.examID = examID
	return s.exam, s.err
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Details map[string]string `json:"details"`
}

func sampleExam() dto.ExamResponse {
	return dto.ExamResponse{
		ID:                "exam-1",
		Status:            "generated",
		Difficulty:        "medium",
		NumberOfQuestions: 2,
		DocumentIDs:       []string{"doc-1"},
		Questions: []dto.ExamQuestionResponse{
			{Question: "2+2?", Type: "multiple-choice", Options: []string{"3", "4"}, CorrectAnswer: "4"},
			{Question: "Water boils at 100C at sea level", Type: "true-false", Options: []string{}, CorrectAnswer: "true"},
		},
		FailedLines: []int{3},
		CreatedAt:   time.Now().UTC(),
	}
}

func setupExamApp(svc service.ExamService) *fiber.App {
	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{
		ExamHandler: handler.NewExamHandler(svc, zerolog.Nop()),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", "user-1")
			return c.Next()
		},
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()
	return resp, payload
}

func TestExamHandlerGenerate(t *testing.T) {
	svc := &stubExamService{exam: sampleExam()}
	app := setupExamApp(svc)

	resp, payload := doJSON(t, app, http.MethodPost, "/api/v1/exams", map[string]interface{}{
		"document_ids":        []string{"doc-1"},
		"number_of_questions": 2,
		"difficulty":          "medium",
		"subject":             "thermodynamics",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.True(t, payload.Success)
	require.Equal(t, "user-1", svc.userID)
	require.Equal(t, "thermodynamics", svc.generated.Subject)

	var exam dto.ExamResponse
	require.NoError(t, json.Unmarshal(payload.Data, &exam))
	require.Equal(t, "exam-1", exam.ID)
	require.Equal(t, []int{3}, exam.FailedLines)
}

func TestExamHandlerGradeAndGet(t *testing.T) {
	svc := &stubExamService{
		exam:   sampleExam(),
		graded: dto.GradeExamResponse{ExamID: "exam-1", Score: 50, Correct: 1, Total: 2},
	}
	app := setupExamApp(svc)

	resp, payload := doJSON(t, app, http.MethodPost, "/api/v1/exams/exam-1/grade", map[string]interface{}{
		"answers": []string{"4", "false"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "exam-1", svc.examID)
	require.Equal(t, []string{"4", "false"}, svc.answers)

	var graded dto.GradeExamResponse
	require.NoError(t, json.Unmarshal(payload.Data, &graded))
	require.Equal(t, 50, graded.Score)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/exams/exam-1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestExamHandlerRejectsMalformedBody(t *testing.T) {
	app := setupExamApp(&stubExamService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/exams", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestExamHandlerValidationDetails(t *testing.T) {
	type generateInput struct {
		Difficulty string `validate:"oneof=easy medium hard"`
	}
	validationErr := validator.New().Struct(generateInput{Difficulty: "extreme"})
	require.Error(t, validationErr)

	app := setupExamApp(&stubExamService{err: validationErr})
	resp, payload := doJSON(t, app, http.MethodPost, "/api/v1/exams", map[string]interface{}{"difficulty": "extreme"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "oneof", payload.Details["Difficulty"])
}

func TestExamHandlerMapsErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{service.ErrMissingUser, fiber.StatusUnauthorized},
		{service.ErrExamNotFound, fiber.StatusNotFound},
		{fmt.Errorf("%w: doc-9", service.ErrDocumentNotFound), fiber.StatusNotFound},
		{fmt.Errorf("%w: doc-3", service.ErrDocumentForbidden), fiber.StatusForbidden},
		{service.ErrExamAlreadyGraded, fiber.StatusConflict},
		{service.ErrAnswerCountMismatch, fiber.StatusUnprocessableEntity},
		{pipeline.ErrNoDocumentsUploaded, fiber.StatusUnprocessableEntity},
		{&pipeline.EmptyExamError{}, fiber.StatusUnprocessableEntity},
		{&pipeline.GradingMismatchError{Expected: 3, Got: 2}, fiber.StatusUnprocessableEntity},
		{&pipeline.IndexingFailedError{DocumentID: "ext-1"}, fiber.StatusBadGateway},
		{&pipeline.IndexingTimeoutError{DocumentIDs: []string{"ext-1"}}, fiber.StatusBadGateway},
		{&pipeline.ThreadCreationError{Err: fmt.Errorf("503")}, fiber.StatusBadGateway},
		{&pipeline.StreamError{Message: "model overloaded"}, fiber.StatusBadGateway},
		{fmt.Errorf("%w: send message: %w", pipeline.ErrStreamFailed, fmt.Errorf("status 500")), fiber.StatusBadGateway},
		{context.DeadlineExceeded, fiber.StatusGatewayTimeout},
		{fmt.Errorf("store exam: %w", fmt.Errorf("disk full")), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			app := setupExamApp(&stubExamService{err: tc.err})
			resp, payload := doJSON(t, app, http.MethodGet, "/api/v1/exams/exam-1", nil)
			require.Equal(t, tc.status, resp.StatusCode)
			require.False(t, payload.Success)
		})
	}
}
