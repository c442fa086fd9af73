package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/testem-api/internal/dto"
	"github.com/noah-isme/testem-api/internal/pipeline"
	"github.com/noah-isme/testem-api/internal/service"
	"github.com/noah-isme/testem-api/internal/utils"
)

// ExamHandler exposes exam generation and grading endpoints.
type ExamHandler struct {
	service service.ExamService
	logger  zerolog.Logger
}

// NewExamHandler constructs an exam handler.
func NewExamHandler(service service.ExamService, logger zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		service: service,
		logger:  logger.With().Str("component", "exam_handler").Logger(),
	}
}

// Register wires exam routes.
func (h *ExamHandler) Register(router fiber.Router) {
	router.Post("", h.generate)
	router.Get("/:id", h.get)
	router.Post("/:id/grade", h.grade)
}

func (h *ExamHandler) generate(c *fiber.Ctx) error {
	var req dto.GenerateExamRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	exam, err := h.service.Generate(c.UserContext(), userIDFromContext(c), req)
	if err != nil {
		return h.handleError(c, err, "exam generation failed")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "exam generated", exam)
}

func (h *ExamHandler) get(c *fiber.Ctx) error {
	exam, err := h.service.Get(c.UserContext(), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, err, "failed to load exam")
	}

	return utils.SendSuccess(c, "exam retrieved", exam)
}

func (h *ExamHandler) grade(c *fiber.Ctx) error {
	var req dto.GradeExamRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Grade(c.UserContext(), userIDFromContext(c), c.Params("id"), req)
	if err != nil {
		return h.handleError(c, err, "exam grading failed")
	}

	return utils.SendSuccess(c, "exam graded", result)
}

func (h *ExamHandler) handleError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	case errors.Is(err, pipeline.ErrInvalidExamConfig):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrMissingUser):
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrExamNotFound), errors.Is(err, service.ErrDocumentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDocumentForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrExamAlreadyGraded):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrAnswerCountMismatch),
		errors.Is(err, pipeline.ErrNoDocumentsUploaded),
		errors.Is(err, pipeline.ErrEmptyExam),
		errors.Is(err, pipeline.ErrGradingMismatch),
		errors.Is(err, pipeline.ErrNoQuestions):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, pipeline.ErrIndexingFailed),
		errors.Is(err, pipeline.ErrIndexingTimeout),
		errors.Is(err, pipeline.ErrThreadCreation),
		errors.Is(err, pipeline.ErrStreamFailed):
		requestLogger(h.logger, c).Warn().Err(err).Msg("upstream AI service failed")
		return utils.SendError(c, fiber.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		requestLogger(h.logger, c).Warn().Err(err).Msg("exam run timed out")
		return utils.SendError(c, fiber.StatusGatewayTimeout, "exam run timed out")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
