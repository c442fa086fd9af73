package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/testem-api/internal/service"
	"github.com/noah-isme/testem-api/internal/utils"
)

// AssistantHandler resolves the caller's assistant.
type AssistantHandler struct {
	service service.AssistantService
	logger  zerolog.Logger
}

// NewAssistantHandler constructs an assistant handler.
func NewAssistantHandler(service service.AssistantService, logger zerolog.Logger) *AssistantHandler {
	return &AssistantHandler{
		service: service,
		logger:  logger.With().Str("component", "assistant_handler").Logger(),
	}
}

// Register wires assistant routes.
func (h *AssistantHandler) Register(router fiber.Router) {
	router.Post("", h.ensure)
}

func (h *AssistantHandler) ensure(c *fiber.Ctx) error {
	assistant, err := h.service.Ensure(c.UserContext(), userIDFromContext(c))
	if err != nil {
		if errors.Is(err, service.ErrMissingUser) {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("assistant resolution failed")
		return utils.SendError(c, fiber.StatusBadGateway, "assistant unavailable")
	}

	status := fiber.StatusOK
	if assistant.Created {
		status = fiber.StatusCreated
	}
	return utils.SendSuccessWithStatus(c, status, "assistant ready", assistant)
}
