package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/essay-grader-api/internal/service"
	"github.com/noah-isme/essay-grader-api/internal/utils"
)

// WebhookSecretHeader carries the secret shared with the grading workflow.
const WebhookSecretHeader = "X-N8N-Api-Key"

// WebhookHandler receives grading results from the external workflow.
type WebhookHandler struct {
	service service.GradingService
	logger  zerolog.Logger
}

// NewWebhookHandler constructs a webhook handler.
func NewWebhookHandler(service service.GradingService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger.With().Str("component", "webhook_handler").Logger(),
	}
}

// Register attaches webhook routes.
func (h *WebhookHandler) Register(router fiber.Router) {
	router.Post("/grading-complete", h.gradingComplete)
}

func (h *WebhookHandler) gradingComplete(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)

	ack, err := h.service.Receive(userContext(c), c.Get(WebhookSecretHeader), body)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "correction recorded", ack)
}

func (h *WebhookHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidWebhookSecret):
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	case errors.Is(err, service.ErrInvalidGradingPayload):
		return utils.Fail(c, fiber.StatusBadRequest, "invalid grading payload", err.Error())
	case errors.Is(err, service.ErrSubmissionNotProcessing):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("grading callback failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to record grading result")
	}
}
