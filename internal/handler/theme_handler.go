package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/essay-grader-api/internal/dto"
	"github.com/noah-isme/essay-grader-api/internal/middleware"
	"github.com/noah-isme/essay-grader-api/internal/service"
	"github.com/noah-isme/essay-grader-api/internal/utils"
)

// ThemeHandler serves essay themes.
type ThemeHandler struct {
	service service.ThemeService
	logger  zerolog.Logger
}

// NewThemeHandler constructs a theme handler.
func NewThemeHandler(service service.ThemeService, logger zerolog.Logger) *ThemeHandler {
	return &ThemeHandler{
		service: service,
		logger:  logger.With().Str("component", "theme_handler").Logger(),
	}
}

// Register attaches theme routes. Listing is public; publishing needs staff.
func (h *ThemeHandler) Register(router fiber.Router, auth fiber.Handler) {
	router.Get("", h.list)
	router.Post("", auth, middleware.WithAuth(h.create, middleware.AuthOptions{Role: middleware.AuthRoleStaff}))
}

func (h *ThemeHandler) list(c *fiber.Ctx) error {
	themes, err := h.service.List(userContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list themes")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load themes")
	}

	return utils.SendSuccess(c, "themes retrieved", themes)
}

func (h *ThemeHandler) create(c *fiber.Ctx) error {
	var payload dto.ThemeCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	theme, err := h.service.Create(userContext(c), payload)
	if err != nil {
		if handled, resp := validationFailed(c, err); handled {
			return resp
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to create theme")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendCreated(c, "theme created", theme)
}
