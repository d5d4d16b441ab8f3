package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/essay-grader-api/internal/dto"
	"github.com/noah-isme/essay-grader-api/internal/service"
	"github.com/noah-isme/essay-grader-api/internal/utils"
)

// AdminHandler exposes coin adjustments and account removal.
type AdminHandler struct {
	accounts service.AccountService
	wallet   service.WalletService
	logger   zerolog.Logger
}

// NewAdminHandler constructs an admin handler.
func NewAdminHandler(accounts service.AccountService, wallet service.WalletService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		accounts: accounts,
		wallet:   wallet,
		logger:   logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register attaches admin routes. The router is expected to be guarded for admins.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Post("/profiles/:userID/coins", h.adjustCoins)
	router.Delete("/users/:userID", h.deleteUser)
}

func (h *AdminHandler) adjustCoins(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "userID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CoinAdjustRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.wallet.Adjust(userContext(c), userID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().
		Uint("user_id", userID).
		Uint("admin_id", userIDFromContext(c)).
		Str("type", payload.Type).
		Int("amount", payload.Amount).
		Msg("coins adjusted")

	return utils.SendSuccess(c, "coins adjusted", result)
}

func (h *AdminHandler) deleteUser(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "userID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.accounts.DeleteUser(userContext(c), userID); err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().Uint("user_id", userID).Uint("admin_id", userIDFromContext(c)).Msg("user deleted")
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AdminHandler) handleError(c *fiber.Ctx, err error) error {
	if handled, resp := validationFailed(c, err); handled {
		return resp
	}

	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInsufficientCoins):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("admin request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
