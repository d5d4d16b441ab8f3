package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/essay-grader-api/internal/dto"
	"github.com/noah-isme/essay-grader-api/internal/middleware"
	"github.com/noah-isme/essay-grader-api/internal/service"
	"github.com/noah-isme/essay-grader-api/internal/utils"
)

const passwordResetSentMessage = "if the email is registered, a password reset link has been sent"

// AccountHandler exposes registration, login, password and profile endpoints.
type AccountHandler struct {
	accounts service.AccountService
	wallet   service.WalletService
	logger   zerolog.Logger
}

// NewAccountHandler constructs an account handler.
func NewAccountHandler(accounts service.AccountService, wallet service.WalletService, logger zerolog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		wallet:   wallet,
		logger:   logger.With().Str("component", "account_handler").Logger(),
	}
}

// Register attaches account routes. auth must populate user_id; resetLimit
// throttles password reset requests and may be nil.
func (h *AccountHandler) Register(router fiber.Router, auth fiber.Handler, resetLimit fiber.Handler) {
	if resetLimit == nil {
		resetLimit = func(c *fiber.Ctx) error { return c.Next() }
	}
	signedIn := middleware.AuthOptions{Role: middleware.AuthRoleAny, RequireUser: true}

	router.Post("/register", h.register)
	router.Post("/token", h.login)
	router.Patch("/change-password", auth, middleware.WithAuth(h.changePassword, signedIn))
	router.Post("/password-reset", resetLimit, h.requestPasswordReset)
	router.Post("/password-reset/confirm", h.confirmPasswordReset)
	router.Get("/profile/me", auth, middleware.WithAuth(h.profile, signedIn))
	router.Get("/profile/me/transactions", auth, middleware.WithAuth(h.transactions, signedIn))
}

func (h *AccountHandler) register(c *fiber.Ctx) error {
	var payload dto.RegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.accounts.Register(userContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendCreated(c, "user registered", user)
}

func (h *AccountHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	token, err := h.accounts.Login(userContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "authenticated", token)
}

func (h *AccountHandler) changePassword(c *fiber.Ctx) error {
	var payload dto.ChangePasswordRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.accounts.ChangePassword(userContext(c), userIDFromContext(c), payload); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "password updated", nil)
}

func (h *AccountHandler) requestPasswordReset(c *fiber.Ctx) error {
	var payload dto.PasswordResetRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.accounts.RequestPasswordReset(userContext(c), payload); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, passwordResetSentMessage, nil)
}

func (h *AccountHandler) confirmPasswordReset(c *fiber.Ctx) error {
	var payload dto.PasswordResetConfirmRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.accounts.ConfirmPasswordReset(userContext(c), payload); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "password has been reset", nil)
}

func (h *AccountHandler) profile(c *fiber.Ctx) error {
	profile, err := h.accounts.GetProfile(userContext(c), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "profile retrieved", profile)
}

func (h *AccountHandler) transactions(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	items, meta, err := h.wallet.ListTransactions(userContext(c), userIDFromContext(c), limit, offset)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.OK(c, items, "transactions retrieved", meta)
}

func (h *AccountHandler) handleError(c *fiber.Ctx, err error) error {
	if handled, resp := validationFailed(c, err); handled {
		return resp
	}

	switch {
	case errors.Is(err, service.ErrUserExists):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrWrongPassword):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidResetLink):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("account request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
