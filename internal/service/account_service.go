package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/essay-grader-api/internal/dto"
	"github.com/noah-isme/essay-grader-api/internal/models"
	"github.com/noah-isme/essay-grader-api/internal/observability"
	"github.com/noah-isme/essay-grader-api/internal/repository"
	"github.com/noah-isme/essay-grader-api/pkg/mailer"
)

var (
	// ErrUserExists indicates the username or email is already registered.
	ErrUserExists = errors.New("username or email already registered")
	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrWrongPassword indicates the old password did not match.
	ErrWrongPassword = errors.New("old password is incorrect")
	// ErrInvalidResetLink covers every rejected password reset link.
	ErrInvalidResetLink = errors.New("invalid link")
	// ErrUserNotFound indicates the account does not exist.
	ErrUserNotFound = errors.New("user not found")
)

const welcomeBonusDescription = "welcome bonus"

// Mailer delivers outgoing email.
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// AccountConfig tunes account workflows.
type AccountConfig struct {
	AppName          string
	FrontendURL      string
	StartingCoins    int
	JWTSecret        string
	AccessTokenTTL   time.Duration
	PasswordResetTTL time.Duration
}

// AccountService covers registration, authentication and password management.
type AccountService interface {
	Register(ctx context.Context, payload dto.RegisterRequest) (dto.UserResponse, error)
	Login(ctx context.Context, payload dto.LoginRequest) (dto.TokenResponse, error)
	ChangePassword(ctx context.Context, userID uint, payload dto.ChangePasswordRequest) error
	RequestPasswordReset(ctx context.Context, payload dto.PasswordResetRequest) error
	ConfirmPasswordReset(ctx context.Context, payload dto.PasswordResetConfirmRequest) error
	GetProfile(ctx context.Context, userID uint) (dto.ProfileResponse, error)
	DeleteUser(ctx context.Context, userID uint) error
}

type accountService struct {
	users     repository.UserRepository
	profiles  repository.ProfileRepository
	validator *validator.Validate
	mailer    Mailer
	tokens    *TokenIssuer
	resets    resetTokens
	cfg       AccountConfig
	logger    zerolog.Logger
}

// NewAccountService wires the account workflows.
func NewAccountService(users repository.UserRepository, profiles repository.ProfileRepository, validate *validator.Validate, mail Mailer, cfg AccountConfig, logger zerolog.Logger) AccountService {
	if cfg.StartingCoins < 0 {
		cfg.StartingCoins = 0
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	return &accountService{
		users:     users,
		profiles:  profiles,
		validator: validate,
		mailer:    mail,
		tokens:    NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL),
		resets:    newResetTokens(cfg.JWTSecret, cfg.PasswordResetTTL),
		cfg:       cfg,
		logger:    logger.With().Str("component", "account_service").Logger(),
	}
}

func (s *accountService) Register(ctx context.Context, payload dto.RegisterRequest) (dto.UserResponse, error) {
	payload.Username = strings.TrimSpace(payload.Username)
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, payload.Username, payload.Email)
	if err != nil {
		return dto.UserResponse{}, err
	}
	if exists {
		return dto.UserResponse{}, ErrUserExists
	}

	hash, err := hashPassword(payload.Password)
	if err != nil {
		return dto.UserResponse{}, err
	}

	user := models.User{
		Username:     payload.Username,
		Email:        payload.Email,
		PasswordHash: hash,
	}
	profile := models.Profile{
		Role:         models.RoleStudent,
		CoinsBalance: s.cfg.StartingCoins,
	}

	var opening *models.CoinTransaction
	if s.cfg.StartingCoins > 0 {
		opening = &models.CoinTransaction{
			Type:        models.CoinCredit,
			Amount:      s.cfg.StartingCoins,
			Description: welcomeBonusDescription,
		}
	}

	if err := s.users.CreateWithProfile(ctx, &user, &profile, opening); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, ErrUserExists
		}
		return dto.UserResponse{}, err
	}

	observability.RegistrationsTotal().Inc()
	s.logger.Info().Uint("user_id", user.ID).Msg("account registered")

	return dto.NewUserResponse(user), nil
}

func (s *accountService) Login(ctx context.Context, payload dto.LoginRequest) (dto.TokenResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TokenResponse{}, err
	}

	user, err := s.users.GetByLogin(ctx, payload.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TokenResponse{}, ErrInvalidCredentials
		}
		return dto.TokenResponse{}, err
	}

	if !checkPassword(user.PasswordHash, payload.Password) {
		return dto.TokenResponse{}, ErrInvalidCredentials
	}

	token, ttl, err := s.tokens.Issue(user)
	if err != nil {
		return dto.TokenResponse{}, err
	}

	return dto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		User:        dto.NewUserResponse(user),
	}, nil
}

func (s *accountService) ChangePassword(ctx context.Context, userID uint, payload dto.ChangePasswordRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if !checkPassword(user.PasswordHash, payload.OldPassword) {
		return ErrWrongPassword
	}

	hash, err := hashPassword(payload.NewPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.logger.Info().Uint("user_id", user.ID).Msg("password changed")
	return nil
}

// RequestPasswordReset mails a reset link when the email belongs to an account.
// The outcome is identical for unknown addresses.
func (s *accountService) RequestPasswordReset(ctx context.Context, payload dto.PasswordResetRequest) error {
	payload.Email = strings.TrimSpace(payload.Email)
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, payload.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Debug().Str("email", maskEmail(payload.Email)).Msg("password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, err := s.resets.make(user)
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/password-reset/confirm/%s/%s", s.cfg.FrontendURL, encodeUID(user.ID), token)
	msg := mailer.Message{
		To:      user.Email,
		Subject: fmt.Sprintf("Password reset on %s", s.appName()),
		Body: fmt.Sprintf("Hello %s,\n\nYou asked to reset your password. Open the link below to choose a new one:\n\n%s\n\nIf you did not ask for this, ignore this email.\n",
			user.Username, link),
	}

	if s.mailer == nil {
		s.logger.Warn().Uint("user_id", user.ID).Msg("no mailer configured, reset link not sent")
		return nil
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error().Err(err).Uint("user_id", user.ID).Msg("failed to send password reset email")
		return nil
	}

	s.logger.Info().Uint("user_id", user.ID).Str("email", maskEmail(user.Email)).Msg("password reset email sent")
	return nil
}

func (s *accountService) ConfirmPasswordReset(ctx context.Context, payload dto.PasswordResetConfirmRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	userID, err := decodeUID(payload.UIDB64)
	if err != nil {
		return ErrInvalidResetLink
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetLink
		}
		return err
	}

	if err := s.resets.check(payload.Token, user); err != nil {
		return ErrInvalidResetLink
	}

	hash, err := hashPassword(payload.NewPassword1)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.logger.Info().Uint("user_id", user.ID).Msg("password reset completed")
	return nil
}

func (s *accountService) GetProfile(ctx context.Context, userID uint) (dto.ProfileResponse, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProfileResponse{}, ErrUserNotFound
		}
		return dto.ProfileResponse{}, err
	}

	return dto.NewProfileResponse(profile), nil
}

func (s *accountService) DeleteUser(ctx context.Context, userID uint) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	s.logger.Info().Uint("user_id", userID).Msg("account deleted")
	return nil
}

func (s *accountService) appName() string {
	if s.cfg.AppName == "" {
		return "Essay Grader"
	}
	return s.cfg.AppName
}

// maskEmail keeps the first and last letters of the local part for logs.
func maskEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	local, domain, found := strings.Cut(email, "@")
	if !found || local == "" || domain == "" {
		return "***"
	}
	if len(local) <= 2 {
		return local[:1] + "***@" + domain
	}
	return local[:1] + "***" + local[len(local)-1:] + "@" + domain
}
