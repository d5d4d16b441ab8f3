package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/essay-grader-api/internal/dto"
	"github.com/noah-isme/essay-grader-api/internal/models"
	"github.com/noah-isme/essay-grader-api/internal/repository"
)

// ErrInsufficientCoins indicates a debit larger than the balance.
var ErrInsufficientCoins = errors.New("insufficient coins")

// WalletService reads and moves coin balances.
type WalletService interface {
	ListTransactions(ctx context.Context, userID uint, limit, offset int) ([]dto.CoinTransactionResponse, dto.PaginationMeta, error)
	Adjust(ctx context.Context, userID uint, payload dto.CoinAdjustRequest) (dto.CoinAdjustResponse, error)
}

type walletService struct {
	profiles  repository.ProfileRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewWalletService constructs the coin ledger service.
func NewWalletService(profiles repository.ProfileRepository, validate *validator.Validate, logger zerolog.Logger) WalletService {
	return &walletService{
		profiles:  profiles,
		validator: validate,
		logger:    logger.With().Str("component", "wallet_service").Logger(),
	}
}

func (s *walletService) ListTransactions(ctx context.Context, userID uint, limit, offset int) ([]dto.CoinTransactionResponse, dto.PaginationMeta, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	entries, total, err := s.profiles.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, dto.PaginationMeta{}, err
	}

	return dto.NewCoinTransactionResponseSlice(entries), dto.PaginationMeta{Total: total, Limit: limit, Offset: offset}, nil
}

func (s *walletService) Adjust(ctx context.Context, userID uint, payload dto.CoinAdjustRequest) (dto.CoinAdjustResponse, error) {
	payload.Type = strings.ToLower(strings.TrimSpace(payload.Type))
	payload.Description = strings.TrimSpace(payload.Description)
	if err := s.validator.Struct(payload); err != nil {
		return dto.CoinAdjustResponse{}, err
	}

	entry := models.CoinTransaction{
		Type:        payload.Type,
		Amount:      payload.Amount,
		Description: payload.Description,
	}

	profile, err := s.profiles.ApplyTransaction(ctx, userID, &entry)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return dto.CoinAdjustResponse{}, ErrUserNotFound
		case errors.Is(err, repository.ErrInsufficientCoins):
			return dto.CoinAdjustResponse{}, ErrInsufficientCoins
		default:
			return dto.CoinAdjustResponse{}, err
		}
	}

	s.logger.Info().
		Uint("user_id", userID).
		Str("type", entry.Type).
		Int("amount", entry.Amount).
		Int("balance", profile.CoinsBalance).
		Msg("coin balance adjusted")

	return dto.CoinAdjustResponse{
		Profile:     dto.NewProfileResponse(profile),
		Transaction: dto.NewCoinTransactionResponse(entry),
	}, nil
}
