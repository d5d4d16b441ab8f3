package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/essay-grader-api/internal/models"
)

// ProfileRepository reads profiles and maintains the coin ledger.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID uint) (models.Profile, error)
	ApplyTransaction(ctx context.Context, userID uint, entry *models.CoinTransaction) (models.Profile, error)
	ListTransactions(ctx context.Context, userID uint, limit, offset int) ([]models.CoinTransaction, int64, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository constructs a profile repository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID uint) (models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return models.Profile{}, err
	}

	return profile, nil
}

// ApplyTransaction moves the balance and appends the ledger entry in one
// transaction. The balance guard lives in the UPDATE so concurrent debits
// cannot overdraw.
func (r *profileRepository) ApplyTransaction(ctx context.Context, userID uint, entry *models.CoinTransaction) (models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).First(&profile).Error; err != nil {
			return err
		}

		delta := entry.Delta()
		update := tx.Model(&models.Profile{}).
			Where("id = ?", profile.ID).
			Where("coins_balance + ? >= 0", delta).
			UpdateColumn("coins_balance", gorm.Expr("coins_balance + ?", delta))
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return ErrInsufficientCoins
		}

		entry.ProfileID = profile.ID
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		return tx.First(&profile, profile.ID).Error
	})
	if err != nil {
		return models.Profile{}, err
	}

	return profile, nil
}

func (r *profileRepository) ListTransactions(ctx context.Context, userID uint, limit, offset int) ([]models.CoinTransaction, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Model(&models.CoinTransaction{}).
		Joins("JOIN profiles ON profiles.id = coin_transactions.profile_id").
		Where("profiles.user_id = ?", userID)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.CoinTransaction
	if err := query.
		Order("coin_transactions.created_at DESC").
		Order("coin_transactions.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
