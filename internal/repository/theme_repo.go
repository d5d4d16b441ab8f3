package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/essay-grader-api/internal/models"
)

// ThemeRepository provides access to essay themes.
type ThemeRepository interface {
	List(ctx context.Context) ([]models.EssayTheme, error)
	Create(ctx context.Context, theme *models.EssayTheme) error
}

type themeRepository struct {
	db *gorm.DB
}

// NewThemeRepository constructs a theme repository.
func NewThemeRepository(db *gorm.DB) ThemeRepository {
	return &themeRepository{db: db}
}

func (r *themeRepository) List(ctx context.Context) ([]models.EssayTheme, error) {
	var themes []models.EssayTheme
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&themes).Error; err != nil {
		return nil, err
	}

	return themes, nil
}

func (r *themeRepository) Create(ctx context.Context, theme *models.EssayTheme) error {
	return r.db.WithContext(ctx).Create(theme).Error
}
