package service

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/essay-grader-api/internal/dto"
	"github.com/noah-isme/essay-grader-api/internal/models"
	"github.com/noah-isme/essay-grader-api/internal/observability"
	"github.com/noah-isme/essay-grader-api/internal/repository"
)

const themeListCacheKey = "themes:list"

// ThemeService lists and publishes essay themes.
type ThemeService interface {
	List(ctx context.Context) ([]dto.ThemeResponse, error)
	Create(ctx context.Context, payload dto.ThemeCreateRequest) (dto.ThemeResponse, error)
}

type themeService struct {
	repo      repository.ThemeRepository
	validator *validator.Validate
	cache     *redis.Client
	cacheTTL  time.Duration
	richText  *bluemonday.Policy
	plainText *bluemonday.Policy
	logger    zerolog.Logger
}

// NewThemeService constructs a theme service. A nil cache disables caching.
func NewThemeService(repo repository.ThemeRepository, validate *validator.Validate, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ThemeService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &themeService{
		repo:      repo,
		validator: validate,
		cache:     cache,
		cacheTTL:  ttl,
		richText:  bluemonday.UGCPolicy(),
		plainText: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "theme_service").Logger(),
	}
}

func (s *themeService) List(ctx context.Context) ([]dto.ThemeResponse, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, themeListCacheKey).Result()
		switch {
		case err == nil:
			var response []dto.ThemeResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				observability.ThemeCacheLookups().WithLabelValues("hit").Inc()
				return response, nil
			}
		case !errors.Is(err, redis.Nil):
			s.logger.Warn().Err(err).Msg("failed to read theme cache")
		}
		observability.ThemeCacheLookups().WithLabelValues("miss").Inc()
	}

	themes, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	response := dto.NewThemeResponseSlice(themes)

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, themeListCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store theme cache")
			}
		}
	}

	return response, nil
}

func (s *themeService) Create(ctx context.Context, payload dto.ThemeCreateRequest) (dto.ThemeResponse, error) {
	payload.Title = strings.TrimSpace(payload.Title)
	payload.Category = strings.TrimSpace(payload.Category)
	payload.ImageURL = strings.TrimSpace(payload.ImageURL)
	if err := s.validator.Struct(payload); err != nil {
		return dto.ThemeResponse{}, err
	}

	theme := models.EssayTheme{
		Title:            s.stripTags(payload.Title),
		MotivationalText: s.richText.Sanitize(payload.MotivationalText),
		Category:         s.stripTags(payload.Category),
		ImageURL:         payload.ImageURL,
	}

	if err := s.repo.Create(ctx, &theme); err != nil {
		return dto.ThemeResponse{}, err
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, themeListCacheKey).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to invalidate theme cache")
		}
	}

	s.logger.Info().Uint("theme_id", theme.ID).Msg("theme created")

	return dto.NewThemeResponse(theme), nil
}

// stripTags drops markup from plain-text fields. The policy escapes what it
// keeps, so entities are decoded back to the characters the caller sent.
func (s *themeService) stripTags(value string) string {
	return html.UnescapeString(s.plainText.Sanitize(value))
}
