package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/essay-grader-api/internal/dto"
	"github.com/noah-isme/essay-grader-api/internal/models"
	"github.com/noah-isme/essay-grader-api/internal/repository"
)

func TestThemeServiceCachesListAndInvalidatesOnCreate(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	db := newTestDB(t)
	older := models.EssayTheme{Title: "Mobilidade urbana", MotivationalText: "Texto", Category: "ENEM", CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, db.Create(&older).Error)

	svc := NewThemeService(repository.NewThemeRepository(db), newValidator(), redisClient, time.Minute, testLogger())
	ctx := context.Background()

	themes, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, themes, 1)
	require.True(t, server.Exists(themeListCacheKey))

	// Rows written behind the service stay invisible until the cache expires.
	require.NoError(t, db.Create(&models.EssayTheme{Title: "Direto", MotivationalText: "x", Category: "ENEM"}).Error)
	cached, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)

	created, err := svc.Create(ctx, dto.ThemeCreateRequest{
		Title:            "Democratização do acesso ao cinema",
		MotivationalText: "<p>Leia os textos</p><script>alert(1)</script>",
		Category:         "ENEM",
		ImageURL:         "https://images.test/cinema.png",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.NotContains(t, created.MotivationalText, "<script>")
	require.Contains(t, created.MotivationalText, "<p>Leia os textos</p>")
	require.False(t, server.Exists(themeListCacheKey))

	themes, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, themes, 3)
	require.Equal(t, created.ID, themes[0].ID)
	require.Equal(t, older.ID, themes[2].ID)
}

func TestThemeServiceWorksWithoutCache(t *testing.T) {
	db := newTestDB(t)
	svc := NewThemeService(repository.NewThemeRepository(db), newValidator(), nil, 0, testLogger())

	_, err := svc.Create(context.Background(), dto.ThemeCreateRequest{Title: "", MotivationalText: "x", Category: "ENEM"})
	require.Error(t, err)

	themes, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, themes)
}

func TestThemeServiceKeepsPlainTextCharacters(t *testing.T) {
	db := newTestDB(t)
	svc := NewThemeService(repository.NewThemeRepository(db), newValidator(), nil, 0, testLogger())

	created, err := svc.Create(context.Background(), dto.ThemeCreateRequest{
		Title:            `Ciência & "fake news" <i>na</i> era d'água`,
		MotivationalText: "<p>Texto</p>",
		Category:         "ENEM & vestibulares",
	})
	require.NoError(t, err)
	require.Equal(t, `Ciência & "fake news" na era d'água`, created.Title)
	require.Equal(t, "ENEM & vestibulares", created.Category)
	require.Equal(t, "<p>Texto</p>", created.MotivationalText)

	var stored models.EssayTheme
	require.NoError(t, db.First(&stored, created.ID).Error)
	require.Equal(t, created.Title, stored.Title)
}
