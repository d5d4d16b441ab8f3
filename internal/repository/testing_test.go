package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/essay-grader-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	repo := NewUserRepository(db)
	user := models.User{Username: username, Email: username + "@example.com", PasswordHash: "hash"}
	profile := models.Profile{Role: models.RoleStudent, CoinsBalance: 10}
	opening := models.CoinTransaction{Type: models.CoinCredit, Amount: 10, Description: "welcome bonus"}
	require.NoError(t, repo.CreateWithProfile(context.Background(), &user, &profile, &opening))
	return user
}
