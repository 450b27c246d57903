// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"quoteit/internal/database"
	"quoteit/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSQLiteDB opens a migrated in-memory database private to the calling test.
// A single connection keeps every statement on the same shared-cache database.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:quoteit_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts a user with the given username and returns it.
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	u := &models.User{
		ID:          models.NewID(),
		Username:    username,
		AvatarColor: models.AvatarColorSage,
	}
	require.NoError(t, db.Create(u).Error)
	require.NoError(t, db.Create(&models.Username{Username: username, UserID: u.ID}).Error)
	return u
}

// CreateQuote inserts a quote authored by userID at the given age.
func CreateQuote(t *testing.T, db *gorm.DB, userID string, age time.Duration, private bool) *models.Quote {
	t.Helper()

	q := &models.Quote{
		Title:         models.DefaultQuoteTitle,
		Transcription: "quote by " + userID,
		UserID:        userID,
		IsPrivate:     private,
		CreatedAt:     time.Now().UTC().Add(-age),
	}
	require.NoError(t, db.Create(q).Error)
	return q
}

// Follow inserts a follow edge and bumps both counters.
func Follow(t *testing.T, db *gorm.DB, followerID, followedID string, age time.Duration) {
	t.Helper()

	require.NoError(t, db.Create(&models.Follow{
		FollowerID: followerID,
		FollowedID: followedID,
		CreatedAt:  time.Now().UTC().Add(-age),
	}).Error)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", followerID).
		Update("following_count", gorm.Expr("following_count + 1")).Error)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", followedID).
		Update("follower_count", gorm.Expr("follower_count + 1")).Error)
}
