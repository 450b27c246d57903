package database

import (
	"fmt"
	"testing"

	"quoteit/internal/config"
	"quoteit/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func sqliteConfig() *config.Config {
	return &config.Config{
		DBDriver:   "sqlite",
		SQLitePath: fmt.Sprintf("file:db_%s?mode=memory&cache=shared", uuid.NewString()),
		Env:        "test",
	}
}

func TestConnect_SQLiteMigrates(t *testing.T) {
	db, err := Connect(sqliteConfig())
	require.NoError(t, err)

	for _, model := range []any{
		&models.User{}, &models.Username{}, &models.Quote{},
		&models.Like{}, &models.Follow{}, &models.Report{},
	} {
		assert.True(t, db.Migrator().HasTable(model))
	}
	assert.True(t, db.Migrator().HasIndex(&models.Like{}, "idx_likes_user_quote"))
	assert.True(t, db.Migrator().HasIndex(&models.Follow{}, "idx_follows_pair"))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestDialector(t *testing.T) {
	d, err := Dialector(&config.Config{DBDriver: "postgres", DBHost: "h", DBPort: "1"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	_, err = Dialector(&config.Config{DBDriver: "mysql"})
	assert.Error(t, err)
}

func TestUniqueLikeIndex(t *testing.T) {
	db, err := Connect(sqliteConfig())
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Like{UserID: "u", QuoteID: "q"}).Error)
	assert.Error(t, db.Create(&models.Like{UserID: "u", QuoteID: "q"}).Error)
}

func TestGormLogger_LogMode(t *testing.T) {
	l := NewGormLogger(nil)
	silent := l.LogMode(logger.Silent).(*CustomGormLogger)
	assert.Equal(t, logger.Silent, silent.Config.LogLevel)
	assert.Equal(t, logger.Warn, l.Config.LogLevel)
}
