// Package bootstrap connects the runtime dependencies shared by the commands.
package bootstrap

import (
	"context"
	"fmt"

	"quoteit/internal/cache"
	"quoteit/internal/config"
	"quoteit/internal/database"
	"quoteit/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty database with generated demo data.
	SeedDemo bool
}

// InitRuntime connects to the database and Redis and optionally seeds demo data.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := cache.InitRedis(cfg.RedisURL)

	if opts.SeedDemo {
		if err := seedIfEmpty(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, rdb, nil
}

func seedIfEmpty(ctx context.Context, db *gorm.DB) error {
	var count int64
	if err := db.WithContext(ctx).Table("users").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	opts := seed.DefaultOptions()
	opts.Clean = false
	_, err := seed.NewSeeder(db).Run(ctx, opts)
	return err
}
