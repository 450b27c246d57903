// Command main runs the database seeder for QuoteIt.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"quoteit/internal/config"
	"quoteit/internal/database"
	"quoteit/internal/observability"
	"quoteit/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.Users, "Number of users to create")
	quotesPerUser := flag.Int("quotes", defaults.QuotesPerUser, "Quotes per user")
	followsPerUser := flag.Int("follows", defaults.FollowsPerUser, "Follow edges per user")
	likesPerUser := flag.Int("likes", defaults.LikesPerUser, "Likes per user")
	maxAge := flag.Duration("max-age", defaults.MaxAge, "Spread quote timestamps over this window")
	shouldClean := flag.Bool("clean", defaults.Clean, "Clean database before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed (0 = time based)")
	flag.Parse()

	logger := observability.Logger

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	summary, err := seed.NewSeeder(db).Run(context.Background(), seed.Options{
		Users:          *numUsers,
		QuotesPerUser:  *quotesPerUser,
		FollowsPerUser: *followsPerUser,
		LikesPerUser:   *likesPerUser,
		MaxAge:         *maxAge,
		Clean:          *shouldClean,
		RandSeed:       *randSeed,
	})
	if err != nil {
		logger.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("database seeded",
		slog.Int("users", summary.Users),
		slog.Int("quotes", summary.Quotes),
		slog.Int("follows", summary.Follows),
		slog.Int("likes", summary.Likes),
	)
}
