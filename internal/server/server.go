// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quoteit/internal/bootstrap"
	"quoteit/internal/cache"
	"quoteit/internal/config"
	"quoteit/internal/middleware"
	"quoteit/internal/notifications"
	"quoteit/internal/observability"
	"quoteit/internal/repository"
	"quoteit/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	userRepo       repository.UserRepository
	quoteRepo      repository.QuoteRepository
	likeRepo       repository.LikeRepository
	followRepo     repository.FollowRepository
	reportRepo     repository.ReportRepository
	users          *cache.UserCache
	notifier       *notifications.Notifier
	userService    *service.UserService
	followService  *service.FollowService
	quoteService   *service.QuoteService
	feedService    *service.FeedService
}

// NewServer creates a new server instance with all dependencies
func NewServer(ctx context.Context, cfg *config.Config, opts bootstrap.Options) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil, in which case live feed updates are disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	userRepo := repository.NewUserRepository(db)
	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("quoteit-api"),
		userRepo:       userRepo,
		quoteRepo:      repository.NewQuoteRepository(db),
		likeRepo:       repository.NewLikeRepository(db),
		followRepo:     repository.NewFollowRepository(db),
		reportRepo:     repository.NewReportRepository(db),
		users:          cache.NewUserCache(userRepo, cfg.UserCacheSize),
		notifier:       notifications.NewNotifier(redisClient),
	}

	server.userService = service.NewUserService(server.userRepo, server.users, cfg.ProfileLoadTimeout)
	server.followService = service.NewFollowService(server.followRepo, server.users)
	server.quoteService = service.NewQuoteService(
		server.quoteRepo, server.likeRepo, server.userRepo, server.reportRepo, server.notifier)
	server.feedService = service.NewFeedService(
		server.quoteRepo, server.likeRepo, server.followRepo, server.notifier,
		service.FeedOptions{MaxQuotes: cfg.FeedMaxQuotes, Window: cfg.FeedWindow},
	)

	if !server.notifier.Enabled() {
		observability.Logger.Warn("redis unavailable, live feed updates disabled")
	}

	return server, nil
}

// App builds the Fiber application with middleware and routes registered.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "QuoteIt API",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		MaxAge:       86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api", middleware.AuthRequired(s.config.JWTSecret))

	api.Get("/feed", s.GetRecommendedFeed)
	api.Get("/usernames/suggestion", s.SuggestUsername)

	me := api.Group("/me")
	me.Get("/", s.GetCurrentUser)
	me.Post("/", s.CreateProfile)
	me.Put("/", s.UpdateProfile)
	me.Delete("/", s.DeleteAccount)
	me.Post("/privacy", s.TogglePrivacy)
	me.Get("/likes", s.GetLikedQuotes)

	quotes := api.Group("/quotes")
	quotes.Post("/", middleware.RateLimit(s.redis, 30, time.Minute, "create_quote"), s.CreateQuote)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	quotes.Post("/:id/like", s.ToggleLike)
	quotes.Get("/:id/like", s.HasLiked)
	quotes.Post("/:id/report", middleware.RateLimit(s.redis, 10, time.Hour, "report_quote"), s.ReportQuote)
	quotes.Put("/:id", s.UpdateQuote)
	quotes.Delete("/:id", s.DeleteQuote)

	users := api.Group("/users")
	users.Get("/search", s.SearchUsers)
	users.Get("/by-username/:username", s.GetUserByUsername)
	users.Get("/:id/quotes", s.GetUserQuotes)
	users.Post("/:id/follow", s.ToggleFollow)
	users.Get("/:id/follow", s.IsFollowing)
	users.Get("/:id/followers", s.GetFollowers)
	users.Get("/:id/following", s.GetFollowing)
	users.Get("/:id", s.GetUser)

	app.Get("/ws/feed", middleware.WebSocketAuthRequired(s.config.JWTSecret), s.upgradeFeedStream, s.FeedStreamHandler())
}

// HealthCheck reports database and Redis reachability.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	// Redis only powers live updates, so it does not gate readiness.
	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now().UTC(),
	})
}

// Start listens on the configured port until Shutdown is called.
func (s *Server) Start() error {
	port := s.config.Port
	if port == "" {
		port = "8375"
	}
	observability.Logger.Info("server starting", slog.String("port", port))
	return s.App().Listen(":" + port)
}

// Shutdown stops accepting requests and closes the Redis and database connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("fiber shutdown: %w", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			observability.Logger.Warn("redis close failed", slog.String("error", err.Error()))
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
