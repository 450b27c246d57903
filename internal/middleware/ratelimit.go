package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quoteit/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// CheckRateLimit counts one hit for id against resource and reports whether it
// is still within limit for the current window. A nil client always allows.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rdb == nil {
		return true, nil
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)
	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if cnt == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return true, err
		}
		return cnt <= int64(limit), nil
	}
	if cnt > int64(limit) {
		// Repair a counter whose EXPIRE never landed.
		ttl, err := rdb.TTL(ctx, key).Result()
		if err != nil {
			return true, err
		}
		if ttl == -1 {
			if err := rdb.Expire(ctx, key, window).Err(); err != nil {
				return true, err
			}
		}
		return false, nil
	}
	return true, nil
}

// RateLimit allows limit requests per window for each viewer (or remote IP when
// unauthenticated) on the named resource. Redis failures fail open.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := "ip:" + c.IP()
		if viewer := ViewerID(c); viewer != "" {
			id = "user:" + viewer
		}

		allowed, err := CheckRateLimit(c.UserContext(), rdb, resource, id, limit, window)
		if err != nil {
			observability.Logger.WarnContext(c.UserContext(), "rate limit check failed",
				slog.String("resource", resource),
				slog.String("error", err.Error()),
			)
			return c.Next()
		}
		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
