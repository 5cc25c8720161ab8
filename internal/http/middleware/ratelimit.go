package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jmehdipour/contact-relay/internal/logger"
	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig config for Redis-based per-client submission limiter.
type RateLimitConfig struct {
	Redis          *redis.Client
	Limit          int           // submissions per window per client IP; <= 0 disables
	KeyPrefix      string        // e.g. "rl:ip:"
	Window         time.Duration // usually 1m
	RetryAfterHint bool          // set Retry-After header when limited
}

// RateLimitMiddleware applies a fixed-window limit per client IP to POST
// requests. Without Redis, or when Redis errors, requests pass.
func RateLimitMiddleware(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:ip:"
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodPost || cfg.Limit <= 0 || cfg.Redis == nil {
				return next(c)
			}

			ctx := c.Request().Context()
			now := time.Now()
			windowStart := now.Truncate(cfg.Window)

			// fixed-window key: rl:ip:{ip}:{window start unix}
			key := cfg.KeyPrefix + c.RealIP() + ":" + strconv.FormatInt(windowStart.Unix(), 10)

			pipe := cfg.Redis.Pipeline()
			cnt := pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, cfg.Window*2)
			if _, err := pipe.Exec(ctx); err != nil {
				logger.Log.Warn("rate limit check failed, allowing request", zap.Error(err))
				return next(c)
			}

			if cnt.Val() > int64(cfg.Limit) {
				if cfg.RetryAfterHint {
					remain := windowStart.Add(cfg.Window).Sub(now)
					if remain > 0 {
						c.Response().Header().Set("Retry-After", strconv.Itoa(int(remain.Round(time.Second)/time.Second)))
					}
				}
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many requests, please try again later"})
			}
			return next(c)
		}
	}
}
