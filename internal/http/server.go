package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jmehdipour/contact-relay/internal/config"
	"github.com/jmehdipour/contact-relay/internal/http/middleware"
	"github.com/jmehdipour/contact-relay/internal/logger"
	"github.com/jmehdipour/contact-relay/internal/metrics"
	"github.com/jmehdipour/contact-relay/internal/telegram"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct{ e *echo.Echo }

// NewServer wires the relay endpoint. rds may be nil, which turns rate
// limiting off.
func NewServer(cfg config.Config, tg *telegram.Client, rds *redis.Client) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(echoLogLevel(cfg.Log.Level))
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		Limit:          cfg.RateLimit.RPM,
		KeyPrefix:      "rl:ip:",
		Window:         time.Minute,
		RetryAfterHint: true,
	})

	path := cfg.HTTP.Path
	if path == "" {
		path = "/api/telegram"
	}
	e.Any(path, relayHandler(cfg.Telegram, tg, time.Now), middleware.CORS(), rlMW)

	if !cfg.Telegram.Configured() {
		logger.Log.Warn("relay has no server-side BOT_TOKEN / CHAT_ID; request body credentials will be required")
	} else {
		logger.Log.Info("relay credentials loaded", zap.String("bot", telegram.MaskToken(cfg.Telegram.BotToken)))
	}

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	logger.Log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }

func echoLogLevel(level string) log.Lvl {
	switch strings.ToLower(level) {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}
