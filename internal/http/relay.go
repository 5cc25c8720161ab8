package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jmehdipour/contact-relay/internal/config"
	"github.com/jmehdipour/contact-relay/internal/logger"
	"github.com/jmehdipour/contact-relay/internal/metrics"
	"github.com/jmehdipour/contact-relay/internal/model"
	"github.com/jmehdipour/contact-relay/internal/telegram"
	"github.com/jmehdipour/contact-relay/internal/util"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// relayHandler forwards one submission to Telegram. Server-side credentials
// win over the botToken / chatId fields of the body.
func relayHandler(creds config.TelegramConfig, tg *telegram.Client, now func() time.Time) echo.HandlerFunc {
	return func(c echo.Context) error {
		switch c.Request().Method {
		case http.MethodOptions:
			return reply(c, http.StatusOK, nil)
		case http.MethodPost:
		default:
			return reply(c, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		}

		var req model.RelayRequest
		if err := c.Bind(&req); err != nil {
			return reply(c, http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		sub := req.Submission.Trimmed()
		if !sub.Complete() {
			return reply(c, http.StatusBadRequest, map[string]string{
				"error": "Missing required fields: name and phone are required",
			})
		}

		token := firstNonEmpty(creds.BotToken, req.BotToken)
		chatID := firstNonEmpty(creds.ChatID, req.ChatID.String())
		if token == "" || chatID == "" {
			logger.Log.Error("telegram configuration missing")
			return reply(c, http.StatusInternalServerError, map[string]string{
				"error": "Server configuration error: BOT_TOKEN or CHAT_ID not set",
				"hint":  "Set BOT_TOKEN and CHAT_ID in the relay environment",
			})
		}

		log := logger.Log.With(
			zap.String("submission_id", util.NewSubmissionID()),
			zap.String("bot", telegram.MaskToken(token)),
		)

		msg := telegram.NewHTMLMessage(chatID, telegram.FormatMessage(sub, now()))
		res, err := tg.SendMessage(c.Request().Context(), token, msg)
		if err != nil {
			var apiErr *telegram.APIError
			if errors.As(err, &apiErr) {
				log.Error("telegram API error", zap.Int("status", apiErr.StatusCode), zap.String("description", apiErr.Description))

				status := apiErr.StatusCode
				if status/100 == 2 || status == 0 {
					status = http.StatusInternalServerError
				}
				details := apiErr.Description
				if details == "" {
					details = "Unknown error"
				}
				body := map[string]any{
					"error":   "Failed to send message to Telegram",
					"details": details,
				}
				if apiErr.Body != nil {
					body["telegramResponse"] = apiErr.Body
				}
				return reply(c, status, body)
			}

			log.Error("relay error", zap.Error(err))
			return reply(c, http.StatusInternalServerError, map[string]string{
				"error":   "Internal server error",
				"message": err.Error(),
			})
		}

		log.Info("message relayed to telegram")
		return reply(c, http.StatusOK, map[string]any{
			"success":          true,
			"message":          "Message sent successfully to Telegram",
			"telegramResponse": res.Body,
		})
	}
}

func reply(c echo.Context, code int, body any) error {
	metrics.RelayRequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	if body == nil {
		return c.NoContent(code)
	}
	return c.JSON(code, body)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
