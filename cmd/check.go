package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jmehdipour/contact-relay/internal/config"
	"github.com/jmehdipour/contact-relay/internal/dispatcher"
	"github.com/jmehdipour/contact-relay/internal/telegram"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report Telegram configuration and verify bot tokens with getMe",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		out := cmd.OutOrStdout()
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		failed := 0

		fmt.Fprintln(out, "relay:")
		if !checkCreds(ctx, out, cfg.Telegram.APIBaseURL, cfg.Telegram.Timeout, cfg.Telegram.BotToken, cfg.Telegram.ChatID) {
			failed++
		}

		fmt.Fprintln(out, "client:")
		fmt.Fprintf(out, "  relay url: %s\n", orNone(cfg.Client.RelayURL))
		if cfg.Client.HasStaticCredentials() {
			if !checkCreds(ctx, out, cfg.Client.APIBaseURL, cfg.Client.Timeout, cfg.Client.BotToken, cfg.Client.ChatID) {
				failed++
			}
		} else {
			fmt.Fprintln(out, "  static credentials: none (relay only)")
		}

		chain, err := dispatcher.FromConfig(cfg.Client)
		if err != nil {
			return fmt.Errorf("build transport chain: %w", err)
		}
		fmt.Fprintf(out, "  transport chain: %s\n", orNone(strings.Join(chain.Providers(), " -> ")))

		if failed > 0 {
			return fmt.Errorf("%d credential check(s) failed", failed)
		}
		return nil
	},
}

func checkCreds(ctx context.Context, out io.Writer, baseURL string, timeout time.Duration, token, chatID string) bool {
	if token == "" || chatID == "" {
		fmt.Fprintf(out, "  BOT_TOKEN: %s\n  CHAT_ID: %s\n", presence(token), presence(chatID))
		return false
	}

	fmt.Fprintf(out, "  bot token: %s\n  chat id: %s\n", telegram.MaskToken(token), chatID)

	u, err := telegram.NewClient(baseURL, timeout).GetMe(ctx, token)
	if err != nil {
		fmt.Fprintf(out, "  getMe: FAILED (%v)\n", err)
		return false
	}
	fmt.Fprintf(out, "  getMe: ok (@%s)\n", u.Username)
	return true
}

func presence(v string) string {
	if v == "" {
		return "not set"
	}
	return "set"
}

func orNone(v string) string {
	if v == "" {
		return "(none)"
	}
	return v
}
