package dispatcher

import (
	"strings"
	"time"

	"github.com/jmehdipour/contact-relay/internal/config"
	"github.com/jmehdipour/contact-relay/internal/logger"
	"github.com/jmehdipour/contact-relay/internal/telegram"
	"go.uber.org/zap"
)

// FromConfig assembles the chain: relay first, then (only with static
// credentials) the direct Bot API call and each enabled proxy in order.
func FromConfig(cfg config.ClientConfig) (*Dispatcher, error) {
	var provs []Provider

	token := strings.TrimSpace(cfg.BotToken)
	chatID := strings.TrimSpace(cfg.ChatID)

	if u := strings.TrimSpace(cfg.RelayURL); u != "" {
		provs = append(provs, NewRelayProvider(u, cfg.Timeout, token, chatID))
	}

	if cfg.HasStaticCredentials() {
		tg := telegram.NewClient(cfg.APIBaseURL, cfg.Timeout)
		provs = append(provs, NewDirectProvider(tg, token, chatID))

		for _, pc := range cfg.Proxies {
			if !pc.Enabled || strings.TrimSpace(pc.BaseURL) == "" {
				continue
			}
			a, err := NewProxyAdapter(pc.Kind, pc.Name, strings.TrimSpace(pc.BaseURL), pc.Encoding)
			if err != nil {
				return nil, err
			}
			provs = append(provs, NewProxyProvider(a, tg.BaseURL(), token, chatID, cfg.Timeout))
		}
	} else {
		logger.Log.Warn("no static bot token / chat id configured; only the relay will be tried")
	}

	d := NewDispatcher(provs, cfg.Breaker.FailThreshold, time.Duration(cfg.Breaker.OpenForMs)*time.Millisecond)
	logger.Log.Debug("transport chain ready", zap.Strings("providers", d.Providers()))

	return d, nil
}
