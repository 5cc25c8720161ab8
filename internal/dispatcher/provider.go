package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmehdipour/contact-relay/internal/model"
	"github.com/jmehdipour/contact-relay/internal/telegram"
)

const maxBodyBytes = 1 << 20

var (
	// ErrUnavailable means the transport could not be reached; the next one is tried.
	ErrUnavailable = errors.New("transport unavailable")
	// ErrRejected means the relay answered with a definitive failure; the chain stops.
	ErrRejected = errors.New("delivery rejected")
)

// Delivery is one submission ready to go out.
type Delivery struct {
	ID         string
	Submission model.Submission
	Text       string // formatted HTML notification
}

// Provider is one strategy of the transport chain. A nil error means Telegram
// accepted the message.
type Provider interface {
	Name() string
	Send(ctx context.Context, d Delivery) error
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// ---- relay ----

// RelayProvider posts the raw fields to the relay endpoint, which holds the
// credentials and formats the message itself.
type RelayProvider struct {
	url      string
	botToken string
	chatID   string
	client   *http.Client
}

// NewRelayProvider targets relayURL. botToken and chatID are forwarded in the
// body when set, for relays that have no server-side credentials yet.
func NewRelayProvider(relayURL string, timeout time.Duration, botToken, chatID string) *RelayProvider {
	return &RelayProvider{
		url:      relayURL,
		botToken: botToken,
		chatID:   chatID,
		client:   newHTTPClient(timeout),
	}
}

func (p *RelayProvider) Name() string { return "relay" }

func (p *RelayProvider) Send(ctx context.Context, d Delivery) error {
	b, err := json.Marshal(model.RelayRequest{
		Submission: d.Submission,
		BotToken:   p.botToken,
		ChatID:     model.FlexString(p.chatID),
	})
	if err != nil {
		return fmt.Errorf("marshal relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: relay returned 404", ErrUnavailable)
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read relay response: %v", ErrUnavailable, err)
	}

	var rr model.RelayResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return fmt.Errorf("%w: relay returned non-JSON response (status %d)", ErrUnavailable, res.StatusCode)
	}

	if rr.Success && res.StatusCode/100 == 2 {
		return nil
	}

	reason := rr.Error
	if reason == "" {
		reason = "unknown error"
	}
	if rr.Details != "" {
		reason += ": " + rr.Details
	}
	return fmt.Errorf("%w: relay status %d: %s", ErrRejected, res.StatusCode, reason)
}

// ---- direct ----

// DirectProvider calls the Bot API with statically configured credentials.
type DirectProvider struct {
	tg     *telegram.Client
	token  string
	chatID string
}

func NewDirectProvider(tg *telegram.Client, token, chatID string) *DirectProvider {
	return &DirectProvider{tg: tg, token: token, chatID: chatID}
}

func (p *DirectProvider) Name() string { return "direct" }

func (p *DirectProvider) Send(ctx context.Context, d Delivery) error {
	_, err := p.tg.SendMessage(ctx, p.token, telegram.NewHTMLMessage(p.chatID, d.Text))
	return err
}

// ---- CORS proxies ----

type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingForm Encoding = "form"
)

// ProxyAdapter describes how one public CORS proxy wants to be called.
type ProxyAdapter struct {
	Name     string
	Encoding Encoding
	// URL wraps the Telegram method URL into the proxy URL.
	URL func(target string) string
	// Unwrap extracts the Telegram reply from the proxy reply.
	Unwrap func(body []byte) ([]byte, error)
}

// CorsProxy passes the request through untouched: <base>?<escaped target>.
func CorsProxy(name, baseURL string, enc Encoding) ProxyAdapter {
	return ProxyAdapter{
		Name:     name,
		Encoding: enc,
		URL: func(target string) string {
			return baseURL + "?" + url.QueryEscape(target)
		},
		Unwrap: func(body []byte) ([]byte, error) { return body, nil },
	}
}

// AllOrigins wraps the upstream reply in {"contents": "<body>"}: <base>?url=<escaped target>.
func AllOrigins(name, baseURL string, enc Encoding) ProxyAdapter {
	return ProxyAdapter{
		Name:     name,
		Encoding: enc,
		URL: func(target string) string {
			return baseURL + "?url=" + url.QueryEscape(target)
		},
		Unwrap: func(body []byte) ([]byte, error) {
			var wrapped struct {
				Contents string `json:"contents"`
			}
			if err := json.Unmarshal(body, &wrapped); err != nil {
				return nil, fmt.Errorf("decode allorigins envelope: %w", err)
			}
			return []byte(wrapped.Contents), nil
		},
	}
}

// NewProxyAdapter maps a configured proxy kind to its adapter.
func NewProxyAdapter(kind, name, baseURL, encoding string) (ProxyAdapter, error) {
	enc := Encoding(strings.ToLower(strings.TrimSpace(encoding)))
	switch enc {
	case "":
		enc = EncodingJSON
	case EncodingJSON, EncodingForm:
	default:
		return ProxyAdapter{}, fmt.Errorf("proxy %q: unknown encoding %q", name, encoding)
	}

	if name == "" {
		name = kind + " (" + string(enc) + ")"
	}

	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "corsproxy":
		return CorsProxy(name, baseURL, enc), nil
	case "allorigins":
		return AllOrigins(name, baseURL, enc), nil
	default:
		return ProxyAdapter{}, fmt.Errorf("proxy %q: unknown kind %q", name, kind)
	}
}

// ProxyProvider reaches the Bot API through a public CORS proxy.
type ProxyProvider struct {
	adapter ProxyAdapter
	target  string
	token   string
	chatID  string
	client  *http.Client
}

func NewProxyProvider(a ProxyAdapter, apiBaseURL, token, chatID string, timeout time.Duration) *ProxyProvider {
	return &ProxyProvider{
		adapter: a,
		target:  telegram.MethodURL(apiBaseURL, token, "sendMessage"),
		token:   token,
		chatID:  chatID,
		client:  newHTTPClient(timeout),
	}
}

func (p *ProxyProvider) Name() string { return p.adapter.Name }

func (p *ProxyProvider) Send(ctx context.Context, d Delivery) error {
	msg := telegram.NewHTMLMessage(p.chatID, d.Text)

	var (
		body        []byte
		contentType string
	)
	switch p.adapter.Encoding {
	case EncodingForm:
		body = []byte(msg.Form().Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		b, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = b
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.adapter.URL(p.target), bytes.NewReader(body))
	if err != nil {
		return p.redact(err)
	}
	req.Header.Set("Content-Type", contentType)

	res, err := p.client.Do(req)
	if err != nil {
		return p.redact(err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return fmt.Errorf("HTTP %d", res.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read proxy response: %w", err)
	}

	inner, err := p.adapter.Unwrap(raw)
	if err != nil {
		return err
	}

	_, err = telegram.ParseResponse(http.StatusOK, inner)
	return err
}

// The proxy URL embeds the escaped bot token.
func (p *ProxyProvider) redact(err error) error {
	if p.token == "" {
		return err
	}
	msg := err.Error()
	msg = strings.ReplaceAll(msg, url.QueryEscape(p.token), "BOT_TOKEN_HIDDEN")
	msg = strings.ReplaceAll(msg, p.token, "BOT_TOKEN_HIDDEN")
	return errors.New(msg)
}
