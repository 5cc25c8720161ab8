package telegram

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
)

const (
	DefaultAPIBaseURL = "https://api.telegram.org"
	ParseModeHTML     = "HTML"

	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

var (
	ErrNotConfigured = errors.New("telegram: bot token or chat id not set")
	ErrEmptyText     = errors.New("telegram: message text is required")
)

// SendMessageRequest is the sendMessage payload.
type SendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// NewHTMLMessage builds a sendMessage payload using HTML parse mode.
func NewHTMLMessage(chatID, text string) SendMessageRequest {
	return SendMessageRequest{ChatID: chatID, Text: text, ParseMode: ParseModeHTML}
}

// Form returns the payload as application/x-www-form-urlencoded values.
func (r SendMessageRequest) Form() url.Values {
	v := url.Values{}
	v.Set("chat_id", r.ChatID)
	v.Set("text", r.Text)
	if r.ParseMode != "" {
		v.Set("parse_mode", r.ParseMode)
	}
	return v
}

// Response is the common Bot API envelope.
type Response struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// APIError is returned when Telegram answered but did not accept the call.
type APIError struct {
	StatusCode  int
	Description string
	Body        json.RawMessage // raw upstream JSON, nil if the body was not JSON
}

func (e *APIError) Error() string {
	desc := e.Description
	if desc == "" {
		desc = "Unknown error"
	}
	return fmt.Sprintf("telegram API error (status %d): %s", e.StatusCode, desc)
}

// MethodURL builds <base>/bot<token>/<method>.
func MethodURL(baseURL, token, method string) string {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return strings.TrimRight(baseURL, "/") + "/bot" + token + "/" + method
}

// ParseResponse interprets a Bot API reply. Non-2xx statuses and ok=false
// both yield *APIError.
func ParseResponse(status int, body []byte) (Response, error) {
	var res Response
	if err := json.Unmarshal(body, &res); err != nil {
		if status/100 != 2 {
			return Response{}, &APIError{StatusCode: status, Description: http.StatusText(status)}
		}
		return Response{}, fmt.Errorf("parsing response: %w", err)
	}

	if status/100 != 2 || !res.OK {
		return res, &APIError{StatusCode: status, Description: res.Description, Body: json.RawMessage(body)}
	}

	return res, nil
}

// Result is a successful call with the raw upstream body kept for callers
// that echo it back.
type Result struct {
	StatusCode int
	Body       json.RawMessage
	Response   Response
}

// Client talks to the Bot API. The token is passed per call so one client can
// serve both server-side and request-supplied credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Bot API client. An empty baseURL means api.telegram.org.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the API root this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// SendMessage posts msg as JSON to sendMessage.
func (c *Client) SendMessage(ctx context.Context, token string, msg SendMessageRequest) (*Result, error) {
	if token == "" || msg.ChatID == "" {
		return nil, ErrNotConfigured
	}
	if msg.Text == "" {
		return nil, ErrEmptyText
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	return c.call(ctx, token, "sendMessage", jsonData)
}

// User is the subset of getMe used for configuration checks.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// GetMe verifies the token and returns the bot identity.
func (c *Client) GetMe(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrNotConfigured
	}

	res, err := c.call(ctx, token, "getMe", nil)
	if err != nil {
		return nil, err
	}

	var u User
	if err := json.Unmarshal(res.Response.Result, &u); err != nil {
		return nil, fmt.Errorf("parsing getMe result: %w", err)
	}
	return &u, nil
}

func (c *Client) call(ctx context.Context, token, method string, payload []byte) (*Result, error) {
	httpMethod := http.MethodGet
	var body io.Reader
	if payload != nil {
		httpMethod = http.MethodPost
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, httpMethod, MethodURL(c.baseURL, token, method), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", redactToken(err, token))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	parsed, err := ParseResponse(resp.StatusCode, raw)
	if err != nil {
		return nil, err
	}

	return &Result{StatusCode: resp.StatusCode, Body: json.RawMessage(raw), Response: parsed}, nil
}

// MaskToken shortens a bot token for logs.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 10 {
		return strings.Repeat("*", len(token))
	}
	return token[:10] + "..."
}

// url.Error embeds the request URL, which carries the token.
func redactToken(err error, token string) error {
	var uerr *url.Error
	if token != "" && errors.As(err, &uerr) {
		return &url.Error{Op: uerr.Op, URL: strings.ReplaceAll(uerr.URL, token, "BOT_TOKEN_HIDDEN"), Err: uerr.Err}
	}
	return err
}
