package dispatcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmehdipour/contact-relay/internal/config"
	"github.com/jmehdipour/contact-relay/internal/model"
	"github.com/jmehdipour/contact-relay/internal/telegram"
)

var testSub = model.Submission{Name: "Jo", Phone: "555-123-4567", Email: "a@b.com"}

type fakeProvider struct {
	name  string
	err   error
	panic bool
	calls atomic.Int32
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Send(_ context.Context, _ Delivery) error {
	f.calls.Add(1)
	if f.panic {
		panic("boom")
	}
	return f.err
}

func TestSendStopsAtFirstSuccess(t *testing.T) {
	a := &fakeProvider{name: "a", err: ErrUnavailable}
	b := &fakeProvider{name: "b"}
	c := &fakeProvider{name: "c"}

	d := NewDispatcher([]Provider{a, b, c}, 0, 0)
	if !d.Send(context.Background(), testSub) {
		t.Fatal("Send = false, want true")
	}
	if a.calls.Load() != 1 || b.calls.Load() != 1 || c.calls.Load() != 0 {
		t.Fatalf("calls a=%d b=%d c=%d", a.calls.Load(), b.calls.Load(), c.calls.Load())
	}
}

func TestSendRejectedStopsChain(t *testing.T) {
	a := &fakeProvider{name: "relay", err: ErrRejected}
	b := &fakeProvider{name: "direct"}

	d := NewDispatcher([]Provider{a, b}, 0, 0)
	if d.Send(context.Background(), testSub) {
		t.Fatal("Send = true, want false")
	}
	if b.calls.Load() != 0 {
		t.Fatal("chain should stop after a rejection")
	}
}

func TestSendAllFail(t *testing.T) {
	d := NewDispatcher([]Provider{
		&fakeProvider{name: "a", err: errors.New("x")},
		&fakeProvider{name: "b", err: errors.New("y")},
	}, 0, 0)
	if d.Send(context.Background(), testSub) {
		t.Fatal("Send = true, want false")
	}
}

func TestSendNeverPanics(t *testing.T) {
	d := NewDispatcher([]Provider{&fakeProvider{name: "p", panic: true}}, 0, 0)
	if d.Send(context.Background(), testSub) {
		t.Fatal("Send = true, want false")
	}
}

func TestSendIncompleteSubmission(t *testing.T) {
	p := &fakeProvider{name: "p"}
	d := NewDispatcher([]Provider{p}, 0, 0)
	if d.Send(context.Background(), model.Submission{Name: "Jo"}) {
		t.Fatal("Send = true, want false")
	}
	if p.calls.Load() != 0 {
		t.Fatal("incomplete submission must not reach a transport")
	}
}

func TestSendNoProviders(t *testing.T) {
	if NewDispatcher(nil, 0, 0).Send(context.Background(), testSub) {
		t.Fatal("Send = true, want false")
	}
}

func TestBreakerSkipsFailingProvider(t *testing.T) {
	a := &fakeProvider{name: "a", err: ErrUnavailable}
	b := &fakeProvider{name: "b"}

	d := NewDispatcher([]Provider{a, b}, 1, time.Hour)
	for i := 0; i < 3; i++ {
		if !d.Send(context.Background(), testSub) {
			t.Fatalf("send %d failed", i)
		}
	}
	if a.calls.Load() != 1 {
		t.Fatalf("a.calls = %d, want 1 (breaker should open)", a.calls.Load())
	}
	if b.calls.Load() != 3 {
		t.Fatalf("b.calls = %d, want 3", b.calls.Load())
	}
}

func TestRelayUnreachableWithoutStaticToken(t *testing.T) {
	var hits atomic.Int32
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer relay.Close()

	d, err := FromConfig(config.ClientConfig{RelayURL: relay.URL + "/api/telegram", Timeout: time.Second})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if got := d.Providers(); len(got) != 1 || got[0] != "relay" {
		t.Fatalf("providers = %v, want [relay]", got)
	}
	if d.Send(context.Background(), testSub) {
		t.Fatal("Send = true, want false")
	}
	if hits.Load() != 1 {
		t.Fatalf("relay hits = %d, want 1", hits.Load())
	}
}

func TestRelayProvider(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"success", http.StatusOK, `{"success":true,"message":"sent"}`, nil},
		{"not found", http.StatusNotFound, `{"error":"nope"}`, ErrUnavailable},
		{"html page", http.StatusOK, `<html>static site</html>`, ErrUnavailable},
		{"upstream error", http.StatusBadRequest, `{"error":"Failed to send message to Telegram","details":"chat not found"}`, ErrRejected},
		{"missing fields", http.StatusBadRequest, `{"error":"Missing required fields"}`, ErrRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				mu      sync.Mutex
				gotBody string
			)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				mu.Lock()
				gotBody = string(b)
				mu.Unlock()
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewRelayProvider(srv.URL, time.Second, "", "")
			err := p.Send(context.Background(), Delivery{Submission: testSub})
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Send returned error: %v", err)
				}
			} else if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}

			mu.Lock()
			defer mu.Unlock()
			if !strings.Contains(gotBody, `"name":"Jo"`) || !strings.Contains(gotBody, `"phone":"555-123-4567"`) {
				t.Fatalf("unexpected relay body: %s", gotBody)
			}
			if strings.Contains(gotBody, "botToken") {
				t.Fatal("empty credentials must not be forwarded")
			}
		})
	}
}

func TestRelayProviderConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	err := NewRelayProvider(addr, time.Second, "", "").Send(context.Background(), Delivery{Submission: testSub})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestFallsBackToDirect(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<!doctype html>"))
	}))
	defer relay.Close()

	var direct atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		direct.Add(1)
		if r.URL.Path != "/bottok/sendMessage" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer api.Close()

	d, err := FromConfig(config.ClientConfig{
		RelayURL:   relay.URL,
		BotToken:   "tok",
		ChatID:     "42",
		APIBaseURL: api.URL,
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if !d.Send(context.Background(), testSub) {
		t.Fatal("Send = false, want true")
	}
	if direct.Load() != 1 {
		t.Fatalf("direct calls = %d, want 1", direct.Load())
	}
}

func TestFallsBackThroughProxies(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"description":"blocked"}`))
	}))
	defer api.Close()

	var (
		mu                             sync.Mutex
		corsJSON, allOrigins, corsForm atomic.Int32
		formBody                       url.Values
		targetURL                      string
	)
	proxies := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/corsproxy") && r.Header.Get("Content-Type") == "application/json":
			corsJSON.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		case strings.HasPrefix(r.URL.Path, "/allorigins"):
			allOrigins.Add(1)
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			targetURL = r.URL.Query().Get("url")
			formBody, _ = url.ParseQuery(string(b))
			mu.Unlock()
			_, _ = w.Write([]byte(`{"contents":"{\"ok\":true,\"result\":{}}","status":{"http_code":200}}`))
		default:
			corsForm.Add(1)
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer proxies.Close()

	d, err := FromConfig(config.ClientConfig{
		BotToken:   "tok",
		ChatID:     "42",
		APIBaseURL: api.URL,
		Timeout:    time.Second,
		Proxies: []config.ProxyConfig{
			{Name: "cors json", Kind: "corsproxy", Encoding: "json", BaseURL: proxies.URL + "/corsproxy/", Enabled: true},
			{Name: "allorigins form", Kind: "allorigins", Encoding: "form", BaseURL: proxies.URL + "/allorigins/post", Enabled: true},
			{Name: "cors form", Kind: "corsproxy", Encoding: "form", BaseURL: proxies.URL + "/corsproxy/", Enabled: true},
			{Name: "disabled", Kind: "corsproxy", BaseURL: proxies.URL, Enabled: false},
		},
	})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}

	want := []string{"direct", "cors json", "allorigins form", "cors form"}
	if got := d.Providers(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("providers = %v, want %v", got, want)
	}

	if !d.Send(context.Background(), testSub) {
		t.Fatal("Send = false, want true")
	}
	if corsJSON.Load() != 1 || allOrigins.Load() != 1 || corsForm.Load() != 0 {
		t.Fatalf("proxy calls json=%d allorigins=%d form=%d", corsJSON.Load(), allOrigins.Load(), corsForm.Load())
	}
	mu.Lock()
	defer mu.Unlock()
	if targetURL != telegram.MethodURL(api.URL, "tok", "sendMessage") {
		t.Fatalf("allorigins target = %q", targetURL)
	}
	if formBody.Get("chat_id") != "42" || formBody.Get("parse_mode") != "HTML" || !strings.Contains(formBody.Get("text"), "Jo") {
		t.Fatalf("unexpected form body: %v", formBody)
	}
}

func TestProxyTelegramNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	p := NewProxyProvider(CorsProxy("cors", srv.URL+"/", EncodingJSON), "", "secret-token", "1", time.Second)
	err := p.Send(context.Background(), Delivery{Text: "hi"})

	var apiErr *telegram.APIError
	if !errors.As(err, &apiErr) || apiErr.Description != "Unauthorized" {
		t.Fatalf("err = %v, want APIError Unauthorized", err)
	}
}

func TestNewProxyAdapterRejectsUnknown(t *testing.T) {
	if _, err := NewProxyAdapter("jsonp", "x", "https://example.com", "json"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, err := NewProxyAdapter("corsproxy", "x", "https://example.com", "xml"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}

	a, err := NewProxyAdapter("corsproxy", "", "https://corsproxy.io/", "")
	if err != nil {
		t.Fatalf("NewProxyAdapter: %v", err)
	}
	if a.Encoding != EncodingJSON || a.Name != "corsproxy (json)" {
		t.Fatalf("unexpected adapter: %+v", a)
	}
	if got := a.URL("https://api.telegram.org/botX/sendMessage"); got != "https://corsproxy.io/?https%3A%2F%2Fapi.telegram.org%2FbotX%2FsendMessage" {
		t.Fatalf("URL = %q", got)
	}
}
