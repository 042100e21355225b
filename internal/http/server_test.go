package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kasbot/internal/core"
)

type stubAudit struct {
	pingErr error
	records []core.CommandRecord
	limit   int
}

func (s *stubAudit) Ping(context.Context) error { return s.pingErr }

func (s *stubAudit) Recent(_ context.Context, limit int) ([]core.CommandRecord, error) {
	s.limit = limit
	return s.records, nil
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	s := NewServer(cfg)
	s.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	ts := httptest.NewServer(s.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Config{GatewayName: "telegram"})

	code, body := getJSON(t, ts.URL+"/health")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" || body["service"] != "kasbot" || body["gateway"] != "telegram" {
		t.Fatalf("body = %v", body)
	}
	if body["timestamp"] != "2026-10-19T09:00:00Z" {
		t.Fatalf("timestamp = %v", body["timestamp"])
	}
	if _, ok := body["uptime"].(string); !ok {
		t.Fatalf("uptime missing: %v", body)
	}
}

func TestHealthzAndSecurityHeaders(t *testing.T) {
	ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK || string(b) != "ok" {
		t.Fatalf("healthz = %d %q", resp.StatusCode, b)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name     string
		audit    AuditStore
		wantCode int
		wantLog  string
	}{
		{name: "no audit log", audit: nil, wantCode: http.StatusOK, wantLog: "disabled"},
		{name: "audit ok", audit: &stubAudit{}, wantCode: http.StatusOK, wantLog: "ok"},
		{name: "audit down", audit: &stubAudit{pingErr: errors.New("database is locked")}, wantCode: http.StatusServiceUnavailable, wantLog: "failed: database is locked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, Config{Audit: tt.audit})
			code, body := getJSON(t, ts.URL+"/readyz")
			if code != tt.wantCode {
				t.Fatalf("status = %d, want %d", code, tt.wantCode)
			}
			checks := body["checks"].(map[string]any)
			if checks["audit_log"] != tt.wantLog {
				t.Fatalf("audit_log = %v, want %q", checks["audit_log"], tt.wantLog)
			}
		})
	}
}

const testAdminToken = "0123456789abcdef"

func getRecent(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRecentCommands(t *testing.T) {
	audit := &stubAudit{records: []core.CommandRecord{
		{Gateway: "twilio", SenderID: "+628123", Command: "tambah", Amount: 50000, Note: "iuran", Outcome: "ok", Balance: 200000},
	}}
	ts := newTestServer(t, Config{Audit: audit, AdminToken: testAdminToken})

	resp := getRecent(t, ts.URL+"/commands/recent?limit=5", testAdminToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if audit.limit != 5 {
		t.Fatalf("limit = %d", audit.limit)
	}
	cmds := body["commands"].([]any)
	first := cmds[0].(map[string]any)
	if first["command"] != "tambah" || first["amount"].(float64) != 50000 {
		t.Fatalf("first = %v", first)
	}

	resp = getRecent(t, ts.URL+"/commands/recent?limit=abc", testAdminToken)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit: status = %d", resp.StatusCode)
	}
}

func TestRecentCommandsRequiresToken(t *testing.T) {
	audit := &stubAudit{records: []core.CommandRecord{
		{Gateway: "twilio", SenderID: "+628123", Command: "keluar", Amount: 20000, Note: "kok", Outcome: "ok"},
	}}
	ts := newTestServer(t, Config{Audit: audit, AdminToken: testAdminToken})

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "wrong token", token: "fedcba9876543210"},
		{name: "token prefix", token: testAdminToken[:8]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audit.limit = 0
			resp := getRecent(t, ts.URL+"/commands/recent", tt.token)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", resp.StatusCode)
			}
			b, _ := io.ReadAll(resp.Body)
			if strings.Contains(string(b), "+628123") {
				t.Fatalf("body leaked sender: %q", b)
			}
			if audit.limit != 0 {
				t.Fatal("audit log was read without authorization")
			}
		})
	}
}

func TestRecentCommandsDisabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "no audit log", cfg: Config{AdminToken: testAdminToken}},
		{name: "no admin token", cfg: Config{Audit: &stubAudit{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.cfg)
			resp := getRecent(t, ts.URL+"/commands/recent", testAdminToken)
			if resp.StatusCode != http.StatusNotFound {
				t.Fatalf("status = %d", resp.StatusCode)
			}
		})
	}
}

func TestWebhookIsRateLimited(t *testing.T) {
	var hits int
	hook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	})
	ts := newTestServer(t, Config{Webhook: hook, WebhookPath: "/webhook/twilio", RateLimitPerMinute: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Post(ts.URL+"/webhook/twilio", "application/x-www-form-urlencoded", strings.NewReader("Body=x"))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}

	if hits != 2 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("hits = %d codes = %v", hits, codes)
	}
}

func TestWebhookRateLimitBehindTrustedProxy(t *testing.T) {
	hook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	post := func(s *Server, client string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader("Body=x"))
		req.RemoteAddr = "203.0.113.10:443"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)
		return rec.Code
	}

	tests := []struct {
		name    string
		proxies []string
		want    []int
	}{
		{
			name: "untrusted proxy shares one bucket",
			want: []int{http.StatusOK, http.StatusTooManyRequests},
		},
		{
			name:    "trusted proxy keys by forwarded client",
			proxies: []string{"203.0.113.0/24"},
			want:    []int{http.StatusOK, http.StatusOK},
		},
		{
			name:    "invalid proxy entry is ignored",
			proxies: []string{"not-a-cidr"},
			want:    []int{http.StatusOK, http.StatusTooManyRequests},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(Config{Webhook: hook, WebhookPath: "/webhook/twilio", RateLimitPerMinute: 1, TrustedProxies: tt.proxies})
			got := []int{post(s, "198.51.100.1"), post(s, "198.51.100.2")}
			if got[0] != tt.want[0] || got[1] != tt.want[1] {
				t.Fatalf("codes = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := NewServer(Config{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
