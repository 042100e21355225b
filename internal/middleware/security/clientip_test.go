package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "direct public peer",
			remoteAddr: "203.0.113.7:5555",
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded header ignored from untrusted peer",
			remoteAddr: "203.0.113.7:5555",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1"},
			want:       "203.0.113.7",
		},
		{
			name:       "first forwarded address from trusted proxy",
			remoteAddr: "10.0.0.2:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.3"},
			want:       "198.51.100.1",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "127.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			want:       "198.51.100.9",
		},
		{
			name:       "garbage forwarded value",
			remoteAddr: "192.168.1.1:80",
			headers:    map[string]string{"X-Forwarded-For": "not-an-ip"},
			want:       "192.168.1.1",
		},
	}

	ipr := NewIPResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ipr.ClientIP(req); got != tt.want {
				t.Fatalf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddTrustedProxy(t *testing.T) {
	ipr := NewIPResolver()
	if err := ipr.AddTrustedProxy("nonsense"); err == nil {
		t.Fatal("expected error")
	}
	if err := ipr.AddTrustedProxy("203.0.113.0/24"); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	if got := ipr.ClientIP(req); got != "198.51.100.1" {
		t.Fatalf("got %q", got)
	}
}

func TestHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	Headers(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing nosniff")
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must only be set over TLS")
	}
}
