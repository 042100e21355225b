package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kasbot/internal/log"
)

func TestHandlerAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf})
	m := NewMiddleware(logger, func(r *http.Request) string { return "10.0.0.1" })

	var seen string
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		if log.FromContext(r.Context()).Component() != log.ComponentHTTP {
			t.Errorf("request logger not in context")
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("header id = %q, want %q", rec.Header().Get(RequestIDHeader), seen)
	}
	out := buf.String()
	if !strings.Contains(out, "status_code=418") || !strings.Contains(out, "client_ip=10.0.0.1") {
		t.Fatalf("unexpected log output: %s", out)
	}
	if m.TotalRequests() != 1 {
		t.Fatalf("TotalRequests() = %d", m.TotalRequests())
	}
}

func TestHandlerKeepsIncomingRequestID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get(RequestIDHeader) != "abc123" {
		t.Fatalf("got %q", rec.Header().Get(RequestIDHeader))
	}
}
