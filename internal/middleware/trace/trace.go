// Package trace tags each HTTP request with an id and logs its completion.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"kasbot/internal/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

type Middleware struct {
	extractIP func(*http.Request) string
	logger    *log.Logger
	total     atomic.Int64
}

func NewMiddleware(logger *log.Logger, extractIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = log.Discard()
	}
	return &Middleware{
		extractIP: extractIP,
		logger:    logger.WithComponent(log.ComponentHTTP),
	}
}

// Handler wraps next; handlers downstream can pull the request logger with
// log.FromContext and the id with RequestID.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	structured := log.NewStructuredLogger(m.logger)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.total.Add(1)

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = GenerateRequestID()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = log.IntoContext(ctx, m.logger.With(log.FieldRequestID, requestID))
		r = r.WithContext(ctx)

		w.Header().Set(RequestIDHeader, requestID)
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		structured.LogHTTPEnd(ctx, r, requestID, clientIP, rw.status, time.Since(start).Milliseconds())
	})
}

// TotalRequests returns how many requests passed through the middleware.
func (m *Middleware) TotalRequests() int64 {
	return m.total.Load()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func GenerateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
