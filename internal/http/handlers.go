package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kasbot/internal/log"
)

const defaultRecentLimit = 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   ServiceName,
		"gateway":   s.gatewayName,
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"timestamp": s.now().Format(time.RFC3339),
	})
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady checks local dependencies only; the remote kas service is not contacted.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := map[string]any{}

	if s.audit == nil {
		checks["audit_log"] = "disabled"
	} else if err := s.audit.Ping(ctx); err != nil {
		checks["audit_log"] = "failed: " + err.Error()
		status = "not_ready"
		code = http.StatusServiceUnavailable
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeDatabase)
	} else {
		checks["audit_log"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
	}
	checks["requests_served"] = s.tracer.TotalRequests()

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

type commandView struct {
	ReceivedAt time.Time `json:"received_at"`
	Gateway    string    `json:"gateway"`
	SenderID   string    `json:"sender_id"`
	Command    string    `json:"command"`
	Amount     int64     `json:"amount,omitempty"`
	Note       string    `json:"note,omitempty"`
	Outcome    string    `json:"outcome"`
	Balance    int64     `json:"balance,omitempty"`
	Error      string    `json:"error,omitempty"`
}

func (s *Server) handleRecentCommands(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil || s.adminToken == "" {
		http.Error(w, "audit log disabled", http.StatusNotFound)
		return
	}
	if !s.authorized(r) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rejected audit log request",
			log.FieldPath, r.URL.Path, log.FieldErrorType, log.ErrorTypeValidation)
		w.Header().Set("WWW-Authenticate", `Bearer realm="kasbot"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	limit := defaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		log.NewStructuredLogger(s.logger).LogError(r.Context(), "Failed to read audit log", err,
			log.ComponentHTTP, log.OpFetch, log.ErrorTypeDatabase, nil)
		http.Error(w, "audit log unavailable", http.StatusInternalServerError)
		return
	}

	out := make([]commandView, 0, len(records))
	for _, rec := range records {
		out = append(out, commandView{
			ReceivedAt: rec.ReceivedAt,
			Gateway:    rec.Gateway,
			SenderID:   rec.SenderID,
			Command:    rec.Command,
			Amount:     rec.Amount,
			Note:       rec.Note,
			Outcome:    rec.Outcome,
			Balance:    rec.Balance,
			Error:      rec.Error,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": out})
}

// authorized reports whether r carries the admin bearer token.
func (s *Server) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) == 1
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
