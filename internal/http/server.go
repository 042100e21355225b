// Package http serves the bot's operational endpoints and, for webhook-based
// gateways, the inbound message callback.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"kasbot/internal/core"
	"kasbot/internal/log"
	"kasbot/internal/middleware/ratelimit"
	"kasbot/internal/middleware/security"
	"kasbot/internal/middleware/trace"
)

const ServiceName = "kasbot"

// AuditStore is the read side of the command audit log.
type AuditStore interface {
	Ping(ctx context.Context) error
	Recent(ctx context.Context, limit int) ([]core.CommandRecord, error)
}

type Config struct {
	Addr        string
	GatewayName string
	// Webhook, when set, is mounted at WebhookPath behind the rate limiter.
	Webhook     http.Handler
	WebhookPath string
	// Audit is optional; without it /readyz only reports the process state.
	Audit              AuditStore
	RateLimitPerMinute int
	// TrustedProxies are CIDR ranges, beyond loopback and private networks,
	// whose forwarding headers are honoured.
	TrustedProxies []string
	// AdminToken guards /commands/recent; when empty the endpoint is off.
	AdminToken string
	Logger     *log.Logger
}

type Server struct {
	http.Server
	gatewayName string
	audit       AuditStore
	adminToken  string
	limiter     *ratelimit.Limiter
	ips         *security.IPResolver
	tracer      *trace.Middleware
	logger      *log.Logger
	started     time.Time
	now         func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		gatewayName: cfg.GatewayName,
		audit:       cfg.Audit,
		adminToken:  cfg.AdminToken,
		limiter:     ratelimit.NewLimiter(ratelimit.Config{Limit: cfg.RateLimitPerMinute, Period: time.Minute}),
		ips:         security.NewIPResolver(),
		logger:      logger,
		started:     time.Now(),
		now:         time.Now,
	}
	for _, cidr := range cfg.TrustedProxies {
		if err := s.ips.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.ips.ClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /commands/recent", s.handleRecentCommands)

	if cfg.Webhook != nil && cfg.WebhookPath != "" {
		mux.Handle(cfg.WebhookPath, s.limiter.Middleware(s.ips.ClientIP)(cfg.Webhook))
		logger.Info("Webhook mounted", log.FieldPath, cfg.WebhookPath)
	}

	s.Handler = security.Headers(s.tracer.Handler(mux))
	return s
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "HTTP server listening", "addr", s.Addr)
		errc <- s.ListenAndServe()
	}()

	go func() {
		_ = s.limiter.Run(ctx, 5*time.Minute)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "HTTP server stopped")
	return nil
}

// Shutdown stops the server; repeated calls are no-ops.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
	})
	return err
}
