package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"kasbot/internal/backend"
	"kasbot/internal/bot"
	"kasbot/internal/cache"
	"kasbot/internal/cli"
	"kasbot/internal/gateway"
	apphttp "kasbot/internal/http"
	"kasbot/internal/ledger"
	"kasbot/internal/log"
	"kasbot/internal/middleware/ratelimit"
)

const sweepInterval = 5 * time.Minute

func main() {
	cfg, logger := cli.LoadAndValidateConfig()

	ctx, stop := cli.SignalContext()
	defer stop()

	kas := ledger.NewClient(cfg.LedgerBaseURL, cfg.LedgerTimeout, ledger.WithLogger(logger))
	dispatcher := bot.NewDispatcher(kas, bot.Options{
		Title:        cfg.KasTitle,
		DashboardURL: cfg.DashboardURL,
		Location:     cfg.Location(),
		Logger:       logger,
	})

	audit := cli.InitAudit(logger, cfg.AuditDBPath)
	publisher := cli.InitPublisher(logger, cfg)

	gwConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid gateway configuration", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	gw, err := backend.NewFactory(logger).CreateGateway(ctx, gwConfig)
	if err != nil {
		logger.Error("Failed to create gateway", log.FieldError, err, log.FieldGateway, cfg.Gateway)
		os.Exit(1)
	}

	svcConfig := bot.ServiceConfig{
		Gateway:    gw.Gateway,
		Dispatcher: dispatcher,
		Limiter:    ratelimit.NewLimiter(ratelimit.Config{Limit: cfg.RateLimitPerMinute, Period: time.Minute}),
		DedupeTTL:  cfg.DedupeTTL,
		Logger:     logger,
	}
	// Typed nils must not leak into the interfaces.
	if audit != nil {
		svcConfig.Audit = audit
	}
	if publisher != nil {
		svcConfig.Publisher = publisher
	}
	svc := bot.NewService(svcConfig)

	caches := cache.NewManager(logger)
	caches.Register(svc.DedupeCache())

	supervisor := gateway.NewSupervisor(gw.Gateway, gateway.SupervisorConfig{
		InitialDelay: cfg.ReconnectDelay,
		MaxDelay:     cfg.ReconnectMaxDelay,
		Logger:       logger,
	})

	httpConfig := apphttp.Config{
		Addr:               ":" + cfg.Port,
		GatewayName:        gw.Gateway.Name(),
		Webhook:            gw.Webhook,
		WebhookPath:        gw.WebhookPath,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		AdminToken:         cfg.AdminToken,
		Logger:             logger,
	}
	if audit != nil {
		httpConfig.Audit = audit
	}
	srv := apphttp.NewServer(httpConfig)

	logger.Info("Starting kasbot",
		log.FieldGateway, gw.Gateway.Name(),
		"port", cfg.Port,
		"ledger", kas.BaseURL(),
		"audit_enabled", audit != nil,
		"events_enabled", publisher != nil)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		// The gateway ending (console EOF, or shutdown) ends the process.
		defer cancel()
		if err := supervisor.Run(gctx, svc.HandleMessage); !errors.Is(err, gateway.ErrClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return caches.Run(gctx, sweepInterval) })
	g.Go(func() error { return svcConfig.Limiter.Run(gctx, sweepInterval) })

	runErr := g.Wait()

	if gw.Cleanup != nil {
		if err := gw.Cleanup(); err != nil {
			logger.Warn("Gateway cleanup failed", log.FieldError, err)
		}
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Warn("Failed to close AMQP publisher", log.FieldError, err)
		}
	}
	if audit != nil {
		if err := audit.Close(); err != nil {
			logger.Warn("Failed to close audit log", log.FieldError, err)
		}
	}

	if runErr != nil {
		logger.Error("kasbot stopped with error", log.FieldError, runErr, log.FieldOperation, log.OpShutdown)
		os.Exit(1)
	}
	logger.Info("kasbot stopped", log.FieldOperation, log.OpShutdown)
}
