package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"kasbot/internal/log"
)

// Supervisor keeps a gateway listening, restarting it with backoff after
// transport failures. It owns the reconnect policy so gateways don't have to.
type Supervisor struct {
	gateway    Gateway
	initial    time.Duration
	max        time.Duration
	stableTime time.Duration
	logger     *log.Logger
}

type SupervisorConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// A session that stayed up this long resets the backoff.
	StableAfter time.Duration
	Logger      *log.Logger
}

func NewSupervisor(gw Gateway, cfg SupervisorConfig) *Supervisor {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 10 * time.Second
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if cfg.StableAfter <= 0 {
		cfg.StableAfter = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	return &Supervisor{
		gateway:    gw,
		initial:    cfg.InitialDelay,
		max:        cfg.MaxDelay,
		stableTime: cfg.StableAfter,
		logger:     cfg.Logger.WithComponent(log.ComponentGateway),
	}
}

func (s *Supervisor) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initial
	b.MaxInterval = s.max
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	b.MaxElapsedTime = 0 // retry until the context ends
	b.Reset()
	return b
}

// Run blocks until ctx is cancelled or the gateway reports ErrClosed.
// It returns nil on cancellation.
func (s *Supervisor) Run(ctx context.Context, h Handler) error {
	b := s.newBackOff()
	name := s.gateway.Name()

	for {
		s.logger.InfoContext(ctx, "Gateway listening", log.FieldGateway, name)
		started := time.Now()
		err := s.gateway.Listen(ctx, h)

		if ctx.Err() != nil {
			s.logger.InfoContext(ctx, "Gateway stopped", log.FieldGateway, name)
			return nil
		}
		if errors.Is(err, ErrClosed) {
			s.logger.InfoContext(ctx, "Gateway closed", log.FieldGateway, name)
			return err
		}
		if err == nil {
			err = errors.New("listener returned without error")
		}
		if time.Since(started) >= s.stableTime {
			b.Reset()
		}

		delay := b.NextBackOff()
		s.logger.WarnContext(ctx, "Gateway disconnected, restarting",
			log.FieldGateway, name,
			log.FieldError, err,
			"retry_in", delay.String())

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.InfoContext(ctx, "Gateway stopped", log.FieldGateway, name)
			return nil
		case <-timer.C:
		}
	}
}
