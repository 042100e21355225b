package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"kasbot/internal/cache"
	"kasbot/internal/core"
	"kasbot/internal/gateway"
	"kasbot/internal/log"
	"kasbot/internal/middleware/ratelimit"
)

const (
	DefaultDedupeTTL  = 10 * time.Minute
	dedupeCacheSize   = 4096
	msgRateLimited    = "⏳ Terlalu banyak perintah. Coba lagi sebentar lagi ya."
	recordWriteBudget = 5 * time.Second
)

// AuditRecorder stores a trail of handled commands.
type AuditRecorder interface {
	Record(ctx context.Context, rec core.CommandRecord) error
}

// MutationPublisher announces accepted ledger writes.
type MutationPublisher interface {
	PublishMutation(ctx context.Context, rec core.CommandRecord) error
}

type ServiceConfig struct {
	Gateway    gateway.Gateway
	Dispatcher *Dispatcher
	// Optional collaborators; nil disables them.
	Audit     AuditRecorder
	Publisher MutationPublisher
	Limiter   *ratelimit.Limiter

	DedupeTTL time.Duration
	Logger    *log.Logger
}

// Service runs the parse, dispatch, reply loop for one gateway.
type Service struct {
	gw         gateway.Gateway
	dispatcher *Dispatcher
	audit      AuditRecorder
	publisher  MutationPublisher
	limiter    *ratelimit.Limiter
	seen       *cache.LRUCache[struct{}]
	logger     *log.Logger
}

func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.DedupeTTL
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Service{
		gw:         cfg.Gateway,
		dispatcher: cfg.Dispatcher,
		audit:      cfg.Audit,
		publisher:  cfg.Publisher,
		limiter:    cfg.Limiter,
		seen:       cache.NewLRUCache[struct{}](dedupeCacheSize, ttl),
		logger:     logger.WithComponent(log.ComponentBot),
	}
}

// DedupeCache exposes the seen-message cache so it can be swept periodically.
func (s *Service) DedupeCache() *cache.LRUCache[struct{}] {
	return s.seen
}

// HandleMessage is the gateway.Handler for the service. It never panics and
// never returns an error: every failure is logged and the loop moves on.
func (s *Service) HandleMessage(ctx context.Context, msg gateway.Message) {
	fields := log.NewFields().WithMessage(s.gw.Name(), msg.ID, msg.SenderID, msg.ChatID)
	logger := s.logger.With(fields.ToSlice()...)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Panic while handling message",
				log.FieldError, fmt.Sprint(r),
				log.FieldErrorType, log.ErrorTypeInternal,
				"stack", string(debug.Stack()))
		}
	}()

	if msg.ID != "" && !s.seen.Add(s.gw.Name()+":"+msg.ID, struct{}{}) {
		logger.DebugContext(ctx, "Duplicate message dropped")
		return
	}

	cmd := core.Parse(msg.Text)
	if cmd.Kind == core.CmdUnrecognized && !cmd.IsBadFormat() {
		return
	}

	logger.InfoContext(ctx, "Command received", log.FieldCommand, cmd.Kind.String())

	rec := core.CommandRecord{
		ReceivedAt: msg.ReceivedAt,
		Gateway:    s.gw.Name(),
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		ChatID:     msg.ChatID,
		Command:    commandName(cmd),
		Amount:     cmd.Amount,
		Note:       cmd.Note,
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now()
	}

	if s.limiter != nil && !s.limiter.Allow(s.gw.Name()+":"+msg.SenderID) {
		logger.WarnContext(ctx, "Sender rate limited")
		s.reply(ctx, logger, msg, msgRateLimited)
		rec.Outcome = "rate_limited"
		s.record(ctx, logger, rec)
		return
	}

	r := s.dispatcher.Dispatch(log.IntoContext(ctx, logger), cmd)
	if r.Text != "" {
		s.reply(ctx, logger, msg, r.Text)
	}

	rec.Outcome = string(r.Outcome)
	switch {
	case r.Err != nil:
		rec.Error = r.Err.Error()
	case r.Rejection != "":
		rec.Error = r.Rejection
	}
	if r.Mutation != nil {
		rec.Balance = r.Mutation.Balance
	}

	s.record(ctx, logger, rec)
	if r.Mutation != nil && r.Outcome == OutcomeOK {
		s.publish(ctx, logger, rec)
	}
}

func (s *Service) reply(ctx context.Context, logger *log.Logger, msg gateway.Message, text string) {
	if err := s.gw.Reply(ctx, msg, text); err != nil {
		log.NewStructuredLogger(logger).LogError(ctx, "Failed to send reply", err,
			log.ComponentGateway, log.OpReply, log.ErrorTypeNetwork, nil)
	}
}

func (s *Service) record(ctx context.Context, logger *log.Logger, rec core.CommandRecord) {
	if s.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordWriteBudget)
	defer cancel()
	if err := s.audit.Record(ctx, rec); err != nil {
		log.NewStructuredLogger(logger).LogError(ctx, "Failed to record command", err,
			log.ComponentStorage, log.OpRecord, log.ErrorTypeDatabase, nil)
	}
}

func (s *Service) publish(ctx context.Context, logger *log.Logger, rec core.CommandRecord) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishMutation(context.WithoutCancel(ctx), rec); err != nil {
		log.NewStructuredLogger(logger).LogError(ctx, "Failed to publish mutation event", err,
			log.ComponentAMQP, log.OpPublish, log.ErrorTypeNetwork, nil)
	}
}

// commandName is the audit label: the command keyword, or the keyword the
// user got wrong.
func commandName(cmd core.Command) string {
	if cmd.IsBadFormat() {
		return cmd.Original
	}
	return cmd.Kind.String()
}
