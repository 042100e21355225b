// Package bot turns parsed chat commands into kas service calls and replies.
package bot

import (
	"context"
	"time"

	"kasbot/internal/core"
	"kasbot/internal/ledger"
	"kasbot/internal/log"
)

const (
	DefaultTitle       = "KAS BADMINTON"
	DefaultHistorySize = 5
)

// Outcome classifies how a command was handled, for logs and the audit trail.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
	OutcomeBadFormat Outcome = "bad_format"
	OutcomeIgnored   Outcome = "ignored"
)

// LedgerService is the part of the kas client the dispatcher needs.
type LedgerService interface {
	FetchSnapshot(ctx context.Context) (core.LedgerSnapshot, error)
	PostIncome(ctx context.Context, amount int64, note string) (core.MutationResult, error)
	PostExpense(ctx context.Context, amount int64, note string) (core.MutationResult, error)
}

// Options configures reply rendering.
type Options struct {
	Title        string
	DashboardURL string
	Location     *time.Location
	Now          func() time.Time
	HistorySize  int
	Logger       *log.Logger
}

// Reply is the full result of dispatching one command.
// Text is empty when nothing should be sent back.
type Reply struct {
	Text      string
	Outcome   Outcome
	Mutation  *core.MutationResult // set for writes the service accepted
	Rejection string               // the service's reason for refusing a write
	Err       error                // transport or decode failure, if any
}

type Dispatcher struct {
	ledger       LedgerService
	title        string
	dashboardURL string
	location     *time.Location
	now          func() time.Time
	historySize  int
	logger       *log.Logger
}

func NewDispatcher(ledger LedgerService, opts Options) *Dispatcher {
	d := &Dispatcher{
		ledger:       ledger,
		title:        opts.Title,
		dashboardURL: opts.DashboardURL,
		location:     opts.Location,
		now:          opts.Now,
		historySize:  opts.HistorySize,
		logger:       opts.Logger,
	}
	if d.title == "" {
		d.title = DefaultTitle
	}
	if d.location == nil {
		d.location = time.UTC
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.historySize <= 0 {
		d.historySize = DefaultHistorySize
	}
	if d.logger == nil {
		d.logger = log.Discard()
	}
	d.logger = d.logger.WithComponent(log.ComponentBot)
	return d
}

// Handle returns the reply for cmd, or ok=false when the bot stays silent.
func (d *Dispatcher) Handle(ctx context.Context, cmd core.Command) (string, bool) {
	r := d.Dispatch(ctx, cmd)
	return r.Text, r.Text != ""
}

// Dispatch runs cmd against the ledger. It never returns an error: failures are
// turned into user-facing text and reported in Reply.Err.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd core.Command) Reply {
	switch cmd.Kind {
	case core.CmdCheckBalance:
		return d.checkBalance(ctx)
	case core.CmdAddIncome:
		return d.mutate(ctx, cmd, d.ledger.PostIncome, incomeReply, msgIncomeFailed)
	case core.CmdAddExpense:
		return d.mutate(ctx, cmd, d.ledger.PostExpense, expenseReply, msgExpenseFailed)
	case core.CmdListHistory:
		return d.history(ctx)
	case core.CmdHelp:
		return Reply{Text: helpReply(d.title, d.dashboardURL), Outcome: OutcomeOK}
	default:
		if cmd.IsBadFormat() {
			return Reply{Text: formatHint(cmd.Original), Outcome: OutcomeBadFormat}
		}
		return Reply{Outcome: OutcomeIgnored}
	}
}

func (d *Dispatcher) checkBalance(ctx context.Context) Reply {
	snap, err := d.ledger.FetchSnapshot(ctx)
	if err != nil {
		d.logFailure(ctx, "Failed to fetch kas balance", log.OpFetch, err)
		return Reply{Text: msgBalanceFailed, Outcome: OutcomeFailed, Err: err}
	}
	return Reply{
		Text:    balanceReply(d.title, d.now().In(d.location), snap),
		Outcome: OutcomeOK,
	}
}

func (d *Dispatcher) history(ctx context.Context) Reply {
	snap, err := d.ledger.FetchSnapshot(ctx)
	if err != nil {
		d.logFailure(ctx, "Failed to fetch transaction history", log.OpFetch, err)
		return Reply{Text: msgHistoryFailed, Outcome: OutcomeFailed, Err: err}
	}
	if len(snap.Transactions) == 0 {
		return Reply{Text: msgHistoryEmpty, Outcome: OutcomeOK}
	}
	return Reply{Text: historyReply(snap, d.historySize), Outcome: OutcomeOK}
}

type postFunc func(ctx context.Context, amount int64, note string) (core.MutationResult, error)

type confirmFunc func(amount int64, note string, balance int64) string

func (d *Dispatcher) mutate(ctx context.Context, cmd core.Command, post postFunc, confirm confirmFunc, failed string) Reply {
	res, err := post(ctx, cmd.Amount, cmd.Note)
	if err != nil {
		d.logFailure(ctx, "Failed to post ledger mutation", log.OpPost, err)
		return Reply{Text: failed, Outcome: OutcomeFailed, Err: err}
	}
	if !res.OK {
		return Reply{Text: rejectionReply(res), Outcome: OutcomeRejected, Rejection: res.RejectionText()}
	}

	log.NewStructuredLogger(d.logger).LogMutation(ctx, cmd.Kind.String(), cmd.Amount, cmd.Note, res.Balance)
	return Reply{
		Text:     confirm(cmd.Amount, cmd.Note, res.Balance),
		Outcome:  OutcomeOK,
		Mutation: &res,
	}
}

func (d *Dispatcher) logFailure(ctx context.Context, msg, op string, err error) {
	log.NewStructuredLogger(d.logger).LogError(ctx, msg, err, log.ComponentBot, op, errorType(err), nil)
}

func errorType(err error) string {
	switch {
	case ledger.IsNetwork(err):
		return log.ErrorTypeNetwork
	case ledger.IsDecode(err):
		return log.ErrorTypeDecode
	default:
		return log.ErrorTypeInternal
	}
}
