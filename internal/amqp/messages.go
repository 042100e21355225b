package amqp

import (
	"encoding/json"
	"time"

	"kasbot/internal/core"
)

// LedgerMutationEvent announces a write the kas service accepted.
type LedgerMutationEvent struct {
	Kind      string    `json:"kind"` // pemasukan | pengeluaran
	Amount    int64     `json:"amount"`
	Note      string    `json:"note"`
	Balance   int64     `json:"balance"`
	Sender    string    `json:"sender"`
	Chat      string    `json:"chat"`
	Gateway   string    `json:"gateway"`
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerMutationEvent builds the event for a recorded command. Commands
// other than tambah/keluar yield ok == false.
func NewLedgerMutationEvent(rec core.CommandRecord) (*LedgerMutationEvent, bool) {
	var kind core.TransactionKind
	switch rec.Command {
	case core.CmdAddIncome.String():
		kind = core.Income
	case core.CmdAddExpense.String():
		kind = core.Expense
	default:
		return nil, false
	}

	ts := rec.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return &LedgerMutationEvent{
		Kind:      string(kind),
		Amount:    rec.Amount,
		Note:      rec.Note,
		Balance:   rec.Balance,
		Sender:    rec.SenderID,
		Chat:      rec.ChatID,
		Gateway:   rec.Gateway,
		MessageID: rec.MessageID,
		Timestamp: ts.UTC(),
	}, true
}

func (e *LedgerMutationEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
