package core

import (
	"errors"
	"strings"
)

const (
	Income  TransactionKind = "pemasukan"
	Expense TransactionKind = "pengeluaran"
)

type (
	TransactionKind string

	// Transaction is one ledger line as reported by the kas service.
	Transaction struct {
		Kind   TransactionKind
		Amount int64
		Note   string
		Date   string // preformatted by the service
	}

	// LedgerSnapshot is a read-only copy of the remote ledger for a single request.
	// Balance is reported by the service and never recomputed here.
	LedgerSnapshot struct {
		Income       int64
		Expense      int64
		Balance      int64
		Transactions []Transaction
	}

	// MutationResult is the outcome of a write against the ledger.
	MutationResult struct {
		OK      bool
		Balance int64 // set when OK
		Message string
		Error   string
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrUnknownKind     = errors.New("unknown transaction kind")
	ErrNegativeTotal   = errors.New("negative total")
	ErrNonPositiveLine = errors.New("transaction amount must be positive")
)

// IsValid reports whether k is one of the kinds the service emits.
func (k TransactionKind) IsValid() bool {
	switch k {
	case Income, Expense:
		return true
	default:
		return false
	}
}

// Label is the uppercase label used in history replies.
func (k TransactionKind) Label() string {
	if k == Income {
		return "MASUK"
	}
	return "KELUAR"
}

// Emoji is the marker used in history replies.
func (k TransactionKind) Emoji() string {
	if k == Income {
		return "💹"
	}
	return "💸"
}

func (t Transaction) Validate() error {
	if !t.Kind.IsValid() {
		return ErrUnknownKind
	}
	if t.Amount <= 0 {
		return ErrNonPositiveLine
	}
	return nil
}

func (s LedgerSnapshot) Validate() error {
	if s.Income < 0 || s.Expense < 0 {
		return ErrNegativeTotal
	}
	for _, t := range s.Transactions {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Recent returns up to n transactions, most recent first.
// The service lists transactions oldest first.
func (s LedgerSnapshot) Recent(n int) []Transaction {
	if n <= 0 || len(s.Transactions) == 0 {
		return nil
	}
	start := len(s.Transactions) - n
	if start < 0 {
		start = 0
	}
	out := make([]Transaction, 0, len(s.Transactions)-start)
	for i := len(s.Transactions) - 1; i >= start; i-- {
		out = append(out, s.Transactions[i])
	}
	return out
}

// RejectionText picks the text to echo back when the service refused a write.
func (r MutationResult) RejectionText() string {
	if msg := strings.TrimSpace(r.Error); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(r.Message); msg != "" {
		return msg
	}
	return "Transaksi ditolak oleh server kas"
}
