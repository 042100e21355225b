package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"kasbot/internal/core"
)

// Payloads of the kas web service. Field names are the service's own.
type (
	kasResponse struct {
		Pemasukan   *json.Number    `json:"pemasukan"`
		Pengeluaran *json.Number    `json:"pengeluaran"`
		Saldo       *json.Number    `json:"saldo"`
		Transaksi   []transaksiJSON `json:"transaksi"`
	}

	transaksiJSON struct {
		Type       string      `json:"type"`
		Nominal    json.Number `json:"nominal"`
		Keterangan string      `json:"keterangan"`
		Tanggal    string      `json:"tanggal"`
	}

	mutationRequest struct {
		Nominal    int64  `json:"nominal"`
		Keterangan string `json:"keterangan"`
	}

	mutationResponse struct {
		Success *bool        `json:"success"`
		Saldo   *json.Number `json:"saldo"`
		Message string       `json:"message"`
		Error   string       `json:"error"`
	}
)

var errMissingField = errors.New("missing field")

func (r kasResponse) toSnapshot() (core.LedgerSnapshot, error) {
	var snap core.LedgerSnapshot
	var err error

	if snap.Income, err = requiredInt("pemasukan", r.Pemasukan); err != nil {
		return snap, err
	}
	if snap.Expense, err = requiredInt("pengeluaran", r.Pengeluaran); err != nil {
		return snap, err
	}
	if snap.Balance, err = requiredInt("saldo", r.Saldo); err != nil {
		return snap, err
	}

	snap.Transactions = make([]core.Transaction, 0, len(r.Transaksi))
	for i, t := range r.Transaksi {
		amount, err := toInt(t.Nominal)
		if err != nil {
			return snap, fmt.Errorf("transaksi[%d].nominal: %w", i, err)
		}
		snap.Transactions = append(snap.Transactions, core.Transaction{
			Kind:   core.TransactionKind(t.Type),
			Amount: amount,
			Note:   t.Keterangan,
			Date:   t.Tanggal,
		})
	}

	if err := snap.Validate(); err != nil {
		return snap, err
	}
	return snap, nil
}

func (r mutationResponse) toResult() (core.MutationResult, error) {
	if r.Success == nil {
		return core.MutationResult{}, fmt.Errorf("success: %w", errMissingField)
	}

	res := core.MutationResult{
		OK:      *r.Success,
		Message: r.Message,
		Error:   r.Error,
	}
	if !res.OK {
		return res, nil
	}

	balance, err := requiredInt("saldo", r.Saldo)
	if err != nil {
		return core.MutationResult{}, err
	}
	res.Balance = balance
	return res, nil
}

func requiredInt(name string, n *json.Number) (int64, error) {
	if n == nil {
		return 0, fmt.Errorf("%s: %w", name, errMissingField)
	}
	v, err := toInt(*n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// toInt accepts integer literals and integral floats such as 50000.0.
func toInt(n json.Number) (int64, error) {
	if n == "" {
		return 0, errMissingField
	}
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", n)
	}
	// 2^63 itself is out of range; float64(math.MaxInt64) rounds up to it.
	if f != math.Trunc(f) || f >= 1<<63 || f < math.MinInt64 {
		return 0, fmt.Errorf("not an integer: %q", n)
	}
	return int64(f), nil
}
