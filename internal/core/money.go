// Package core holds the kas domain: commands, ledger values and the
// Indonesian formatting used in replies.
package core

import (
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	printerOnce sync.Once
	idPrinter   *message.Printer
)

// ParseAmount converts a user-typed nominal to a positive integer.
//
// Only plain ASCII digits are accepted: no sign, no decimal part and no
// thousands separators. Zero and values that overflow int64 are rejected.
//
// Examples:
//
//	ParseAmount("50000")  -> 50000, nil
//	ParseAmount("50.000") -> 0, ErrInvalidAmount
//	ParseAmount("0")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// FormatNumber renders n with Indonesian digit grouping, e.g. 1250000 -> "1.250.000".
func FormatNumber(n int64) string {
	printerOnce.Do(func() {
		idPrinter = message.NewPrinter(language.Indonesian)
	})
	return idPrinter.Sprintf("%d", n)
}

// FormatRupiah renders n as a rupiah amount, e.g. 150000 -> "Rp 150.000".
func FormatRupiah(n int64) string {
	return "Rp " + FormatNumber(n)
}
