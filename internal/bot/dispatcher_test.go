package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"kasbot/internal/core"
	"kasbot/internal/ledger"
)

type postCall struct {
	amount int64
	note   string
}

type stubLedger struct {
	snap    core.LedgerSnapshot
	snapErr error
	res     core.MutationResult
	postErr error

	fetches  int
	incomes  []postCall
	expenses []postCall
}

func (s *stubLedger) FetchSnapshot(ctx context.Context) (core.LedgerSnapshot, error) {
	s.fetches++
	return s.snap, s.snapErr
}

func (s *stubLedger) PostIncome(ctx context.Context, amount int64, note string) (core.MutationResult, error) {
	s.incomes = append(s.incomes, postCall{amount, note})
	return s.res, s.postErr
}

func (s *stubLedger) PostExpense(ctx context.Context, amount int64, note string) (core.MutationResult, error) {
	s.expenses = append(s.expenses, postCall{amount, note})
	return s.res, s.postErr
}

func (s *stubLedger) calls() int {
	return s.fetches + len(s.incomes) + len(s.expenses)
}

var wib = time.FixedZone("WIB", 7*60*60)

func newTestDispatcher(l LedgerService) *Dispatcher {
	return NewDispatcher(l, Options{
		DashboardURL: "https://kas.example.com",
		Location:     wib,
		// 20:00 UTC on the 18th is already the 19th in Jakarta.
		Now: func() time.Time { return time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC) },
	})
}

func TestCheckBalance(t *testing.T) {
	l := &stubLedger{snap: core.LedgerSnapshot{Income: 1000000, Expense: 150000, Balance: 850000}}
	d := newTestDispatcher(l)

	text, ok := d.Handle(context.Background(), core.Parse("!cekkas"))
	if !ok {
		t.Fatalf("expected a reply")
	}
	for _, want := range []string{
		"*KAS BADMINTON*",
		"Update kas, Senin, 19 Oktober 2026",
		"Pemasukkan: Rp 1.000.000",
		"Pengeluaran: Rp 150.000",
		"Sisa kas: Rp 850.000",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("reply missing %q:\n%s", want, text)
		}
	}
}

func TestCheckBalanceFailures(t *testing.T) {
	cases := map[string]error{
		"network": &ledger.NetworkError{Op: "fetch snapshot", Err: errors.New("dial tcp: connection refused")},
		"decode":  &ledger.DecodeError{Op: "fetch snapshot", Status: 502, Err: errors.New("invalid character '<'")},
	}
	for name, err := range cases {
		t.Run(name, func(t *testing.T) {
			l := &stubLedger{snapErr: err}
			d := newTestDispatcher(l)

			r := d.Dispatch(context.Background(), core.CheckBalance())
			if r.Text != msgBalanceFailed {
				t.Fatalf("expected apology, got %q", r.Text)
			}
			if r.Outcome != OutcomeFailed || !errors.Is(r.Err, err) {
				t.Fatalf("unexpected reply: %+v", r)
			}
			if l.fetches != 1 {
				t.Fatalf("expected a single attempt, got %d", l.fetches)
			}
		})
	}
}

func TestAddExpense(t *testing.T) {
	l := &stubLedger{res: core.MutationResult{OK: true, Balance: 850000}}
	d := newTestDispatcher(l)

	r := d.Dispatch(context.Background(), core.AddExpense(150000, "sewa lapangan"))
	if r.Outcome != OutcomeOK || r.Mutation == nil || r.Mutation.Balance != 850000 {
		t.Fatalf("unexpected reply: %+v", r)
	}
	for _, want := range []string{"Pengeluaran Berhasil", "Jumlah: Rp 150.000", "Keterangan: sewa lapangan", "Saldo baru: Rp 850.000"} {
		if !strings.Contains(r.Text, want) {
			t.Errorf("reply missing %q:\n%s", want, r.Text)
		}
	}
	if len(l.expenses) != 1 || l.expenses[0] != (postCall{150000, "sewa lapangan"}) {
		t.Fatalf("unexpected expense calls: %+v", l.expenses)
	}
	if len(l.incomes) != 0 {
		t.Fatalf("income endpoint must not be called")
	}
}

func TestAddIncome(t *testing.T) {
	l := &stubLedger{res: core.MutationResult{OK: true, Balance: 1050000}}
	d := newTestDispatcher(l)

	text, ok := d.Handle(context.Background(), core.Parse("!tambah 50000 iuran mingguan"))
	if !ok {
		t.Fatalf("expected a reply")
	}
	for _, want := range []string{"Pemasukan Berhasil", "Jumlah: Rp 50.000", "Keterangan: iuran mingguan", "Saldo baru: Rp 1.050.000"} {
		if !strings.Contains(text, want) {
			t.Errorf("reply missing %q:\n%s", want, text)
		}
	}
}

func TestMutationRejectedEchoesError(t *testing.T) {
	l := &stubLedger{res: core.MutationResult{OK: false, Error: "Saldo tidak mencukupi"}}
	d := newTestDispatcher(l)

	r := d.Dispatch(context.Background(), core.AddExpense(9000000, "beli net"))
	if r.Text != "❌ Saldo tidak mencukupi" {
		t.Fatalf("unexpected text %q", r.Text)
	}
	if r.Outcome != OutcomeRejected || r.Mutation != nil || r.Err != nil || r.Rejection != "Saldo tidak mencukupi" {
		t.Fatalf("unexpected reply: %+v", r)
	}
}

func TestMutationTransportFailure(t *testing.T) {
	l := &stubLedger{postErr: &ledger.NetworkError{Op: "post income", Err: context.DeadlineExceeded}}
	d := newTestDispatcher(l)

	r := d.Dispatch(context.Background(), core.AddIncome(50000, "iuran"))
	if r.Text != msgIncomeFailed || r.Outcome != OutcomeFailed {
		t.Fatalf("unexpected reply: %+v", r)
	}

	r = d.Dispatch(context.Background(), core.AddExpense(50000, "kok"))
	if r.Text != msgExpenseFailed || r.Outcome != OutcomeFailed {
		t.Fatalf("unexpected reply: %+v", r)
	}
}

func TestListHistory(t *testing.T) {
	var snap core.LedgerSnapshot
	for i := 1; i <= 7; i++ {
		kind := core.Income
		if i%2 == 0 {
			kind = core.Expense
		}
		snap.Transactions = append(snap.Transactions, core.Transaction{
			Kind:   kind,
			Amount: int64(i) * 10000,
			Note:   fmt.Sprintf("catatan-%d", i),
			Date:   fmt.Sprintf("0%d/10/2026", i),
		})
	}
	snap.Balance = 40000
	d := newTestDispatcher(&stubLedger{snap: snap})

	text, ok := d.Handle(context.Background(), core.ListHistory())
	if !ok {
		t.Fatalf("expected a reply")
	}

	for _, gone := range []string{"catatan-1\n", "catatan-2\n"} {
		if strings.Contains(text, gone) {
			t.Fatalf("oldest transactions must be left out, found %q in:\n%s", gone, text)
		}
	}
	last := -1
	for _, i := range []int{7, 6, 5, 4, 3} {
		idx := strings.Index(text, fmt.Sprintf("📋 catatan-%d\n", i))
		if idx < 0 {
			t.Fatalf("missing transaction %d:\n%s", i, text)
		}
		if idx < last {
			t.Fatalf("transaction %d out of order:\n%s", i, text)
		}
		last = idx
	}
	if got := strings.Count(text, "📋 "); got != 5 {
		t.Fatalf("expected 5 entries, got %d", got)
	}
	for _, want := range []string{
		"💹 *MASUK* - Rp 70.000",
		"💸 *KELUAR* - Rp 60.000",
		"📅 07/10/2026",
		"💰 *Saldo Akhir: Rp 40.000*",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("reply missing %q:\n%s", want, text)
		}
	}
}

func TestListHistoryEmpty(t *testing.T) {
	d := newTestDispatcher(&stubLedger{})

	text, ok := d.Handle(context.Background(), core.ListHistory())
	if !ok || text != msgHistoryEmpty {
		t.Fatalf("unexpected reply %q", text)
	}
}

func TestListHistoryFailure(t *testing.T) {
	d := newTestDispatcher(&stubLedger{snapErr: &ledger.DecodeError{Op: "fetch snapshot", Err: errors.New("eof")}})

	text, ok := d.Handle(context.Background(), core.ListHistory())
	if !ok || text != msgHistoryFailed {
		t.Fatalf("unexpected reply %q", text)
	}
}

func TestHelp(t *testing.T) {
	l := &stubLedger{}
	d := newTestDispatcher(l)

	for _, in := range []string{"!help", "!menu"} {
		text, ok := d.Handle(context.Background(), core.Parse(in))
		if !ok {
			t.Fatalf("%s: expected a reply", in)
		}
		for _, want := range []string{"!cekkas", "!tambah [nominal] [keterangan]", "!keluar [nominal] [keterangan]", "!riwayat", "!help", "https://kas.example.com"} {
			if !strings.Contains(text, want) {
				t.Errorf("%s: help missing %q", in, want)
			}
		}
	}
	if l.calls() != 0 {
		t.Fatalf("help must not call the ledger")
	}
}

func TestUnrecognizedIsSilent(t *testing.T) {
	l := &stubLedger{}
	d := newTestDispatcher(l)

	for _, in := range []string{"random text", "halo semua", "!unknown", ""} {
		if text, ok := d.Handle(context.Background(), core.Parse(in)); ok || text != "" {
			t.Fatalf("%q: expected no reply, got %q", in, text)
		}
	}
	if l.calls() != 0 {
		t.Fatalf("ignored messages must not call the ledger")
	}
}

func TestBadFormatGetsHint(t *testing.T) {
	l := &stubLedger{}
	d := newTestDispatcher(l)

	cases := map[string]string{
		"!tambah abc catatan": formatIncome,
		"!tambah 0 catatan":   formatIncome,
		"!tambah 5000":        formatIncome,
		"!keluar 1,5 kok":     formatExpense,
	}
	for in, want := range cases {
		r := d.Dispatch(context.Background(), core.Parse(in))
		if r.Text != want || r.Outcome != OutcomeBadFormat {
			t.Fatalf("%q: unexpected reply %+v", in, r)
		}
	}
	if l.calls() != 0 {
		t.Fatalf("malformed commands must never reach the network, got %d calls", l.calls())
	}
}

func TestCustomTitleAndHistorySize(t *testing.T) {
	snap := core.LedgerSnapshot{Transactions: []core.Transaction{
		{Kind: core.Income, Amount: 1, Note: "a"},
		{Kind: core.Income, Amount: 2, Note: "b"},
		{Kind: core.Income, Amount: 3, Note: "c"},
	}}
	d := NewDispatcher(&stubLedger{snap: snap}, Options{Title: "KAS FUTSAL", HistorySize: 2})

	text, _ := d.Handle(context.Background(), core.ListHistory())
	if strings.Count(text, "📋 ") != 2 || !strings.Contains(text, "(2 terakhir)") {
		t.Fatalf("unexpected history:\n%s", text)
	}
	help, _ := d.Handle(context.Background(), core.Help())
	if !strings.Contains(help, "KAS FUTSAL BOT") {
		t.Fatalf("unexpected help title:\n%s", help)
	}
}
