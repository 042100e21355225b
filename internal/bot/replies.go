package bot

import (
	"fmt"
	"strings"
	"time"

	"kasbot/internal/core"
)

// Fixed reply texts.
const (
	msgBalanceFailed = "❌ Gagal mengambil data kas. Coba lagi nanti."
	msgIncomeFailed  = "❌ Gagal menambah pemasukan. Coba lagi nanti."
	msgExpenseFailed = "❌ Gagal menambah pengeluaran. Coba lagi nanti."
	msgHistoryFailed = "❌ Gagal mengambil riwayat transaksi."
	msgHistoryEmpty  = "📝 Belum ada transaksi"

	formatIncome  = "❌ Format: !tambah [nominal] [keterangan]\nContoh: !tambah 50000 iuran mingguan"
	formatExpense = "❌ Format: !keluar [nominal] [keterangan]\nContoh: !keluar 150000 sewa lapangan"
)

func balanceReply(title string, now time.Time, snap core.LedgerSnapshot) string {
	return fmt.Sprintf(`Assalamualaikum

🏸 *%s* 🏸
Update kas, %s

Pemasukkan: %s
Pengeluaran: %s
Sisa kas: %s

Terima kasih,
SEMANGAT TERUSSS!! 💪🏸`,
		title,
		core.FormatLongDate(now),
		core.FormatRupiah(snap.Income),
		core.FormatRupiah(snap.Expense),
		core.FormatRupiah(snap.Balance))
}

func incomeReply(amount int64, note string, balance int64) string {
	return fmt.Sprintf(`✅ *Pemasukan Berhasil*

Jumlah: %s
Keterangan: %s
Saldo baru: %s

Terima kasih! 🏸`, core.FormatRupiah(amount), note, core.FormatRupiah(balance))
}

func expenseReply(amount int64, note string, balance int64) string {
	return fmt.Sprintf(`✅ *Pengeluaran Berhasil*

Jumlah: %s
Keterangan: %s
Saldo baru: %s

Tetap hemat! 💰🏸`, core.FormatRupiah(amount), note, core.FormatRupiah(balance))
}

func rejectionReply(res core.MutationResult) string {
	return "❌ " + res.RejectionText()
}

func historyReply(snap core.LedgerSnapshot, size int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📝 *RIWAYAT TRANSAKSI* (%d terakhir)\n\n", size)
	for _, t := range snap.Recent(size) {
		fmt.Fprintf(&b, "%s *%s* - %s\n", t.Kind.Emoji(), t.Kind.Label(), core.FormatRupiah(t.Amount))
		fmt.Fprintf(&b, "📋 %s\n", t.Note)
		fmt.Fprintf(&b, "📅 %s\n\n", t.Date)
	}
	fmt.Fprintf(&b, "💰 *Saldo Akhir: %s*", core.FormatRupiah(snap.Balance))
	return b.String()
}

func helpReply(title, dashboardURL string) string {
	return fmt.Sprintf(`🏸 *%s BOT* 🏸

*Perintah WhatsApp:*
!cekkas - Cek saldo kas lengkap
!tambah [nominal] [keterangan] - Tambah pemasukan
!keluar [nominal] [keterangan] - Tambah pengeluaran
!riwayat - Lihat riwayat transaksi
!help - Bantuan

*Contoh penggunaan:*
!tambah 50000 iuran anggota
!keluar 120000 beli shuttlecock
!cekkas

*Web Dashboard:*
%s

_Semangat olahraga! 🏸_`, title, dashboardURL)
}

func formatHint(original string) string {
	if original == "keluar" {
		return formatExpense
	}
	return formatIncome
}
