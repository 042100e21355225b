package core

import (
	"fmt"
	"time"
)

var (
	weekdaysID = [...]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}
	monthsID   = [...]string{"Januari", "Februari", "Maret", "April", "Mei", "Juni",
		"Juli", "Agustus", "September", "Oktober", "November", "Desember"}
)

// FormatLongDate renders t in the Indonesian long form, e.g. "Senin, 19 Oktober 2026".
func FormatLongDate(t time.Time) string {
	return fmt.Sprintf("%s, %d %s %d",
		weekdaysID[t.Weekday()], t.Day(), monthsID[t.Month()-1], t.Year())
}
