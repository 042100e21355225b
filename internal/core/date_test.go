package core

import (
	"testing"
	"time"
)

func TestFormatLongDate(t *testing.T) {
	cases := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC), "Senin, 19 Oktober 2026"},
		{time.Date(2025, 1, 5, 23, 59, 0, 0, time.UTC), "Minggu, 5 Januari 2025"},
		{time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), "Kamis, 29 Februari 2024"},
		{time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC), "Jumat, 1 Agustus 2025"},
	}
	for _, tc := range cases {
		if got := FormatLongDate(tc.in); got != tc.want {
			t.Errorf("FormatLongDate(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
