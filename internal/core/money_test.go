package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 1, true},
		{"50000", 50000, true},
		{" 150000 ", 150000, true},
		{"007", 7, true},
		{"0", 0, false},
		{"-5", 0, false},
		{"+5", 0, false},
		{"1.5", 0, false},
		{"50.000", 0, false},
		{"50,000", 0, false},
		{"1e3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"99999999999999999999", 0, false}, // overflow
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error, got %d", tc.in, got)
			}
		}
	}
}

func TestFormatRupiah(t *testing.T) {
	cases := map[int64]string{
		0:       "Rp 0",
		500:     "Rp 500",
		1000:    "Rp 1.000",
		150000:  "Rp 150.000",
		850000:  "Rp 850.000",
		1250000: "Rp 1.250.000",
	}
	for in, want := range cases {
		if got := FormatRupiah(in); got != want {
			t.Errorf("FormatRupiah(%d) = %q, want %q", in, got, want)
		}
	}
}
