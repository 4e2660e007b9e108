package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"1.234,50", 123450, true},
		{"1,2,3", 0, false},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"12.344", 1234, true},
		{"12.345", 1235, true},
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyFormat(t *testing.T) {
	cases := map[int64]string{
		0:        "0,00",
		5:        "0,05",
		123456:   "1.234,56",
		-2010:    "-20,10",
		10000000: "100.000,00",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).Format(); got != want {
			t.Fatalf("Format(%d) = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyDecimal(t *testing.T) {
	if got := (Money{Cents: 1205}).Decimal(); got != "12.05" {
		t.Fatalf("Decimal = %q", got)
	}
	if got := (Money{Cents: -7}).Decimal(); got != "-0.07" {
		t.Fatalf("Decimal = %q", got)
	}
}
