package types

import "testing"

func TestMoneyFromDecimal(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
	}{
		{0, 0},
		{2, 200},
		{2.5, 250},
		{19.99, 1999},
		{0.1 + 0.2, 30},
		{-1.25, -125},
	}
	for _, tc := range cases {
		got, err := MoneyFromDecimal(tc.in)
		if err != nil {
			t.Fatalf("MoneyFromDecimal(%v): %v", tc.in, err)
		}
		if got.Amount != tc.want || got.Currency != DefaultCurrency {
			t.Errorf("MoneyFromDecimal(%v) = %+v, want %d %s", tc.in, got, tc.want, DefaultCurrency)
		}
	}
}

func TestMoneyString(t *testing.T) {
	if got := USD(150).String(); got != "1.50 USD" {
		t.Fatalf("got %q", got)
	}
	if got := USD(-5).String(); got != "-0.05 USD" {
		t.Fatalf("got %q", got)
	}
	if got := USD(150).Add(USD(200)); got.Amount != 350 {
		t.Fatalf("add: got %d", got.Amount)
	}
}
