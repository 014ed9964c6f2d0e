package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPercentageChange(t *testing.T) {
	cases := []struct {
		name     string
		oldValue string
		newValue string
		want     string
	}{
		{"growth from zero", "0", "500", "100"},
		{"zero to zero", "0", "0", "0"},
		{"zero to negative", "0", "-50", "0"},
		{"simple growth", "300", "500", "66.67"},
		{"simple decline", "500", "300", "-40"},
		{"full reversal", "200", "0", "-100"},
		{"negative base", "-200", "-100", "50"},
		{"rounds to 2 places", "3", "4", "33.33"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PercentageChange(dec(tc.oldValue), dec(tc.newValue))
			if !got.Equal(dec(tc.want)) {
				t.Fatalf("PercentageChange(%s, %s) = %s, want %s", tc.oldValue, tc.newValue, got, tc.want)
			}
		})
	}
}

func TestBulkTotals(t *testing.T) {
	entries := []BulkEntry{
		{Amount: dec("100"), IsIncome: true},
		{Amount: dec("250.50"), IsIncome: true},
		{Amount: dec("75.25"), IsIncome: false},
	}
	income, expense := bulkTotals(entries)
	if !income.Equal(dec("350.50")) {
		t.Fatalf("income total = %s, want 350.50", income)
	}
	if !expense.Equal(dec("75.25")) {
		t.Fatalf("expense total = %s, want 75.25", expense)
	}
}

func TestBulkTotalsEmpty(t *testing.T) {
	income, expense := bulkTotals(nil)
	if !income.IsZero() || !expense.IsZero() {
		t.Fatalf("empty batch totals should be zero, got income=%s expense=%s", income, expense)
	}
}
