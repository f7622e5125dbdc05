package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizePaymentType(t *testing.T) {
	cases := []struct {
		raw  string
		want PaymentType
	}{
		{"CRD", PaymentTypeCC},
		{"crd", PaymentTypeCC},
		{" CC ", PaymentTypeCC},
		{"PC", PaymentTypePC},
		{"PROJ", PaymentTypePROJ},
		{"INV", PaymentTypeINV},
		{"ACH", PaymentTypeINV},
		{"", PaymentTypeINV},
	}
	for _, c := range cases {
		if got := NormalizePaymentType(c.raw); got != c.want {
			t.Errorf("NormalizePaymentType(%q) = %s, want %s", c.raw, got, c.want)
		}
	}
}

func TestDetailItemStateIsTerminal(t *testing.T) {
	terminal := []DetailItemState{"PAID", "paid", "RECONCILED", "AUTHORIZED", "APPROVED", " Approved "}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%q should be terminal", s)
		}
	}
	nonTerminal := []DetailItemState{"PENDING", "SUBMITTED", "REVIEWED", "RTP", "PO MISMATCH", "OVERDUE", "ISSUE", ""}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Errorf("%q should not be terminal", s)
		}
	}
}

func TestAmountsMatchEpsilonIsExclusive(t *testing.T) {
	base := decimal.RequireFromString("100.00")

	if !AmountsMatch(base, base) {
		t.Error("identical amounts should match")
	}
	if !AmountsMatch(base, decimal.RequireFromString("100.00009")) {
		t.Error("difference below epsilon should match")
	}
	// a difference of exactly 0.0001 is NOT within tolerance
	if AmountsMatch(base, decimal.RequireFromString("100.0001")) {
		t.Error("difference equal to epsilon should not match")
	}
	if AmountsMatch(base, decimal.RequireFromString("99.99")) {
		t.Error("clear mismatch should not match")
	}
	// direction must not matter
	if !AmountsMatch(decimal.RequireFromString("-5.00005"), decimal.RequireFromString("-5.0")) {
		t.Error("negative amounts within epsilon should match")
	}
}

func TestNormalizeState(t *testing.T) {
	if NormalizeState("  po mismatch ") != "PO MISMATCH" {
		t.Errorf("NormalizeState = %q", NormalizeState("  po mismatch "))
	}
}
