package workflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumenpictures/budget_backend/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBillDatesPicksEarliestAndLatest(t *testing.T) {
	siblings := []*models.DetailItem{
		{TransactionDate: day(2024, 5, 3), DueDate: day(2024, 6, 2)},
		{TransactionDate: day(2024, 5, 1), DueDate: day(2024, 6, 30)},
		{TransactionDate: day(2024, 5, 2), DueDate: day(2024, 6, 15)},
	}

	txDate, due := billDates(siblings)
	if txDate == nil || !txDate.Equal(day(2024, 5, 1)) {
		t.Errorf("transaction date = %v, want 2024-05-01", txDate)
	}
	if due == nil || !due.Equal(day(2024, 6, 30)) {
		t.Errorf("due date = %v, want 2024-06-30", due)
	}
}

func TestBillDatesIgnoresZeroDates(t *testing.T) {
	siblings := []*models.DetailItem{
		{TransactionDate: time.Time{}, DueDate: time.Time{}},
		{TransactionDate: day(2024, 5, 2), DueDate: day(2024, 6, 15)},
	}

	txDate, due := billDates(siblings)
	if txDate == nil || !txDate.Equal(day(2024, 5, 2)) {
		t.Errorf("transaction date = %v, want 2024-05-02", txDate)
	}
	if due == nil || !due.Equal(day(2024, 6, 15)) {
		t.Errorf("due date = %v, want 2024-06-15", due)
	}
}

func TestGroupSumVsInvoiceUsesSharedEpsilon(t *testing.T) {
	// the invoice match and the receipt match must use the same tolerance
	sum := decimal.RequireFromString("100.00")
	if !models.AmountsMatch(sum, decimal.RequireFromString("100.00005")) {
		t.Error("sub-epsilon invoice difference should match")
	}
	if models.AmountsMatch(sum, decimal.RequireFromString("99.00")) {
		t.Error("1.00 short should not match")
	}
}
