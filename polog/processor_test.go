package polog

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/lumenpictures/budget_backend/models"
)

func testProcessor() *Processor {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	p := NewProcessor(logger)
	p.now = func() time.Time { return time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC) }
	return p
}

const sampleLog = "DATE\tTYPE\tSTATUS\tACCOUNT\tITEM\tVENDOR\tDESCRIPTION\tPO\tFACTORS\tSUBTOTAL\tFRINGES\n" +
	"05/01/24\tINV\tRTP\t0500\t1\tAcme Rentals\tCamera rental\t0042\t\t1000.00\t0\n" +
	"05/02/24\tINV\tNET30\t0500\t1\tAcme Rentals\tLights\t0042\t\t2,500.50\t0\n" +
	"05/03/24\tCRD\tVISA 1234\t0505\t2\t\tTaxi\t0042\t\t45.00\t0\n" +
	"05/04/24\tPC\tPC_0042_0003\t0510\t2\t\tGaff tape\t\t\t12.25\t0\n" +
	"05/05/24\tINV\tPAID\t0500\t2\tCrew Catering\tMeals\t0042\t12 hrs x 50 + 100 OT\t700.00\t35.50\n" +
	"\t\t\t\t\t\t\t\t\t\t\n" +
	"05/06/24\tINV\tRTP\t0500\n"

func mustParse(t *testing.T, p *Processor, content string) *Result {
	t.Helper()
	result, err := p.Parse(strings.NewReader(content), 2416)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return result
}

func TestParseSkipsHeaderBlankAndUnkeyedRows(t *testing.T) {
	result := mustParse(t, testProcessor(), sampleLog)

	// header, blank row and the short row without a po number are dropped
	if got := len(result.DetailLines); got != 5 {
		t.Fatalf("detail lines = %d, want 5", got)
	}
}

func TestParseStatusAndDueDateRules(t *testing.T) {
	result := mustParse(t, testProcessor(), sampleLog)
	lines := result.DetailLines
	today := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	// RTP invoiced: due today
	if lines[0].State != models.DetailItemStateRTP {
		t.Errorf("line 0 state = %s, want RTP", lines[0].State)
	}
	if !lines[0].DueDate.Equal(today) {
		t.Errorf("line 0 due = %s, want %s", lines[0].DueDate, today)
	}

	// NET30 invoiced: RTP, due transaction date + 30
	if lines[1].State != models.DetailItemStateRTP {
		t.Errorf("line 1 state = %s, want RTP", lines[1].State)
	}
	wantDue := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !lines[1].DueDate.Equal(wantDue) {
		t.Errorf("line 1 due = %s, want %s", lines[1].DueDate, wantDue)
	}

	// card rows: SUBMITTED, due = transaction date
	if lines[2].State != models.DetailItemStateSubmitted {
		t.Errorf("line 2 state = %s, want SUBMITTED", lines[2].State)
	}
	if !lines[2].DueDate.Equal(lines[2].TransactionDate) {
		t.Errorf("line 2 due = %s, want transaction date %s", lines[2].DueDate, lines[2].TransactionDate)
	}

	// PAID invoiced: PAID, due today
	if lines[4].State != models.DetailItemStatePaid {
		t.Errorf("line 4 state = %s, want PAID", lines[4].State)
	}
	if !lines[4].DueDate.Equal(today) {
		t.Errorf("line 4 due = %s, want %s", lines[4].DueDate, today)
	}
}

func TestDeriveStatusFallbacks(t *testing.T) {
	txDate := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	// unrecognized status on an invoiced row: PENDING, net-30 window
	state, due := deriveStatus("HOLD", models.PaymentTypeINV, txDate, today)
	if state != models.DetailItemStatePending {
		t.Errorf("state = %s, want PENDING", state)
	}
	if !due.Equal(txDate.AddDate(0, 0, 30)) {
		t.Errorf("due = %s, want %s", due, txDate.AddDate(0, 0, 30))
	}

	// NET0: RTP due immediately
	state, due = deriveStatus("NET0", models.PaymentTypePROJ, txDate, today)
	if state != models.DetailItemStateRTP || !due.Equal(txDate) {
		t.Errorf("NET0 = (%s, %s), want (RTP, %s)", state, due, txDate)
	}

	// NET14 arithmetic
	state, due = deriveStatus("NET14", models.PaymentTypeINV, txDate, today)
	if state != models.DetailItemStateRTP || !due.Equal(txDate.AddDate(0, 0, 14)) {
		t.Errorf("NET14 = (%s, %s)", state, due)
	}
}

func TestParsePaymentTypesAndContacts(t *testing.T) {
	result := mustParse(t, testProcessor(), sampleLog)
	lines := result.DetailLines

	if lines[2].PaymentType != models.PaymentTypeCC {
		t.Errorf("CRD row payment type = %s, want CC", lines[2].PaymentType)
	}
	if lines[3].PaymentType != models.PaymentTypePC {
		t.Errorf("PC row payment type = %s, want PC", lines[3].PaymentType)
	}

	var names []string
	for _, c := range result.Contacts {
		names = append(names, c.Name)
	}
	want := []string{"Acme Rentals", "Acme Rentals", "Credit Card VISA 1234", "PETTY CASH", "Crew Catering"}
	if len(names) != len(want) {
		t.Fatalf("contacts = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("contact[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestParseDetailAndLineNumbering(t *testing.T) {
	result := mustParse(t, testProcessor(), sampleLog)
	lines := result.DetailLines

	type key struct{ po, detail, line int }
	got := make([]key, len(lines))
	for i, l := range lines {
		got[i] = key{l.PONumber, l.DetailNumber, l.LineNumber}
	}
	want := []key{
		{42, 1, 1}, // first (po 42, detail 1)
		{42, 1, 2}, // line auto-increments within the pair
		{42, 2, 1},
		{1, 3, 2},  // PC: po forced to 1, detail from envelope, line from item id
		{42, 2, 2}, // continues the (42, 2) counter
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d numbering = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseFactors(t *testing.T) {
	result := mustParse(t, testProcessor(), sampleLog)
	meals := result.DetailLines[4]

	if !meals.Quantity.Equal(decimal.NewFromInt(12)) {
		t.Errorf("quantity = %s, want 12", meals.Quantity)
	}
	if !meals.Rate.Equal(decimal.NewFromInt(50)) {
		t.Errorf("rate = %s, want 50", meals.Rate)
	}
	if !meals.OT.Equal(decimal.NewFromInt(100)) {
		t.Errorf("ot = %s, want 100", meals.OT)
	}

	// absent factors default to quantity 1, rate = subtotal
	camera := result.DetailLines[0]
	if !camera.Quantity.Equal(decimal.NewFromInt(1)) {
		t.Errorf("default quantity = %s, want 1", camera.Quantity)
	}
	if !camera.Rate.Equal(camera.SubTotal) {
		t.Errorf("default rate = %s, want subtotal %s", camera.Rate, camera.SubTotal)
	}
	if !camera.OT.Equal(decimal.Zero) {
		t.Errorf("default ot = %s, want 0", camera.OT)
	}
}

func TestParseAmountsAndAccumulation(t *testing.T) {
	result := mustParse(t, testProcessor(), sampleLog)

	// thousands separators are stripped
	if !result.DetailLines[1].SubTotal.Equal(decimal.RequireFromString("2500.50")) {
		t.Errorf("subtotal = %s, want 2500.50", result.DetailLines[1].SubTotal)
	}

	byPO := map[int]*MainItem{}
	for _, m := range result.MainItems {
		byPO[m.PONumber] = m
	}

	// po amount is the sum of its detail subtotals
	want := decimal.RequireFromString("4245.50") // 1000 + 2500.50 + 45 + 700
	if !byPO[42].Amount.Equal(want) {
		t.Errorf("po 42 amount = %s, want %s", byPO[42].Amount, want)
	}
	if !byPO[1].Amount.Equal(decimal.RequireFromString("12.25")) {
		t.Errorf("po 1 amount = %s, want 12.25", byPO[1].Amount)
	}

	// descriptive fields come from the first row that saw the po
	if byPO[42].VendorName != "Acme Rentals" || byPO[42].Description != "Camera rental" {
		t.Errorf("po 42 defaults = %q/%q", byPO[42].VendorName, byPO[42].Description)
	}
}

func TestParseIsDeterministic(t *testing.T) {
	p := testProcessor()
	first := mustParse(t, p, sampleLog)
	second := mustParse(t, p, sampleLog)

	if len(first.DetailLines) != len(second.DetailLines) {
		t.Fatalf("line counts differ: %d vs %d", len(first.DetailLines), len(second.DetailLines))
	}
	for i := range first.DetailLines {
		a, b := first.DetailLines[i], second.DetailLines[i]
		if a.PONumber != b.PONumber || a.DetailNumber != b.DetailNumber || a.LineNumber != b.LineNumber {
			t.Errorf("line %d keys differ: %+v vs %+v", i, a, b)
		}
	}
}

func TestProjectNumberFromFilename(t *testing.T) {
	cases := []struct {
		path string
		want int
	}{
		{"PO_LOG_2416_2024-06-01_12-00-00.txt", 2416},
		{"/data/incoming/PO_LOG_0042-2024-06-01.txt", 42},
		{"notes.txt", 0},
		{"PO_LOG_.txt", 0},
	}
	for _, c := range cases {
		if got := ProjectNumberFromFilename(c.path); got != c.want {
			t.Errorf("ProjectNumberFromFilename(%q) = %d, want %d", c.path, got, c.want)
		}
	}
}
