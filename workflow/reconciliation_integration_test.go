package workflow

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lumenpictures/budget_backend/config"
	"github.com/lumenpictures/budget_backend/models"
	"github.com/lumenpictures/budget_backend/polog"
)

// End-to-end state machine coverage against a real database.
// Run: INTEGRATION_TESTS=1 go test ./workflow -run Reconciliation -v (requires MySQL)

func integrationDB(t *testing.T) *gorm.DB {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires MySQL)")
	}
	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	return config.GetDB()
}

func uniqueProject() int {
	return 100000 + int(time.Now().UnixNano()%1000000)
}

func seedDetailItem(t *testing.T, db *gorm.DB, project, po, detail, line int, paymentType models.PaymentType, state models.DetailItemState, subTotal string) *models.DetailItem {
	t.Helper()
	item := models.Create(context.Background(), db, &models.DetailItem{
		ProjectNumber:   project,
		PONumber:        po,
		DetailNumber:    detail,
		LineNumber:      line,
		PaymentType:     paymentType,
		State:           state,
		SubTotal:        decimal.RequireFromString(subTotal),
		TransactionDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		DueDate:         time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if item == nil {
		t.Fatal("seed detail item failed")
	}
	return item
}

func fetchState(t *testing.T, db *gorm.DB, id int) models.DetailItemState {
	t.Helper()
	item := models.Search[models.DetailItem](context.Background(), db, models.Filter{Column: "id", Value: id}).First()
	if item == nil {
		t.Fatalf("detail item %d disappeared", id)
	}
	return models.DetailItemState(models.NormalizeState(string(item.State)))
}

func TestReconciliation_InvoiceGroupMatch(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()
	project := uniqueProject()

	a := seedDetailItem(t, db, project, 10, 1, 1, models.PaymentTypeINV, models.DetailItemStatePending, "10.00")
	b := seedDetailItem(t, db, project, 10, 1, 2, models.PaymentTypeINV, models.DetailItemStatePending, "20.00")
	c := seedDetailItem(t, db, project, 10, 1, 3, models.PaymentTypeINV, models.DetailItemStatePending, "70.00")

	if created := models.Create(ctx, db, &models.Invoice{
		ProjectNumber: project, PONumber: 10, InvoiceNumber: 1,
		Total: decimal.RequireFromString("100.00"),
	}); created == nil {
		t.Fatal("seed invoice failed")
	}

	svc := NewDetailItemService(db, config.GetLogger())
	if err := svc.Evaluate(ctx, a.ID); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	// one evaluation moves the whole sibling group
	for _, id := range []int{a.ID, b.ID, c.ID} {
		if got := fetchState(t, db, id); got != models.DetailItemStateRTP {
			t.Errorf("sibling %d state = %s, want RTP", id, got)
		}
	}

	// RTP creates the bill and the triggering item's line
	bill := models.Search[models.Bill](ctx, db,
		models.Filter{Column: "project_number", Value: project},
		models.Filter{Column: "po_number", Value: 10},
		models.Filter{Column: "detail_number", Value: 1},
	).First()
	if bill == nil {
		t.Fatal("bill not created")
	}
	if want := models.BillReference(project, 10, 1); bill.Reference != want {
		t.Errorf("bill reference = %q, want %q", bill.Reference, want)
	}
}

func TestReconciliation_InvoiceGroupMismatch(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()
	project := uniqueProject()

	a := seedDetailItem(t, db, project, 11, 1, 1, models.PaymentTypeINV, models.DetailItemStatePending, "10.00")
	b := seedDetailItem(t, db, project, 11, 1, 2, models.PaymentTypeINV, models.DetailItemStatePaid, "20.00")

	if created := models.Create(ctx, db, &models.Invoice{
		ProjectNumber: project, PONumber: 11, InvoiceNumber: 1,
		Total: decimal.RequireFromString("99.00"),
	}); created == nil {
		t.Fatal("seed invoice failed")
	}

	svc := NewDetailItemService(db, config.GetLogger())
	if err := svc.Evaluate(ctx, a.ID); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if got := fetchState(t, db, a.ID); got != models.DetailItemStatePOMismatch {
		t.Errorf("non-terminal sibling state = %s, want PO MISMATCH", got)
	}
	// terminal siblings are never touched by the matcher
	if got := fetchState(t, db, b.ID); got != models.DetailItemStatePaid {
		t.Errorf("terminal sibling state = %s, want PAID", got)
	}
}

func TestReconciliation_ReceiptMatch(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()
	project := uniqueProject()

	item := seedDetailItem(t, db, project, 12, 2, 1, models.PaymentTypeCC, models.DetailItemStateSubmitted, "45.00")
	if created := models.Create(ctx, db, &models.Receipt{
		ProjectNumber: project, PONumber: 12, DetailNumber: 2, LineNumber: 1,
		Total: decimal.RequireFromString("45.00"), Status: models.ReceiptStatusPending,
	}); created == nil {
		t.Fatal("seed receipt failed")
	}

	svc := NewDetailItemService(db, config.GetLogger())
	if err := svc.Evaluate(ctx, item.ID); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if got := fetchState(t, db, item.ID); got != models.DetailItemStateReviewed {
		t.Errorf("state = %s, want REVIEWED", got)
	}

	spend := models.Search[models.SpendMoney](ctx, db,
		models.Filter{Column: "project_number", Value: project},
		models.Filter{Column: "po_number", Value: 12},
		models.Filter{Column: "detail_number", Value: 2},
		models.Filter{Column: "line_number", Value: 1},
	).First()
	if spend == nil {
		t.Fatal("spend money not created")
	}
	if models.NormalizeState(string(spend.State)) != string(models.SpendMoneyStateAuthorized) {
		t.Errorf("spend money state = %s, want AUTHORIZED", spend.State)
	}
}

func TestReconciliation_OverdueEscalation(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()
	project := uniqueProject()

	item := seedDetailItem(t, db, project, 13, 3, 1, models.PaymentTypePC, models.DetailItemStateSubmitted, "12.25")
	// receipt mismatch makes it PO MISMATCH; the stale due date then
	// escalates to OVERDUE in the same evaluation
	models.UpdateFields[models.DetailItem](ctx, db, item.ID, map[string]interface{}{
		"due_date": time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if created := models.Create(ctx, db, &models.Receipt{
		ProjectNumber: project, PONumber: 13, DetailNumber: 3, LineNumber: 1,
		Total: decimal.RequireFromString("99.99"), Status: models.ReceiptStatusPending,
	}); created == nil {
		t.Fatal("seed receipt failed")
	}

	svc := NewDetailItemService(db, config.GetLogger())
	if err := svc.Evaluate(ctx, item.ID); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if got := fetchState(t, db, item.ID); got != models.DetailItemStateOverdue {
		t.Errorf("state = %s, want OVERDUE", got)
	}
}

func TestReconciliation_TerminalAmountAudit(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()
	project := uniqueProject()

	item := seedDetailItem(t, db, project, 15, 4, 1, models.PaymentTypeCC, models.DetailItemStatePaid, "100.00")
	// downstream record drifted by a tenth of a cent past the tolerance
	if created := models.Create(ctx, db, &models.SpendMoney{
		ProjectNumber: project, PONumber: 15, DetailNumber: 4, LineNumber: 1,
		State:  models.SpendMoneyStateAuthorized,
		Amount: decimal.RequireFromString("100.001"),
	}); created == nil {
		t.Fatal("seed spend money failed")
	}

	svc := NewDetailItemService(db, config.GetLogger())
	if err := svc.Evaluate(ctx, item.ID); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if got := fetchState(t, db, item.ID); got != models.DetailItemStateIssue {
		t.Errorf("state = %s, want ISSUE", got)
	}
}

func TestReconciliation_TerminalAmountAuditExactMatchKeepsState(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()
	project := uniqueProject()

	item := seedDetailItem(t, db, project, 16, 4, 1, models.PaymentTypeCC, models.DetailItemStatePaid, "100.00")
	if created := models.Create(ctx, db, &models.SpendMoney{
		ProjectNumber: project, PONumber: 16, DetailNumber: 4, LineNumber: 1,
		State:  models.SpendMoneyStateAuthorized,
		Amount: decimal.RequireFromString("100.00"),
	}); created == nil {
		t.Fatal("seed spend money failed")
	}

	svc := NewDetailItemService(db, config.GetLogger())
	if err := svc.Evaluate(ctx, item.ID); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if got := fetchState(t, db, item.ID); got != models.DetailItemStatePaid {
		t.Errorf("state = %s, want PAID", got)
	}
}

func TestReconciliation_IngestIsIdempotent(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()
	project := uniqueProject()

	result := &polog.Result{
		ProjectNumber: project,
		MainItems: []*polog.MainItem{{
			ProjectNumber: project, PONumber: 21,
			VendorName: "Acme Rentals", POType: models.PaymentTypeINV,
		}},
		DetailLines: []*polog.DetailLine{{
			ProjectNumber: project, PONumber: 21, DetailNumber: 1, LineNumber: 1,
			VendorName: "Acme Rentals", PaymentType: models.PaymentTypeINV,
			State:           models.DetailItemStatePending,
			TransactionDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			DueDate:         time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
			SubTotal:        decimal.RequireFromString("10.00"),
		}},
		Contacts: []*polog.ContactStub{{Name: "Acme Rentals", ProjectNumber: project, PONumber: 21}},
	}

	svc := NewBatchService(db, config.GetLogger())
	if err := svc.Ingest(ctx, result, "PO_LOG_TEST.txt"); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	outboxCount := func() int {
		return len(models.Search[models.RecordChangeRecord](ctx, db,
			models.Filter{Column: "project_number", Value: project}).All())
	}
	afterFirst := outboxCount()
	if afterFirst == 0 {
		t.Fatal("first ingest published nothing")
	}

	// the same file again must neither duplicate rows nor publish anything
	if err := svc.Ingest(ctx, result, "PO_LOG_TEST.txt"); err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	items := models.Search[models.DetailItem](ctx, db,
		models.Filter{Column: "project_number", Value: project}).All()
	if len(items) != 1 {
		t.Errorf("detail item count = %d, want 1", len(items))
	}
	if got := outboxCount(); got != afterFirst {
		t.Errorf("outbox count after re-ingest = %d, want %d", got, afterFirst)
	}
}

func TestReconciliation_BatchGatePartialSkip(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()
	project := uniqueProject()

	if created := models.Create(ctx, db, &models.BatchLog{
		ProjectNumber: project,
		Status:        models.BatchStatusStarted,
		StartedAt:     time.Now().UTC(),
	}); created == nil {
		t.Fatal("seed batch log failed")
	}

	item := seedDetailItem(t, db, project, 14, 1, 1, models.PaymentTypeINV, models.DetailItemStatePending, "10.00")
	if created := models.Create(ctx, db, &models.Invoice{
		ProjectNumber: project, PONumber: 14, InvoiceNumber: 1,
		Total: decimal.RequireFromString("10.00"),
	}); created == nil {
		t.Fatal("seed invoice failed")
	}

	svc := NewDetailItemService(db, config.GetLogger())
	if err := svc.Evaluate(ctx, item.ID); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	// STARTED batch: the evaluation must do no work at all
	if got := fetchState(t, db, item.ID); got != models.DetailItemStatePending {
		t.Errorf("state = %s, want PENDING (gated)", got)
	}
}
