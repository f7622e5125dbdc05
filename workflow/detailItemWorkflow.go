package workflow

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lumenpictures/budget_backend/config"
	"github.com/lumenpictures/budget_backend/models"
)

// DetailItemService runs the per-item reconciliation evaluation. Every
// trigger (item created, item updated, receipt landed, invoice landed) funnels
// into Evaluate, which is safe to re-run any number of times.
type DetailItemService struct {
	DB     *gorm.DB
	Logger *logrus.Logger

	// Now is swappable for deterministic overdue checks under test.
	Now func() time.Time
}

func NewDetailItemService(db *gorm.DB, logger *logrus.Logger) *DetailItemService {
	return &DetailItemService{DB: db, Logger: logger, Now: time.Now}
}

func (s *DetailItemService) HandleDetailItemCreated(ctx context.Context, id int) error {
	return s.Evaluate(ctx, id)
}

func (s *DetailItemService) HandleDetailItemUpdated(ctx context.Context, id int) error {
	return s.Evaluate(ctx, id)
}

// Evaluate runs the fixed evaluation order for one detail item: matching,
// bill creation, overdue escalation, terminal audit, then a single
// write-if-changed. The whole evaluation runs on one transaction so the
// sibling re-query observes this evaluation's own writes.
func (s *DetailItemService) Evaluate(ctx context.Context, id int) error {
	item := models.Search[models.DetailItem](ctx, s.DB, models.Filter{Column: "id", Value: id}).First()
	if item == nil {
		s.Logger.WithField("detail_item_id", id).Warn("evaluation triggered for unknown detail item")
		return nil
	}

	// Partial skip: while a batch is mid-flight the sibling set is
	// incomplete and any verdict would be garbage.
	if models.BatchInProgress(ctx, s.DB, item.ProjectNumber) {
		s.Logger.WithFields(logrus.Fields{
			"detail_item_id": id,
			"project":        item.ProjectNumber,
		}).Debug("batch in progress; skipping evaluation")
		return nil
	}

	lock, err := AcquireSiblingGroupLock(ctx, item.ProjectNumber, item.PONumber, item.DetailNumber)
	if err != nil {
		config.LogError(s.Logger, "workflow", "Evaluate", "sibling group lock", id, err)
		return err
	}
	defer ReleaseSiblingGroupLock(ctx, lock)

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s.evaluateInTx(ctx, tx, id)
		return nil
	})
}

func (s *DetailItemService) evaluateInTx(ctx context.Context, tx *gorm.DB, id int) {
	item := models.Search[models.DetailItem](ctx, tx, models.Filter{Column: "id", Value: id}).First()
	if item == nil {
		return
	}

	entryState := models.DetailItemState(models.NormalizeState(string(item.State)))
	state := entryState
	invoiced := item.PaymentType == models.PaymentTypeINV || item.PaymentType == models.PaymentTypePROJ

	// 1. Matching. Terminal items are never re-matched.
	if !entryState.IsTerminal() {
		if invoiced {
			state = s.matchInvoiceGroup(ctx, tx, item)
		} else {
			state = s.matchReceipt(ctx, tx, item)
		}
	}

	// 2. Bill creation for invoiced items that are ready to pay.
	if state == models.DetailItemStateRTP && invoiced {
		s.ensureBill(ctx, tx, item)
	}

	// 3. Overdue escalation.
	if (state == models.DetailItemStateReviewed || state == models.DetailItemStatePOMismatch) &&
		item.DueDate.Before(s.today()) {
		state = models.DetailItemStateOverdue
	}

	// 4. Terminal final-amount audit. A terminal item whose subtotal
	// drifted from what was actually paid downstream is flagged ISSUE.
	if entryState.IsTerminal() {
		if linked := s.linkedAmount(ctx, tx, item); linked != nil && !models.AmountsMatch(item.SubTotal, *linked) {
			state = models.DetailItemStateIssue
		}
	}

	// 5. Persist only a real transition; no-op evaluations write nothing
	// and notify nobody.
	if models.NormalizeState(string(state)) != string(entryState) {
		updated := models.UpdateFields[models.DetailItem](ctx, tx, item.ID, map[string]interface{}{"state": string(state)})
		if updated != nil {
			publishChange(ctx, tx, s.Logger, item.ProjectNumber, models.KindDetailItem, updated.ID, updated.NaturalKey(), updated, models.RecordChangeActionUpdate)
		}
	}
}

// matchReceipt compares a card/petty-cash line against its receipt and
// mirrors the verdict into a SpendMoney record.
func (s *DetailItemService) matchReceipt(ctx context.Context, tx *gorm.DB, item *models.DetailItem) models.DetailItemState {
	match := models.Search[models.Receipt](ctx, tx, item.NaturalKey()...)
	switch match.Kind {
	case models.MatchNone:
		// No receipt yet; nothing to decide.
		return models.DetailItemState(models.NormalizeState(string(item.State)))
	case models.MatchMany:
		// ambiguous natural key is an invariant violation; leave this
		// record alone until a human untangles it
		s.Logger.WithField("detail_item_id", item.ID).
			Warn("multiple receipts share one natural key; aborting evaluation")
		return models.DetailItemState(models.NormalizeState(string(item.State)))
	}
	receipt := match.First()

	state := models.DetailItemStatePOMismatch
	if models.AmountsMatch(item.SubTotal, receipt.Total) {
		state = models.DetailItemStateReviewed
	}

	s.upsertSpendMoney(ctx, tx, item, state)
	s.linkReceipt(ctx, tx, item, receipt, state)

	return state
}

func (s *DetailItemService) upsertSpendMoney(ctx context.Context, tx *gorm.DB, item *models.DetailItem, verdict models.DetailItemState) {
	target := models.SpendMoneyStateDraft
	if verdict == models.DetailItemStateReviewed {
		target = models.SpendMoneyStateAuthorized
	}

	lookup := []models.Filter{
		{Column: "project_number", Value: item.ProjectNumber},
		{Column: "po_number", Value: item.PONumber},
		{Column: "detail_number", Value: item.DetailNumber},
		{Column: "line_number", Value: item.LineNumber},
	}

	existing := models.Search[models.SpendMoney](ctx, tx, lookup...).First()
	if existing == nil {
		spend := models.SpendMoney{
			ProjectNumber: item.ProjectNumber,
			PONumber:      item.PONumber,
			DetailNumber:  item.DetailNumber,
			LineNumber:    item.LineNumber,
			State:         target,
			Amount:        item.SubTotal,
			Description:   item.Description,
			TaxCode:       models.ResolveTaxCode(ctx, tx, item.AccountCode),
		}
		created := models.Create(ctx, tx, &spend, lookup...)
		if created == nil {
			return
		}
		models.UpdateFields[models.DetailItem](ctx, tx, item.ID, map[string]interface{}{"spend_money_id": created.ID})
		item.SpendMoneyID = &created.ID
		publishChange(ctx, tx, s.Logger, item.ProjectNumber, models.KindSpendMoney, created.ID, created.NaturalKey(), created, models.RecordChangeActionCreate)
		return
	}

	candidate := map[string]interface{}{"state": string(target)}
	if !models.HasChanges[models.SpendMoney](ctx, tx, existing.ID, nil, candidate) {
		return
	}
	updated := models.UpdateFields[models.SpendMoney](ctx, tx, existing.ID, candidate)
	if updated != nil {
		publishChange(ctx, tx, s.Logger, item.ProjectNumber, models.KindSpendMoney, updated.ID, updated.NaturalKey(), updated, models.RecordChangeActionUpdate)
	}
}

func (s *DetailItemService) linkReceipt(ctx context.Context, tx *gorm.DB, item *models.DetailItem, receipt *models.Receipt, verdict models.DetailItemState) {
	if item.ReceiptID == nil || *item.ReceiptID != receipt.ID {
		models.UpdateFields[models.DetailItem](ctx, tx, item.ID, map[string]interface{}{"receipt_id": receipt.ID})
		item.ReceiptID = &receipt.ID
	}
	if verdict == models.DetailItemStateReviewed &&
		models.NormalizeState(string(receipt.Status)) == string(models.ReceiptStatusPending) {
		models.UpdateFields[models.Receipt](ctx, tx, receipt.ID, map[string]interface{}{"status": string(models.ReceiptStatusVerified)})
	}
}

// matchInvoiceGroup sums the whole sibling group and compares it against the
// group's invoice. The verdict lands on every non-terminal sibling, not just
// the triggering item.
func (s *DetailItemService) matchInvoiceGroup(ctx context.Context, tx *gorm.DB, item *models.DetailItem) models.DetailItemState {
	entryState := models.DetailItemState(models.NormalizeState(string(item.State)))

	siblings := models.Search[models.DetailItem](ctx, tx, item.SiblingKey()...).All()
	if len(siblings) == 0 {
		return entryState
	}

	groupSum := decimal.Zero
	for _, sib := range siblings {
		groupSum = groupSum.Add(sib.SubTotal)
	}

	invMatch := models.Search[models.Invoice](ctx, tx,
		models.Filter{Column: "project_number", Value: item.ProjectNumber},
		models.Filter{Column: "po_number", Value: item.PONumber},
		models.Filter{Column: "invoice_number", Value: item.DetailNumber},
	)
	if invMatch.Kind == models.MatchNone {
		return entryState
	}
	if invMatch.Kind == models.MatchMany {
		s.Logger.WithField("detail_item_id", item.ID).
			Warn("multiple invoices share one natural key; aborting evaluation")
		return entryState
	}
	invoice := invMatch.First()

	target := models.DetailItemStatePOMismatch
	if models.AmountsMatch(invoice.Total, groupSum) {
		target = models.DetailItemStateRTP
	}

	for _, sib := range siblings {
		sibState := models.DetailItemState(models.NormalizeState(string(sib.State)))
		if sibState.IsTerminal() || sibState == target {
			continue
		}
		if sib.ID == item.ID {
			// the triggering item is persisted once, in the final step
			continue
		}
		updated := models.UpdateFields[models.DetailItem](ctx, tx, sib.ID, map[string]interface{}{"state": string(target)})
		if updated != nil {
			publishChange(ctx, tx, s.Logger, sib.ProjectNumber, models.KindDetailItem, updated.ID, updated.NaturalKey(), updated, models.RecordChangeActionUpdate)
		}
	}

	if target == models.DetailItemStateRTP &&
		models.NormalizeState(string(invoice.Status)) == string(models.InvoiceStatusPending) {
		models.UpdateFields[models.Invoice](ctx, tx, invoice.ID, map[string]interface{}{"status": string(models.InvoiceStatusVerified)})
	}

	return target
}

// ensureBill find-or-creates the bill covering the item's sibling group and
// keeps the item's line on it current.
func (s *DetailItemService) ensureBill(ctx context.Context, tx *gorm.DB, item *models.DetailItem) {
	siblings := models.Search[models.DetailItem](ctx, tx, item.SiblingKey()...).All()

	lookup := []models.Filter{
		{Column: "project_number", Value: item.ProjectNumber},
		{Column: "po_number", Value: item.PONumber},
		{Column: "detail_number", Value: item.DetailNumber},
	}

	bill := models.Search[models.Bill](ctx, tx, lookup...).First()
	if bill == nil {
		transactionDate, dueDate := billDates(siblings)

		var contactID *int
		if po := models.Search[models.PurchaseOrder](ctx, tx,
			models.Filter{Column: "project_number", Value: item.ProjectNumber},
			models.Filter{Column: "po_number", Value: item.PONumber},
		).First(); po != nil {
			contactID = po.ContactID
		}

		created := models.Create(ctx, tx, &models.Bill{
			ProjectNumber:   item.ProjectNumber,
			PONumber:        item.PONumber,
			DetailNumber:    item.DetailNumber,
			Reference:       models.BillReference(item.ProjectNumber, item.PONumber, item.DetailNumber),
			State:           models.BillStateDraft,
			ContactID:       contactID,
			TransactionDate: transactionDate,
			DueDate:         dueDate,
		}, lookup...)
		if created == nil {
			return
		}
		bill = created
		publishChange(ctx, tx, s.Logger, item.ProjectNumber, models.KindBill, bill.ID, bill.NaturalKey(), bill, models.RecordChangeActionCreate)
	}

	if tax := models.ResolveTaxCode(ctx, tx, item.AccountCode); tax == nil && item.AccountCode != "" {
		s.Logger.WithFields(logrus.Fields{
			"detail_item_id": item.ID,
			"account_code":   item.AccountCode,
		}).Warn("account code has no tax mapping")
	}

	lineLookup := []models.Filter{
		{Column: "bill_id", Value: bill.ID},
		{Column: "line_number", Value: item.LineNumber},
	}
	lineFields := map[string]interface{}{
		"detail_number": item.DetailNumber,
		"description":   item.Description,
		"quantity":      decimal.NewFromInt(1),
		"unit_amount":   item.SubTotal,
		"line_amount":   item.SubTotal,
		"account_code":  item.AccountCode,
	}

	line := models.Search[models.BillLineItem](ctx, tx, lineLookup...).First()
	if line == nil {
		created := models.Create(ctx, tx, &models.BillLineItem{
			BillID:       bill.ID,
			LineNumber:   item.LineNumber,
			DetailNumber: item.DetailNumber,
			Description:  item.Description,
			Quantity:     decimal.NewFromInt(1),
			UnitAmount:   item.SubTotal,
			LineAmount:   item.SubTotal,
			AccountCode:  item.AccountCode,
		}, lineLookup...)
		if created != nil {
			publishChange(ctx, tx, s.Logger, item.ProjectNumber, models.KindBillLineItem, created.ID, created.NaturalKey(), created, models.RecordChangeActionCreate)
		}
		return
	}

	if !models.HasChanges[models.BillLineItem](ctx, tx, line.ID, nil, lineFields) {
		return
	}
	updated := models.UpdateFields[models.BillLineItem](ctx, tx, line.ID, lineFields, lineLookup...)
	if updated != nil {
		publishChange(ctx, tx, s.Logger, item.ProjectNumber, models.KindBillLineItem, updated.ID, updated.NaturalKey(), updated, models.RecordChangeActionUpdate)
	}
}

// billDates picks the bill's transaction date (earliest sibling) and due
// date (latest sibling).
func billDates(siblings []*models.DetailItem) (*time.Time, *time.Time) {
	var earliest, latest *time.Time
	for _, sib := range siblings {
		txDate := sib.TransactionDate
		due := sib.DueDate
		if !txDate.IsZero() && (earliest == nil || txDate.Before(*earliest)) {
			earliest = &txDate
		}
		if !due.IsZero() && (latest == nil || due.After(*latest)) {
			latest = &due
		}
	}
	return earliest, latest
}

// linkedAmount is what was actually recorded downstream for a terminal item:
// the bill line amount for invoiced items, the spend money amount otherwise.
func (s *DetailItemService) linkedAmount(ctx context.Context, tx *gorm.DB, item *models.DetailItem) *decimal.Decimal {
	if item.PaymentType == models.PaymentTypeINV || item.PaymentType == models.PaymentTypePROJ {
		bill := models.Search[models.Bill](ctx, tx,
			models.Filter{Column: "project_number", Value: item.ProjectNumber},
			models.Filter{Column: "po_number", Value: item.PONumber},
			models.Filter{Column: "detail_number", Value: item.DetailNumber},
		).First()
		if bill == nil {
			return nil
		}
		line := models.Search[models.BillLineItem](ctx, tx,
			models.Filter{Column: "bill_id", Value: bill.ID},
			models.Filter{Column: "line_number", Value: item.LineNumber},
		).First()
		if line == nil {
			return nil
		}
		return &line.LineAmount
	}

	spend := models.Search[models.SpendMoney](ctx, tx, item.NaturalKey()...).First()
	if spend == nil {
		return nil
	}
	return &spend.Amount
}

func (s *DetailItemService) today() time.Time {
	now := s.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
