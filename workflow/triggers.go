package workflow

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lumenpictures/budget_backend/models"
)

// TriggerService routes inbound record events (receipts and invoices landing
// from collaborator systems) to the detail items they affect. The batch gate
// and group lock live inside Evaluate, so routing stays dumb.
type TriggerService struct {
	DB          *gorm.DB
	Logger      *logrus.Logger
	DetailItems *DetailItemService
}

func NewTriggerService(db *gorm.DB, logger *logrus.Logger) *TriggerService {
	return &TriggerService{DB: db, Logger: logger, DetailItems: NewDetailItemService(db, logger)}
}

// HandleReceiptEvent re-evaluates the detail line a receipt attaches to.
func (t *TriggerService) HandleReceiptEvent(ctx context.Context, receiptID int) error {
	receipt := models.Search[models.Receipt](ctx, t.DB, models.Filter{Column: "id", Value: receiptID}).First()
	if receipt == nil {
		t.Logger.WithField("receipt_id", receiptID).Warn("receipt event for unknown receipt")
		return nil
	}

	item := models.Search[models.DetailItem](ctx, t.DB, receipt.NaturalKey()...).First()
	if item == nil {
		// the receipt arrived before its line; the line's own create
		// event will pick it up
		return nil
	}
	return t.DetailItems.Evaluate(ctx, item.ID)
}

// HandleInvoiceEvent re-evaluates the sibling group an invoice covers. One
// evaluation is enough: the group verdict lands on every sibling.
func (t *TriggerService) HandleInvoiceEvent(ctx context.Context, invoiceID int) error {
	invoice := models.Search[models.Invoice](ctx, t.DB, models.Filter{Column: "id", Value: invoiceID}).First()
	if invoice == nil {
		t.Logger.WithField("invoice_id", invoiceID).Warn("invoice event for unknown invoice")
		return nil
	}

	siblings := models.Search[models.DetailItem](ctx, t.DB,
		models.Filter{Column: "project_number", Value: invoice.ProjectNumber},
		models.Filter{Column: "po_number", Value: invoice.PONumber},
		models.Filter{Column: "detail_number", Value: invoice.InvoiceNumber},
	).All()
	if len(siblings) == 0 {
		return nil
	}
	return t.DetailItems.Evaluate(ctx, siblings[0].ID)
}

// HandleDetailItemEvent re-evaluates one detail item by id.
func (t *TriggerService) HandleDetailItemEvent(ctx context.Context, detailItemID int) error {
	return t.DetailItems.Evaluate(ctx, detailItemID)
}
