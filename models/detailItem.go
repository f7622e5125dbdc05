package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DetailItem is one line of spend under a purchase order. The four-part
// natural key (project, PO, detail, line) is what every other record in the
// reconciliation flow hangs off.
type DetailItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	ProjectNumber   int             `gorm:"uniqueIndex:idx_detail_natural;not null" json:"project_number"`
	PONumber        int             `gorm:"uniqueIndex:idx_detail_natural;not null" json:"po_number"`
	DetailNumber    int             `gorm:"uniqueIndex:idx_detail_natural;not null" json:"detail_number"`
	LineNumber      int             `gorm:"uniqueIndex:idx_detail_natural;not null" json:"line_number"`
	VendorName      string          `gorm:"size:255" json:"vendor_name"`
	PaymentType     PaymentType     `gorm:"size:10;default:INV" json:"payment_type"`
	State           DetailItemState `gorm:"size:45;default:PENDING" json:"state"`
	Description     string          `gorm:"size:255" json:"description"`
	AccountCode     string          `gorm:"size:45" json:"account_code"`
	TransactionDate time.Time       `json:"transaction_date"`
	DueDate         time.Time       `json:"due_date"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,8);default:1" json:"quantity"`
	Rate            decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"rate"`
	OT              decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"ot"`
	Fringes         decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"fringes"`
	SubTotal        decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"sub_total"`
	ReceiptID       *int            `gorm:"index" json:"receipt_id"`
	SpendMoneyID    *int            `gorm:"index" json:"spend_money_id"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (d *DetailItem) NaturalKey() []Filter {
	return []Filter{
		{Column: "project_number", Value: d.ProjectNumber},
		{Column: "po_number", Value: d.PONumber},
		{Column: "detail_number", Value: d.DetailNumber},
		{Column: "line_number", Value: d.LineNumber},
	}
}

// SiblingKey selects every line sharing this item's (project, PO, detail)
// triple, the unit the invoice-sum match runs over.
func (d *DetailItem) SiblingKey() []Filter {
	return []Filter{
		{Column: "project_number", Value: d.ProjectNumber},
		{Column: "po_number", Value: d.PONumber},
		{Column: "detail_number", Value: d.DetailNumber},
	}
}
