package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is the card or petty-cash proof of spend for exactly one detail
// line, keyed by the same four-part natural key.
type Receipt struct {
	ID            int             `gorm:"primary_key" json:"id"`
	ProjectNumber int             `gorm:"uniqueIndex:idx_receipt_natural;not null" json:"project_number"`
	PONumber      int             `gorm:"uniqueIndex:idx_receipt_natural;not null" json:"po_number"`
	DetailNumber  int             `gorm:"uniqueIndex:idx_receipt_natural;not null" json:"detail_number"`
	LineNumber    int             `gorm:"uniqueIndex:idx_receipt_natural;not null" json:"line_number"`
	Total         decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"total"`
	PurchaseDate  *time.Time      `json:"purchase_date"`
	Description   string          `gorm:"size:255" json:"description"`
	Status        ReceiptStatus   `gorm:"size:45;default:PENDING" json:"status"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *Receipt) NaturalKey() []Filter {
	return []Filter{
		{Column: "project_number", Value: r.ProjectNumber},
		{Column: "po_number", Value: r.PONumber},
		{Column: "detail_number", Value: r.DetailNumber},
		{Column: "line_number", Value: r.LineNumber},
	}
}
