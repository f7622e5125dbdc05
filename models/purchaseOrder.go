package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseOrder struct {
	ID            int             `gorm:"primary_key" json:"id"`
	ProjectID     int             `gorm:"index" json:"project_id"`
	ProjectNumber int             `gorm:"uniqueIndex:idx_po_project_number;not null" json:"project_number"`
	PONumber      int             `gorm:"uniqueIndex:idx_po_project_number;not null" json:"po_number"`
	Description   string          `gorm:"size:255" json:"description"`
	POType        PaymentType     `gorm:"size:10;default:INV" json:"po_type"`
	ContactID     *int            `gorm:"index" json:"contact_id"`
	VendorName    string          `gorm:"size:255" json:"vendor_name"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"amount"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// NaturalKey identifies a purchase order across ingestion runs.
func (po *PurchaseOrder) NaturalKey() []Filter {
	return []Filter{
		{Column: "project_number", Value: po.ProjectNumber},
		{Column: "po_number", Value: po.PONumber},
	}
}
