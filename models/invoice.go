package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice covers a whole sibling group: its invoice_number is the group's
// detail number.
type Invoice struct {
	ID              int             `gorm:"primary_key" json:"id"`
	ProjectNumber   int             `gorm:"uniqueIndex:idx_invoice_natural;not null" json:"project_number"`
	PONumber        int             `gorm:"uniqueIndex:idx_invoice_natural;not null" json:"po_number"`
	InvoiceNumber   int             `gorm:"uniqueIndex:idx_invoice_natural;not null" json:"invoice_number"`
	Total           decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"total"`
	Status          InvoiceStatus   `gorm:"size:45;default:PENDING" json:"status"`
	TransactionDate *time.Time      `json:"transaction_date"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Invoice) NaturalKey() []Filter {
	return []Filter{
		{Column: "project_number", Value: i.ProjectNumber},
		{Column: "po_number", Value: i.PONumber},
		{Column: "invoice_number", Value: i.InvoiceNumber},
	}
}
