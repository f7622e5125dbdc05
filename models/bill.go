package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Bill is raised for an invoiced sibling group once every non-terminal line
// in the group is ready to pay. Reference is "{project}_{po}_{detail}".
type Bill struct {
	ID              int        `gorm:"primary_key" json:"id"`
	ProjectNumber   int        `gorm:"uniqueIndex:idx_bill_natural;not null" json:"project_number"`
	PONumber        int        `gorm:"uniqueIndex:idx_bill_natural;not null" json:"po_number"`
	DetailNumber    int        `gorm:"uniqueIndex:idx_bill_natural;not null" json:"detail_number"`
	Reference       string     `gorm:"size:100;index" json:"reference"`
	State           BillState  `gorm:"size:45;default:DRAFT" json:"state"`
	ContactID       *int       `gorm:"index" json:"contact_id"`
	TransactionDate *time.Time `json:"transaction_date"`
	DueDate         *time.Time `json:"due_date"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func BillReference(projectNumber, poNumber, detailNumber int) string {
	return fmt.Sprintf("%d_%d_%d", projectNumber, poNumber, detailNumber)
}

func (b *Bill) NaturalKey() []Filter {
	return []Filter{
		{Column: "project_number", Value: b.ProjectNumber},
		{Column: "po_number", Value: b.PONumber},
		{Column: "detail_number", Value: b.DetailNumber},
	}
}

type BillLineItem struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BillID       int             `gorm:"uniqueIndex:idx_bill_line_natural;not null" json:"bill_id"`
	LineNumber   int             `gorm:"uniqueIndex:idx_bill_line_natural;not null" json:"line_number"`
	DetailNumber int             `gorm:"not null" json:"detail_number"`
	Description  string          `gorm:"size:255" json:"description"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,8);default:1" json:"quantity"`
	UnitAmount   decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"unit_amount"`
	LineAmount   decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"line_amount"`
	AccountCode  string          `gorm:"size:45" json:"account_code"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (l *BillLineItem) NaturalKey() []Filter {
	return []Filter{
		{Column: "bill_id", Value: l.BillID},
		{Column: "line_number", Value: l.LineNumber},
	}
}
