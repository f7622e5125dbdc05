package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpendMoney mirrors one card/petty-cash detail line into the accounting
// system. AUTHORIZED means the receipt matched; DRAFT means it needs eyes.
type SpendMoney struct {
	ID            int             `gorm:"primary_key" json:"id"`
	ProjectNumber int             `gorm:"uniqueIndex:idx_spend_money_natural;not null" json:"project_number"`
	PONumber      int             `gorm:"uniqueIndex:idx_spend_money_natural;not null" json:"po_number"`
	DetailNumber  int             `gorm:"uniqueIndex:idx_spend_money_natural;not null" json:"detail_number"`
	LineNumber    int             `gorm:"uniqueIndex:idx_spend_money_natural;not null" json:"line_number"`
	State         SpendMoneyState `gorm:"size:45;default:DRAFT" json:"state"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"amount"`
	Description   string          `gorm:"size:255" json:"description"`
	TaxCode       *int            `json:"tax_code"`
	ContactID     *int            `gorm:"index" json:"contact_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *SpendMoney) NaturalKey() []Filter {
	return []Filter{
		{Column: "project_number", Value: s.ProjectNumber},
		{Column: "po_number", Value: s.PONumber},
		{Column: "detail_number", Value: s.DetailNumber},
		{Column: "line_number", Value: s.LineNumber},
	}
}
