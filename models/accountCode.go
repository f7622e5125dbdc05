package models

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/lumenpictures/budget_backend/config"
)

// AccountCode maps a budget account code to the tax account used when the
// line is pushed to accounting.
type AccountCode struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Code         string    `gorm:"uniqueIndex;size:45;not null" json:"code"`
	BudgetMap    string    `gorm:"size:100" json:"budget_map"`
	TaxAccountID *int      `gorm:"index" json:"tax_account_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type TaxAccount struct {
	ID          int       `gorm:"primary_key" json:"id"`
	TaxCode     int       `gorm:"uniqueIndex;not null" json:"tax_code"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const taxCodeCacheTTL = 10 * time.Minute

// ResolveTaxCode returns the tax code for a budget account code, or nil when
// the account is unmapped. The full account->tax map is cached in redis since
// the batch asks for it once per line.
func ResolveTaxCode(ctx context.Context, tx *gorm.DB, accountCode string) *int {
	if accountCode == "" {
		return nil
	}

	cacheKey := "taxCodeMap"
	taxByAccount := map[string]int{}
	cached, err := config.GetRedisObject(cacheKey, &taxByAccount)
	if err != nil {
		config.LogError(config.GetLogger(), "models", "ResolveTaxCode", "redis read failed", cacheKey, err)
	}
	if !cached {
		taxByAccount = loadTaxCodeMap(ctx, tx)
		if setErr := config.SetRedisObject(cacheKey, taxByAccount, taxCodeCacheTTL); setErr != nil {
			config.LogError(config.GetLogger(), "models", "ResolveTaxCode", "redis write failed", cacheKey, setErr)
		}
	}

	if code, ok := taxByAccount[accountCode]; ok {
		return &code
	}
	return nil
}

func loadTaxCodeMap(ctx context.Context, tx *gorm.DB) map[string]int {
	logger := config.GetLogger()
	taxByAccount := map[string]int{}

	type row struct {
		Code    string
		TaxCode int
	}
	var rows []row
	err := tx.WithContext(ctx).Model(&AccountCode{}).
		Select("account_codes.code, tax_accounts.tax_code").
		Joins("JOIN tax_accounts ON tax_accounts.id = account_codes.tax_account_id").
		Scan(&rows).Error
	if err != nil {
		config.LogError(logger, "models", "loadTaxCodeMap", "query failed", nil, err)
		return taxByAccount
	}
	for _, r := range rows {
		taxByAccount[r.Code] = r.TaxCode
	}
	logger.WithField("accounts", len(taxByAccount)).Debug("loaded tax code map")
	return taxByAccount
}
