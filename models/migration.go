package models

import (
	"log"

	"github.com/lumenpictures/budget_backend/config"
)

// MigrateTable auto-migrates every table this service owns.
func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Project{},
		&PurchaseOrder{},
		&DetailItem{},
		&Receipt{},
		&Invoice{},
		&Contact{},
		&SpendMoney{},
		&Bill{},
		&BillLineItem{},
		&BatchLog{},
		&AccountCode{},
		&TaxAccount{},
		&RecordChangeRecord{},
	)
	if err != nil {
		log.Fatalf("auto-migrate failed: %v", err)
	}
}
