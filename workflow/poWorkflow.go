package workflow

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lumenpictures/budget_backend/config"
	"github.com/lumenpictures/budget_backend/models"
	"github.com/lumenpictures/budget_backend/polog"
)

// LoadPurchaseOrders upserts the parsed main items. contactIDs comes from
// LoadContacts and links vendors without another lookup round-trip.
func LoadPurchaseOrders(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, projectNumber int, mains []*polog.MainItem, contactIDs map[string]int) {
	project := models.FindOrCreateProject(ctx, tx, projectNumber)
	if project == nil {
		config.LogError(logger, "workflow", "LoadPurchaseOrders", "project row unavailable", projectNumber, gorm.ErrRecordNotFound)
		return
	}

	for _, main := range mains {
		var contactID *int
		if id, ok := contactIDs[strings.ToLower(strings.TrimSpace(main.VendorName))]; ok {
			contactID = &id
		}

		po := models.PurchaseOrder{
			ProjectID:     project.ID,
			ProjectNumber: main.ProjectNumber,
			PONumber:      main.PONumber,
			Description:   main.Description,
			POType:        main.POType,
			ContactID:     contactID,
			VendorName:    main.VendorName,
			Amount:        main.Amount,
		}
		lookup := po.NaturalKey()

		existing := models.Search[models.PurchaseOrder](ctx, tx, lookup...).First()
		if existing == nil {
			created := models.Create(ctx, tx, &po, lookup...)
			if created == nil {
				continue
			}
			publishChange(ctx, tx, logger, main.ProjectNumber, models.KindPurchaseOrder, created.ID, lookup, created, models.RecordChangeActionCreate)
			continue
		}

		candidate := map[string]interface{}{
			"description": main.Description,
			"po_type":     main.POType,
			"vendor_name": main.VendorName,
			"amount":      main.Amount,
		}
		if contactID != nil {
			candidate["contact_id"] = *contactID
		}
		if !models.HasChanges[models.PurchaseOrder](ctx, tx, existing.ID, nil, candidate) {
			continue
		}
		updated := models.UpdateFields[models.PurchaseOrder](ctx, tx, existing.ID, candidate, lookup...)
		if updated == nil {
			continue
		}
		publishChange(ctx, tx, logger, main.ProjectNumber, models.KindPurchaseOrder, updated.ID, lookup, updated, models.RecordChangeActionUpdate)
	}
}

func publishChange(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, projectNumber int, kind models.RecordKind, refId int, key []models.Filter, snapshot interface{}, action models.RecordChangeAction) {
	if err := models.PublishRecordChange(ctx, tx, projectNumber, kind, refId, key, snapshot, action); err != nil {
		config.LogError(logger, "workflow", "publishChange", "outbox write failed", refId, err)
	}
}
