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

// LoadContacts resolves parsed vendor names against stored contacts. A
// candidate that fuzzy-matches an existing contact reuses it; everything else
// is created. Returns contact ids keyed by the cleaned vendor name so the PO
// load can link vendors without re-querying.
func LoadContacts(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, stubs []*polog.ContactStub) map[string]int {
	contactIDs := map[string]int{}

	existing := models.Search[models.Contact](ctx, tx).All()

	for _, stub := range stubs {
		name := strings.TrimSpace(stub.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, done := contactIDs[key]; done {
			continue
		}

		if match := models.FindContactCloseMatch(name, existing); match != nil {
			contactIDs[key] = match.ID
			continue
		}

		contact := models.Contact{Name: name}
		created := models.Create(ctx, tx, &contact, models.Filter{Column: "name", Value: name})
		if created == nil {
			// store already logged the cause; skip this vendor, keep the batch going
			continue
		}
		existing = append(existing, created)
		contactIDs[key] = created.ID

		if err := models.PublishRecordChange(ctx, tx, stub.ProjectNumber, models.KindContact, created.ID,
			[]models.Filter{{Column: "name", Value: created.Name}}, created, models.RecordChangeActionCreate); err != nil {
			config.LogError(logger, "workflow", "LoadContacts", "outbox write failed", created.ID, err)
		}
	}

	return contactIDs
}
