package workflow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lumenpictures/budget_backend/models"
)

// ResetStaleBatches clears batch rows stuck at STARTED for longer than
// maxAge. A crashed ingestion leaves the gate up forever and every trigger
// for that project silently skips; this is the watchdog that lowers it.
// Returns the number of rows reset.
func ResetStaleBatches(ctx context.Context, db *gorm.DB, logger *logrus.Logger, maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	var stale []*models.BatchLog
	err := db.WithContext(ctx).Model(&models.BatchLog{}).
		Where("status = ?", string(models.BatchStatusStarted)).
		Where("started_at <= ?", cutoff).
		Find(&stale).Error
	if err != nil {
		logger.WithField("cutoff", cutoff).Error("stale batch query failed: " + err.Error())
		return 0
	}

	reset := 0
	for _, batch := range stale {
		now := time.Now().UTC()
		updated := models.UpdateFields[models.BatchLog](ctx, db, batch.ID, map[string]interface{}{
			"status":       string(models.BatchStatusCompleted),
			"completed_at": now,
		})
		if updated == nil {
			continue
		}
		reset++
		logger.WithFields(logrus.Fields{
			"project":    batch.ProjectNumber,
			"filename":   batch.Filename,
			"started_at": batch.StartedAt,
		}).Warn("reset batch stuck at STARTED; data from that run may be partial")
	}
	return reset
}
