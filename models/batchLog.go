package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// BatchLog records the lifecycle of one PO-log ingestion per project. While
// a project's latest batch is STARTED the database holds partial state and
// every reconciliation trigger backs off.
type BatchLog struct {
	ID            int         `gorm:"primary_key" json:"id"`
	ProjectNumber int         `gorm:"uniqueIndex;not null" json:"project_number"`
	Status        BatchStatus `gorm:"size:45;default:STARTED" json:"status"`
	Filename      string      `gorm:"size:255" json:"filename"`
	StartedAt     time.Time   `json:"started_at"`
	CompletedAt   *time.Time  `json:"completed_at"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// BatchInProgress reports whether the project's batch row is STARTED.
func BatchInProgress(ctx context.Context, tx *gorm.DB, projectNumber int) bool {
	batch := Search[BatchLog](ctx, tx, Filter{Column: "project_number", Value: projectNumber}).First()
	if batch == nil {
		return false
	}
	return NormalizeState(string(batch.Status)) == string(BatchStatusStarted)
}
