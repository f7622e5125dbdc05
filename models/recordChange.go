package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenpictures/budget_backend/appctx"
	"github.com/lumenpictures/budget_backend/config"
)

// RecordKind names the record types whose changes are synced downstream.
type RecordKind string

const (
	KindContact       RecordKind = "CONTACT"
	KindPurchaseOrder RecordKind = "PURCHASE_ORDER"
	KindDetailItem    RecordKind = "DETAIL_ITEM"
	KindSpendMoney    RecordKind = "SPEND_MONEY"
	KindBill          RecordKind = "BILL"
	KindBillLineItem  RecordKind = "BILL_LINE_ITEM"
)

type RecordChangeAction string

const (
	RecordChangeActionCreate RecordChangeAction = "C"
	RecordChangeActionUpdate RecordChangeAction = "U"
)

// Outbox publish statuses for RecordChangeRecord.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// RecordChangeRecord is the transactional-outbox row. It is written inside
// the same transaction as the record change it describes; the dispatcher
// publishes it to Pub/Sub after commit.
type RecordChangeRecord struct {
	ID            int                `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	ProjectNumber int                `gorm:"index;not null" json:"project_number"`
	OccurredAt    time.Time          `gorm:"index;not null" json:"occurred_at"`
	ReferenceId   int                `json:"reference_id"`
	ReferenceType RecordKind         `gorm:"size:45;not null" json:"reference_type"`
	Action        RecordChangeAction `gorm:"type:enum('C','U')" json:"action"`
	NaturalKey    []byte             `gorm:"type:blob" json:"natural_key"`
	NewObj        []byte             `gorm:"type:blob" json:"new_obj"`

	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`

	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PublishRecordChange writes the outbox row inside the caller's transaction
// but does NOT publish to Pub/Sub. Publishing is performed asynchronously by
// the outbox dispatcher after commit.
func PublishRecordChange(ctx context.Context, tx *gorm.DB, projectNumber int, kind RecordKind, refId int, naturalKey []Filter, snapshot interface{}, action RecordChangeAction) error {
	if projectNumber == 0 && ctx != nil {
		if v, ok := appctx.GetInt(ctx, appctx.ContextKeyProjectNumber); ok {
			projectNumber = v
		}
	}

	keyMap := map[string]interface{}{}
	for _, f := range naturalKey {
		keyMap[f.Column] = f.Value
	}
	keyJSON, err := json.Marshal(keyMap)
	if err != nil {
		return err
	}
	objJSON, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	record := RecordChangeRecord{
		ProjectNumber: projectNumber,
		OccurredAt:    time.Now().UTC(),
		ReferenceId:   refId,
		ReferenceType: kind,
		Action:        action,
		NaturalKey:    keyJSON,
		NewObj:        objJSON,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := appctx.GetString(ctx, appctx.ContextKeyCorrelationId); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func ConvertToRecordSyncMessage(rec RecordChangeRecord) config.RecordSyncMessage {
	return config.RecordSyncMessage{
		ID:            rec.ID,
		ProjectNumber: rec.ProjectNumber,
		OccurredAt:    rec.OccurredAt,
		ReferenceId:   rec.ReferenceId,
		ReferenceType: string(rec.ReferenceType),
		Action:        string(rec.Action),
		NaturalKey:    rec.NaturalKey,
		NewObj:        rec.NewObj,
		CorrelationId: rec.CorrelationId,
	}
}
