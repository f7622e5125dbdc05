package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lumenpictures/budget_backend/appctx"
	"github.com/lumenpictures/budget_backend/config"
	"github.com/lumenpictures/budget_backend/models"
	"github.com/lumenpictures/budget_backend/polog"
	"github.com/lumenpictures/budget_backend/utils"
)

// BatchService is the three-step ingestion driver: mark the project's batch
// STARTED, load everything the parser produced, mark it COMPLETED. The
// STARTED window is what holds reconciliation triggers off half-loaded data.
type BatchService struct {
	DB          *gorm.DB
	Logger      *logrus.Logger
	Processor   *polog.Processor
	DetailItems *DetailItemService

	// ChunkSize bounds rows per load transaction (payload size and lock
	// duration).
	ChunkSize int
}

func NewBatchService(db *gorm.DB, logger *logrus.Logger) *BatchService {
	return &BatchService{
		DB:          db,
		Logger:      logger,
		Processor:   polog.NewProcessor(logger),
		DetailItems: NewDetailItemService(db, logger),
		ChunkSize:   utils.IntFromEnv("BATCH_CHUNK_SIZE", 500),
	}
}

// IngestFile parses and loads one PO log file, then evaluates every detail
// item the load touched.
func (s *BatchService) IngestFile(ctx context.Context, path string) error {
	if _, ok := appctx.GetString(ctx, appctx.ContextKeyCorrelationId); !ok {
		ctx = appctx.Set(ctx, appctx.ContextKeyCorrelationId, uuid.NewString())
	}
	if projectNumber := polog.ProjectNumberFromFilename(path); projectNumber != 0 {
		ctx = appctx.Set(ctx, appctx.ContextKeyProjectNumber, projectNumber)
	}

	result, err := s.Processor.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return s.Ingest(ctx, result, filepath.Base(path))
}

func (s *BatchService) Ingest(ctx context.Context, result *polog.Result, filename string) error {
	projectNumber := result.ProjectNumber
	logger := s.Logger

	// Step 1. Failing to raise the gate is the one fault that aborts the
	// whole run: loading without it would expose partial sibling groups.
	if err := s.setBatchStatus(ctx, projectNumber, models.BatchStatusStarted, filename); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"project":  projectNumber,
		"filename": filename,
		"mains":    len(result.MainItems),
		"details":  len(result.DetailLines),
	}).Info("batch started")

	// Step 2. Contacts first so vendor linkage exists when POs are
	// written, then POs, then detail lines.
	var contactIDs map[string]int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contactIDs = LoadContacts(ctx, tx, logger, result.Contacts)
		LoadPurchaseOrders(ctx, tx, logger, projectNumber, result.MainItems, contactIDs)
		return nil
	})
	if err != nil {
		config.LogError(logger, "workflow", "Ingest", "contact/po load failed", projectNumber, err)
	}

	var touchedIDs []int
	for _, chunk := range utils.ChunkSlice(result.DetailLines, s.ChunkSize) {
		chunk := chunk
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			touchedIDs = append(touchedIDs, s.loadDetailChunk(ctx, tx, chunk)...)
			return nil
		})
		if err != nil {
			config.LogError(logger, "workflow", "Ingest", "detail chunk load failed", projectNumber, err)
		}
	}

	// Step 3. Lower the gate; triggers may run for this project again.
	if err := s.setBatchStatus(ctx, projectNumber, models.BatchStatusCompleted, filename); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"project": projectNumber,
		"touched": len(touchedIDs),
	}).Info("batch completed")

	// Evaluate everything the load created or changed, each item its own
	// unit of work. Duplicate rows in the file collapse to one evaluation.
	for _, id := range utils.UniqueSlice(touchedIDs) {
		if err := s.DetailItems.Evaluate(ctx, id); err != nil {
			config.LogError(logger, "workflow", "Ingest", "evaluation failed", id, err)
		}
	}
	return nil
}

// loadDetailChunk upserts one chunk of parsed lines and returns the ids of
// rows it created or changed. Terminal rows are left completely untouched;
// re-ingestion refreshes content fields only, never reconciliation state.
func (s *BatchService) loadDetailChunk(ctx context.Context, tx *gorm.DB, chunk []*polog.DetailLine) []int {
	var touched []int

	for _, line := range chunk {
		if err := utils.ValidateStruct(line); err != nil {
			s.Logger.WithFields(logrus.Fields{
				"project": line.ProjectNumber,
				"po":      line.PONumber,
				"detail":  line.DetailNumber,
				"line":    line.LineNumber,
			}).Warn("parsed detail line failed validation; skipping: " + err.Error())
			continue
		}

		item := models.DetailItem{
			ProjectNumber:   line.ProjectNumber,
			PONumber:        line.PONumber,
			DetailNumber:    line.DetailNumber,
			LineNumber:      line.LineNumber,
			VendorName:      line.VendorName,
			PaymentType:     line.PaymentType,
			State:           line.State,
			Description:     line.Description,
			AccountCode:     line.AccountCode,
			TransactionDate: line.TransactionDate,
			DueDate:         line.DueDate,
			Quantity:        line.Quantity,
			Rate:            line.Rate,
			OT:              line.OT,
			Fringes:         line.Fringes,
			SubTotal:        line.SubTotal,
		}
		lookup := item.NaturalKey()

		existing := models.Search[models.DetailItem](ctx, tx, lookup...).First()
		if existing == nil {
			created := models.Create(ctx, tx, &item, lookup...)
			if created == nil {
				continue
			}
			publishChange(ctx, tx, s.Logger, line.ProjectNumber, models.KindDetailItem, created.ID, lookup, created, models.RecordChangeActionCreate)
			touched = append(touched, created.ID)
			continue
		}

		if models.DetailItemState(models.NormalizeState(string(existing.State))).IsTerminal() {
			continue
		}

		candidate := map[string]interface{}{
			"vendor_name":      line.VendorName,
			"payment_type":     line.PaymentType,
			"description":      line.Description,
			"account_code":     line.AccountCode,
			"transaction_date": line.TransactionDate,
			"due_date":         line.DueDate,
			"quantity":         line.Quantity,
			"rate":             line.Rate,
			"ot":               line.OT,
			"fringes":          line.Fringes,
			"sub_total":        line.SubTotal,
		}
		if !models.HasChanges[models.DetailItem](ctx, tx, existing.ID, nil, candidate) {
			continue
		}
		updated := models.UpdateFields[models.DetailItem](ctx, tx, existing.ID, candidate, lookup...)
		if updated == nil {
			continue
		}
		publishChange(ctx, tx, s.Logger, line.ProjectNumber, models.KindDetailItem, updated.ID, lookup, updated, models.RecordChangeActionUpdate)
		touched = append(touched, updated.ID)
	}

	return touched
}

// setBatchStatus upserts the project's batch row. The store swallows
// database errors, so a nil result here means the gate could not be set and
// the run must stop.
func (s *BatchService) setBatchStatus(ctx context.Context, projectNumber int, status models.BatchStatus, filename string) error {
	now := time.Now().UTC()
	lookup := models.Filter{Column: "project_number", Value: projectNumber}

	existing := models.Search[models.BatchLog](ctx, s.DB, lookup).First()
	if existing == nil {
		batch := models.BatchLog{
			ProjectNumber: projectNumber,
			Status:        status,
			Filename:      filename,
			StartedAt:     now,
		}
		if status == models.BatchStatusCompleted {
			batch.CompletedAt = &now
		}
		if created := models.Create(ctx, s.DB, &batch, lookup); created == nil {
			return fmt.Errorf("unable to create batch log for project %d", projectNumber)
		}
		return nil
	}

	fields := map[string]interface{}{
		"status":   string(status),
		"filename": filename,
	}
	if status == models.BatchStatusStarted {
		fields["started_at"] = now
		fields["completed_at"] = nil
	} else {
		fields["completed_at"] = now
	}
	if updated := models.UpdateFields[models.BatchLog](ctx, s.DB, existing.ID, fields); updated == nil {
		return fmt.Errorf("unable to update batch log for project %d", projectNumber)
	}
	return nil
}
