/*
Package ingestion - Ingestion coordinator (C6)

Coordinator owns a single portal.Adapter per sync run, walks the requested
period range one month at a time (purchases before sales within each
period), validates and maps every document with continue-on-error
semantics, derives contacts, and upserts documents idempotently on
(company_id, direction, document type, folio, counterparty tax id); an
updated document keeps the sii_track_id it was first stored with. Progress is persisted to the SIISyncLog row
every SyncProgressIntervalPeriods periods, and the run polls its own
SIISyncLog.Status between periods so cancellation (set externally) is
observed cooperatively rather than via context cancellation alone.
*/
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fizko/internal/config"
	"fizko/internal/contacts"
	"fizko/internal/credentials"
	fizkoerrors "fizko/internal/errors"
	"fizko/internal/models"
	"fizko/internal/portal"
)

// Coordinator drives one or many ingestion runs.
type Coordinator struct {
	db        *gorm.DB
	creds     *credentials.Store
	cfg       *config.Config
	newAdapter func(cfg *config.Config) portal.Adapter
}

// New returns a Coordinator. newAdapter constructs the portal.Adapter for a
// run (a Real or Mock depending on cfg.PortalMode); it is a constructor
// function, not a shared instance, because each run owns exactly one
// adapter for its lifetime.
func New(db *gorm.DB, creds *credentials.Store, cfg *config.Config, newAdapter func(cfg *config.Config) portal.Adapter) *Coordinator {
	return &Coordinator{db: db, creds: creds, cfg: cfg, newAdapter: newAdapter}
}

// retryBackoff is the exponential backoff schedule (seconds) applied to
// recoverable portal errors before the run is abandoned.
var retryBackoff = []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}

// SyncTaxpayer runs one ingestion pass for taxpayerID across
// [periodFrom, periodTo] (both "YYYYMM", inclusive), returning the
// completed SIISyncLog.
func (c *Coordinator) SyncTaxpayer(ctx context.Context, taxpayerID uuid.UUID, periodFrom, periodTo string) (*models.SIISyncLog, error) {
	syncLog := &models.SIISyncLog{
		TaxpayerID: taxpayerID,
		Status:     models.SyncStatusRunning,
		StartedAt:  time.Now(),
		PeriodFrom: periodFrom,
		PeriodTo:   periodTo,
	}
	if err := c.db.WithContext(ctx).Create(syncLog).Error; err != nil {
		return nil, fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}

	resolved, err := c.creds.Get(ctx, taxpayerID)
	if err != nil {
		return c.fail(ctx, syncLog, err)
	}

	var taxpayer models.TaxPayer
	if err := c.db.WithContext(ctx).First(&taxpayer, "id = ?", taxpayerID).Error; err != nil {
		return c.fail(ctx, syncLog, fizkoerrors.Wrap(err, fizkoerrors.ErrInternal))
	}

	adapter := c.newAdapter(c.cfg)
	defer adapter.Close()

	if err := c.loginWithBackoff(ctx, adapter, resolved); err != nil {
		return c.fail(ctx, syncLog, err)
	}

	periods := MonthRange(periodFrom, periodTo)
	for i, period := range periods {
		if c.isCancelled(ctx, syncLog.ID) {
			syncLog.Status = models.SyncStatusCancelled
			now := time.Now()
			syncLog.FinishedAt = &now
			c.db.WithContext(ctx).Save(syncLog)
			return syncLog, fizkoerrors.ErrCancelled
		}

		if err := c.syncPeriod(ctx, adapter, taxpayer, period, syncLog); err != nil {
			return c.fail(ctx, syncLog, err)
		}

		syncLog.LastPeriodProcessed = period
		if (i+1)%c.cfg.SyncProgressIntervalPeriods == 0 {
			syncLog.ProgressPercentage = 100 * (i + 1) / len(periods)
			c.db.WithContext(ctx).Save(syncLog)
		}
	}

	syncLog.Status = models.SyncStatusCompleted
	syncLog.ProgressPercentage = 100
	now := time.Now()
	syncLog.FinishedAt = &now
	if err := c.db.WithContext(ctx).Save(syncLog).Error; err != nil {
		return nil, fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}
	return syncLog, nil
}

func (c *Coordinator) loginWithBackoff(ctx context.Context, adapter portal.Adapter, creds credentials.Resolved) error {
	var lastErr error
	for attempt := 0; attempt <= len(retryBackoff); attempt++ {
		timeoutCtx, cancel := context.WithTimeout(ctx, c.cfg.PortalTimeout)
		err := adapter.Login(timeoutCtx, creds.Username, creds.Password)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !fizkoerrors.IsRecoverable(err) || attempt == len(retryBackoff) {
			return err
		}
		select {
		case <-time.After(retryBackoff[attempt]):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (c *Coordinator) syncPeriod(ctx context.Context, adapter portal.Adapter, taxpayer models.TaxPayer, period string, syncLog *models.SIISyncLog) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.cfg.PortalTimeout)
	purchaseSummary, saleSummary, err := adapter.SummaryPurchasesSales(timeoutCtx, period)
	cancel()
	if err != nil && !fizkoerrors.IsRecoverable(err) {
		return err
	}

	purchaseCodes := typeCodesFrom(purchaseSummary, portal.FallbackPurchaseTypeCodes)
	saleCodes := typeCodesFrom(saleSummary, portal.FallbackSaleTypeCodes)

	if err := c.syncDirection(ctx, adapter, taxpayer, period, purchaseCodes, models.DirectionPurchase, syncLog); err != nil {
		return err
	}
	return c.syncDirection(ctx, adapter, taxpayer, period, saleCodes, models.DirectionSale, syncLog)
}

func typeCodesFrom(summary []portal.DocumentSummary, fallback []string) []string {
	if len(summary) == 0 {
		return fallback
	}
	codes := make([]string, 0, len(summary))
	for _, s := range summary {
		codes = append(codes, s.TypeCode)
	}
	return codes
}

func (c *Coordinator) syncDirection(ctx context.Context, adapter portal.Adapter, taxpayer models.TaxPayer, period string, typeCodes []string, direction models.DocumentDirection, syncLog *models.SIISyncLog) error {
	for _, typeCode := range typeCodes {
		timeoutCtx, cancel := context.WithTimeout(ctx, c.cfg.PortalTimeout)
		var raws []portal.RawDocument
		var err error
		if direction == models.DirectionPurchase {
			raws, err = adapter.Purchases(timeoutCtx, period, typeCode)
		} else {
			raws, err = adapter.Sales(timeoutCtx, period, typeCode)
		}
		cancel()
		if err != nil {
			if fizkoerrors.IsRecoverable(err) {
				continue // skip this type code, keep the run alive
			}
			return err
		}

		tagDirection := "recibidos"
		if direction == models.DirectionSale {
			tagDirection = "emitidos"
		}
		for _, raw := range raws {
			raw["tipo_operacion"] = tagDirection
			raw["periodo_tributario"] = period
			c.processOne(ctx, taxpayer, raw, syncLog)

			if syncLog.DocumentsProcessed%c.cfg.SyncBatchSize == 0 {
				c.db.WithContext(ctx).Save(syncLog)
			}
		}
	}
	return nil
}

// processOne validates, maps, upserts and derives the contact for a single
// raw document, with continue-on-error semantics: any failure only
// increments the errored counter for this run.
func (c *Coordinator) processOne(ctx context.Context, taxpayer models.TaxPayer, raw portal.RawDocument, syncLog *models.SIISyncLog) {
	syncLog.DocumentsProcessed++

	validated, err := Validate(raw)
	if err != nil {
		syncLog.DocumentsErrored++
		return
	}

	mapped, typeCode, err := Map(validated, time.Now())
	if err != nil {
		syncLog.DocumentsErrored++
		return
	}
	mapped.CompanyID = taxpayer.CompanyID
	mapped.TaxpayerID = taxpayer.ID

	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var docType models.DocumentType
		if err := tx.Where("code = ?", typeCode).First(&docType).Error; err == gorm.ErrRecordNotFound {
			docType = models.DocumentType{Code: typeCode, Name: fmt.Sprintf("Tipo %s", typeCode)}
			if err := tx.Create(&docType).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		mapped.DocumentTypeID = docType.ID

		var existing models.Document
		findErr := tx.Where("company_id = ? AND direction = ? AND document_type_id = ? AND folio = ? AND counterparty_tax_id = ?",
			mapped.CompanyID, mapped.Direction, mapped.DocumentTypeID, mapped.Folio, mapped.CounterpartyTaxID).First(&existing).Error
		switch {
		case findErr == gorm.ErrRecordNotFound:
			if err := tx.Create(&mapped).Error; err != nil {
				return err
			}
			syncLog.DocumentsCreated++
		case findErr == nil:
			mapped.ID = existing.ID
			mapped.CreatedAt = existing.CreatedAt
			mapped.SiiTrackID = existing.SiiTrackID
			if err := tx.Save(&mapped).Error; err != nil {
				return err
			}
			syncLog.DocumentsUpdated++
		default:
			return findErr
		}

		_, derivErr := contacts.Derive(ctx, tx, mapped.CompanyID, mapped)
		return derivErr
	})
	if err != nil {
		syncLog.DocumentsErrored++
	}
}

func (c *Coordinator) isCancelled(ctx context.Context, syncLogID uuid.UUID) bool {
	var status string
	if err := c.db.WithContext(ctx).Model(&models.SIISyncLog{}).Select("status").Where("id = ?", syncLogID).Scan(&status).Error; err != nil {
		return false
	}
	return models.SyncStatus(status) == models.SyncStatusCancelled
}

func (c *Coordinator) fail(ctx context.Context, syncLog *models.SIISyncLog, cause error) (*models.SIISyncLog, error) {
	syncLog.Status = models.SyncStatusFailed
	syncLog.ErrorMessage = cause.Error()
	now := time.Now()
	syncLog.FinishedAt = &now
	c.db.WithContext(ctx).Save(syncLog)
	return syncLog, cause
}

// MonthRange enumerates "YYYYMM" periods from from to to, inclusive.
func MonthRange(from, to string) []string {
	start, err1 := time.Parse("200601", from)
	end, err2 := time.Parse("200601", to)
	if err1 != nil || err2 != nil || end.Before(start) {
		return nil
	}
	var periods []string
	for t := start; !t.After(end); t = t.AddDate(0, 1, 0) {
		periods = append(periods, t.Format("200601"))
	}
	return periods
}
