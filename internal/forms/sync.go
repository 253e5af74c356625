/*
Package forms - Form sync (C7)

Syncer upserts TaxForm rows from the portal's buscar_formularios-style
listing, keyed by (taxpayer, template, sii_folio). Status is derived from
the portal's own status string plus presence of a submission date: a
"vigente" form with a submission date is "submitted"; any other form with a
submission date is "accepted"; one with neither is "draft".
*/
package forms

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	fizkoerrors "fizko/internal/errors"
	"fizko/internal/models"
	"fizko/internal/portal"
)

// Syncer upserts TaxForm rows from portal listings.
type Syncer struct {
	db *gorm.DB
}

// New returns a Syncer.
func New(db *gorm.DB) *Syncer {
	return &Syncer{db: db}
}

// Result summarizes one SyncTemplate call.
type Result struct {
	Created int
	Updated int
	Errored int
}

// SyncTemplate fetches and upserts every form of templateCode for period
// ("YYYY-MM") belonging to taxpayerID.
func (s *Syncer) SyncTemplate(ctx context.Context, adapter portal.Adapter, taxpayerID uuid.UUID, templateCode, period string) (Result, error) {
	var result Result

	template, err := s.getOrCreateTemplate(ctx, templateCode)
	if err != nil {
		return result, err
	}

	raws, err := adapter.Forms(ctx, templateCode, period)
	if err != nil {
		return result, err
	}

	for _, raw := range raws {
		created, err := s.upsertOne(ctx, taxpayerID, template, raw)
		if err != nil {
			result.Errored++
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	return result, nil
}

// upsertOne returns true if a new TaxForm row was created, false if an
// existing one was updated.
func (s *Syncer) upsertOne(ctx context.Context, taxpayerID uuid.UUID, template models.TaxFormTemplate, raw portal.RawDocument) (bool, error) {
	folio, _ := raw["folio"].(string)
	period := extractPeriod(raw)

	var existing models.TaxForm
	err := s.db.WithContext(ctx).
		Where("taxpayer_id = ? AND template_id = ? AND sii_folio = ?", taxpayerID, template.ID, folio).
		First(&existing).Error

	status := determineStatus(raw)
	submittedAt := extractSubmissionDate(raw)
	totalTaxDue := extractDecimal(raw, "amount")
	detail, _ := json.Marshal(raw)

	if err == gorm.ErrRecordNotFound {
		form := models.TaxForm{
			TaxpayerID:  taxpayerID,
			TemplateID:  template.ID,
			Period:      period,
			SiiFolio:    folio,
			Status:      status,
			FiledAt:     submittedAt,
			TotalTaxDue: totalTaxDue,
			Detail:      detail,
		}
		return true, s.db.WithContext(ctx).Create(&form).Error
	}
	if err != nil {
		return false, fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}

	existing.Status = status
	existing.FiledAt = submittedAt
	existing.TotalTaxDue = totalTaxDue
	existing.Detail = detail
	return false, s.db.WithContext(ctx).Save(&existing).Error
}

func (s *Syncer) getOrCreateTemplate(ctx context.Context, code string) (models.TaxFormTemplate, error) {
	var template models.TaxFormTemplate
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&template).Error
	if err == gorm.ErrRecordNotFound {
		template = models.TaxFormTemplate{Code: code, Name: strings.ToUpper(code)}
		if err := s.db.WithContext(ctx).Create(&template).Error; err != nil {
			return template, fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
		}
		return template, nil
	}
	if err != nil {
		return template, fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}
	return template, nil
}

func determineStatus(raw portal.RawDocument) string {
	siiStatus := strings.ToLower(anyToString(raw["status"]))
	hasSubmission := anyToString(raw["submission_date"]) != ""

	switch {
	case strings.Contains(siiStatus, "vigente") && hasSubmission:
		return "submitted"
	case hasSubmission:
		return "accepted"
	default:
		return "draft"
	}
}

func extractSubmissionDate(raw portal.RawDocument) *time.Time {
	raw2 := anyToString(raw["submission_date"])
	if raw2 == "" {
		return nil
	}
	t, err := time.Parse("02/01/2006", raw2)
	if err != nil {
		return nil
	}
	return &t
}

func extractPeriod(raw portal.RawDocument) string {
	if p := anyToString(raw["period"]); p != "" {
		return p
	}
	return ""
}

func anyToString(v any) string {
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func extractDecimal(raw portal.RawDocument, field string) decimal.Decimal {
	v := anyToString(raw[field])
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}
