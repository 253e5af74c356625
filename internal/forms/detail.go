/*
Package forms - Form detail extraction (C8)

Extractor pulls the field-level breakdown of one already-synced TaxForm from
the portal (the full F29/F22/F3323 detail, not just the summary row C7
upserts) and records it on the form. A form already marked
details_extracted is skipped unless forceRefresh is set.
*/
package forms

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	fizkoerrors "fizko/internal/errors"
	"fizko/internal/models"
	"fizko/internal/portal"
)

// Extractor pulls and persists per-field form detail.
type Extractor struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewExtractor returns an Extractor.
func NewExtractor(db *gorm.DB, log *logrus.Logger) *Extractor {
	return &Extractor{db: db, log: log}
}

// DetailResult reports the outcome of one ExtractDetail call.
type DetailResult struct {
	Skipped bool // already extracted and not forced
	Form    models.TaxForm
}

// ExtractDetail fetches and stores the field-level detail for one form. It
// requires form.SiiFolio to be set; forms without a folio cannot be looked
// up on the portal.
func (e *Extractor) ExtractDetail(ctx context.Context, adapter portal.Adapter, form models.TaxForm, templateCode string, forceRefresh bool) (DetailResult, error) {
	if !form.NeedsDetailExtraction(forceRefresh) {
		return DetailResult{Skipped: true, Form: form}, nil
	}
	if form.SiiFolio == "" {
		return DetailResult{}, fizkoerrors.NewAppError(fizkoerrors.KindValidation, "form has no sii_folio, cannot extract detail", false)
	}

	raw, err := adapter.FormDetail(ctx, templateCode, form.SiiFolio)
	if err != nil {
		e.log.WithFields(logrus.Fields{"form_id": form.ID, "folio": form.SiiFolio}).
			WithError(err).Warn("form detail extraction failed")
		return DetailResult{}, err
	}

	fields, fieldsRaw := formatExtractedFields(raw)
	fieldsJSON, _ := datatypes.NewJSONType(fields).MarshalJSON()
	fieldsRawJSON, _ := datatypes.NewJSONType(fieldsRaw).MarshalJSON()
	subtablesJSON, _ := datatypes.NewJSONType(raw["subtablas"]).MarshalJSON()

	now := time.Now()
	form.DetailsExtracted = true
	form.DetailsExtractedAt = &now
	form.ExtractionMethod = extractionMethodFor(templateCode)
	form.TotalFields = len(fieldsRaw)
	form.ExtractedFields = fieldsJSON
	form.ExtractedFieldsRaw = fieldsRawJSON
	form.Subtables = subtablesJSON

	if err := e.db.WithContext(ctx).Save(&form).Error; err != nil {
		return DetailResult{}, fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}
	return DetailResult{Form: form}, nil
}

// ExtractMultiple runs ExtractDetail over forms needing extraction, capped
// at maxForms.
func (e *Extractor) ExtractMultiple(ctx context.Context, adapter portal.Adapter, forms []models.TaxForm, templateCode string, forceRefresh bool, maxForms int) ([]DetailResult, error) {
	var pending []models.TaxForm
	for _, f := range forms {
		if f.NeedsDetailExtraction(forceRefresh) {
			pending = append(pending, f)
		}
	}
	if maxForms > 0 && len(pending) > maxForms {
		pending = pending[:maxForms]
	}

	results := make([]DetailResult, 0, len(pending))
	for _, f := range pending {
		result, err := e.ExtractDetail(ctx, adapter, f, templateCode, forceRefresh)
		if err != nil {
			continue // continue-on-error: a failed form just stays unextracted
		}
		results = append(results, result)
	}
	return results, nil
}

func extractionMethodFor(templateCode string) string {
	return strings.ToLower(templateCode) + "_rpa_service"
}

// formatExtractedFields splits the portal's raw field map into a
// chilean-value-formatted view (fields) and the untouched original
// (fieldsRaw), mirroring the portal's own distinction between a presentation
// value and the value as submitted.
func formatExtractedFields(raw portal.RawDocument) (map[string]any, map[string]any) {
	rawFields, _ := raw["campos"].(map[string]any)
	formatted := make(map[string]any, len(rawFields))
	original := make(map[string]any, len(rawFields))
	for k, v := range rawFields {
		original[k] = v
		if s, ok := v.(string); ok {
			if n, ok := formatChileanValue(s); ok {
				formatted[k] = n
				continue
			}
		}
		formatted[k] = v
	}
	return formatted, original
}

// formatChileanValue converts a Chilean-formatted monetary string ("." as
// thousands separator, "," as decimal point) to a float. Returns ok=false
// for empty/placeholder values ("", "N/A", "NO DISPONIBLE", "-").
func formatChileanValue(value string) (float64, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, false
	}
	switch strings.ToUpper(v) {
	case "N/A", "NO DISPONIBLE", "-":
		return 0, false
	}

	var cleaned string
	if strings.Contains(v, ",") {
		parts := strings.Split(v, ",")
		if len(parts) != 2 {
			return 0, false
		}
		cleaned = strings.ReplaceAll(parts[0], ".", "") + "." + parts[1]
	} else {
		cleaned = strings.ReplaceAll(v, ".", "")
	}

	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
