/*
Package models - TaxFormTemplate and TaxForm models

TaxFormTemplate is the catalog of SII form kinds (F29, F22, F3323, etc.);
TaxForm is one filed-or-pending instance of a template for a given taxpayer
and period, synchronised from the portal by C7/C8.
*/
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TaxFormTemplate catalogs a form kind the portal exposes.
type TaxFormTemplate struct {
	BaseModel
	Code string `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"` // "f29", "f22", "f3323"
	Name string `gorm:"type:varchar(100);not null" json:"name"`
}

func (TaxFormTemplate) TableName() string { return "tax_form_templates" }

// TaxForm is one synchronised form instance.
type TaxForm struct {
	BaseModel
	TaxpayerID uuid.UUID  `gorm:"type:text;index;not null" json:"taxpayer_id"`
	TemplateID uuid.UUID  `gorm:"type:text;index;not null" json:"template_id"`
	Period     string     `gorm:"type:varchar(7);index;not null" json:"period"` // "YYYY-MM"
	SiiFolio   string     `gorm:"type:varchar(30);index" json:"sii_folio,omitempty"`
	Status     string     `gorm:"type:varchar(30);not null" json:"status"`
	FiledAt    *time.Time `json:"filed_at,omitempty"`
	TotalTaxDue decimal.Decimal `gorm:"type:numeric(17,2)" json:"total_tax_due"`
	Detail     datatypes.JSON `gorm:"type:jsonb" json:"detail,omitempty"`

	// Detail-extraction bookkeeping (C8). DetailsExtracted gates re-fetching
	// the full field breakdown from the portal unless force-refreshed.
	DetailsExtracted   bool           `gorm:"not null;default:false" json:"details_extracted"`
	DetailsExtractedAt *time.Time     `json:"details_extracted_at,omitempty"`
	ExtractionMethod   string         `gorm:"type:varchar(30)" json:"extraction_method,omitempty"`
	TotalFields        int            `json:"total_fields,omitempty"`
	ExtractedFields    datatypes.JSON `gorm:"type:jsonb" json:"extracted_fields,omitempty"`
	ExtractedFieldsRaw datatypes.JSON `gorm:"type:jsonb" json:"extracted_fields_raw,omitempty"`
	Subtables          datatypes.JSON `gorm:"type:jsonb" json:"subtables,omitempty"`
}

// NeedsDetailExtraction reports whether this form's field-level detail still
// needs to be pulled from the portal.
func (f TaxForm) NeedsDetailExtraction(forceRefresh bool) bool {
	if forceRefresh {
		return true
	}
	return !f.DetailsExtracted
}

func (TaxForm) TableName() string { return "tax_forms" }
