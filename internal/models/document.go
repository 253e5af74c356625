/*
Package models - Document and DocumentType models

Document is the canonical representation a purchase or sale DTE is mapped
into by the ingestion mapper (C5), regardless of whether it arrived via the
portal's legacy shape or the newer API shape.
*/
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentType is a lookup table mapping SII document-type codes (e.g. "33"
// for factura electrónica) to their human label.
type DocumentType struct {
	BaseModel
	Code  string `gorm:"type:varchar(10);uniqueIndex;not null" json:"code"`
	Name  string `gorm:"type:varchar(100);not null" json:"name"`
}

func (DocumentType) TableName() string { return "document_types" }

// Document is a single SII tax document (DTE) mapped into canonical form.
type Document struct {
	BaseModel
	CompanyID      uuid.UUID         `gorm:"type:text;index;uniqueIndex:idx_doc_sii_track_per_company;not null" json:"company_id"`
	TaxpayerID     uuid.UUID         `gorm:"type:text;index;not null" json:"taxpayer_id"`
	Direction      DocumentDirection `gorm:"type:varchar(10);index;not null" json:"direction"`
	DocumentTypeID uuid.UUID         `gorm:"type:text;index;not null" json:"document_type_id"`
	Period         string            `gorm:"type:varchar(6);index;not null" json:"period"` // YYYYMM

	Folio          string          `gorm:"type:varchar(30);index" json:"folio"`
	CounterpartyTaxID string       `gorm:"type:varchar(20);index" json:"counterparty_tax_id"`
	CounterpartyName  string       `gorm:"type:varchar(255)" json:"counterparty_name"`
	IssueDate      time.Time       `json:"issue_date"`
	NetAmount      decimal.Decimal `gorm:"type:numeric(17,2)" json:"net_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:numeric(17,2)" json:"tax_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(17,2)" json:"total_amount"`

	SiiTrackID string `gorm:"type:varchar(60);uniqueIndex:idx_doc_sii_track_per_company;not null" json:"sii_track_id"`

	// ReferenceFolio/ReferenceFolioType are copied verbatim from the source
	// DTE's reference block (e.g. a credit note referencing the invoice it
	// corrects); ReferenceDocumentID is resolved lazily by
	// generate_document_references once the referenced Document exists.
	ReferenceFolio     string     `gorm:"type:varchar(30)" json:"reference_folio,omitempty"`
	ReferenceFolioType string     `gorm:"type:varchar(10)" json:"reference_folio_type,omitempty"`
	ReferenceDocumentID *uuid.UUID `gorm:"type:text;index" json:"reference_document_id,omitempty"`

	RawData []byte `gorm:"type:jsonb" json:"-"`
}

func (Document) TableName() string { return "documents" }
