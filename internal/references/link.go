/*
Package references - Document cross-reference resolution

LinkReferences resolves Document.ReferenceDocumentID for documents that
carry a reference_folio/reference_folio_type but have not yet been linked
to the Document they reference (e.g. a credit note referencing the invoice
it corrects). Matching is by (issuer digits, issuer dv, type code, folio)
within the same company, via the document type lookup and the
counterparty's tax id — idempotent, safe to re-run.
*/
package references

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fizko/internal/models"
)

// Result counts the outcome of a LinkReferences pass.
type Result struct {
	Scanned int
	Linked  int
	Unresolved int
}

// LinkReferences scans up to limit unlinked, reference-bearing documents for
// companyID (or every company if companyID is the zero UUID) and links each
// to its referenced Document where one can be found.
func LinkReferences(ctx context.Context, db *gorm.DB, companyID uuid.UUID, limit int) (Result, error) {
	var result Result

	query := db.WithContext(ctx).Model(&models.Document{}).
		Where("reference_folio <> '' AND reference_folio_type <> ''").
		Where("reference_document_id IS NULL")
	if companyID != uuid.Nil {
		query = query.Where("company_id = ?", companyID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var pending []models.Document
	if err := query.Find(&pending).Error; err != nil {
		return result, err
	}

	for _, doc := range pending {
		result.Scanned++

		var docType models.DocumentType
		if err := db.WithContext(ctx).First(&docType, "code = ?", doc.ReferenceFolioType).Error; err != nil {
			result.Unresolved++
			continue
		}

		var target models.Document
		err := db.WithContext(ctx).Where(
			"company_id = ? AND counterparty_tax_id = ? AND document_type_id = ? AND folio = ?",
			doc.CompanyID, doc.CounterpartyTaxID, docType.ID, doc.ReferenceFolio,
		).First(&target).Error
		if err != nil {
			result.Unresolved++
			continue
		}

		if err := db.WithContext(ctx).Model(&models.Document{}).
			Where("id = ?", doc.ID).
			Update("reference_document_id", target.ID).Error; err != nil {
			return result, err
		}
		result.Linked++
	}

	return result, nil
}
