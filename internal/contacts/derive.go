/*
Package contacts - Contact derivation (C9)

Derive is invoked synchronously by the ingestion processor immediately
after a Document is persisted, in the same transaction. There is no ORM
signal/hook involved (a deliberate departure from the Django original's
post_save receiver, matching this module's explicit-call style
everywhere else). Roles are additive: once a contact is marked both client
and provider it stays that way even if later documents only reference one
role.
*/
package contacts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fizko/internal/models"
	"fizko/internal/taxid"
)

// Derive upserts the Contact implied by doc's counterparty, merging the
// role implied by doc's direction and filling name/address/category only
// when the existing value is empty.
func Derive(ctx context.Context, tx *gorm.DB, companyID uuid.UUID, doc models.Document) (*models.Contact, error) {
	canonical, err := taxid.Parse(doc.CounterpartyTaxID)
	var taxIDStr string
	if err == nil {
		taxIDStr = canonical.String()
	} else {
		taxIDStr = doc.CounterpartyTaxID
	}

	role := models.RoleClient
	if doc.Direction == models.DirectionPurchase {
		role = models.RoleProvider
	}

	var contact models.Contact
	findErr := tx.WithContext(ctx).
		Where("company_id = ? AND tax_id = ?", companyID, taxIDStr).
		First(&contact).Error

	if findErr == gorm.ErrRecordNotFound {
		contact = models.Contact{
			CompanyID: companyID,
			TaxID:     taxIDStr,
			Name:      doc.CounterpartyName,
			Roles:     []models.ContactRole{role},
		}
		if err := tx.WithContext(ctx).Create(&contact).Error; err != nil {
			return nil, err
		}
		return &contact, nil
	}
	if findErr != nil {
		return nil, findErr
	}

	changed := false
	if !contact.HasRole(role) {
		contact.AddRole(role)
		changed = true
	}
	if contact.Name == "" && doc.CounterpartyName != "" {
		contact.Name = doc.CounterpartyName
		changed = true
	}
	if changed {
		if err := tx.WithContext(ctx).Save(&contact).Error; err != nil {
			return nil, err
		}
	}
	return &contact, nil
}

// RebuildResult counts the outcome of a Rebuild pass.
type RebuildResult struct {
	DocumentsScanned int
	ContactsCreated  int
	ContactsUpdated  int
}

// Rebuild replays Derive over every Document owned by companyID (or every
// company if companyID is the zero UUID), in document creation order, so
// that a Contact's roles converge to the same state the signal path would
// have produced. dryRun runs the scan without persisting any change.
func Rebuild(ctx context.Context, db *gorm.DB, companyID uuid.UUID, dryRun bool) (RebuildResult, error) {
	var result RebuildResult

	query := db.WithContext(ctx).Order("created_at asc")
	if companyID != uuid.Nil {
		query = query.Where("company_id = ?", companyID)
	}

	var docs []models.Document
	if err := query.Find(&docs).Error; err != nil {
		return result, err
	}

	for _, doc := range docs {
		result.DocumentsScanned++

		if dryRun {
			continue
		}

		var before models.Contact
		hadContact := db.WithContext(ctx).
			Where("company_id = ? AND tax_id = ?", doc.CompanyID, doc.CounterpartyTaxID).
			First(&before).Error == nil

		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, err := Derive(ctx, tx, doc.CompanyID, doc)
			return err
		})
		if err != nil {
			return result, err
		}

		if hadContact {
			result.ContactsUpdated++
		} else {
			result.ContactsCreated++
		}
	}

	return result, nil
}
