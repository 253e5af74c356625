/*
Package models - Contact model

Contact is derived automatically (C9) from the counterparty of each ingested
Document: a single counterparty tax ID accumulates roles (client/provider)
additively as both purchase and sale documents reference it.
*/
package models

import "github.com/google/uuid"

// Contact is a counterparty (client or provider) derived from documents.
type Contact struct {
	BaseModel
	CompanyID uuid.UUID     `gorm:"type:text;uniqueIndex:idx_contact_company_taxid;not null" json:"company_id"`
	TaxID     string        `gorm:"type:varchar(20);uniqueIndex:idx_contact_company_taxid;not null" json:"tax_id"` // canonical, undotted
	Name      string        `gorm:"type:varchar(255)" json:"name,omitempty"`
	Address   string        `gorm:"type:varchar(255)" json:"address,omitempty"`
	Category  string        `gorm:"type:varchar(100)" json:"category,omitempty"`
	Roles     []ContactRole `gorm:"serializer:json" json:"roles"`
}

func (Contact) TableName() string { return "contacts" }

// HasRole reports whether the contact already carries the given role.
func (c *Contact) HasRole(role ContactRole) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AddRole merges role into the contact's role set if not already present.
// Roles are never removed — this is an additive-only operation.
func (c *Contact) AddRole(role ContactRole) {
	if !c.HasRole(role) {
		c.Roles = append(c.Roles, role)
	}
}
