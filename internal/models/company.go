/*
Package models - Company model

==============================================================================
FILE: internal/models/company.go
==============================================================================

DESCRIPTION:
    Company is the tenant boundary: every TaxPayer, Document, Contact,
    Process and Task belongs to exactly one Company. Isolation is enforced
    by always filtering queries by CompanyID, never by trusting a caller-
    supplied value.

==============================================================================
*/
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Company represents a tenant business entity.
type Company struct {
	BaseModel
	Name          string     `gorm:"type:varchar(255);not null" json:"name"`
	TaxID         string     `gorm:"type:varchar(20);uniqueIndex;not null" json:"tax_id"` // canonical "<digits>-<dv>"
	Address       string     `gorm:"type:varchar(255)" json:"address,omitempty"`
	Email         string     `gorm:"type:varchar(255)" json:"email,omitempty"`
	IsActive      bool       `gorm:"default:true" json:"is_active"`
	ActivatedAt   *time.Time `json:"activated_at,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`

	EmployeeCount    int    `gorm:"default:0" json:"employee_count"`
	EconomicActivity string `gorm:"type:varchar(100)" json:"economic_activity,omitempty"`
	AnnualRevenue    int64  `gorm:"default:0" json:"annual_revenue"`
	SegmentID        *uuid.UUID `gorm:"type:text;index" json:"segment_id,omitempty"`

	TaxPayers []TaxPayer `gorm:"foreignKey:CompanyID" json:"taxpayers,omitempty"`
	Contacts  []Contact  `gorm:"foreignKey:CompanyID" json:"contacts,omitempty"`
}

func (Company) TableName() string { return "companies" }

// BeforeUpdate manages ActivatedAt/DeactivatedAt on status flips.
func (c *Company) BeforeUpdate(tx *gorm.DB) (err error) {
	if c.IsActive && c.ActivatedAt == nil {
		now := time.Now()
		c.ActivatedAt = &now
		c.DeactivatedAt = nil
	} else if !c.IsActive && c.DeactivatedAt == nil {
		now := time.Now()
		c.DeactivatedAt = &now
	}
	return
}
