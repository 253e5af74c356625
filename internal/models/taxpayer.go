/*
Package models - TaxPayer model

A TaxPayer is the SII-registered entity a Company files compliance
obligations under. Most companies have exactly one TaxPayer; holding
structures may have several.
*/
package models

import "github.com/google/uuid"

// SettingProcesos are the closed-key process flags the segmentation engine
// (C11) reads to decide which process templates apply to a taxpayer.
type SettingProcesos struct {
	F29Monthly     bool `json:"f29_monthly"`
	F3323Quarterly bool `json:"f3323_quarterly"`
}

// TaxPayer represents an SII-registered taxpayer owned by a Company.
type TaxPayer struct {
	BaseModel
	CompanyID       uuid.UUID       `gorm:"type:text;index;not null" json:"company_id"`
	Company         *Company        `gorm:"foreignKey:CompanyID" json:"-"`
	TaxID           string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"tax_id"`
	BusinessName    string          `gorm:"type:varchar(255);not null" json:"business_name"`
	SettingProcesos SettingProcesos `gorm:"embedded;embeddedPrefix:setting_" json:"setting_procesos"`
	IsActive        bool            `gorm:"default:true" json:"is_active"`

	Credentials *TaxpayerSiiCredentials `gorm:"foreignKey:TaxpayerID" json:"-"`
}

func (TaxPayer) TableName() string { return "taxpayers" }
