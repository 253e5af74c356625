/*
Package models - TaxpayerSiiCredentials model

Stores the taxpayer's SII portal password, encrypted at rest by the crypto
vault (C1). The plaintext never touches the database; Ciphertext is the
URL-safe base64 output of the vault's Seal operation.
*/
package models

import "github.com/google/uuid"

// TaxpayerSiiCredentials holds an encrypted SII portal password for a
// taxpayer, plus the disabled/last-use bookkeeping the coordinator consults
// before attempting a portal session.
type TaxpayerSiiCredentials struct {
	BaseModel
	TaxpayerID uuid.UUID `gorm:"type:text;uniqueIndex;not null" json:"taxpayer_id"`
	Username   string    `gorm:"type:varchar(100);not null" json:"username"`
	Ciphertext string    `gorm:"type:text;not null" json:"-"`
	Disabled   bool      `gorm:"default:false" json:"disabled"`
	LastUsedAt *int64    `json:"last_used_at,omitempty"` // unix seconds, nullable
}

func (TaxpayerSiiCredentials) TableName() string { return "taxpayer_sii_credentials" }
