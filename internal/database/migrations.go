/*
Package database - Schema Migrations

==============================================================================
FILE: internal/database/migrations.go
==============================================================================

DESCRIPTION:
    Runs GORM AutoMigrate across every entity in the compliance data model,
    in an order that respects foreign-key dependencies (referenced tables
    first).

==============================================================================
*/
package database

import (
	"gorm.io/gorm"

	"fizko/internal/models"
)

// Migrate performs database migrations for every entity in the data model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Company{},
		&models.TaxPayer{},
		&models.TaxpayerSiiCredentials{},
		&models.DocumentType{},
		&models.Document{},
		&models.Contact{},
		&models.TaxFormTemplate{},
		&models.TaxForm{},
		&models.CompanySegment{},
		&models.ProcessTemplateConfig{},
		&models.ProcessTemplateTask{},
		&models.ProcessAssignmentRule{},
		&models.Process{},
		&models.Task{},
		&models.ProcessExecution{},
		&models.SIISyncLog{},
	)
}
