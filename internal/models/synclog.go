/*
Package models - SIISyncLog model

SIISyncLog tracks one ingestion run (C6): its progress across periods, the
counters the coordinator accumulates, and the status field polled for
cooperative cancellation.
*/
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SIISyncLog is one run of the ingestion coordinator for a taxpayer.
type SIISyncLog struct {
	BaseModel
	TaxpayerID uuid.UUID  `gorm:"type:text;index;not null" json:"taxpayer_id"`
	Status     SyncStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	PeriodFrom string `gorm:"type:varchar(6)" json:"period_from"`
	PeriodTo   string `gorm:"type:varchar(6)" json:"period_to"`
	LastPeriodProcessed string `gorm:"type:varchar(6)" json:"last_period_processed,omitempty"`

	DocumentsProcessed int `gorm:"default:0" json:"documents_processed"`
	DocumentsCreated   int `gorm:"default:0" json:"documents_created"`
	DocumentsUpdated   int `gorm:"default:0" json:"documents_updated"`
	DocumentsErrored   int `gorm:"default:0" json:"documents_errored"`

	// ProgressPercentage is floor(periods_done/periods_total*100), refreshed
	// every SyncProgressIntervalPeriods periods and pinned to 100 on completion.
	ProgressPercentage int `gorm:"default:0" json:"progress_percentage"`

	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
	Results      datatypes.JSON `gorm:"type:jsonb" json:"results,omitempty"`
}

func (SIISyncLog) TableName() string { return "sii_sync_logs" }

// IsTerminal reports whether the run has finished (successfully or not) and
// should no longer be polled for cancellation.
func (s *SIISyncLog) IsTerminal() bool {
	switch s.Status {
	case SyncStatusCompleted, SyncStatusFailed, SyncStatusCancelled:
		return true
	default:
		return false
	}
}
