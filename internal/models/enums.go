/*
Package models - enumerated string types shared across the compliance core.
*/
package models

// SyncStatus is the lifecycle state of a SIISyncLog run.
type SyncStatus string

const (
	SyncStatusPending   SyncStatus = "pending"
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
	SyncStatusCancelled SyncStatus = "cancelled"
)

// DocumentDirection disambiguates a Document's role for the owning Company.
type DocumentDirection string

const (
	DirectionPurchase DocumentDirection = "purchase" // recibidos
	DirectionSale     DocumentDirection = "sale"      // emitidos
)

// ContactRole is additive: a Contact can be both a client and a provider.
type ContactRole string

const (
	RoleClient   ContactRole = "client"
	RoleProvider ContactRole = "provider"
)

// ProcessStatus is the lifecycle state of a Process:
//
//	draft --start--> active --pause--> paused --resume--> active
//	  active --(all tasks completed)--> completed
//	  active --(blocking task failed)--> failed
//	  active/paused --(explicit)--> cancelled
type ProcessStatus string

const (
	ProcessStatusDraft     ProcessStatus = "draft"
	ProcessStatusActive    ProcessStatus = "active"
	ProcessStatusPaused    ProcessStatus = "paused"
	ProcessStatusCompleted ProcessStatus = "completed"
	ProcessStatusFailed    ProcessStatus = "failed"
	ProcessStatusCancelled ProcessStatus = "cancelled"
)

// TaskStatus is the lifecycle state of a Task within a Process.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusSkipped    TaskStatus = "skipped"
)

// ExecutionStatus is the lifecycle state of a ProcessExecution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// TaskKind distinguishes tasks the engine can execute unattended from ones
// that require a human to act.
type TaskKind string

const (
	TaskKindAutomatic TaskKind = "automatic"
	TaskKindManual    TaskKind = "manual"
)

// ProcessType names the kind of compliance process a template materialises.
type ProcessType string

const (
	ProcessTypeF29   ProcessType = "f29_monthly"
	ProcessTypeF22   ProcessType = "f22_annual"
	ProcessTypeF3323 ProcessType = "f3323_quarterly"
)

// RecurrenceKind is how often a ProcessTemplateConfig regenerates itself.
type RecurrenceKind string

const (
	RecurrenceMonthly   RecurrenceKind = "monthly"
	RecurrenceQuarterly RecurrenceKind = "quarterly"
	RecurrenceAnnual    RecurrenceKind = "annual"
)

// AlertSeverity is the classification produced by the deadline monitor.
type AlertSeverity string

const (
	AlertReminder AlertSeverity = "reminder"
	AlertUrgent   AlertSeverity = "urgent"
	AlertOverdue  AlertSeverity = "overdue"
)
