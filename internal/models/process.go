/*
Package models - Process template, segmentation and execution models

Covers C10 (templates), C11 (segmentation/assignment), C12 (materialiser),
C13 (execution engine) and C14 (recurrence)'s persisted state.
*/
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CompanySegment is an ordered, first-match-wins bucket a TaxPayer falls
// into for process-template assignment purposes (C11).
type CompanySegment struct {
	BaseModel
	Name     string         `gorm:"type:varchar(100);not null" json:"name"`
	Order    int            `gorm:"not null" json:"order"`
	IsActive bool           `gorm:"default:true" json:"is_active"`
	Criteria datatypes.JSON `gorm:"type:jsonb" json:"criteria"`
}

func (CompanySegment) TableName() string { return "company_segments" }

// ProcessAssignmentRule binds a CompanySegment to the ProcessTemplateConfigs
// it should materialise when a taxpayer matches that segment. Rules are
// evaluated priority-desc, and only those with AutoApply set are considered
// by the automatic assignment pass (C11); Conditions, when present, is a
// Criteria document evaluated against the company/taxpayer before the
// template is materialised.
type ProcessAssignmentRule struct {
	BaseModel
	SegmentID  uuid.UUID      `gorm:"type:text;index;not null" json:"segment_id"`
	TemplateID uuid.UUID      `gorm:"type:text;index;not null" json:"template_id"`
	IsActive   bool           `gorm:"default:true" json:"is_active"`
	Priority   int            `gorm:"default:0;index" json:"priority"`
	AutoApply  bool           `gorm:"default:false" json:"auto_apply"`
	Conditions datatypes.JSON `gorm:"type:jsonb" json:"conditions,omitempty"`
}

func (ProcessAssignmentRule) TableName() string { return "process_assignment_rules" }

// RecurrenceConfig is the closed set of knobs that drive due-date
// computation for a ProcessTemplateConfig and its recurrence generator:
// DayOfMonth for monthly/quarterly anchors, Month+Day for annual ones, and
// Months for templates that only fire in a subset of calendar months. Any
// field left at its zero value falls back to the process type's
// conventional SII due date.
type RecurrenceConfig struct {
	DayOfMonth int   `json:"day_of_month,omitempty"`
	Month      int   `json:"month,omitempty"`
	Day        int   `json:"day,omitempty"`
	Months     []int `gorm:"serializer:json" json:"months,omitempty"`
}

// ProcessTemplateConfig is the reusable definition of a recurring
// compliance process (C10): its type, recurrence, and the tasks it
// materialises.
type ProcessTemplateConfig struct {
	BaseModel
	Name           string           `gorm:"type:varchar(150);not null" json:"name"`
	ProcessType    ProcessType      `gorm:"type:varchar(30);index;not null" json:"process_type"`
	Recurrence     RecurrenceKind   `gorm:"type:varchar(20);not null" json:"recurrence"`
	IsActive       bool             `gorm:"default:true" json:"is_active"`
	TemplateConfig datatypes.JSON   `gorm:"type:jsonb" json:"template_config,omitempty"`

	// DefaultRecurrenceConfig drives the process-level due date (C12) and
	// the recurrence generator's next-occurrence due date (C14).
	DefaultRecurrenceConfig RecurrenceConfig `gorm:"embedded;embeddedPrefix:recurrence_" json:"default_recurrence_config"`

	Tasks []ProcessTemplateTask `gorm:"foreignKey:TemplateID" json:"tasks,omitempty"`
}

func (ProcessTemplateConfig) TableName() string { return "process_template_configs" }

// ProcessTemplateTask is one task blueprint within a ProcessTemplateConfig.
// A task's due date is resolved with AbsoluteDueDate taking priority over
// DueDateOffsetDays, which in turn takes priority over DueDateFromPrevious
// (C12 step 4).
type ProcessTemplateTask struct {
	BaseModel
	TemplateID          uuid.UUID      `gorm:"type:text;index;not null" json:"template_id"`
	Name                string         `gorm:"type:varchar(150);not null" json:"name"`
	Kind                TaskKind       `gorm:"type:varchar(20);not null" json:"kind"`
	ExecutionOrder      int            `gorm:"not null" json:"execution_order"` // must be positive
	IsOptional          bool           `gorm:"default:false" json:"is_optional"`
	CanRunParallel      bool           `gorm:"default:false" json:"can_run_parallel"`
	DependsOn           datatypes.JSON `gorm:"type:jsonb" json:"depends_on,omitempty"` // []string of task names
	AbsoluteDueDate      *time.Time    `json:"absolute_due_date,omitempty"`            // fixed calendar date, independent of process due date
	DueDateOffsetDays    *int          `json:"due_date_offset_days,omitempty"`         // signed days: positive counts from materialisation time, zero/negative from the process due date
	DueDateFromPrevious  bool          `gorm:"default:false" json:"due_date_from_previous"`
	ExecutionConditions  datatypes.JSON `gorm:"type:jsonb" json:"execution_conditions,omitempty"`
}

func (ProcessTemplateTask) TableName() string { return "process_template_tasks" }

// Process is one materialised instance of a ProcessTemplateConfig for a
// given TaxPayer and period (C12).
type Process struct {
	BaseModel
	CompanyID   uuid.UUID      `gorm:"type:text;uniqueIndex:idx_process_company_type_period;index;not null" json:"company_id"`
	TaxpayerID  uuid.UUID      `gorm:"type:text;index;not null" json:"taxpayer_id"`
	TemplateID  uuid.UUID      `gorm:"type:text;index;not null" json:"template_id"`
	ProcessType ProcessType    `gorm:"type:varchar(30);uniqueIndex:idx_process_company_type_period;index;not null" json:"process_type"`
	Status      ProcessStatus  `gorm:"type:varchar(20);index;not null" json:"status"`
	DueDate     time.Time      `gorm:"index;not null" json:"due_date"`
	Period      string         `gorm:"type:varchar(10);uniqueIndex:idx_process_company_type_period;index;not null" json:"period"` // denormalised from config_data.period for portable uniqueness checks
	ConfigData  datatypes.JSON `gorm:"type:jsonb" json:"config_data"` // also carries "period"
	CompletedAt *time.Time     `json:"completed_at,omitempty"`

	ParentProcessID  *uuid.UUID `gorm:"type:text;index" json:"parent_process_id,omitempty"`
	RecurrenceSource string     `gorm:"type:varchar(30)" json:"recurrence_source,omitempty"`

	Tasks      []Task             `gorm:"foreignKey:ProcessID" json:"tasks,omitempty"`
	Executions []ProcessExecution `gorm:"foreignKey:ProcessID" json:"executions,omitempty"`
}

func (Process) TableName() string { return "processes" }

// Task is one materialised step of a Process.
type Task struct {
	BaseModel
	ProcessID      uuid.UUID      `gorm:"type:text;index;not null" json:"process_id"`
	Name           string         `gorm:"type:varchar(150);not null" json:"name"`
	Kind           TaskKind       `gorm:"type:varchar(20);not null" json:"kind"`
	Status         TaskStatus     `gorm:"type:varchar(20);index;not null" json:"status"`
	ExecutionOrder int            `gorm:"not null" json:"execution_order"`
	CanRunParallel bool           `gorm:"default:false" json:"can_run_parallel"`
	DependsOn      datatypes.JSON `gorm:"type:jsonb" json:"depends_on,omitempty"`
	DueDate        time.Time      `gorm:"index;not null" json:"due_date"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	ExecutionConditions datatypes.JSON `gorm:"type:jsonb" json:"execution_conditions,omitempty"`
	ContextVariables    datatypes.JSON `gorm:"type:jsonb" json:"context_variables,omitempty"`
	FailureReason  string         `gorm:"type:text" json:"failure_reason,omitempty"`
}

func (Task) TableName() string { return "tasks" }

// ProcessExecution is the row-locked synchronization point the execution
// engine (C13) locks with SELECT ... FOR UPDATE while a wave is dispatched.
type ProcessExecution struct {
	BaseModel
	ProcessID      uuid.UUID        `gorm:"type:text;uniqueIndex;not null" json:"process_id"`
	Status         ExecutionStatus  `gorm:"type:varchar(20);not null" json:"status"`
	TotalSteps     int              `gorm:"default:0" json:"total_steps"`
	CurrentWave    int              `gorm:"default:0" json:"current_wave"`
	TasksCompleted int              `gorm:"default:0" json:"tasks_completed"`
	TasksFailed    int              `gorm:"default:0" json:"tasks_failed"`
	IsRunning      bool             `gorm:"default:false" json:"is_running"`
	LastError      string           `gorm:"type:text" json:"last_error,omitempty"`
}

func (ProcessExecution) TableName() string { return "process_executions" }
