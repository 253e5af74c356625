/*
Package process - Template engine (C10)

ProcessTemplateConfig is a stored representation only: this file validates
that a template's tasks form a strict partial order (acyclic depends_on,
strictly positive execution_order) and provides ProcessTemplateFactory, the
hardcoded builders for the canonical F29/F22/F3323 templates used when no
database-resident template exists yet (e.g. on first boot, before
seed_process_templates has run).
*/
package process

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	fizkoerrors "fizko/internal/errors"
	"fizko/internal/models"
)

// TaskBlueprint is the in-memory shape of one ProcessTemplateTask, used by
// ProcessTemplateFactory before anything is persisted.
type TaskBlueprint struct {
	Name                string
	Kind                models.TaskKind
	ExecutionOrder      int
	IsOptional          bool
	CanRunParallel      bool
	DependsOn           []string
	AbsoluteDueDate     *time.Time
	DueDateOffsetDays   *int
	DueDateFromPrevious bool
	ExecutionConditions map[string]any
}

// ValidateTemplate checks that a template's tasks form a strict partial
// order: every execution_order is strictly positive, and depends_on (by
// task name, scoped to the same template) contains no cycle.
func ValidateTemplate(tasks []models.ProcessTemplateTask) error {
	byName := make(map[string]models.ProcessTemplateTask, len(tasks))
	for _, t := range tasks {
		if t.ExecutionOrder <= 0 {
			return fizkoerrors.NewAppError(fizkoerrors.KindValidation,
				fmt.Sprintf("task %q has non-positive execution_order %d", t.Name, t.ExecutionOrder), false)
		}
		byName[t.Name] = t
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(tasks))
	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return fizkoerrors.NewAppError(fizkoerrors.KindValidation,
				fmt.Sprintf("depends_on graph has a cycle through %q", name), false)
		}
		color[name] = gray
		task, ok := byName[name]
		if ok {
			for _, dep := range dependsOnNames(task) {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[name] = black
		return nil
	}
	for _, t := range tasks {
		if err := visit(t.Name); err != nil {
			return err
		}
	}
	return nil
}

func dependsOnNames(t models.ProcessTemplateTask) []string {
	var names []string
	_ = json.Unmarshal(t.DependsOn, &names)
	return names
}

// ProcessTemplateFactory builds the canonical templates the original SII
// back-office ships with, for use before any database-resident template
// exists.
type ProcessTemplateFactory struct{}

// F29Monthly returns the blueprint for the monthly F29 (IVA) declaration
// process: sync documents, process them, draft, review, approve, submit,
// manage payment, archive.
func (ProcessTemplateFactory) F29Monthly() (models.ProcessTemplateConfig, []TaskBlueprint) {
	offset := func(n int) *int { return &n }
	tasks := []TaskBlueprint{
		{Name: "Sincronizar documentos del período", Kind: models.TaskKindAutomatic, ExecutionOrder: 1, DueDateOffsetDays: offset(-10)},
		{Name: "Procesar documentos tributarios", Kind: models.TaskKindAutomatic, ExecutionOrder: 2, DueDateFromPrevious: true,
			ExecutionConditions: map[string]any{"previous_task_status": "completed"}},
		{Name: "Generar borrador F29", Kind: models.TaskKindAutomatic, ExecutionOrder: 3, DueDateOffsetDays: offset(-7),
			ExecutionConditions: map[string]any{"previous_task_status": "completed"}},
		{Name: "Revisar y ajustar F29", Kind: models.TaskKindManual, ExecutionOrder: 4, DueDateOffsetDays: offset(-5)},
		{Name: "Aprobar F29 para envío", Kind: models.TaskKindManual, ExecutionOrder: 5, DueDateOffsetDays: offset(-3),
			ExecutionConditions: map[string]any{"previous_task_status": "completed"}},
		{Name: "Enviar F29 al SII", Kind: models.TaskKindAutomatic, ExecutionOrder: 6, DueDateOffsetDays: offset(-1),
			ExecutionConditions: map[string]any{"previous_task_status": "completed", "require_approval": true}},
		{Name: "Gestionar pago F29", Kind: models.TaskKindManual, ExecutionOrder: 7, IsOptional: true, DueDateOffsetDays: offset(0)},
		{Name: "Archivar comprobantes", Kind: models.TaskKindAutomatic, ExecutionOrder: 8, DueDateFromPrevious: true},
	}
	cfg := models.ProcessTemplateConfig{
		Name:                    "F29 - Declaración Mensual IVA",
		ProcessType:             models.ProcessTypeF29,
		Recurrence:              models.RecurrenceMonthly,
		IsActive:                true,
		DefaultRecurrenceConfig: models.RecurrenceConfig{DayOfMonth: 12},
	}
	cfg.TemplateConfig, _ = json.Marshal(map[string]any{"form_type": "f29", "due_day": 12})
	return cfg, tasks
}

// F22Annual returns the blueprint for the annual F22 (renta) declaration.
func (ProcessTemplateFactory) F22Annual() (models.ProcessTemplateConfig, []TaskBlueprint) {
	offset := func(n int) *int { return &n }
	tasks := []TaskBlueprint{
		{Name: "Recopilar información anual", Kind: models.TaskKindAutomatic, ExecutionOrder: 1, DueDateOffsetDays: offset(-60)},
		{Name: "Revisar consistencia F29", Kind: models.TaskKindAutomatic, ExecutionOrder: 2, CanRunParallel: true, DueDateFromPrevious: true},
		{Name: "Calcular depreciación activos", Kind: models.TaskKindManual, ExecutionOrder: 2, CanRunParallel: true, DueDateOffsetDays: offset(-45)},
		{Name: "Preparar balance tributario", Kind: models.TaskKindManual, ExecutionOrder: 3, DueDateOffsetDays: offset(-30)},
		{Name: "Calcular RLI", Kind: models.TaskKindManual, ExecutionOrder: 4, DueDateOffsetDays: offset(-20)},
		{Name: "Generar borrador F22", Kind: models.TaskKindAutomatic, ExecutionOrder: 5, DueDateOffsetDays: offset(-15)},
		{Name: "Revisión contador externo", Kind: models.TaskKindManual, ExecutionOrder: 6, IsOptional: true, DueDateOffsetDays: offset(-10)},
		{Name: "Aprobar F22", Kind: models.TaskKindManual, ExecutionOrder: 7, DueDateOffsetDays: offset(-5)},
		{Name: "Enviar F22 al SII", Kind: models.TaskKindAutomatic, ExecutionOrder: 8, DueDateOffsetDays: offset(-2)},
		{Name: "Gestionar pago/devolución", Kind: models.TaskKindManual, ExecutionOrder: 9, DueDateOffsetDays: offset(0)},
	}
	cfg := models.ProcessTemplateConfig{
		Name:                    "F22 - Declaración Anual de Renta",
		ProcessType:             models.ProcessTypeF22,
		Recurrence:              models.RecurrenceAnnual,
		IsActive:                true,
		DefaultRecurrenceConfig: models.RecurrenceConfig{Month: int(time.April), Day: 30},
	}
	cfg.TemplateConfig, _ = json.Marshal(map[string]any{"form_type": "f22", "due_month": 4, "due_day": 30})
	return cfg, tasks
}

// F3323Quarterly returns the blueprint for the quarterly F3323 (PPM)
// declaration.
func (ProcessTemplateFactory) F3323Quarterly() (models.ProcessTemplateConfig, []TaskBlueprint) {
	offset := func(n int) *int { return &n }
	tasks := []TaskBlueprint{
		{Name: "Consolidar información trimestral", Kind: models.TaskKindAutomatic, ExecutionOrder: 1, DueDateOffsetDays: offset(-10)},
		{Name: "Calcular PPM", Kind: models.TaskKindAutomatic, ExecutionOrder: 2, DueDateFromPrevious: true,
			ExecutionConditions: map[string]any{"previous_task_status": "completed"}},
		{Name: "Generar borrador F3323", Kind: models.TaskKindAutomatic, ExecutionOrder: 3, DueDateOffsetDays: offset(-5)},
		{Name: "Aprobar F3323", Kind: models.TaskKindManual, ExecutionOrder: 4, DueDateOffsetDays: offset(-2)},
		{Name: "Enviar F3323 al SII", Kind: models.TaskKindAutomatic, ExecutionOrder: 5, DueDateOffsetDays: offset(-1),
			ExecutionConditions: map[string]any{"previous_task_status": "completed"}},
	}
	cfg := models.ProcessTemplateConfig{
		Name:                    "F3323 - Declaración Trimestral PPM",
		ProcessType:             models.ProcessTypeF3323,
		Recurrence:              models.RecurrenceQuarterly,
		IsActive:                true,
		DefaultRecurrenceConfig: models.RecurrenceConfig{DayOfMonth: 20},
	}
	cfg.TemplateConfig, _ = json.Marshal(map[string]any{
		"form_type":  "f3323",
		"quarters": map[string]any{
			"Q1": map[string]any{"months": []int{1, 2, 3}, "due_month": 4, "due_day": 20},
			"Q2": map[string]any{"months": []int{4, 5, 6}, "due_month": 7, "due_day": 20},
			"Q3": map[string]any{"months": []int{7, 8, 9}, "due_month": 10, "due_day": 20},
			"Q4": map[string]any{"months": []int{10, 11, 12}, "due_month": 1, "due_day": 20},
		},
	})
	return cfg, tasks
}

// SeedCanonicalTemplates persists the F29/F22/F3323 factory templates into
// the store if they are not already present (matched by name), validating
// each template's task graph before insert. Used by the
// seed_process_templates admin command.
func SeedCanonicalTemplates(db *gorm.DB) error {
	factory := ProcessTemplateFactory{}
	builders := []func() (models.ProcessTemplateConfig, []TaskBlueprint){
		factory.F29Monthly, factory.F22Annual, factory.F3323Quarterly,
	}

	for _, build := range builders {
		cfg, blueprints := build()
		if err := SeedTemplate(db, cfg, blueprints); err != nil {
			return err
		}
	}
	return nil
}

// SeedTemplate persists a single template (already built from the factory
// or decoded from a YAML definition, see internal/process/templateconfig)
// if a template with the same name isn't already present, validating the
// task graph before insert.
func SeedTemplate(db *gorm.DB, cfg models.ProcessTemplateConfig, blueprints []TaskBlueprint) error {
	var existing models.ProcessTemplateConfig
	err := db.Where("name = ?", cfg.Name).First(&existing).Error
	if err == nil {
		return nil // already seeded
	}
	if err != gorm.ErrRecordNotFound {
		return fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&cfg).Error; err != nil {
			return err
		}
		tasks := toTemplateTasks(cfg.ID, blueprints)
		if err := ValidateTemplate(tasks); err != nil {
			return err
		}
		for i := range tasks {
			if err := tx.Create(&tasks[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var appErr *fizkoerrors.AppError
		if fizkoerrors.As(err, &appErr) {
			return appErr
		}
		return fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}
	return nil
}

// toTemplateTasks converts factory blueprints into persistable
// ProcessTemplateTask rows for templateID.
func toTemplateTasks(templateID uuid.UUID, blueprints []TaskBlueprint) []models.ProcessTemplateTask {
	out := make([]models.ProcessTemplateTask, 0, len(blueprints))
	for _, b := range blueprints {
		var conditions datatypes.JSON
		if b.ExecutionConditions != nil {
			conditions, _ = json.Marshal(b.ExecutionConditions)
		}
		var dependsOn datatypes.JSON
		if b.DependsOn != nil {
			dependsOn, _ = json.Marshal(b.DependsOn)
		}
		out = append(out, models.ProcessTemplateTask{
			TemplateID:          templateID,
			Name:                b.Name,
			Kind:                b.Kind,
			ExecutionOrder:      b.ExecutionOrder,
			IsOptional:          b.IsOptional,
			CanRunParallel:      b.CanRunParallel,
			DependsOn:           dependsOn,
			AbsoluteDueDate:     b.AbsoluteDueDate,
			DueDateOffsetDays:   b.DueDateOffsetDays,
			DueDateFromPrevious: b.DueDateFromPrevious,
			ExecutionConditions: conditions,
		})
	}
	return out
}
