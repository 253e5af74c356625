/*
Package templateconfig - YAML process template loader

Loads ProcessTemplateConfig/TaskBlueprint definitions from a YAML file on
disk, on top of the three hardcoded factory templates in
internal/process.ProcessTemplateFactory.
*/
package templateconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"fizko/internal/models"
	"fizko/internal/process"
)

// TaskDefinition is the YAML shape of one task in a template file.
type TaskDefinition struct {
	Name                string         `yaml:"name"`
	Kind                string         `yaml:"kind"` // "automatic" | "manual"
	ExecutionOrder      int            `yaml:"execution_order"`
	Optional            bool           `yaml:"optional"`
	CanRunParallel      bool           `yaml:"can_run_parallel"`
	DependsOn           []string       `yaml:"depends_on"`
	AbsoluteDueDate     string         `yaml:"absolute_due_date"` // "2006-01-02", fixed calendar date; takes priority over the offset below
	DueDateOffsetDays   *int           `yaml:"due_date_offset_days"`
	DueDateFromPrevious bool           `yaml:"due_date_from_previous"`
	ExecutionConditions map[string]any `yaml:"execution_conditions"`
}

// RecurrenceConfigDefinition is the YAML shape of a template's
// default_recurrence_config block.
type RecurrenceConfigDefinition struct {
	DayOfMonth int   `yaml:"day_of_month"`
	Month      int   `yaml:"month"`
	Day        int   `yaml:"day"`
	Months     []int `yaml:"months"`
}

// TemplateDefinition is the YAML shape of a whole template file: one
// template config plus its tasks.
type TemplateDefinition struct {
	Name                    string                     `yaml:"name"`
	ProcessType             string                     `yaml:"process_type"` // "f29_monthly" | "f22_annual" | "f3323_quarterly"
	Recurrence              string                     `yaml:"recurrence"`   // "monthly" | "quarterly" | "annual"
	TemplateConfig          map[string]any             `yaml:"template_config"`
	DefaultRecurrenceConfig RecurrenceConfigDefinition `yaml:"default_recurrence_config"`
	Tasks                   []TaskDefinition           `yaml:"tasks"`
}

// File is the top-level YAML document: a list of template definitions.
type File struct {
	Templates []TemplateDefinition `yaml:"templates"`
}

// LoadFile parses a YAML file of template definitions.
func LoadFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template file %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse template file %s: %w", path, err)
	}
	return &f, nil
}

// SeedFile loads path and seeds every template definition it contains via
// process.SeedTemplate, skipping ones already present by name.
func SeedFile(db *gorm.DB, path string) (int, error) {
	f, err := LoadFile(path)
	if err != nil {
		return 0, err
	}

	seeded := 0
	for _, def := range f.Templates {
		cfg, blueprints, err := toProcessTemplate(def)
		if err != nil {
			return seeded, fmt.Errorf("template %q: %w", def.Name, err)
		}
		if err := process.SeedTemplate(db, cfg, blueprints); err != nil {
			return seeded, fmt.Errorf("template %q: %w", def.Name, err)
		}
		seeded++
	}
	return seeded, nil
}

func toProcessTemplate(def TemplateDefinition) (models.ProcessTemplateConfig, []process.TaskBlueprint, error) {
	cfg := models.ProcessTemplateConfig{
		Name:        def.Name,
		ProcessType: models.ProcessType(def.ProcessType),
		Recurrence:  models.RecurrenceKind(def.Recurrence),
		IsActive:    true,
		DefaultRecurrenceConfig: models.RecurrenceConfig{
			DayOfMonth: def.DefaultRecurrenceConfig.DayOfMonth,
			Month:      def.DefaultRecurrenceConfig.Month,
			Day:        def.DefaultRecurrenceConfig.Day,
			Months:     def.DefaultRecurrenceConfig.Months,
		},
	}
	if def.TemplateConfig != nil {
		raw, err := json.Marshal(def.TemplateConfig)
		if err != nil {
			return cfg, nil, fmt.Errorf("template_config: %w", err)
		}
		cfg.TemplateConfig = raw
	}

	blueprints := make([]process.TaskBlueprint, 0, len(def.Tasks))
	for _, t := range def.Tasks {
		var absoluteDueDate *time.Time
		if t.AbsoluteDueDate != "" {
			parsed, err := time.Parse("2006-01-02", t.AbsoluteDueDate)
			if err != nil {
				return cfg, nil, fmt.Errorf("task %q: absolute_due_date: %w", t.Name, err)
			}
			absoluteDueDate = &parsed
		}
		blueprints = append(blueprints, process.TaskBlueprint{
			Name:                t.Name,
			Kind:                models.TaskKind(t.Kind),
			ExecutionOrder:      t.ExecutionOrder,
			IsOptional:          t.Optional,
			CanRunParallel:      t.CanRunParallel,
			DependsOn:           t.DependsOn,
			AbsoluteDueDate:     absoluteDueDate,
			DueDateOffsetDays:   t.DueDateOffsetDays,
			DueDateFromPrevious: t.DueDateFromPrevious,
			ExecutionConditions: t.ExecutionConditions,
		})
	}
	return cfg, blueprints, nil
}
