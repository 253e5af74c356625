/*
Package process - Process materialiser (C12)

ApplyTemplate instantiates a ProcessTemplateConfig as a concrete Process
plus its Tasks, computing every task's absolute due date from the
template's offset rules (see resolveTaskDueDate) and the process's own due
date (see resolveProcessDueDate, keyed by recurrence/process type).
*/
package process

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	fizkoerrors "fizko/internal/errors"
	"fizko/internal/models"
)

// ApplyTemplate materialises template into a Process owned by company, all
// under one transaction. overrides is merged on top of the template's own
// template_config to produce the process's config_data.
func ApplyTemplate(db *gorm.DB, template models.ProcessTemplateConfig, company models.Company, taxpayer models.TaxPayer, overrides map[string]any) (*models.Process, error) {
	if !template.IsActive {
		return nil, fizkoerrors.NewAppError(fizkoerrors.KindValidation, fmt.Sprintf("template %q is not active", template.Name), false)
	}

	var process *models.Process
	err := db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		configData, err := mergeConfig(template.TemplateConfig, overrides)
		if err != nil {
			return err
		}

		dueDate := resolveProcessDueDate(template, now)
		period := periodFor(template.ProcessType, dueDate)
		configData["period"] = period
		configDataJSON, _ := json.Marshal(configData)

		p := models.Process{
			CompanyID:   company.ID,
			TaxpayerID:  taxpayer.ID,
			TemplateID:  template.ID,
			ProcessType: template.ProcessType,
			Status:      models.ProcessStatusDraft,
			DueDate:     dueDate,
			Period:      period,
			ConfigData:  configDataJSON,
		}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}

		var templateTasks []models.ProcessTemplateTask
		if err := tx.Where("template_id = ?", template.ID).Order("execution_order asc").Find(&templateTasks).Error; err != nil {
			return err
		}
		if err := ValidateTemplate(templateTasks); err != nil {
			return err
		}

		for _, tt := range templateTasks {
			task := models.Task{
				ProcessID:           p.ID,
				Name:                tt.Name,
				Kind:                tt.Kind,
				Status:              models.TaskStatusPending,
				ExecutionOrder:      tt.ExecutionOrder,
				CanRunParallel:      tt.CanRunParallel,
				DependsOn:           tt.DependsOn,
				DueDate:             resolveTaskDueDate(tt, p.DueDate, now),
				ExecutionConditions: withOptionalFlag(tt.ExecutionConditions, tt.IsOptional),
			}
			if err := tx.Create(&task).Error; err != nil {
				return err
			}
		}

		process = &p
		return nil
	})
	if err != nil {
		var appErr *fizkoerrors.AppError
		if fizkoerrors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}
	return process, nil
}

// withOptionalFlag merges "optional": isOptional into a task's stored
// execution_conditions, so the execution engine can read optionality
// without joining back to the originating ProcessTemplateTask.
func withOptionalFlag(conditions []byte, isOptional bool) []byte {
	merged := map[string]any{}
	if len(conditions) > 0 {
		_ = json.Unmarshal(conditions, &merged)
	}
	merged["optional"] = isOptional
	out, _ := json.Marshal(merged)
	return out
}

func mergeConfig(templateConfig []byte, overrides map[string]any) (map[string]any, error) {
	merged := map[string]any{}
	if len(templateConfig) > 0 {
		if err := json.Unmarshal(templateConfig, &merged); err != nil {
			return nil, fizkoerrors.NewAppError(fizkoerrors.KindValidation, "template_config is not valid JSON", false)
		}
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged, nil
}

// resolveProcessDueDate computes the process's due date for the upcoming
// period from template.DefaultRecurrenceConfig, falling back to each
// process type's conventional SII due date when the config field is unset:
// F29 is the 12th of next month, F22 is 30 April of next year, F3323 is
// the 20th of the month after the current quarter.
func resolveProcessDueDate(template models.ProcessTemplateConfig, now time.Time) time.Time {
	cfg := template.DefaultRecurrenceConfig
	switch template.ProcessType {
	case models.ProcessTypeF29:
		day := cfg.DayOfMonth
		if day == 0 {
			day = 12
		}
		nextMonth := now.AddDate(0, 1, 0)
		return time.Date(nextMonth.Year(), nextMonth.Month(), day, 0, 0, 0, 0, time.UTC)
	case models.ProcessTypeF22:
		month := time.Month(cfg.Month)
		if month == 0 {
			month = time.April
		}
		day := cfg.Day
		if day == 0 {
			day = 30
		}
		return time.Date(now.Year()+1, month, day, 0, 0, 0, 0, time.UTC)
	case models.ProcessTypeF3323:
		day := cfg.DayOfMonth
		if day == 0 {
			day = 20
		}
		dueMonth := quarterDueMonth(now)
		return time.Date(dueMonth.Year(), dueMonth.Month(), day, 0, 0, 0, 0, time.UTC)
	default:
		return now.AddDate(0, 1, 0)
	}
}

// quarterDueMonth returns the first month of the quarter following now's
// quarter (Q4 rolls into January of the next year).
func quarterDueMonth(now time.Time) time.Time {
	quarterStartMonth := ((int(now.Month())-1)/3)*3 + 1
	nextQuarterMonth := quarterStartMonth + 3
	year := now.Year()
	if nextQuarterMonth > 12 {
		nextQuarterMonth -= 12
		year++
	}
	return time.Date(year, time.Month(nextQuarterMonth), 1, 0, 0, 0, 0, time.UTC)
}

// periodFor derives the canonical period label stored in config_data for
// each process type: "YYYYMM" for F29, "YYYY" for F22, "YYYY-Qn" for F3323.
func periodFor(processType models.ProcessType, dueDate time.Time) string {
	switch processType {
	case models.ProcessTypeF29:
		period := dueDate.AddDate(0, -1, 0)
		return period.Format("200601")
	case models.ProcessTypeF22:
		return fmt.Sprintf("%d", dueDate.Year()-1)
	case models.ProcessTypeF3323:
		quarter := (int(dueDate.AddDate(0, -1, 0).Month())-1)/3 + 1
		return fmt.Sprintf("%d-Q%d", dueDate.AddDate(0, -1, 0).Year(), quarter)
	default:
		return dueDate.Format("200601")
	}
}

// resolveTaskDueDate applies the offset rules: absolute_due_date wins;
// else a positive offset means now+offset, negative means
// process.due_date+offset, zero means process.due_date; else
// due_date_from_previous or the default falls back to process.due_date.
func resolveTaskDueDate(tt models.ProcessTemplateTask, processDueDate, now time.Time) time.Time {
	if tt.AbsoluteDueDate != nil {
		return *tt.AbsoluteDueDate
	}
	if tt.DueDateOffsetDays != nil {
		offset := *tt.DueDateOffsetDays
		switch {
		case offset > 0:
			return now.AddDate(0, 0, offset)
		case offset < 0:
			return processDueDate.AddDate(0, 0, offset)
		default:
			return processDueDate
		}
	}
	// due_date_from_previous (or default): placeholder anchored on the
	// process due date; predecessor-completion anchoring is a later
	// refinement (see spec).
	return processDueDate
}
