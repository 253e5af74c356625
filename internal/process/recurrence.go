/*
Package process - Recurrence generator (C14)

GenerateNextOccurrence is called when a recurring Process transitions to
completed. It computes the next period from the completed process's own
config_data.period (not from the completion month, which may lag the
period it covers), refuses if that period's Process already exists, and
clones the parent's task structure with every due date recomputed.
*/
package process

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	fizkoerrors "fizko/internal/errors"
	"fizko/internal/models"
)

// GenerateNextOccurrence materialises the next recurring Process after
// parent (already completed), locking parent's row for the duration so two
// concurrent completions cannot double-generate.
func GenerateNextOccurrence(db *gorm.DB, parentID uuid.UUID) (*models.Process, error) {
	var next *models.Process
	err := db.Transaction(func(tx *gorm.DB) error {
		var parent models.Process
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&parent, "id = ?", parentID).Error; err != nil {
			return err
		}
		if parent.Status != models.ProcessStatusCompleted {
			return fizkoerrors.NewAppError(fizkoerrors.KindConditionUnmet,
				fmt.Sprintf("process %s is not completed, cannot generate next occurrence", parent.ID), false)
		}

		var template models.ProcessTemplateConfig
		if err := tx.First(&template, "id = ?", parent.TemplateID).Error; err != nil {
			return err
		}

		parentConfig := map[string]any{}
		if len(parent.ConfigData) > 0 {
			_ = json.Unmarshal(parent.ConfigData, &parentConfig)
		}

		nextPeriod, nextDueDate, err := nextOccurrence(template.Recurrence, template.ProcessType, parent.Period, parent.DueDate, template.DefaultRecurrenceConfig)
		if err != nil {
			return err
		}

		var existing models.Process
		err = tx.Where("company_id = ? AND process_type = ? AND period = ?",
			parent.CompanyID, parent.ProcessType, nextPeriod).First(&existing).Error
		if err == nil {
			return fizkoerrors.NewAppError(fizkoerrors.KindUpsertConflict,
				fmt.Sprintf("a process for period %s already exists", nextPeriod), false)
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		nextConfig := map[string]any{}
		for k, v := range parentConfig {
			nextConfig[k] = v
		}
		nextConfig["period"] = nextPeriod
		nextConfigJSON, _ := json.Marshal(nextConfig)

		child := models.Process{
			CompanyID:        parent.CompanyID,
			TaxpayerID:       parent.TaxpayerID,
			TemplateID:       parent.TemplateID,
			ProcessType:      parent.ProcessType,
			Status:           models.ProcessStatusDraft,
			DueDate:          nextDueDate,
			Period:           nextPeriod,
			ConfigData:       nextConfigJSON,
			ParentProcessID:  &parent.ID,
			RecurrenceSource: string(template.Recurrence),
		}
		if err := tx.Create(&child).Error; err != nil {
			return err
		}

		var parentTasks []models.Task
		if err := tx.Where("process_id = ?", parent.ID).Order("execution_order asc").Find(&parentTasks).Error; err != nil {
			return err
		}
		now := time.Now()
		for _, pt := range parentTasks {
			clone := models.Task{
				ProcessID:           child.ID,
				Name:                pt.Name,
				Kind:                pt.Kind,
				Status:              models.TaskStatusPending,
				ExecutionOrder:      pt.ExecutionOrder,
				CanRunParallel:      pt.CanRunParallel,
				DependsOn:           pt.DependsOn,
				DueDate:             recloneTaskDueDate(pt, parent.DueDate, child.DueDate, now),
				ExecutionConditions: pt.ExecutionConditions,
			}
			if err := tx.Create(&clone).Error; err != nil {
				return err
			}
		}

		next = &child
		return nil
	})
	if err != nil {
		var appErr *fizkoerrors.AppError
		if fizkoerrors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}
	return next, nil
}

// nextOccurrence computes the following period label and due date for a
// recurrence kind, anchored on the parent's own period (not today's date).
// Due days/months come from cfg, falling back to each recurrence kind's
// conventional SII due date when the corresponding cfg field is unset:
// monthly advances one month (due day 12 of the month after the new
// period); quarterly advances one quarter (due day 20); annual advances one
// year (due month/day, default April 30).
func nextOccurrence(recurrence models.RecurrenceKind, processType models.ProcessType, currentPeriod string, parentDueDate time.Time, cfg models.RecurrenceConfig) (string, time.Time, error) {
	switch recurrence {
	case models.RecurrenceMonthly:
		day := cfg.DayOfMonth
		if day == 0 {
			day = 12
		}
		current, err := time.Parse("200601", currentPeriod)
		if err != nil {
			current = parentDueDate.AddDate(0, -1, 0)
		}
		next := current.AddDate(0, 1, 0)
		due := time.Date(next.Year(), next.Month()+1, day, 0, 0, 0, 0, time.UTC)
		return next.Format("200601"), due, nil

	case models.RecurrenceQuarterly:
		day := cfg.DayOfMonth
		if day == 0 {
			day = 20
		}
		year, quarter, err := parseQuarterPeriod(currentPeriod)
		if err != nil {
			year, quarter = parentDueDate.Year(), (int(parentDueDate.Month())-1)/3
		}
		quarter++
		if quarter > 4 {
			quarter = 1
			year++
		}
		dueMonth := quarter*3 + 1
		dueYear := year
		if dueMonth > 12 {
			dueMonth -= 12
			dueYear++
		}
		due := time.Date(dueYear, time.Month(dueMonth), day, 0, 0, 0, 0, time.UTC)
		return fmt.Sprintf("%d-Q%d", year, quarter), due, nil

	case models.RecurrenceAnnual:
		month := time.Month(cfg.Month)
		if month == 0 {
			month = time.April
		}
		day := cfg.Day
		if day == 0 {
			day = 30
		}
		year, err := parseYearPeriod(currentPeriod)
		if err != nil {
			year = parentDueDate.Year() - 1
		}
		next := year + 1
		due := time.Date(next+1, month, day, 0, 0, 0, 0, time.UTC)
		return fmt.Sprintf("%d", next), due, nil

	default:
		return "", time.Time{}, fizkoerrors.NewAppError(fizkoerrors.KindValidation,
			fmt.Sprintf("unrecognised recurrence kind %q", recurrence), false)
	}
}

func parseQuarterPeriod(period string) (year, quarter int, err error) {
	_, err = fmt.Sscanf(period, "%d-Q%d", &year, &quarter)
	return
}

func parseYearPeriod(period string) (int, error) {
	var year int
	_, err := fmt.Sscanf(period, "%d", &year)
	return year, err
}

// recloneTaskDueDate recomputes a cloned task's due date using the same
// offset rule as materialisation, but against the new child process's due
// date (and "now" for positive offsets).
func recloneTaskDueDate(parentTask models.Task, parentDueDate, childDueDate, now time.Time) time.Time {
	offsetDays := int(parentTask.DueDate.Sub(parentDueDate).Hours() / 24)
	switch {
	case parentTask.DueDate.Equal(parentDueDate):
		return childDueDate
	case offsetDays < 0:
		return childDueDate.AddDate(0, 0, offsetDays)
	default:
		return now.AddDate(0, 0, offsetDays)
	}
}
