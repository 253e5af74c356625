package process

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fizko/internal/models"
)

func setupRecurrenceTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ProcessTemplateConfig{}, &models.Process{}, &models.Task{}))
	return db
}

func createCompletedProcess(t *testing.T, db *gorm.DB, template models.ProcessTemplateConfig, period string, dueDate time.Time) models.Process {
	configData, _ := json.Marshal(map[string]any{"period": period})
	p := models.Process{
		TemplateID:  template.ID,
		ProcessType: template.ProcessType,
		Status:      models.ProcessStatusCompleted,
		DueDate:     dueDate,
		Period:      period,
		ConfigData:  configData,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func TestGenerateNextOccurrence_Monthly(t *testing.T) {
	db := setupRecurrenceTestDB(t)
	template := models.ProcessTemplateConfig{Name: "F29", ProcessType: models.ProcessTypeF29, Recurrence: models.RecurrenceMonthly, IsActive: true}
	require.NoError(t, db.Create(&template).Error)

	parent := createCompletedProcess(t, db, template, "202403", time.Date(2024, time.April, 12, 0, 0, 0, 0, time.UTC))

	next, err := GenerateNextOccurrence(db, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, "202404", next.Period)
	assert.Equal(t, time.Date(2024, time.May, 12, 0, 0, 0, 0, time.UTC), next.DueDate)
	assert.Equal(t, models.ProcessStatusDraft, next.Status)
	require.NotNil(t, next.ParentProcessID)
	assert.Equal(t, parent.ID, *next.ParentProcessID)
}

func TestGenerateNextOccurrence_Quarterly(t *testing.T) {
	db := setupRecurrenceTestDB(t)
	template := models.ProcessTemplateConfig{Name: "F3323", ProcessType: models.ProcessTypeF3323, Recurrence: models.RecurrenceQuarterly, IsActive: true}
	require.NoError(t, db.Create(&template).Error)

	parent := createCompletedProcess(t, db, template, "2024-Q4", time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC))

	next, err := GenerateNextOccurrence(db, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-Q1", next.Period)
	assert.Equal(t, time.Date(2025, time.April, 20, 0, 0, 0, 0, time.UTC), next.DueDate)
}

func TestGenerateNextOccurrence_Annual(t *testing.T) {
	db := setupRecurrenceTestDB(t)
	template := models.ProcessTemplateConfig{Name: "F22", ProcessType: models.ProcessTypeF22, Recurrence: models.RecurrenceAnnual, IsActive: true}
	require.NoError(t, db.Create(&template).Error)

	parent := createCompletedProcess(t, db, template, "2024", time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC))

	next, err := GenerateNextOccurrence(db, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025", next.Period)
	assert.Equal(t, time.Date(2026, time.April, 30, 0, 0, 0, 0, time.UTC), next.DueDate)
}

func TestGenerateNextOccurrence_RefusesWhenParentNotCompleted(t *testing.T) {
	db := setupRecurrenceTestDB(t)
	template := models.ProcessTemplateConfig{Name: "F29", ProcessType: models.ProcessTypeF29, Recurrence: models.RecurrenceMonthly, IsActive: true}
	require.NoError(t, db.Create(&template).Error)

	parent := createCompletedProcess(t, db, template, "202403", time.Date(2024, time.April, 12, 0, 0, 0, 0, time.UTC))
	parent.Status = models.ProcessStatusActive
	require.NoError(t, db.Save(&parent).Error)

	_, err := GenerateNextOccurrence(db, parent.ID)
	assert.Error(t, err)
}

func TestGenerateNextOccurrence_RefusesDuplicatePeriod(t *testing.T) {
	db := setupRecurrenceTestDB(t)
	template := models.ProcessTemplateConfig{Name: "F29", ProcessType: models.ProcessTypeF29, Recurrence: models.RecurrenceMonthly, IsActive: true}
	require.NoError(t, db.Create(&template).Error)

	parent := createCompletedProcess(t, db, template, "202403", time.Date(2024, time.April, 12, 0, 0, 0, 0, time.UTC))

	// Next period's process already exists (e.g. materialised independently).
	existing := models.Process{
		CompanyID:   parent.CompanyID,
		TemplateID:  template.ID,
		ProcessType: template.ProcessType,
		Status:      models.ProcessStatusDraft,
		DueDate:     time.Date(2024, time.May, 12, 0, 0, 0, 0, time.UTC),
		Period:      "202404",
	}
	require.NoError(t, db.Create(&existing).Error)

	_, err := GenerateNextOccurrence(db, parent.ID)
	assert.Error(t, err)
}

func TestGenerateNextOccurrence_ClonesTaskStructureWithRecomputedDueDates(t *testing.T) {
	db := setupRecurrenceTestDB(t)
	template := models.ProcessTemplateConfig{Name: "F29", ProcessType: models.ProcessTypeF29, Recurrence: models.RecurrenceMonthly, IsActive: true}
	require.NoError(t, db.Create(&template).Error)

	parentDueDate := time.Date(2024, time.April, 12, 0, 0, 0, 0, time.UTC)
	parent := createCompletedProcess(t, db, template, "202403", parentDueDate)

	parentTask := models.Task{
		ProcessID:      parent.ID,
		Name:           "Sincronizar documentos del período",
		Kind:           models.TaskKindAutomatic,
		Status:         models.TaskStatusCompleted,
		ExecutionOrder: 1,
		DueDate:        parentDueDate.AddDate(0, 0, -10),
	}
	require.NoError(t, db.Create(&parentTask).Error)

	next, err := GenerateNextOccurrence(db, parent.ID)
	require.NoError(t, err)

	var childTasks []models.Task
	require.NoError(t, db.Where("process_id = ?", next.ID).Find(&childTasks).Error)
	require.Len(t, childTasks, 1)
	assert.Equal(t, models.TaskStatusPending, childTasks[0].Status)
	assert.Equal(t, next.DueDate.AddDate(0, 0, -10), childTasks[0].DueDate)
}

func TestParseQuarterPeriod_RoundTrip(t *testing.T) {
	year, quarter, err := parseQuarterPeriod("2024-Q4")
	require.NoError(t, err)
	assert.Equal(t, 2024, year)
	assert.Equal(t, 4, quarter)
}
