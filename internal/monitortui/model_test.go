package monitortui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fizko/internal/models"
)

func TestClassify_BandsMatchEngineThresholds(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	severity, ok := classify(now.Add(-time.Hour), now)
	require.True(t, ok)
	assert.Equal(t, "overdue", severity)

	severity, ok = classify(now.Add(12*time.Hour), now)
	require.True(t, ok)
	assert.Equal(t, "urgent", severity)

	severity, ok = classify(now.Add(48*time.Hour), now)
	require.True(t, ok)
	assert.Equal(t, "reminder", severity)

	_, ok = classify(now.Add(96*time.Hour), now)
	assert.False(t, ok, "processes due more than 3 days out must not be classified")
}

func setupMonitorTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to open test database")

	err = db.AutoMigrate(&models.Process{}, &models.Company{})
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func TestRefresh_ReturnsRowsForActiveAndPausedProcesses(t *testing.T) {
	db := setupMonitorTestDB(t)

	company := models.Company{Name: "Comercial Andina SPA", TaxID: "76123456-K"}
	require.NoError(t, db.Create(&company).Error)

	overdue := models.Process{
		CompanyID:   company.ID,
		ProcessType: models.ProcessTypeF29,
		Status:      models.ProcessStatusActive,
		DueDate:     time.Now().Add(-48 * time.Hour),
		Period:      "202506",
	}
	completed := models.Process{
		CompanyID:   company.ID,
		ProcessType: models.ProcessTypeF29,
		Status:      models.ProcessStatusCompleted,
		DueDate:     time.Now().Add(-48 * time.Hour),
		Period:      "202505",
	}
	farOut := models.Process{
		CompanyID:   company.ID,
		ProcessType: models.ProcessTypeF22,
		Status:      models.ProcessStatusPaused,
		DueDate:     time.Now().Add(240 * time.Hour),
		Period:      "2026",
	}
	require.NoError(t, db.Create(&overdue).Error)
	require.NoError(t, db.Create(&completed).Error)
	require.NoError(t, db.Create(&farOut).Error)

	m := New(db)
	msg := m.refresh()
	refreshed, ok := msg.(refreshedMsg)
	require.True(t, ok)
	require.NoError(t, refreshed.err)
	require.Len(t, refreshed.rows, 1, "completed processes and ones due far out must be excluded")
	assert.Equal(t, "Comercial Andina SPA", refreshed.rows[0].CompanyName)
	assert.Equal(t, "overdue", refreshed.rows[0].Severity)
}
