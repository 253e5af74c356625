package process

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fizko/internal/models"
)

func setupDeadlinesTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Process{}, &models.Task{}))
	return db
}

func TestClassify_Overdue(t *testing.T) {
	now := time.Date(2024, time.April, 12, 12, 0, 0, 0, time.UTC)
	severity, ok := classify(now.Add(-time.Hour), now)
	assert.True(t, ok)
	assert.Equal(t, models.AlertOverdue, severity)
}

func TestClassify_Urgent(t *testing.T) {
	now := time.Date(2024, time.April, 12, 12, 0, 0, 0, time.UTC)
	severity, ok := classify(now.Add(12*time.Hour), now)
	assert.True(t, ok)
	assert.Equal(t, models.AlertUrgent, severity)
}

func TestClassify_Reminder(t *testing.T) {
	now := time.Date(2024, time.April, 12, 12, 0, 0, 0, time.UTC)
	severity, ok := classify(now.Add(48*time.Hour), now)
	assert.True(t, ok)
	assert.Equal(t, models.AlertReminder, severity)
}

func TestClassify_BeyondReminderWindowIsNotAlerted(t *testing.T) {
	now := time.Date(2024, time.April, 12, 12, 0, 0, 0, time.UTC)
	_, ok := classify(now.Add(96*time.Hour), now)
	assert.False(t, ok)
}

func TestClassify_BandsAreMutuallyExclusiveAtBoundaries(t *testing.T) {
	now := time.Date(2024, time.April, 12, 12, 0, 0, 0, time.UTC)

	exactlyOneDay, _ := classify(now.Add(24*time.Hour), now)
	assert.Equal(t, models.AlertUrgent, exactlyOneDay)

	exactlyThreeDays, _ := classify(now.Add(72*time.Hour), now)
	assert.Equal(t, models.AlertReminder, exactlyThreeDays)
}

func TestMonitor_ScanOnce_EmitsOneAlertPerEligibleProcess(t *testing.T) {
	db := setupDeadlinesTestDB(t)
	now := time.Now()

	overdue := models.Process{ProcessType: models.ProcessTypeF29, Status: models.ProcessStatusActive, DueDate: now.Add(-time.Hour), Period: "202403"}
	upcoming := models.Process{ProcessType: models.ProcessTypeF22, Status: models.ProcessStatusPaused, DueDate: now.Add(48 * time.Hour), Period: "2024"}
	farOut := models.Process{ProcessType: models.ProcessTypeF3323, Status: models.ProcessStatusActive, DueDate: now.Add(240 * time.Hour), Period: "2024-Q2"}
	completed := models.Process{ProcessType: models.ProcessTypeF29, Status: models.ProcessStatusCompleted, DueDate: now.Add(-time.Hour), Period: "202402"}
	require.NoError(t, db.Create(&overdue).Error)
	require.NoError(t, db.Create(&upcoming).Error)
	require.NoError(t, db.Create(&farOut).Error)
	require.NoError(t, db.Create(&completed).Error)

	log := logrus.New()
	log.SetOutput(io.Discard)
	alerts := make(chan Alert, 10)
	monitor := NewMonitor(db, log, alerts)

	require.NoError(t, monitor.ScanOnce(context.Background()))
	close(alerts)

	var got []Alert
	for a := range alerts {
		got = append(got, a)
	}
	require.Len(t, got, 2)

	bySeverity := map[models.AlertSeverity]bool{}
	for _, a := range got {
		bySeverity[a.Severity] = true
	}
	assert.True(t, bySeverity[models.AlertOverdue])
	assert.True(t, bySeverity[models.AlertReminder])
}

func TestMonitor_Run_StopsOnContextCancellation(t *testing.T) {
	db := setupDeadlinesTestDB(t)
	log := logrus.New()
	log.SetOutput(io.Discard)
	alerts := make(chan Alert, 1)
	monitor := NewMonitor(db, log, alerts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
