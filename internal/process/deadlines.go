/*
Package process - Deadline monitor (C15)

Monitor periodically scans active/paused Processes and classifies each by
how close its due date is, emitting an Alert per process on alerts. The
three bands are mutually exclusive and checked overdue-first so a process
isn't double-counted: overdue (due_date < now), urgent (due_date within a
day), reminder (due_date within three days, but more than a day out).
*/
package process

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"fizko/internal/models"
)

// Alert is the structured record the deadline monitor emits; consumed by
// the messaging subsystem and the operator TUI/worker.
type Alert struct {
	ProcessID   uuid.UUID
	CompanyID   uuid.UUID
	ProcessType models.ProcessType
	DueDate     time.Time
	Severity    models.AlertSeverity
}

// Monitor scans for upcoming/imminent/overdue processes on a timer and
// emits one Alert per match on its output channel.
type Monitor struct {
	db     *gorm.DB
	log    *logrus.Logger
	alerts chan<- Alert
}

// NewMonitor returns a Monitor that emits onto alerts. The caller owns the
// channel's lifetime and must keep draining it.
func NewMonitor(db *gorm.DB, log *logrus.Logger, alerts chan<- Alert) *Monitor {
	return &Monitor{db: db, log: log, alerts: alerts}
}

// ScanOnce runs a single classification pass over all active/paused
// processes and emits the resulting alerts.
func (m *Monitor) ScanOnce(ctx context.Context) error {
	now := time.Now()

	var processes []models.Process
	err := m.db.WithContext(ctx).
		Where("status IN ?", []models.ProcessStatus{models.ProcessStatusActive, models.ProcessStatusPaused}).
		Find(&processes).Error
	if err != nil {
		return err
	}

	for _, p := range processes {
		severity, ok := classify(p.DueDate, now)
		if !ok {
			continue
		}
		alert := Alert{ProcessID: p.ID, CompanyID: p.CompanyID, ProcessType: p.ProcessType, DueDate: p.DueDate, Severity: severity}
		select {
		case m.alerts <- alert:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Run scans on interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.ScanOnce(ctx); err != nil {
				m.log.WithError(err).Warn("deadline monitor scan failed")
			}
		}
	}
}

// classify buckets a due date relative to now into overdue/urgent/reminder,
// checked in that order so the bands stay mutually exclusive.
func classify(dueDate, now time.Time) (models.AlertSeverity, bool) {
	if dueDate.Before(now) {
		return models.AlertOverdue, true
	}
	if !dueDate.After(now.Add(24 * time.Hour)) {
		return models.AlertUrgent, true
	}
	if !dueDate.After(now.Add(72 * time.Hour)) {
		return models.AlertReminder, true
	}
	return "", false
}
