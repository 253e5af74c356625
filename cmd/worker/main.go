/*
Package main - compliance core background worker (A8)

Runs two independent ticking loops for the lifetime of the process: the
deadline monitor (C15), draining its alerts into the log, and a recurrence
sweep that generates the next occurrence for every completed recurring
Process that doesn't have one yet (C14). Stands in for the Celery beat
schedule of the original system.
*/
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"fizko/internal/config"
	"fizko/internal/database"
	"fizko/internal/logger"
	"fizko/internal/models"
	"fizko/internal/process"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		os.Exit(1)
	}
	log := logger.Setup(cfg.Env)

	db, err := database.NewConnection(cfg.DatabaseURL, cfg.DBDriver)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received, draining workers")
		cancel()
	}()

	alerts := make(chan process.Alert, 64)
	monitor := process.NewMonitor(db, log, alerts)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case alert, ok := <-alerts:
				if !ok {
					return
				}
				log.WithFields(map[string]any{
					"process_id":   alert.ProcessID,
					"process_type": alert.ProcessType,
					"due_date":     alert.DueDate,
					"severity":     alert.Severity,
				}).Warn("deadline alert")
			}
		}
	}()

	interval := cfg.DeadlineCheckInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	go monitor.Run(ctx, interval)
	go runRecurrenceSweep(ctx, db, log, interval)

	log.WithField("interval", interval).Info("worker started")
	<-ctx.Done()
	log.Info("worker stopped")
}

// runRecurrenceSweep periodically generates the next occurrence for every
// completed recurring Process that has no child yet.
func runRecurrenceSweep(ctx context.Context, db *gorm.DB, log *logrus.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sweepRecurrences(ctx, db); err != nil {
				log.WithError(err).Warn("recurrence sweep failed")
			}
		}
	}
}

func sweepRecurrences(ctx context.Context, db *gorm.DB) error {
	var candidates []models.Process
	err := db.WithContext(ctx).
		Where("status = ?", models.ProcessStatusCompleted).
		Where("id NOT IN (SELECT parent_process_id FROM processes WHERE parent_process_id IS NOT NULL)").
		Find(&candidates).Error
	if err != nil {
		return err
	}

	for _, p := range candidates {
		if _, err := process.GenerateNextOccurrence(db, p.ID); err != nil {
			continue // already generated by a concurrent sweep, or genuinely unresolvable; next tick retries
		}
	}
	return nil
}
