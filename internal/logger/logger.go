/*
Package logger - Structured logging configuration

==============================================================================
FILE: internal/logger/logger.go
==============================================================================

DESCRIPTION:
    Configures structured logging using logrus for the compliance core.
    Every package logs through the *logrus.Logger returned by Setup instead
    of the standard library log package, so ingestion runs, process
    execution, and the admin CLI all produce machine-parseable entries.

LOG LEVELS (from most to least severe):
    - Error: failed sync runs, fatal decryption/condition errors
    - Warn: recoverable portal errors, amount mismatches, skipped waves
    - Info: sync started/finished, process materialised, task completed
    - Debug: per-document/per-task detail (development only)

==============================================================================
*/
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Setup initializes the logger for the given environment ("production" gets
// JSON output at Info level; anything else gets text output at Debug level).
func Setup(env string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if env == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetLevel(logrus.InfoLevel)
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := logrus.ParseLevel(lvl); err == nil {
			log.SetLevel(parsed)
		}
	}

	return log
}

// WithSyncLog returns an entry pre-tagged with the sync run's identity, used
// throughout the ingestion coordinator so every line from one run can be
// grepped together.
func WithSyncLog(log *logrus.Logger, syncLogID, taxpayerID string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"sync_log_id": syncLogID,
		"taxpayer_id": taxpayerID,
	})
}
