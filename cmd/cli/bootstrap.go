package main

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"fizko/internal/config"
	"fizko/internal/database"
	"fizko/internal/logger"
)

// openStore loads configuration, connects to the database (running
// migrations), and sets up a logger — the shared bootstrap every admin
// command needs before doing its own work.
func openStore() (*gorm.DB, *logrus.Logger, *config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, nil, &configError{cause: err}
	}

	db, err := database.NewConnection(cfg.DatabaseURL, cfg.DBDriver)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, nil, nil, err
	}

	log := logger.Setup(cfg.Env)
	return db, log, cfg, nil
}
