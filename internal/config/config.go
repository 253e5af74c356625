/*
Package config - Application Configuration

==============================================================================
FILE: internal/config/config.go
==============================================================================

DESCRIPTION:
    Central application configuration for the compliance core. Loads
    settings from environment variables, an optional .env file, an optional
    TOML defaults file, and optionally HashiCorp Vault for production
    secrets management.

CONFIGURATION SOURCES (priority order, highest wins):
    1. Environment variables
    2. HashiCorp Vault (if VAULT_ADDR is set) — overlays MASTER_SECRET and
       DATABASE_URL only, never overrides an explicit env var
    3. TOML defaults file (if CONFIG_FILE is set)
    4. Hardcoded defaults in DefaultConfig()

==============================================================================
*/
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/vault/api"
	"github.com/joho/godotenv"
)

// Config contains all application configuration for the SII compliance core.
type Config struct {
	// Server / environment
	Env      string `toml:"environment"`
	LogLevel string `toml:"log_level"`

	// Database
	DatabaseURL string `toml:"database_url"`
	DBDriver    string `toml:"db_driver"`

	// Crypto vault (C1)
	MasterSecret string `toml:"master_secret"`

	// Portal adapter (C2)
	PortalBaseURL       string        `toml:"portal_base_url"`
	PortalLoginURL      string        `toml:"portal_login_url"`
	PortalTimeout       time.Duration `toml:"-"`
	PortalTimeoutSecs   int           `toml:"portal_timeout_seconds"`
	PortalMode          string        `toml:"portal_mode"` // "real" | "mock"

	// Ingestion coordinator (C6)
	SyncBatchSize              int `toml:"sync_batch_size"`
	SyncProgressIntervalPeriods int `toml:"sync_progress_interval_periods"`
	PortalRetryMaxAttempts     int `toml:"portal_retry_max_attempts"`

	// Worker (A8)
	DeadlineCheckInterval time.Duration `toml:"-"`
	DeadlineCheckIntervalMinutes int    `toml:"deadline_check_interval_minutes"`

	// Vault client, populated if VAULT_ADDR is configured.
	VaultClient *api.Client `toml:"-"`
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Env:                          "development",
		LogLevel:                     "info",
		DatabaseURL:                  "./fizko.db",
		DBDriver:                     "sqlite",
		MasterSecret:                 "",
		PortalBaseURL:                "",
		PortalLoginURL:               "",
		PortalTimeoutSecs:            30,
		PortalMode:                   "mock",
		SyncBatchSize:                1000,
		SyncProgressIntervalPeriods:  10,
		PortalRetryMaxAttempts:       3,
		DeadlineCheckIntervalMinutes: 60,
	}
}

// Load loads configuration from all sources and resolves derived fields.
// configFile may be empty; when set, it is a TOML defaults overlay applied
// before environment variables (so env always wins).
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile != "" {
		if _, err := toml.DecodeFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("error loading TOML config %s: %w", configFile, err)
		}
	}

	applyEnv(cfg)

	if os.Getenv("VAULT_ADDR") != "" {
		if err := loadFromVault(cfg); err != nil {
			fmt.Printf("warning: could not load secrets from vault: %v\n", err)
		}
	}

	cfg.PortalTimeout = time.Duration(cfg.PortalTimeoutSecs) * time.Second
	cfg.DeadlineCheckInterval = time.Duration(cfg.DeadlineCheckIntervalMinutes) * time.Minute

	if cfg.MasterSecret == "" {
		return nil, fmt.Errorf("MASTER_SECRET must be set (config: %w)", errConfigIncomplete)
	}

	return cfg, nil
}

var errConfigIncomplete = fmt.Errorf("incomplete configuration")

func applyEnv(c *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("ENVIRONMENT", &c.Env)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("DATABASE_URL", &c.DatabaseURL)
	setString("DB_DRIVER", &c.DBDriver)
	setString("MASTER_SECRET", &c.MasterSecret)
	setString("PORTAL_BASE_URL", &c.PortalBaseURL)
	setString("PORTAL_LOGIN_URL", &c.PortalLoginURL)
	setString("PORTAL_MODE", &c.PortalMode)
	setInt("PORTAL_TIMEOUT_SECONDS", &c.PortalTimeoutSecs)
	setInt("SYNC_BATCH_SIZE", &c.SyncBatchSize)
	setInt("SYNC_PROGRESS_INTERVAL_PERIODS", &c.SyncProgressIntervalPeriods)
	setInt("PORTAL_RETRY_MAX_ATTEMPTS", &c.PortalRetryMaxAttempts)
	setInt("DEADLINE_CHECK_INTERVAL_MINUTES", &c.DeadlineCheckIntervalMinutes)
}

// loadFromVault connects to Vault and overlays secrets not already set by
// an explicit environment variable.
func loadFromVault(c *Config) error {
	vaultConfig := api.DefaultConfig() // VAULT_ADDR / VAULT_TOKEN read from env

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return fmt.Errorf("failed to create vault client: %w", err)
	}
	c.VaultClient = client

	secretPath := os.Getenv("VAULT_SECRET_PATH")
	if secretPath == "" {
		secretPath = "secret/data/fizko"
	}

	secret, err := client.KVv2(secretPath).Get(context.Background(), "")
	if err != nil {
		return fmt.Errorf("failed to read secrets from vault path %s: %w", secretPath, err)
	}

	if os.Getenv("MASTER_SECRET") == "" {
		if v, ok := secret.Data["MASTER_SECRET"].(string); ok {
			c.MasterSecret = v
		}
	}
	if v, ok := secret.Data["DATABASE_URL"].(string); ok && os.Getenv("DATABASE_URL") == "" {
		c.DatabaseURL = v
	}

	return nil
}

func (c *Config) IsProduction() bool  { return c.Env == "production" }
func (c *Config) IsDevelopment() bool { return c.Env == "development" }
