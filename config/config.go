package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"freelance-workflow/core/fees"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Environments understood by the logger setup
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds the application configuration
type Config struct {
	Env      string
	LogLevel string

	// Database
	Store       string
	DatabaseURL string

	// Server
	ServerPort      string
	ShutdownTimeout time.Duration

	// Workflow policy
	CommissionPct     decimal.Decimal
	RevisionLimit     int
	RevisionExtension time.Duration

	// Realtime events are published with pg_notify on this channel
	RealtimeChannel string
}

// policyFile is the YAML overlay read from CONFIG_FILE
type policyFile struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	Server   struct {
		Port            string `yaml:"port"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Storage struct {
		Backend     string `yaml:"backend"`
		DatabaseURL string `yaml:"database_url"`
	} `yaml:"storage"`
	Workflow struct {
		CommissionPercent *string `yaml:"commission_percent"`
		RevisionLimit     *int    `yaml:"revision_limit"`
		RevisionExtension string  `yaml:"revision_extension"`
	} `yaml:"workflow"`
	Realtime struct {
		Channel string `yaml:"channel"`
	} `yaml:"realtime"`
}

// Load loads configuration from environment variables, then applies the
// YAML file named by CONFIG_FILE if set, and validates the result
func Load() (*Config, error) {
	cfg := &Config{
		Env:             getEnv("APP_ENV", EnvLocal),
		LogLevel:        getEnv("LOG_LEVEL", ""),
		Store:           getEnv("STORE", StorePostgres),
		DatabaseURL:     getEnv("DATABASE_URL", "postgres://localhost/freelance_workflow?sslmode=disable"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		RealtimeChannel: getEnv("REALTIME_CHANNEL", "task_events"),
	}

	var err error
	if cfg.ShutdownTimeout, err = time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "15s")); err != nil {
		return nil, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
	}
	if cfg.CommissionPct, err = decimal.NewFromString(getEnv("COMMISSION_PERCENT", "15")); err != nil {
		return nil, fmt.Errorf("COMMISSION_PERCENT: %w", err)
	}
	if cfg.RevisionLimit, err = strconv.Atoi(getEnv("REVISION_LIMIT", "2")); err != nil {
		return nil, fmt.Errorf("REVISION_LIMIT: %w", err)
	}
	if cfg.RevisionExtension, err = time.ParseDuration(getEnv("REVISION_EXTENSION", "48h")); err != nil {
		return nil, fmt.Errorf("REVISION_EXTENSION: %w", err)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.Apply(data); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply overlays the values set in a YAML policy document
func (c *Config) Apply(data []byte) error {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	setString(&c.Env, file.Env)
	setString(&c.LogLevel, file.LogLevel)
	setString(&c.ServerPort, file.Server.Port)
	setString(&c.Store, file.Storage.Backend)
	setString(&c.DatabaseURL, file.Storage.DatabaseURL)
	setString(&c.RealtimeChannel, file.Realtime.Channel)

	if file.Server.ShutdownTimeout != "" {
		d, err := time.ParseDuration(file.Server.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("server.shutdown_timeout: %w", err)
		}
		c.ShutdownTimeout = d
	}
	if file.Workflow.CommissionPercent != nil {
		pct, err := decimal.NewFromString(*file.Workflow.CommissionPercent)
		if err != nil {
			return fmt.Errorf("workflow.commission_percent: %w", err)
		}
		c.CommissionPct = pct
	}
	if file.Workflow.RevisionLimit != nil {
		c.RevisionLimit = *file.Workflow.RevisionLimit
	}
	if file.Workflow.RevisionExtension != "" {
		d, err := time.ParseDuration(file.Workflow.RevisionExtension)
		if err != nil {
			return fmt.Errorf("workflow.revision_extension: %w", err)
		}
		c.RevisionExtension = d
	}
	return nil
}

// Validate rejects settings the workflow cannot run with
func (c *Config) Validate() error {
	if err := fees.ValidateCommission(c.CommissionPct); err != nil {
		return fmt.Errorf("commission percent: %w", err)
	}
	if c.RevisionLimit < 0 {
		return fmt.Errorf("revision limit %d must not be negative", c.RevisionLimit)
	}
	if c.RevisionExtension <= 0 {
		return fmt.Errorf("revision extension %s must be positive", c.RevisionExtension)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout %s must be positive", c.ShutdownTimeout)
	}
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database url is required for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown env %q", c.Env)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
