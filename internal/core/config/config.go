package config

import (
	"time"

	"github.com/vietddude/flakewatch/internal/cleanup"
	redisclient "github.com/vietddude/flakewatch/internal/infra/redis"
	"github.com/vietddude/flakewatch/internal/infra/storage/postgres"
	"github.com/vietddude/flakewatch/internal/isolation"
	"github.com/vietddude/flakewatch/internal/runner"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Database   postgres.Config    `yaml:"database"`
	Redis      redisclient.Config `yaml:"redis"`
	Logging    LoggingConfig      `yaml:"logging"`
	Isolation  IsolationConfig    `yaml:"isolation"`
	Cleanup    cleanup.Options    `yaml:"cleanup"`
	Tables     []string           `yaml:"tables"`
	Migrations MigrationsConfig   `yaml:"migrations"`
	Results    ResultsConfig      `yaml:"results"`
	Runner     RunnerConfig       `yaml:"runner"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// IsolationConfig holds isolation manager settings. Timeout is in
// seconds to stay YAML-friendly.
type IsolationConfig struct {
	MaxNestingLevel int `yaml:"max_nesting_level"`
	TimeoutSeconds  int `yaml:"timeout_seconds"`
}

// ManagerConfig converts to the isolation package's config.
func (c IsolationConfig) ManagerConfig() isolation.Config {
	return isolation.Config{
		MaxNestingLevel: c.MaxNestingLevel,
		Timeout:         time.Duration(c.TimeoutSeconds) * time.Second,
	}
}

// MigrationsConfig locates the schema migrations and optional seed data
// used by the full-reset strategy.
type MigrationsConfig struct {
	Dir      string `yaml:"dir"`
	SeedPath string `yaml:"seed_path"`
}

// ResultsConfig locates the test result log.
type ResultsConfig struct {
	Path string `yaml:"path"`
}

// RunnerConfig holds suite-repetition settings.
type RunnerConfig struct {
	Command        string `yaml:"command"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Retry          bool   `yaml:"retry"`
}

// RunnerOptions converts to the runner package's config.
func (c RunnerConfig) RunnerOptions() runner.Config {
	return runner.Config{
		Command: c.Command,
		Timeout: time.Duration(c.TimeoutSeconds) * time.Second,
		Retry:   c.Retry,
	}
}
