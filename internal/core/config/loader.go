package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Isolation.MaxNestingLevel == 0 {
		cfg.Isolation.MaxNestingLevel = 3
	}
	if cfg.Isolation.TimeoutSeconds == 0 {
		cfg.Isolation.TimeoutSeconds = 30
	}
	if cfg.Cleanup.MaxRetries == 0 {
		cfg.Cleanup.MaxRetries = 3
	}
	if len(cfg.Tables) == 0 {
		cfg.Tables = []string{"races", "runs", "goals"}
	}
	if cfg.Migrations.Dir == "" {
		cfg.Migrations.Dir = "migrations"
	}
	if cfg.Results.Path == "" {
		cfg.Results.Path = ".flakewatch/results.json"
	}
	if cfg.Runner.Command == "" {
		cfg.Runner.Command = "npm test --"
	}
	if cfg.Runner.TimeoutSeconds == 0 {
		cfg.Runner.TimeoutSeconds = 600
	}
}
