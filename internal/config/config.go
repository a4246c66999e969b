// Package config loads gauntlet configuration from .gauntlet/config.yaml
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all gauntlet configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Spec discovery
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Execution settings
	Execution ExecutionConfig `yaml:"execution"`

	// Git impact analysis
	Impact ImpactConfig `yaml:"impact"`

	// Timing history store
	History HistoryConfig `yaml:"history"`

	// Report output
	Report ReportConfig `yaml:"report"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DiscoveryConfig configures spec file discovery.
type DiscoveryConfig struct {
	// Glob patterns for spec files (doublestar syntax)
	Patterns []string `yaml:"patterns"`

	// Directory names pruned during the walk
	Ignore []string `yaml:"ignore"`
}

// ExecutionConfig configures the worker pool and wrapped runner.
type ExecutionConfig struct {
	// Worker subprocess count (default: min(4, NumCPU))
	Workers int `yaml:"workers"`

	// Per-spec timeout
	SpecTimeout string `yaml:"spec_timeout"`

	// Whole-run deadline
	SuiteTimeout string `yaml:"suite_timeout"`

	// Override for the auto-detected runner command
	Command string `yaml:"command"`

	// Browser passed to cypress runs
	Browser string `yaml:"browser"`

	// Base URL exported to cypress runs
	BaseURL string `yaml:"base_url"`
}

// ImpactConfig configures git diff impact analysis.
type ImpactConfig struct {
	// Base ref for the diff (default: HEAD)
	BaseRef string `yaml:"base_ref"`

	// Files whose change impacts every spec at low priority
	GlobalFiles []string `yaml:"global_files"`
}

// HistoryConfig configures the sqlite timing store.
type HistoryConfig struct {
	// Database path (default: .gauntlet/history.db)
	DatabasePath string `yaml:"database_path"`

	// Minimum recorded runs before a spec can be called flaky
	FlakyMinRuns int `yaml:"flaky_min_runs"`
}

// ReportConfig configures report output.
type ReportConfig struct {
	// JSON report path (default: .gauntlet/report.json)
	JSONPath string `yaml:"json_path"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	workers := runtime.NumCPU()
	if workers > 4 {
		workers = 4
	}

	return &Config{
		Name:    "gauntlet",
		Version: "1.0.0",

		Discovery: DiscoveryConfig{
			Patterns: []string{
				"**/*_test.go",
				"**/*.test.{js,jsx,ts,tsx}",
				"**/*.spec.{js,ts}",
				"cypress/e2e/**/*.cy.{js,ts}",
			},
			Ignore: []string{
				"node_modules", ".git", ".next", "dist", "build",
				"coverage", "vendor", ".gauntlet",
			},
		},

		Execution: ExecutionConfig{
			Workers:      workers,
			SpecTimeout:  "2m",
			SuiteTimeout: "30m",
			Browser:      "electron",
		},

		Impact: ImpactConfig{
			BaseRef: "HEAD",
			GlobalFiles: []string{
				"package.json", "package-lock.json", "go.mod", "go.sum",
				"jest.config.js", "cypress.config.js", "tsconfig.json",
			},
		},

		History: HistoryConfig{
			DatabasePath: filepath.Join(".gauntlet", "history.db"),
			FlakyMinRuns: 3,
		},

		Report: ReportConfig{
			JSONPath: filepath.Join(".gauntlet", "report.json"),
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// LoadWorkspace loads the config from its canonical workspace location.
func LoadWorkspace(workspace string) (*Config, error) {
	return Load(filepath.Join(workspace, ".gauntlet", "config.yaml"))
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GAUNTLET_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Execution.Workers = n
		}
	}
	if v := os.Getenv("GAUNTLET_SPEC_TIMEOUT"); v != "" {
		c.Execution.SpecTimeout = v
	}
	if v := os.Getenv("GAUNTLET_SUITE_TIMEOUT"); v != "" {
		c.Execution.SuiteTimeout = v
	}
	if v := os.Getenv("GAUNTLET_BROWSER"); v != "" {
		c.Execution.Browser = v
	}
	if v := os.Getenv("GAUNTLET_BASE_URL"); v != "" {
		c.Execution.BaseURL = v
	}
	if v := os.Getenv("GAUNTLET_DB"); v != "" {
		c.History.DatabasePath = v
	}
}

// GetSpecTimeout returns the per-spec timeout as a duration.
func (c *Config) GetSpecTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.SpecTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// GetSuiteTimeout returns the whole-run deadline as a duration.
func (c *Config) GetSuiteTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.SuiteTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}
