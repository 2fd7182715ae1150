// Package config loads and persists requisite configuration.
// Config lives at .requisite/config.yaml inside the workspace.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all requisite configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Signal scanning
	Scanner ScannerConfig `yaml:"scanner"`

	// Pattern detection
	Patterns PatternsConfig `yaml:"patterns"`

	// Variety monitoring
	Variety VarietyConfig `yaml:"variety"`

	// Adaptation engine
	Adaptation AdaptationConfig `yaml:"adaptation"`

	// Archive storage
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ScannerConfig configures the environmental scanner.
type ScannerConfig struct {
	Interval     string `yaml:"interval"`      // cadence of the continuous scan loop
	DefaultScope string `yaml:"default_scope"` // full, partial, targeted
	SourceSeed   int64  `yaml:"source_seed"`   // seed for the synthetic signal source
}

// PatternsConfig configures the pattern detector.
type PatternsConfig struct {
	WindowSize         int     `yaml:"window_size"`
	WindowOverlap      int     `yaml:"window_overlap"`
	HistoryLimit       int     `yaml:"history_limit"`
	EmergenceThreshold float64 `yaml:"emergence_threshold"` // max similarity for a pattern to count as emergent
	AnalysisInterval   string  `yaml:"analysis_interval"`
}

// VarietyConfig configures the variety monitor.
type VarietyConfig struct {
	InitialCapacity    float64 `yaml:"initial_capacity"`
	ExplosionThreshold float64 `yaml:"explosion_threshold"`
	CascadeThreshold   float64 `yaml:"cascade_threshold"`
	CriticalRatio      float64 `yaml:"critical_ratio"`
	TickInterval       string  `yaml:"tick_interval"`
}

// AdaptationConfig configures the adaptation engine.
type AdaptationConfig struct {
	MonitorInterval string `yaml:"monitor_interval"`
}

// StoreConfig configures the SQLite archive.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "requisite",
		Version: "0.3.0",
		Scanner: ScannerConfig{
			Interval:     "1s",
			DefaultScope: "full",
			SourceSeed:   1,
		},
		Patterns: PatternsConfig{
			WindowSize:         16,
			WindowOverlap:      8,
			HistoryLimit:       1000,
			EmergenceThreshold: 0.8,
			AnalysisInterval:   "1s",
		},
		Variety: VarietyConfig{
			InitialCapacity:    1.0,
			ExplosionThreshold: 0.85,
			CascadeThreshold:   0.75,
			CriticalRatio:      3.0,
			TickInterval:       "5s",
		},
		Adaptation: AdaptationConfig{
			MonitorInterval: "10s",
		},
		Store: StoreConfig{
			DatabasePath: ".requisite/archive.db",
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// ConfigPath returns the config file path for a workspace.
func ConfigPath(workspace string) string {
	return filepath.Join(workspace, ".requisite", "config.yaml")
}

// Load reads config from the workspace, falling back to defaults for a
// missing file. Environment overrides are applied last.
func Load(workspace string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes config to the workspace, creating .requisite/ if needed.
func (c *Config) Save(workspace string) error {
	path := ConfigPath(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides lets REQUISITE_* environment variables override file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REQUISITE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("REQUISITE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.DebugMode = b
		}
	}
	if v := os.Getenv("REQUISITE_DB_PATH"); v != "" {
		cfg.Store.DatabasePath = v
	}
	if v := os.Getenv("REQUISITE_SCAN_INTERVAL"); v != "" {
		cfg.Scanner.Interval = v
	}
	if v := os.Getenv("REQUISITE_INITIAL_CAPACITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Variety.InitialCapacity = f
		}
	}
}

// ScanInterval parses the scanner cadence, defaulting to 1s.
func (c *Config) ScanInterval() time.Duration {
	return parseDuration(c.Scanner.Interval, time.Second)
}

// AnalysisInterval parses the pattern analysis cadence, defaulting to 1s.
func (c *Config) AnalysisInterval() time.Duration {
	return parseDuration(c.Patterns.AnalysisInterval, time.Second)
}

// VarietyTickInterval parses the self-assessment cadence, defaulting to 5s.
func (c *Config) VarietyTickInterval() time.Duration {
	return parseDuration(c.Variety.TickInterval, 5*time.Second)
}

// AdaptationMonitorInterval parses the adaptation poll cadence, defaulting to 10s.
func (c *Config) AdaptationMonitorInterval() time.Duration {
	return parseDuration(c.Adaptation.MonitorInterval, 10*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
