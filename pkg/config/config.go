// Package config provides configuration loading, validation, and management
// for the phase execution core.
//
// KEY PRINCIPLES:
//
//  1. SEPARATION OF CONCERNS: configuration is tuning data (budgets,
//     thresholds, pattern-file locations); mission state (phase status,
//     token usage) belongs in the persistence layer, never in config.
//
//  2. SCHEMA VERSIONING: config changes MUST increment SchemaVersion so a
//     stale file on disk is detected instead of silently misread.
//
//  3. GLOBAL SINGLETON: a single Config instance is maintained in memory,
//     protected by mutex.
//
//  4. VALUE-BASED ACCESS: GetConfig() returns the config BY VALUE to prevent
//     external mutation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"missionctl/pkg/logx"
)

// Config file location constants.
const (
	ConfigDir      = ".missionctl"
	ConfigFilename = "config.json"
	SchemaVersion  = "1.0"
)

// Execution defaults.
const (
	DefaultTokenBudgetPerPhase      = 30000
	DefaultPhasedExecutionThreshold = 40
	DefaultWrapUpReserve            = 2000
)

// Analyzer level threshold defaults.
const (
	DefaultLowThreshold    = 20
	DefaultMediumThreshold = 40
	DefaultHighThreshold   = 70
)

// Budget status threshold defaults (fraction of budget used).
const (
	DefaultWarningPercent  = 0.70
	DefaultCriticalPercent = 0.90
)

// ExecutionConfig holds the controller-facing settings.
type ExecutionConfig struct {
	Enabled                      bool `json:"enabled"`
	TokenBudgetPerPhase          int  `json:"token_budget_per_phase"`
	PhasedExecutionThreshold     int  `json:"phased_execution_threshold"`
	RequireApprovalBetweenPhases bool `json:"require_approval_between_phases"`
	AutoApprove                  bool `json:"auto_approve"`
	WrapUpReserve                int  `json:"wrap_up_reserve"`
}

// AnalyzerConfig holds the complexity level thresholds and the optional
// pattern-table override file.
type AnalyzerConfig struct {
	LowThreshold    int    `json:"low_threshold"`
	MediumThreshold int    `json:"medium_threshold"`
	HighThreshold   int    `json:"high_threshold"`
	PatternFile     string `json:"pattern_file,omitempty"` // YAML scope/risk/domain override
}

// MonitorConfig holds the budget status thresholds.
type MonitorConfig struct {
	WarningPercent  float64 `json:"warning_percent"`
	CriticalPercent float64 `json:"critical_percent"`
}

// MetricsConfig controls the Prometheus recorder.
type MetricsConfig struct {
	Enabled bool `json:"enabled"`
}

// PersistenceConfig holds the state store location.
type PersistenceConfig struct {
	Path string `json:"path,omitempty"` // SQLite file; empty disables persistence
}

// Config is the root configuration aggregate.
type Config struct {
	SchemaVersion string            `json:"schema_version"`
	Execution     ExecutionConfig   `json:"execution"`
	Analyzer      AnalyzerConfig    `json:"analyzer"`
	Monitor       MonitorConfig     `json:"monitor"`
	Metrics       MetricsConfig     `json:"metrics"`
	Persistence   PersistenceConfig `json:"persistence"`
}

// Global config instance with mutex protection.
//
//nolint:gochecknoglobals // Intentional singleton pattern for config management
var (
	config *Config
	logger *logx.Logger
	mu     sync.RWMutex
)

func getLogger() *logx.Logger {
	if logger == nil {
		logger = logx.NewLogger("config")
	}
	return logger
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		SchemaVersion: SchemaVersion,
		Execution: ExecutionConfig{
			Enabled:                      true,
			TokenBudgetPerPhase:          DefaultTokenBudgetPerPhase,
			PhasedExecutionThreshold:     DefaultPhasedExecutionThreshold,
			RequireApprovalBetweenPhases: true,
			AutoApprove:                  false,
			WrapUpReserve:                DefaultWrapUpReserve,
		},
		Analyzer: AnalyzerConfig{
			LowThreshold:    DefaultLowThreshold,
			MediumThreshold: DefaultMediumThreshold,
			HighThreshold:   DefaultHighThreshold,
		},
		Monitor: MonitorConfig{
			WarningPercent:  DefaultWarningPercent,
			CriticalPercent: DefaultCriticalPercent,
		},
		Metrics: MetricsConfig{Enabled: false},
	}
}

// LoadConfig loads configuration from projectDir/.missionctl/config.json,
// falling back to defaults when the file is absent. Usually called once at
// startup.
func LoadConfig(projectDir string) error {
	mu.Lock()
	defer mu.Unlock()

	cfg := DefaultConfig()
	path := filepath.Join(projectDir, ConfigDir, ConfigFilename)

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		getLogger().Info("No config file at %s, using defaults", path)
	case err != nil:
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		if cfg.SchemaVersion != SchemaVersion {
			return fmt.Errorf("config schema version mismatch: got %q, want %q", cfg.SchemaVersion, SchemaVersion)
		}
	}

	if err := Validate(&cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	config = &cfg
	return nil
}

// SetConfig replaces the global config after validation. Intended for tests
// and embedding callers that manage their own configuration source.
func SetConfig(cfg Config) error {
	if err := Validate(&cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	config = &cfg
	return nil
}

// GetConfig returns the current configuration by value. Falls back to
// defaults when LoadConfig has not been called.
func GetConfig() Config {
	mu.RLock()
	defer mu.RUnlock()

	if config == nil {
		return DefaultConfig()
	}
	return *config
}

// Validate checks configuration invariants. A zero or negative phase budget
// is permitted: the monitor degrades it to an always-exhausted budget rather
// than rejecting it here, so a caller can deliberately configure a frozen
// mission.
func Validate(cfg *Config) error {
	a := &cfg.Analyzer
	if a.LowThreshold <= 0 || a.MediumThreshold <= a.LowThreshold || a.HighThreshold <= a.MediumThreshold {
		return fmt.Errorf("analyzer thresholds must be strictly increasing and positive: %d/%d/%d",
			a.LowThreshold, a.MediumThreshold, a.HighThreshold)
	}

	m := &cfg.Monitor
	if m.WarningPercent <= 0 || m.WarningPercent >= m.CriticalPercent || m.CriticalPercent > 1.0 {
		return fmt.Errorf("monitor thresholds must satisfy 0 < warning < critical <= 1.0: %.2f/%.2f",
			m.WarningPercent, m.CriticalPercent)
	}

	if cfg.Execution.WrapUpReserve < 0 {
		return fmt.Errorf("wrap_up_reserve must be non-negative: %d", cfg.Execution.WrapUpReserve)
	}

	return nil
}

// SaveConfig writes the current configuration to projectDir atomically
// (write to temp file, then rename).
func SaveConfig(projectDir string) error {
	mu.RLock()
	cfg := config
	mu.RUnlock()

	if cfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	dir := filepath.Join(projectDir, ConfigDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(dir, ConfigFilename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}

	return nil
}
