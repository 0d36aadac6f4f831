package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.SchemaVersion != SchemaVersion {
		t.Errorf("schema version = %q, want %q", cfg.SchemaVersion, SchemaVersion)
	}
	if !cfg.Execution.Enabled {
		t.Error("phased execution should be enabled by default")
	}
	if cfg.Execution.TokenBudgetPerPhase != 30000 {
		t.Errorf("token budget = %d, want 30000", cfg.Execution.TokenBudgetPerPhase)
	}
	if cfg.Execution.PhasedExecutionThreshold != 40 {
		t.Errorf("phased threshold = %d, want 40", cfg.Execution.PhasedExecutionThreshold)
	}
	if cfg.Execution.WrapUpReserve != 2000 {
		t.Errorf("wrap-up reserve = %d, want 2000", cfg.Execution.WrapUpReserve)
	}
	if cfg.Analyzer.LowThreshold != 20 || cfg.Analyzer.MediumThreshold != 40 || cfg.Analyzer.HighThreshold != 70 {
		t.Errorf("analyzer thresholds = %d/%d/%d, want 20/40/70",
			cfg.Analyzer.LowThreshold, cfg.Analyzer.MediumThreshold, cfg.Analyzer.HighThreshold)
	}
	if cfg.Monitor.WarningPercent != 0.70 || cfg.Monitor.CriticalPercent != 0.90 {
		t.Errorf("monitor thresholds = %.2f/%.2f, want 0.70/0.90",
			cfg.Monitor.WarningPercent, cfg.Monitor.CriticalPercent)
	}

	if err := Validate(&cfg); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero low threshold", func(c *Config) { c.Analyzer.LowThreshold = 0 }},
		{"medium below low", func(c *Config) { c.Analyzer.MediumThreshold = c.Analyzer.LowThreshold }},
		{"high below medium", func(c *Config) { c.Analyzer.HighThreshold = c.Analyzer.MediumThreshold - 1 }},
		{"zero warning percent", func(c *Config) { c.Monitor.WarningPercent = 0 }},
		{"warning above critical", func(c *Config) { c.Monitor.WarningPercent = 0.95 }},
		{"critical above one", func(c *Config) { c.Monitor.CriticalPercent = 1.5 }},
		{"negative wrap-up reserve", func(c *Config) { c.Execution.WrapUpReserve = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := Validate(&cfg); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidateAllowsZeroBudget(t *testing.T) {
	// The monitor degrades a zero budget to always-exhausted, so config
	// accepts it.
	cfg := DefaultConfig()
	cfg.Execution.TokenBudgetPerPhase = 0
	if err := Validate(&cfg); err != nil {
		t.Errorf("zero phase budget must validate: %v", err)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := LoadConfig(dir); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	cfg := GetConfig()
	if cfg.Execution.TokenBudgetPerPhase != DefaultTokenBudgetPerPhase {
		t.Errorf("expected default budget, got %d", cfg.Execution.TokenBudgetPerPhase)
	}
}

func TestLoadConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Execution.TokenBudgetPerPhase = 12345
	cfg.Metrics.Enabled = true
	writeConfigFile(t, dir, cfg)

	if err := LoadConfig(dir); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	got := GetConfig()
	if got.Execution.TokenBudgetPerPhase != 12345 {
		t.Errorf("budget = %d, want 12345", got.Execution.TokenBudgetPerPhase)
	}
	if !got.Metrics.Enabled {
		t.Error("metrics should be enabled from file")
	}
}

func TestLoadConfigRejectsSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.SchemaVersion = "0.9"
	writeConfigFile(t, dir, cfg)

	if err := LoadConfig(dir); err == nil {
		t.Error("expected schema version mismatch error")
	}
}

func TestLoadConfigRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, ConfigDir)
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, ConfigFilename), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(dir); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveConfigRoundtrip(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Analyzer.PatternFile = "patterns.yaml"
	cfg.Execution.AutoApprove = true
	if err := SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if err := SaveConfig(dir); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	// Reset to defaults, then load the saved file back.
	if err := SetConfig(DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	if err := LoadConfig(dir); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	got := GetConfig()
	if got.Analyzer.PatternFile != "patterns.yaml" {
		t.Errorf("pattern file = %q, want patterns.yaml", got.Analyzer.PatternFile)
	}
	if !got.Execution.AutoApprove {
		t.Error("auto-approve flag lost in roundtrip")
	}
}

func TestSetConfigRejectsInvalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Monitor.CriticalPercent = 2.0
	if err := SetConfig(cfg); err == nil {
		t.Error("expected validation error")
	}
}

func TestGetConfigReturnsCopy(t *testing.T) {
	if err := SetConfig(DefaultConfig()); err != nil {
		t.Fatal(err)
	}

	cfg := GetConfig()
	cfg.Execution.TokenBudgetPerPhase = 1

	if GetConfig().Execution.TokenBudgetPerPhase == 1 {
		t.Error("GetConfig must return a copy, not a shared reference")
	}
}

func writeConfigFile(t *testing.T, projectDir string, cfg Config) {
	t.Helper()

	dir := filepath.Join(projectDir, ConfigDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFilename), data, 0o644); err != nil {
		t.Fatal(err)
	}
}
