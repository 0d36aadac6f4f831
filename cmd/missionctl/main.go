// Command missionctl analyzes coding requirements, plans phased execution,
// and drives missions offline for inspection.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"missionctl/pkg/config"
	"missionctl/pkg/logx"
)

var (
	projectDir  string
	patternFile string
	debugMode   bool
)

var rootCmd = &cobra.Command{
	Use:   "missionctl",
	Short: "Phase-governed execution for coding requirements",
	Long: `Missionctl scores a requirement's complexity, decides between a single
bounded session and phased execution, plans the phases, and tracks token
budgets with approval gates between phases.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugMode {
			logx.SetDebugEnabled(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectDir, "project-dir", ".", "Project directory holding .missionctl/ config and state")
	rootCmd.PersistentFlags().StringVar(&patternFile, "pattern-file", "", "YAML file overriding the scope/risk/domain pattern tables")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging (same as DEBUG=1)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the project configuration and applies CLI overrides.
func loadConfig() (config.Config, error) {
	if err := config.LoadConfig(projectDir); err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg := config.GetConfig()
	if patternFile != "" {
		cfg.Analyzer.PatternFile = patternFile
	}
	return cfg, nil
}

// readRequirement resolves the requirement text from the command argument:
// a path to a file if one exists, otherwise the literal text.
func readRequirement(arg string) (string, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		data, err := os.ReadFile(arg)
		if err != nil {
			return "", fmt.Errorf("read requirement file: %w", err)
		}
		return string(data), nil
	}
	if arg == "" {
		return "", fmt.Errorf("empty requirement")
	}
	return arg, nil
}
