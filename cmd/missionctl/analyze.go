package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"missionctl/pkg/analyzer"
	"missionctl/pkg/proto"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <requirement|file>",
	Short: "Score a requirement's complexity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		requirement, err := readRequirement(args[0])
		if err != nil {
			return err
		}

		var tables *analyzer.PatternTables
		if cfg.Analyzer.PatternFile != "" {
			tables, err = analyzer.LoadPatternTables(cfg.Analyzer.PatternFile)
			if err != nil {
				return err
			}
		}
		an := analyzer.NewWithTables(analyzer.Config{
			LowThreshold:    cfg.Analyzer.LowThreshold,
			MediumThreshold: cfg.Analyzer.MediumThreshold,
			HighThreshold:   cfg.Analyzer.HighThreshold,
			TokensPerPhase:  cfg.Execution.TokenBudgetPerPhase,
		}, tables)

		score, err := an.Analyze(cmd.Context(), requirement, nil)
		if err != nil {
			return err
		}

		if analyzeJSON {
			data, err := json.MarshalIndent(score, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		printScore(score)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Emit the full score as JSON")
}

func printScore(score *proto.ComplexityScore) {
	fmt.Printf("Level:          %s\n", score.Level)
	fmt.Printf("Score:          %d/100\n", score.Score)
	fmt.Printf("Estimated:      %d tokens\n", score.EstimatedTokens)
	fmt.Printf("Recommendation: %s\n", score.Recommendation)
	if score.SuggestedPhases > 0 {
		fmt.Printf("Phases:         %d\n", score.SuggestedPhases)
	}
	fmt.Printf("Features:       %d", score.Metrics.FeatureCount)
	if len(score.Metrics.Features) > 0 {
		fmt.Printf(" (%s)", strings.Join(score.Metrics.Features, ", "))
	}
	fmt.Println()
	if len(score.Metrics.TechnicalDomains) > 0 {
		fmt.Printf("Domains:        %s\n", strings.Join(score.Metrics.TechnicalDomains, ", "))
	}
	if len(score.Metrics.RiskFactors) > 0 {
		fmt.Printf("Risks:          %s\n", strings.Join(score.Metrics.RiskFactors, ", "))
	}
	if len(score.Metrics.ScopeIndicators) > 0 {
		fmt.Printf("Scope:          %s\n", strings.Join(score.Metrics.ScopeIndicators, ", "))
	}
	fmt.Printf("\n%s\n", score.Explanation)
}
