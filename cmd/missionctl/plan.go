package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"missionctl/pkg/analyzer"
	"missionctl/pkg/planner"
	"missionctl/pkg/proto"
)

var planCmd = &cobra.Command{
	Use:   "plan <requirement|file>",
	Short: "Show the phase plan a requirement would get",
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

		if score.Recommendation != proto.RecommendSplitPhases {
			printScore(score)
			fmt.Println("\nNo phase plan: requirement does not call for decomposition.")
			return nil
		}

		pl := planner.New(planner.Config{TokensPerPhase: cfg.Execution.TokenBudgetPerPhase})
		plan, err := pl.Plan(score, requirement)
		if err != nil {
			return err
		}

		fmt.Printf("Strategy: %s, %d phases\n\n", plan.StrategyUsed, len(plan.Phases))
		for i := range plan.Phases {
			p := &plan.Phases[i]
			fmt.Printf("%d. %s (est %d tokens)\n   %s\n", i+1, p.Name, p.EstimatedTokens, p.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}
