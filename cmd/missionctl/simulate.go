package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"missionctl/pkg/config"
	"missionctl/pkg/logx"
	"missionctl/pkg/mission"
	"missionctl/pkg/proto"
)

var (
	simulateTaskID  string
	simulatePersist bool
	simulateYes     bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <requirement|file>",
	Short: "Drive a mission end to end with simulated token usage",
	Long: `Simulate prepares a mission for the requirement, then walks every phase:
it consumes each phase's estimated tokens, completes the phase, and stops at
approval gates. On a terminal the gate prompts interactively; otherwise
phases are approved automatically.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		requirement, err := readRequirement(args[0])
		if err != nil {
			return err
		}

		reg, err := mission.NewRegistry(cfg)
		if err != nil {
			return err
		}
		defer reg.Close()

		taskID := simulateTaskID
		if taskID == "" {
			taskID = proto.GenerateMissionID()
		}
		persistDir := ""
		if simulatePersist {
			persistDir = filepath.Join(projectDir, config.ConfigDir)
			if err := os.MkdirAll(persistDir, 0o755); err != nil {
				return fmt.Errorf("create persistence dir: %w", err)
			}
		}

		started := time.Now().UTC()
		res, err := reg.AnalyzeAndPrepare(cmd.Context(), taskID, requirement, persistDir)
		if err != nil {
			return err
		}

		fmt.Printf("Mission %s: mode=%s, complexity %s (%d/100)\n\n", taskID, res.Mode, res.Score.Level, res.Score.Score)

		for {
			info := reg.GetPhaseInfo(taskID)
			if info == nil || info.State.IsTerminal() {
				break
			}

			fmt.Println(strings.Repeat("-", 60))
			fmt.Println(reg.GetPromptContext(taskID))

			if phase := info.CurrentPhase; phase != nil {
				reg.TrackTokens(taskID, proto.UsageResponse, phase.EstimatedTokens, "simulator")
			}

			_, done := reg.CompleteCurrentPhase(taskID,
				"Simulated completion", nil, nil, nil)
			if done {
				break
			}

			if reg.HasPendingApproval(taskID) {
				approved, feedback := askApproval()
				reg.ProvideApproval(taskID, approved, feedback)
			}
		}

		fmt.Println(strings.Repeat("=", 60))
		fmt.Println(reg.GenerateReport(taskID))

		if debugMode {
			fmt.Fprintln(os.Stderr, "--- internal log ---")
			for _, e := range logx.GetRecentLogEntries("", started) {
				fmt.Fprintf(os.Stderr, "[%s] [%s] %s: %s\n", e.Timestamp, e.Component, e.Level, e.Message)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simulateTaskID, "task", "", "Task id (generated if unset)")
	simulateCmd.Flags().BoolVar(&simulatePersist, "persist", false, "Persist mission state under the project dir")
	simulateCmd.Flags().BoolVarP(&simulateYes, "yes", "y", false, "Approve every phase without prompting")
}

// askApproval prompts for the between-phase gate. Non-interactive runs
// approve automatically so pipelines do not hang.
func askApproval() (bool, string) {
	if simulateYes || !term.IsTerminal(int(os.Stdin.Fd())) {
		return true, ""
	}

	fmt.Print("Continue to next phase? [Y/n/feedback]: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return true, ""
	}
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "", "y", "yes":
		return true, ""
	case "n", "no":
		return false, "rejected at prompt"
	default:
		return false, line
	}
}
