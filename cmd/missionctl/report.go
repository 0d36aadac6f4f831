package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"missionctl/pkg/config"
	"missionctl/pkg/mission"
	"missionctl/pkg/persistence"
)

var reportCmd = &cobra.Command{
	Use:   "report [task-id]",
	Short: "Show persisted missions, or one mission's progress report",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		persistDir := filepath.Join(projectDir, config.ConfigDir)

		if len(args) == 0 {
			return listMissions(persistDir)
		}

		reg, err := mission.NewRegistry(cfg)
		if err != nil {
			return err
		}
		defer reg.Close()

		taskID := args[0]
		if _, err := reg.ResumeMission(taskID, persistDir); err != nil {
			return err
		}
		fmt.Println(reg.GenerateReport(taskID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func listMissions(persistDir string) error {
	if err := persistence.Initialize(filepath.Join(persistDir, mission.MissionDBFilename)); err != nil {
		return fmt.Errorf("open mission store: %w", err)
	}
	defer func() { _ = persistence.Close() }()

	ids, err := persistence.Missions().ListMissionIDs()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No persisted missions.")
		return nil
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
