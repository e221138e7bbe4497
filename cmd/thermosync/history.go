package main

import (
	"fmt"

	"github.com/alfacon/thermosync/pkg/artifact"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent run summaries from the history database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.HistoryPath == "" {
			return fmt.Errorf("HISTORY_PATH is not configured")
		}

		limit, _ := cmd.Flags().GetInt("limit")

		store, err := artifact.NewHistoryStore(cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer store.Close()

		summaries, err := store.Recent(limit)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		for _, s := range summaries {
			fmt.Printf("%s  %-7s  reachable=%d delivered=%d failed=%d not_found=%d ratio=%.1f%%\n",
				s.StartedAt.Format("2006-01-02 15:04:05"), s.Status,
				s.Reachable, s.Delivered, s.Failed, s.NotFound, s.SuccessRatio*100)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 10, "Number of runs to show")
}
