package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tidechart/tidechart/internal/config"
	"github.com/tidechart/tidechart/internal/history"
	"github.com/tidechart/tidechart/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "status shows queued, resumable and recently finished downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("history")

		settings, err := config.Load(flagChartDir)
		if err != nil {
			return err
		}
		chartDir := settings.Downloads.ChartDir

		snap := state.NewStore(config.StatePath(chartDir)).Load()

		fmt.Println(styleHeading.Render("Queue"))
		if len(snap.Queue) == 0 {
			fmt.Println("  (empty)")
		}
		for i, t := range snap.Queue {
			fmt.Printf("  %d. %s  %s  [%s]\n", i+1, t.ChartID, t.URL, t.Priority)
		}

		fmt.Println(styleHeading.Render("Resumable"))
		if len(snap.ResumeData) == 0 {
			fmt.Println("  (none)")
		}
		ids := make([]string, 0, len(snap.ResumeData))
		for id := range snap.ResumeData {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			rec := snap.ResumeData[id]
			fmt.Printf("  %s  %d bytes  attempts=%d", id, rec.DownloadedBytes, rec.Attempts)
			if rec.LastErrorCode != "" {
				fmt.Printf("  last_error=%s", rec.LastErrorCode)
			}
			fmt.Println()
		}

		if settings.Downloads.HistoryEnabled {
			hist, err := history.Open(config.HistoryPath(chartDir))
			if err == nil {
				defer hist.Close()
				entries, err := hist.Recent(limit)
				if err == nil && len(entries) > 0 {
					fmt.Println(styleHeading.Render("Recent"))
					for _, e := range entries {
						fmt.Printf("  %s  %s  %s  %d bytes\n",
							e.FinishedAt.Format("2006-01-02 15:04"), e.ChartID, e.Status, e.TotalBytes)
					}
				}
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("history", 10, "number of recent downloads to show")
	rootCmd.AddCommand(statusCmd)
}
