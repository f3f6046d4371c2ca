package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidechart/tidechart/internal/chart"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [chart-id...]",
	Short: "resume continues interrupted downloads from their saved offsets",
	Long: `resume re-queues downloads that have durable resume records. With no
arguments every resumable download is continued.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		concurrent, _ := cmd.Flags().GetInt("concurrent")

		m, _, err := newManager(concurrent)
		if err != nil {
			return err
		}
		defer m.Dispose()

		ids := args
		if len(ids) == 0 {
			for id := range m.ResumeRecords() {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			fmt.Println("nothing to resume")
			return nil
		}

		for _, id := range ids {
			if !m.Resume(id) {
				fmt.Printf("no resumable download for %s\n", id)
			}
		}

		var failed int
		for _, id := range ids {
			final := waitForTerminal(m, id)
			fmt.Println(renderSummary(id, final))
			if final.Status != chart.StatusCompleted {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d downloads did not complete", failed, len(ids))
		}
		return nil
	},
}

func init() {
	resumeCmd.Flags().IntP("concurrent", "c", 0, "override max concurrent downloads")
	rootCmd.AddCommand(resumeCmd)
}
