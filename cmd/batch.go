package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tidechart/tidechart/internal/chart"
)

// batchManifest is the YAML format accepted by the batch command.
type batchManifest struct {
	Charts []manifestEntry `yaml:"charts"`
}

type manifestEntry struct {
	ID       string `yaml:"id"`
	URL      string `yaml:"url"`
	SHA256   string `yaml:"sha256,omitempty"`
	Priority string `yaml:"priority,omitempty"`
}

var batchCmd = &cobra.Command{
	Use:   "batch [manifest.yaml]",
	Short: "batch downloads every chart listed in a YAML manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		concurrent, _ := cmd.Flags().GetInt("concurrent")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read manifest: %w", err)
		}
		var manifest batchManifest
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			return fmt.Errorf("failed to parse manifest: %w", err)
		}
		if len(manifest.Charts) == 0 {
			return fmt.Errorf("manifest lists no charts")
		}

		tasks := make([]chart.DownloadTask, 0, len(manifest.Charts))
		for _, e := range manifest.Charts {
			if e.ID == "" || e.URL == "" {
				return fmt.Errorf("manifest entry missing id or url: %+v", e)
			}
			tasks = append(tasks, chart.DownloadTask{
				ChartID:          e.ID,
				URL:              e.URL,
				ExpectedChecksum: e.SHA256,
				Priority:         chart.ParsePriority(e.Priority),
			})
		}

		m, _, err := newManager(concurrent)
		if err != nil {
			return err
		}
		defer m.Dispose()

		batchID, err := m.StartBatchTasks(tasks)
		if err != nil {
			return err
		}

		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			agg, ok := m.GetBatchProgress(batchID)
			if !ok {
				break
			}
			fmt.Print(renderBatchLine(agg))
			if agg.Status != chart.BatchInProgress {
				fmt.Println()
				if agg.FailedCharts > 0 {
					return fmt.Errorf("%d of %d charts failed", agg.FailedCharts, agg.TotalCharts)
				}
				return nil
			}
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntP("concurrent", "c", 0, "override max concurrent downloads")
	rootCmd.AddCommand(batchCmd)
}
