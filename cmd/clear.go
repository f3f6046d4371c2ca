package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "clear empties the download queue and drops finished entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, err := newManager(0)
		if err != nil {
			return err
		}
		defer m.Dispose()

		n := m.QueueLength()
		m.Clear()
		m.ClearFinished()
		fmt.Printf("cleared %d queued downloads\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
