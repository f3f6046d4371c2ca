// Package cmd implements the tidechart command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tidechart/tidechart/internal/config"
	"github.com/tidechart/tidechart/internal/history"
	"github.com/tidechart/tidechart/internal/logging"
	"github.com/tidechart/tidechart/internal/manager"
	"github.com/tidechart/tidechart/internal/transport"
)

var (
	flagChartDir string
	flagDebug    bool
)

var rootCmd = &cobra.Command{
	Use:   "tidechart",
	Short: "tidechart manages resumable marine chart downloads",
	Long: `tidechart downloads marine chart archives with priority queuing,
pause/resume, checksum verification and crash recovery.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(flagDebug)
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagChartDir, "chart-dir", "", "chart storage directory (default: per-user config dir)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
}

// newManager wires a Manager from the settings file and recovers persisted
// state before returning. The caller owns Dispose.
func newManager(maxConcurrent int) (*manager.Manager, config.Settings, error) {
	settings, err := config.Load(flagChartDir)
	if err != nil {
		return nil, settings, err
	}
	if maxConcurrent > 0 {
		settings.Downloads.MaxConcurrentDownloads = maxConcurrent
	}
	if err := config.EnsureDirs(settings.Downloads.ChartDir); err != nil {
		return nil, settings, err
	}

	var hist *history.Store
	if settings.Downloads.HistoryEnabled {
		hist, err = history.Open(config.HistoryPath(settings.Downloads.ChartDir))
		if err != nil {
			// History is an optional convenience; keep downloading.
			logger := logging.Component("cmd")
			logger.Warn().Err(err).Msg("history database unavailable")
			hist = nil
		}
	}

	client := transport.NewHTTPClient(transport.HTTPOptions{
		UserAgent:      settings.Network.UserAgent,
		RequestTimeout: settings.Network.RequestTimeout,
		ProbeTimeout:   settings.Network.ProbeTimeout,
	})

	m, err := manager.New(manager.Config{
		ChartDir:         settings.Downloads.ChartDir,
		MaxConcurrent:    settings.Downloads.MaxConcurrentDownloads,
		MaxAttempts:      settings.Downloads.MaxAttempts,
		BackoffBase:      settings.Downloads.RetryBackoffBase,
		ProgressInterval: settings.Downloads.ProgressInterval,
		Client:           client,
		History:          hist,
	})
	if err != nil {
		return nil, settings, err
	}
	m.Recover()
	return m, settings, nil
}
