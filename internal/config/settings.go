// Package config holds user-configurable settings for the chart download
// manager and the well-known paths inside the chart storage directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	settingsFileName = "settings.json"
	stateFileName    = "download_state.json"
	historyFileName  = "history.db"
	appDirName       = "tidechart"
)

// Settings holds all user-configurable download manager settings.
type Settings struct {
	Downloads DownloadSettings `json:"downloads"`
	Network   NetworkSettings  `json:"network"`
}

// DownloadSettings controls transfer behavior.
type DownloadSettings struct {
	ChartDir               string        `json:"chart_dir"`
	MaxConcurrentDownloads int           `json:"max_concurrent_downloads"`
	MaxAttempts            int           `json:"max_attempts"`
	RetryBackoffBase       time.Duration `json:"retry_backoff_base"`
	ProgressInterval       time.Duration `json:"progress_interval"`
	HistoryEnabled         bool          `json:"history_enabled"`
}

// NetworkSettings contains HTTP transport parameters.
type NetworkSettings struct {
	UserAgent      string        `json:"user_agent"`
	RequestTimeout time.Duration `json:"request_timeout"`
	ProbeTimeout   time.Duration `json:"probe_timeout"`
}

// Default returns settings suitable for a fresh install.
func Default() Settings {
	return Settings{
		Downloads: DownloadSettings{
			ChartDir:               DefaultChartDir(),
			MaxConcurrentDownloads: 3,
			MaxAttempts:            3,
			RetryBackoffBase:       500 * time.Millisecond,
			ProgressInterval:       100 * time.Millisecond,
			HistoryEnabled:         true,
		},
		Network: NetworkSettings{
			UserAgent:      "tidechart/1.0",
			RequestTimeout: 60 * time.Second,
			ProbeTimeout:   15 * time.Second,
		},
	}
}

// DefaultChartDir returns the per-user chart storage directory.
func DefaultChartDir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, appDirName, "charts")
	}
	return filepath.Join(".", appDirName, "charts")
}

// StatePath returns the fixed location of the state snapshot inside the
// chart storage directory.
func StatePath(chartDir string) string {
	return filepath.Join(chartDir, stateFileName)
}

// HistoryPath returns the location of the download history database.
func HistoryPath(chartDir string) string {
	return filepath.Join(chartDir, historyFileName)
}

// SettingsPath returns the location of the settings file.
func SettingsPath(chartDir string) string {
	return filepath.Join(chartDir, settingsFileName)
}

// EnsureDirs creates the chart storage directory if needed.
func EnsureDirs(chartDir string) error {
	if err := os.MkdirAll(chartDir, 0755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}
	return nil
}

// Load reads settings from the chart directory, returning defaults when the
// file is missing.
func Load(chartDir string) (Settings, error) {
	s := Default()
	if chartDir != "" {
		s.Downloads.ChartDir = chartDir
	}
	data, err := os.ReadFile(SettingsPath(s.Downloads.ChartDir))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse settings: %w", err)
	}
	s.normalize()
	return s, nil
}

// Save writes settings to the chart directory.
func Save(s Settings) error {
	if err := EnsureDirs(s.Downloads.ChartDir); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(SettingsPath(s.Downloads.ChartDir), data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// normalize clamps values a hand-edited file may have broken.
func (s *Settings) normalize() {
	if s.Downloads.MaxConcurrentDownloads < 1 {
		s.Downloads.MaxConcurrentDownloads = 1
	}
	if s.Downloads.MaxAttempts < 1 {
		s.Downloads.MaxAttempts = 1
	}
	if s.Downloads.RetryBackoffBase <= 0 {
		s.Downloads.RetryBackoffBase = 500 * time.Millisecond
	}
	if s.Downloads.ProgressInterval <= 0 {
		s.Downloads.ProgressInterval = 100 * time.Millisecond
	}
	if s.Network.UserAgent == "" {
		s.Network.UserAgent = "tidechart/1.0"
	}
}
