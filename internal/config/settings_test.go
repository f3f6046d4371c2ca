package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	s, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, s.Downloads.ChartDir)
	assert.Equal(t, 3, s.Downloads.MaxConcurrentDownloads)
	assert.Equal(t, 3, s.Downloads.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, s.Downloads.RetryBackoffBase)
	assert.True(t, s.Downloads.HistoryEnabled)
	assert.Equal(t, "tidechart/1.0", s.Network.UserAgent)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := Default()
	s.Downloads.ChartDir = dir
	s.Downloads.MaxConcurrentDownloads = 5
	s.Downloads.MaxAttempts = 7
	s.Network.UserAgent = "tidechart-test/9"
	require.NoError(t, Save(s))

	back, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, back.Downloads.MaxConcurrentDownloads)
	assert.Equal(t, 7, back.Downloads.MaxAttempts)
	assert.Equal(t, "tidechart-test/9", back.Network.UserAgent)
}

func TestLoadNormalizesBrokenValues(t *testing.T) {
	dir := t.TempDir()
	raw := `{"downloads":{"chart_dir":"` + dir + `","max_concurrent_downloads":0,"max_attempts":-2},"network":{"user_agent":""}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte(raw), 0644))

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Downloads.MaxConcurrentDownloads)
	assert.Equal(t, 1, s.Downloads.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, s.Downloads.RetryBackoffBase)
	assert.Equal(t, "tidechart/1.0", s.Network.UserAgent)
}

func TestLoadCorruptFileErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte("{nope"), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestWellKnownPaths(t *testing.T) {
	assert.Equal(t, filepath.Join("/x", "download_state.json"), StatePath("/x"))
	assert.Equal(t, filepath.Join("/x", "history.db"), HistoryPath("/x"))
	assert.Equal(t, filepath.Join("/x", "settings.json"), SettingsPath("/x"))
}
