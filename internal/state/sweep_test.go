package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidechart/tidechart/internal/chart"
)

func sweepFixture(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "download_state.json")), dir
}

func record(id string, downloaded int64) chart.ResumeRecord {
	return chart.ResumeRecord{
		ChartID:         id,
		OriginalURL:     "https://charts.example.com/" + id + ".zip",
		DownloadedBytes: downloaded,
	}
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
}

func TestSweepHealsByteCountFromDisk(t *testing.T) {
	s, dir := sweepFixture(t)
	snap := NewSnapshot()
	snap.ResumeData["c1"] = record("c1", 10)
	writeFile(t, filepath.Join(dir, "c1.zip.part"), 50)

	res := s.Sweep(snap, dir)

	assert.Equal(t, []string{"c1"}, res.Healed)
	assert.Equal(t, int64(50), snap.ResumeData["c1"].DownloadedBytes)
}

func TestSweepLeavesAccurateRecordAlone(t *testing.T) {
	s, dir := sweepFixture(t)
	snap := NewSnapshot()
	snap.ResumeData["c1"] = record("c1", 50)
	writeFile(t, filepath.Join(dir, "c1.zip.part"), 50)

	res := s.Sweep(snap, dir)

	assert.Empty(t, res.Healed)
	assert.Equal(t, int64(50), snap.ResumeData["c1"].DownloadedBytes)
}

func TestSweepDropsZeroLengthPartial(t *testing.T) {
	s, dir := sweepFixture(t)
	snap := NewSnapshot()
	snap.ResumeData["c1"] = record("c1", 128)
	partPath := filepath.Join(dir, "c1.zip.part")
	writeFile(t, partPath, 0)

	res := s.Sweep(snap, dir)

	assert.Equal(t, []string{"c1"}, res.Corrupt)
	assert.NotContains(t, snap.ResumeData, "c1")
	_, err := os.Stat(partPath)
	assert.True(t, os.IsNotExist(err))
}

func TestSweepDeletesOrphanedRecord(t *testing.T) {
	s, dir := sweepFixture(t)
	snap := NewSnapshot()
	snap.ResumeData["c1"] = record("c1", 128)

	res := s.Sweep(snap, dir)

	assert.Equal(t, []string{"c1"}, res.Orphaned)
	assert.NotContains(t, snap.ResumeData, "c1")
}

func TestSweepClearsRecordWhenFinalComplete(t *testing.T) {
	s, dir := sweepFixture(t)
	snap := NewSnapshot()
	snap.ResumeData["c1"] = record("c1", 100)
	writeFile(t, filepath.Join(dir, "c1.zip"), 100)

	res := s.Sweep(snap, dir)

	assert.Equal(t, []string{"c1"}, res.Completed)
	assert.NotContains(t, snap.ResumeData, "c1")
}

func TestSweepKeepsRecordWhenFinalTooSmall(t *testing.T) {
	s, dir := sweepFixture(t)
	snap := NewSnapshot()
	snap.ResumeData["c1"] = record("c1", 100)
	writeFile(t, filepath.Join(dir, "c1.zip"), 40)

	res := s.Sweep(snap, dir)

	assert.Empty(t, res.Completed)
	assert.Empty(t, res.Orphaned)
	assert.Contains(t, snap.ResumeData, "c1")
}

func TestSweepIsIdempotent(t *testing.T) {
	s, dir := sweepFixture(t)
	snap := NewSnapshot()
	snap.ResumeData["healed"] = record("healed", 10)
	snap.ResumeData["orphan"] = record("orphan", 10)
	writeFile(t, filepath.Join(dir, "healed.zip.part"), 30)

	first := s.Sweep(snap, dir)
	require.Len(t, first.Healed, 1)
	require.Len(t, first.Orphaned, 1)

	second := s.Sweep(snap, dir)
	assert.Empty(t, second.Healed)
	assert.Empty(t, second.Orphaned)
	assert.Empty(t, second.Corrupt)
	assert.Equal(t, int64(30), snap.ResumeData["healed"].DownloadedBytes)
}
