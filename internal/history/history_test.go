package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTemp(t)

	base := time.Now().Truncate(time.Second)
	s.Record(Entry{
		ChartID:     "us5tx22m",
		URL:         "https://charts.example.com/us5tx22m.zip",
		Status:      "completed",
		TotalBytes:  2048,
		ContentType: "application/zip",
		ChecksumOK:  true,
		FinishedAt:  base.Add(-time.Minute),
	})
	s.Record(Entry{
		ChartID:    "gb301904",
		URL:        "https://charts.example.com/gb301904.zip",
		Status:     "failed",
		FinishedAt: base,
	})

	entries, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "gb301904", entries[0].ChartID)
	assert.Equal(t, "failed", entries[0].Status)

	assert.Equal(t, "us5tx22m", entries[1].ChartID)
	assert.Equal(t, int64(2048), entries[1].TotalBytes)
	assert.Equal(t, "application/zip", entries[1].ContentType)
	assert.True(t, entries[1].ChecksumOK)
	assert.Equal(t, base.Add(-time.Minute).Unix(), entries[1].FinishedAt.Unix())
}

func TestRecentHonorsLimit(t *testing.T) {
	s := openTemp(t)
	for i := 0; i < 5; i++ {
		s.Record(Entry{ChartID: "c", URL: "u", Status: "completed"})
	}

	entries, err := s.Recent(3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	s.Record(Entry{ChartID: "c", URL: "u", Status: "completed"})

	entries, err := s.Recent(10)
	assert.NoError(t, err)
	assert.Nil(t, entries)
	assert.NoError(t, s.Close())
}

func TestOpenReusesExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	s.Record(Entry{ChartID: "c1", URL: "u", Status: "completed"})
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	entries, err := s2.Recent(10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
