package finalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitMovesPartialIntoPlace(t *testing.T) {
	dir := t.TempDir()
	part := filepath.Join(dir, "chart.zip.part")
	final := filepath.Join(dir, "chart.zip")
	content := []byte("finished archive bytes")
	require.NoError(t, os.WriteFile(part, content, 0644))

	require.NoError(t, Commit(part, final))

	got, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = os.Stat(part)
	assert.True(t, os.IsNotExist(err), "partial must be gone after commit")
}

func TestCommitOverwritesExistingFinal(t *testing.T) {
	dir := t.TempDir()
	part := filepath.Join(dir, "chart.zip.part")
	final := filepath.Join(dir, "chart.zip")
	require.NoError(t, os.WriteFile(final, []byte("stale"), 0644))
	require.NoError(t, os.WriteFile(part, []byte("fresh"), 0644))

	require.NoError(t, Commit(part, final))

	got, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), got)
}

func TestCommitMissingPartialFails(t *testing.T) {
	dir := t.TempDir()
	err := Commit(filepath.Join(dir, "none.part"), filepath.Join(dir, "none.zip"))
	require.Error(t, err)

	// A failed commit must not fabricate a final file.
	_, statErr := os.Stat(filepath.Join(dir, "none.zip"))
	assert.True(t, os.IsNotExist(statErr))
}
