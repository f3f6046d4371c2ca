package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chart.zip")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func TestVerifyFileMatches(t *testing.T) {
	content := []byte("soundings and contours")
	path := writeTemp(t, content)

	assert.NoError(t, VerifyFile(path, digest(content)))
}

func TestVerifyFileCaseInsensitive(t *testing.T) {
	content := []byte("soundings and contours")
	path := writeTemp(t, content)

	assert.NoError(t, VerifyFile(path, strings.ToUpper(digest(content))))
}

func TestVerifyFileMismatch(t *testing.T) {
	path := writeTemp(t, []byte("real content"))

	err := VerifyFile(path, digest([]byte("expected content")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestVerifyFileEmptyExpectedSkips(t *testing.T) {
	path := writeTemp(t, []byte("anything"))
	assert.NoError(t, VerifyFile(path, ""))
}

func TestVerifyFileMissingFile(t *testing.T) {
	err := VerifyFile(filepath.Join(t.TempDir(), "missing"), digest(nil))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrChecksumMismatch)
}

func TestFileChecksumKnownValue(t *testing.T) {
	path := writeTemp(t, []byte("abc"))

	sum, err := FileChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)
}

func TestSniffTypeZip(t *testing.T) {
	// Minimal zip signature is enough for magic-byte detection.
	path := writeTemp(t, []byte{0x50, 0x4B, 0x03, 0x04, 0x00, 0x00, 0x00, 0x00})
	assert.Equal(t, "application/zip", SniffType(path))
}

func TestSniffTypeUnknown(t *testing.T) {
	path := writeTemp(t, []byte("plain text, no magic"))
	assert.Equal(t, "application/octet-stream", SniffType(path))

	assert.Equal(t, "application/octet-stream", SniffType(filepath.Join(t.TempDir(), "missing")))
}
