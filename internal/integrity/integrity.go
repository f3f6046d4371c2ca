// Package integrity verifies completed chart archives against their
// expected digests and sniffs their content type for the history store.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/h2non/filetype"
)

// ErrChecksumMismatch signals that a completed file's digest differs from
// the expected value. The file cannot be trusted and must be discarded.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// VerifyFile computes the streaming SHA-256 digest of path and compares it
// case-insensitively to expected. An empty expected digest skips
// verification entirely.
func VerifyFile(path, expected string) error {
	if expected == "" {
		return nil
	}
	actual, err := FileChecksum(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, actual, strings.ToLower(expected))
	}
	return nil
}

// FileChecksum returns the hex SHA-256 digest of the file at path.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SniffType detects the MIME type of a file from its magic bytes, returning
// application/octet-stream when the type is unknown.
func SniffType(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()

	// filetype needs at most the first 262 bytes.
	head := make([]byte, 262)
	n, _ := io.ReadFull(f, head)
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return "application/octet-stream"
	}
	return kind.MIME.Value
}
