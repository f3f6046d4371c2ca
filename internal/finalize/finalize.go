// Package finalize commits completed partial files to their final path.
package finalize

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tidechart/tidechart/internal/logging"
)

const (
	renameAttempts = 3
	renameBackoff  = 50 * time.Millisecond
)

// Commit moves partPath to finalPath. It attempts an atomic rename a few
// times to absorb transient filesystem contention, then falls back to
// copy-then-delete. Exactly one of the two files exists when Commit
// returns nil.
func Commit(partPath, finalPath string) error {
	log := logging.Component("finalize")

	var lastErr error
	for attempt := 1; attempt <= renameAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(time.Duration(attempt-1) * renameBackoff)
		}
		if err := os.Rename(partPath, finalPath); err != nil {
			lastErr = err
			log.Debug().Err(err).Int("attempt", attempt).Str("path", finalPath).Msg("rename failed")
			continue
		}
		return nil
	}

	// Rename kept failing (cross-device link, contention). Copy the whole
	// partial to the destination and remove the original afterwards so a
	// failed copy never leaves a truncated final without its partial.
	log.Warn().Err(lastErr).Str("path", finalPath).Msg("rename exhausted, falling back to copy")
	if err := copyFile(partPath, finalPath); err != nil {
		_ = os.Remove(finalPath)
		return fmt.Errorf("failed to finalize file: %w", err)
	}
	if err := os.Remove(partPath); err != nil {
		return fmt.Errorf("failed to remove partial after copy: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	buf := make([]byte, 1024*1024)
	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		return err
	}
	return out.Sync()
}
