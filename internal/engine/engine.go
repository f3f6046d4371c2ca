// Package engine drives a single chart download end-to-end: preflight size
// probe, streamed transfer into a .part file, retry with exponential
// backoff, checksum verification and atomic finalization.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidechart/tidechart/internal/chart"
	"github.com/tidechart/tidechart/internal/finalize"
	"github.com/tidechart/tidechart/internal/integrity"
	"github.com/tidechart/tidechart/internal/logging"
	"github.com/tidechart/tidechart/internal/transport"
)

// ErrTooManyAttempts is returned when the retry ceiling is exhausted. A
// resume record is left behind for a later explicit resume.
var ErrTooManyAttempts = errors.New("retry attempts exhausted")

// ErrInterrupted is returned when the transfer context is cancelled. The
// partial file is preserved and the caller decides whether the download is
// paused or cancelled.
var ErrInterrupted = errors.New("transfer interrupted")

// ErrStorage marks local filesystem failures during verification or
// finalization, as opposed to transport failures.
var ErrStorage = errors.New("storage failure")

// Config wires an Engine to its collaborators. The record callbacks let the
// manager persist resume state on every meaningful state change without the
// engine knowing about the snapshot store.
type Config struct {
	Client           transport.Client
	ChartDir         string
	MaxAttempts      int
	BackoffBase      time.Duration
	ProgressInterval time.Duration

	OnProgress      func(chart.DownloadProgress)
	OnRecord        func(chart.ResumeRecord)
	OnRecordCleared func(chartID string)
}

// Engine executes downloads one task at a time; a task runs on the
// scheduler's worker goroutine and an Engine is safe for concurrent
// Execute calls.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

// New builds an Engine, filling in defaults for zero config values.
func New(cfg Config) *Engine {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 100 * time.Millisecond
	}
	return &Engine{cfg: cfg, log: logging.Component("engine")}
}

// Execute drives task to a terminal state. prior is the resume record from
// a previous run, or nil for a fresh download. On success the final file is
// in place and the resume record cleared; on exhausted retries or fatal
// errors a record is left behind. ErrInterrupted means the context was
// cancelled and the partial file preserved.
func (e *Engine) Execute(ctx context.Context, task chart.DownloadTask, prior *chart.ResumeRecord) error {
	finalPath := chart.FinalPath(e.cfg.ChartDir, task.ChartID, task.URL)
	partPath := chart.PartPath(e.cfg.ChartDir, task.ChartID, task.URL)

	rec := chart.ResumeRecord{
		ChartID:     task.ChartID,
		OriginalURL: task.URL,
		Checksum:    task.ExpectedChecksum,
	}
	if prior != nil {
		rec = *prior
	}

	em := newEmitter(e, task)
	// Observers must never see a gap before the first byte arrives.
	em.start()

	total := e.preflight(ctx, task, &rec)
	if ctx.Err() != nil {
		return e.interrupt(&rec, partPath, em)
	}
	em.setTotal(total)

	var lastErr error
	skipBackoff := false
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if attempt > 1 && !skipBackoff {
			if err := e.backoff(ctx, attempt); err != nil {
				return e.interrupt(&rec, partPath, em)
			}
		}
		skipBackoff = false

		resumeFrom := e.resumeOffset(partPath, &rec)
		rec.Attempts++
		rec.DownloadedBytes = resumeFrom
		rec.LastAttempt = time.Now()
		e.persistRecord(rec)

		err := e.cfg.Client.DownloadFile(ctx, task.URL, partPath, resumeFrom, func(downloaded, t int64) {
			em.observe(downloaded, t)
		})
		if err == nil {
			return e.finish(task, &rec, partPath, finalPath, em)
		}
		lastErr = err

		switch {
		case errors.Is(err, context.Canceled):
			return e.interrupt(&rec, partPath, em)

		case errors.Is(err, transport.ErrRangeNotSatisfiable):
			if resumeFrom == 0 {
				// 416 with no offset requested: the URL itself is broken.
				rec.LastErrorCode = transport.ErrorCode(err)
				e.persistRecord(rec)
				em.fail(err)
				return err
			}
			e.log.Warn().Str("chart", task.ChartID).Int64("offset", resumeFrom).
				Msg("range no longer satisfiable, discarding partial and restarting from zero")
			_ = os.Remove(partPath)
			rec.DownloadedBytes = 0
			rec.LastErrorCode = transport.ErrorCode(err)
			e.persistRecord(rec)
			// A protocol-level restart is not a retry.
			attempt--
			skipBackoff = true

		case transport.IsTransient(err):
			rec.LastErrorCode = transport.ErrorCode(err)
			rec.DownloadedBytes = partSize(partPath)
			e.persistRecord(rec)
			e.log.Warn().Err(err).Str("chart", task.ChartID).
				Int("attempt", attempt).Int("max_attempts", e.cfg.MaxAttempts).
				Msgf("download attempt %d failed", attempt)

		default:
			// Storage or protocol failure: fatal for this operation.
			rec.LastErrorCode = transport.ErrorCode(err)
			e.persistRecord(rec)
			em.fail(err)
			return err
		}
	}

	rec.DownloadedBytes = partSize(partPath)
	e.persistRecord(rec)
	err := fmt.Errorf("download failed after %d attempts: %w (last error: %w)", e.cfg.MaxAttempts, ErrTooManyAttempts, lastErr)
	em.fail(err)
	return err
}

// preflight probes the source for size and range support. A failed probe
// only disables percentage reporting until the transfer itself reports a
// total; it never fails the download.
func (e *Engine) preflight(ctx context.Context, task chart.DownloadTask, rec *chart.ResumeRecord) int64 {
	hi, err := e.cfg.Client.Head(ctx, task.URL)
	if err != nil {
		e.log.Debug().Err(err).Str("chart", task.ChartID).Msg("preflight probe failed, size unknown")
		return -1
	}
	supports := hi.SupportsRange
	rec.SupportsRange = &supports
	if hi.ContentLength > 0 {
		return hi.ContentLength
	}
	return -1
}

// resumeOffset decides the byte offset for the next attempt. An existing
// partial is continued unless the server is known not to support ranges, in
// which case the partial is useless and discarded.
func (e *Engine) resumeOffset(partPath string, rec *chart.ResumeRecord) int64 {
	fi, err := os.Stat(partPath)
	if err != nil {
		return 0
	}
	if rec.SupportsRange != nil && !*rec.SupportsRange {
		_ = os.Remove(partPath)
		return 0
	}
	return fi.Size()
}

func (e *Engine) backoff(ctx context.Context, attempt int) error {
	delay := e.cfg.BackoffBase << (attempt - 2)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// interrupt handles cooperative cancellation: the partial file stays on
// disk and the record reflects its real size so the transfer is resumable.
func (e *Engine) interrupt(rec *chart.ResumeRecord, partPath string, em *emitter) error {
	rec.DownloadedBytes = partSize(partPath)
	rec.LastAttempt = time.Now()
	e.persistRecord(*rec)
	em.pause(rec.DownloadedBytes)
	return ErrInterrupted
}

// finish verifies and commits a fully transferred partial.
func (e *Engine) finish(task chart.DownloadTask, rec *chart.ResumeRecord, partPath, finalPath string, em *emitter) error {
	if err := integrity.VerifyFile(partPath, task.ExpectedChecksum); err != nil {
		if errors.Is(err, integrity.ErrChecksumMismatch) {
			// Discard the bytes: content may already diverge. The record
			// itself stays behind with a zero count so a later explicit
			// resume still finds it.
			_ = os.Remove(partPath)
			rec.DownloadedBytes = 0
			rec.LastErrorCode = "checksum_mismatch"
			e.persistRecord(*rec)
			em.fail(err)
			return err
		}
		err = fmt.Errorf("%w: %w", ErrStorage, err)
		rec.LastErrorCode = "storage_error"
		e.persistRecord(*rec)
		em.fail(err)
		return err
	}

	if err := finalize.Commit(partPath, finalPath); err != nil {
		err = fmt.Errorf("%w: %w", ErrStorage, err)
		rec.LastErrorCode = "storage_error"
		e.persistRecord(*rec)
		em.fail(err)
		return err
	}

	e.clearRecord(task.ChartID)
	em.complete(fileSize(finalPath))
	e.log.Info().Str("chart", task.ChartID).Str("path", finalPath).Msg("download completed")
	return nil
}

func (e *Engine) persistRecord(rec chart.ResumeRecord) {
	if e.cfg.OnRecord != nil {
		e.cfg.OnRecord(rec)
	}
}

func (e *Engine) clearRecord(chartID string) {
	if e.cfg.OnRecordCleared != nil {
		e.cfg.OnRecordCleared(chartID)
	}
}

func partSize(path string) int64 {
	return fileSize(path)
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
