// Package testutil provides testing doubles for the chart download
// manager: a scriptable in-memory transport client and a configurable HTTP
// chart server.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tidechart/tidechart/internal/transport"
)

// FakeClient is an in-memory transport.Client whose failure behavior is
// scripted per test. The zero value serves an empty file.
type FakeClient struct {
	// Content is the full body served for any URL.
	Content []byte
	// SupportsRange controls the probe answer and resume behavior.
	SupportsRange bool
	// NoLength hides the total size from both probe and transfer.
	NoLength bool
	// HeadErr fails every probe.
	HeadErr error
	// TransientFailures makes the first N DownloadFile calls fail with a
	// retryable error after writing PartialOnFailure bytes.
	TransientFailures int
	// PartialOnFailure is how many bytes a failing call writes first.
	PartialOnFailure int64
	// RejectResume answers every resumed call with 416.
	RejectResume bool
	// ChunkSize controls progress granularity (default: whole body).
	ChunkSize int
	// ChunkDelay sleeps between chunks, giving tests time to interrupt.
	ChunkDelay time.Duration
	// Hold, when non-nil, blocks each transfer after its first chunk until
	// the channel is closed or the context is cancelled.
	Hold chan struct{}

	mu            sync.Mutex
	headCalls     int
	downloadCalls int
	active        int
	maxActive     int
}

var errFakeTimeout = errors.New("connection timed out")

// Head implements transport.Client.
func (f *FakeClient) Head(ctx context.Context, url string) (*transport.HeadInfo, error) {
	f.mu.Lock()
	f.headCalls++
	f.mu.Unlock()

	if f.HeadErr != nil {
		return nil, f.HeadErr
	}
	info := &transport.HeadInfo{
		StatusCode:    200,
		ContentLength: int64(len(f.Content)),
		SupportsRange: f.SupportsRange,
	}
	if f.NoLength {
		info.ContentLength = -1
	}
	return info, nil
}

// DownloadFile implements transport.Client, writing Content into path.
func (f *FakeClient) DownloadFile(ctx context.Context, url, path string, resumeFrom int64, onProgress transport.ProgressFunc) error {
	f.mu.Lock()
	f.downloadCalls++
	call := f.downloadCalls
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if resumeFrom > 0 && (f.RejectResume || resumeFrom > int64(len(f.Content))) {
		return transport.ErrRangeNotSatisfiable
	}

	total := int64(len(f.Content))
	reportTotal := total
	if f.NoLength {
		reportTotal = -1
	}

	flags := os.O_CREATE | os.O_WRONLY
	if resumeFrom > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open partial file: %w", err)
	}
	defer out.Close()

	failing := call <= f.TransientFailures
	limit := total
	if failing {
		limit = resumeFrom + f.PartialOnFailure
		if limit > total {
			limit = total
		}
	}

	chunk := f.ChunkSize
	if chunk <= 0 {
		chunk = len(f.Content)
		if chunk == 0 {
			chunk = 1
		}
	}

	written := resumeFrom
	held := false
	for written < limit {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := written + int64(chunk)
		if end > limit {
			end = limit
		}
		if _, err := out.Write(f.Content[written:end]); err != nil {
			return err
		}
		written = end
		if onProgress != nil {
			onProgress(written, reportTotal)
		}
		if f.Hold != nil && !held {
			held = true
			select {
			case <-f.Hold:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if f.ChunkDelay > 0 {
			select {
			case <-time.After(f.ChunkDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if failing {
		return transport.Transient(errFakeTimeout)
	}
	return out.Sync()
}

// HeadCalls reports how many probes were issued.
func (f *FakeClient) HeadCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headCalls
}

// DownloadCalls reports how many transfer attempts were issued.
func (f *FakeClient) DownloadCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloadCalls
}

// MaxActive reports the peak number of concurrent transfers observed.
func (f *FakeClient) MaxActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}
