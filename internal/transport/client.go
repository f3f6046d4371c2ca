// Package transport abstracts the HTTP layer used by the transfer engine so
// tests can substitute an in-memory implementation for the network stack.
package transport

import "context"

// HeadInfo is the result of a preflight size probe.
type HeadInfo struct {
	StatusCode    int
	ContentLength int64 // -1 when the server reports no length
	SupportsRange bool
	Filename      string // from Content-Disposition, may be empty
	ContentType   string
}

// ProgressFunc receives cumulative downloaded bytes (including any resumed
// offset) and the expected total, or -1 when the total is unknown.
type ProgressFunc func(downloaded, total int64)

// Client issues requests against a chart source. Implementations must
// return ErrRangeNotSatisfiable when a resume offset cannot be honored and
// wrap recoverable network failures with Transient so the engine retries.
type Client interface {
	// Head probes the URL for size and range support without transferring
	// the body.
	Head(ctx context.Context, url string) (*HeadInfo, error)

	// DownloadFile streams the URL into path, appending from resumeFrom
	// when it is positive. onProgress may be nil. Cancellation of ctx
	// aborts the transfer leaving the partial file in place.
	DownloadFile(ctx context.Context, url, path string, resumeFrom int64, onProgress ProgressFunc) error
}
