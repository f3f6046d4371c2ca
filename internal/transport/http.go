package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vfaronov/httpheader"

	"github.com/tidechart/tidechart/internal/logging"
)

const downloadBufferSize = 256 * 1024

// HTTPClient is the production Client backed by net/http.
type HTTPClient struct {
	client       *http.Client
	userAgent    string
	probeTimeout time.Duration
	log          zerolog.Logger
}

// HTTPOptions tunes the production client.
type HTTPOptions struct {
	UserAgent      string
	RequestTimeout time.Duration
	ProbeTimeout   time.Duration
}

// NewHTTPClient builds an HTTPClient with a keep-alive tuned transport.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	if opts.UserAgent == "" {
		opts.UserAgent = "tidechart/1.0"
	}
	if opts.ProbeTimeout == 0 {
		opts.ProbeTimeout = 15 * time.Second
	}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		IdleConnTimeout:       60 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		DisableCompression:    true,
		ResponseHeaderTimeout: opts.RequestTimeout,
	}
	return &HTTPClient{
		client: &http.Client{
			// No overall timeout: large chart archives take longer than any
			// sane fixed deadline. Cancellation comes from the context.
			Timeout:   0,
			Transport: tr,
		},
		userAgent:    opts.UserAgent,
		probeTimeout: opts.ProbeTimeout,
		log:          logging.Component("transport"),
	}
}

// Head probes the URL with GET Range: bytes=0-0. A 206 answer proves range
// support and carries the total size in Content-Range; a 200 answer means
// the server ignores ranges and reports size via Content-Length.
func (c *HTTPClient) Head(ctx context.Context, rawurl string) (*HeadInfo, error) {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe request: %w", err)
	}
	req.Header.Set("Range", "bytes=0-0")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classify(fmt.Errorf("probe request failed: %w", err))
	}
	defer func() {
		io.Copy(io.Discard, resp.Body) // Drain any remaining data
		resp.Body.Close()
	}()

	c.log.Debug().Int("status", resp.StatusCode).Str("url", rawurl).Msg("probe response")

	info := &HeadInfo{StatusCode: resp.StatusCode, ContentLength: -1}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		info.SupportsRange = true
		if size, ok := parseContentRangeTotal(resp.Header.Get("Content-Range")); ok {
			info.ContentLength = size
		}
	case http.StatusOK:
		info.SupportsRange = false
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if size, err := strconv.ParseInt(cl, 10, 64); err == nil {
				info.ContentLength = size
			}
		}
	default:
		return nil, statusToError(resp.StatusCode)
	}

	if _, filename, _ := httpheader.ContentDisposition(resp.Header); filename != "" {
		info.Filename = filename
	}
	info.ContentType = resp.Header.Get("Content-Type")
	return info, nil
}

// DownloadFile streams rawurl into path. With resumeFrom > 0 it requests a
// range continuation; a server that answers 200 anyway gets the file
// restarted from zero, and a 416 is surfaced as ErrRangeNotSatisfiable.
func (c *HTTPClient) DownloadFile(ctx context.Context, rawurl, path string, resumeFrom int64, onProgress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if resumeFrom > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeFrom))
		c.log.Debug().Int64("offset", resumeFrom).Str("url", rawurl).Msg("resuming from offset")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		return ErrRangeNotSatisfiable
	case resumeFrom > 0 && resp.StatusCode == http.StatusOK:
		// Server ignored the Range header: restart from zero.
		c.log.Warn().Str("url", rawurl).Msg("server ignored range request, restarting from zero")
		resumeFrom = 0
	case resumeFrom > 0 && resp.StatusCode != http.StatusPartialContent:
		return statusToError(resp.StatusCode)
	case resumeFrom == 0 && resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent:
		return statusToError(resp.StatusCode)
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

	total := int64(-1)
	if resp.ContentLength >= 0 {
		total = resumeFrom + resp.ContentLength
	}

	written := resumeFrom
	buf := make([]byte, downloadBufferSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		nr, readErr := resp.Body.Read(buf)
		if nr > 0 {
			nw, writeErr := out.Write(buf[:nr])
			if writeErr != nil {
				return fmt.Errorf("write error: %w", writeErr)
			}
			if nw != nr {
				return io.ErrShortWrite
			}
			written += int64(nw)
			if onProgress != nil {
				onProgress(written, total)
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return classify(fmt.Errorf("read error: %w", readErr))
		}
	}

	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync error: %w", err)
	}
	if total >= 0 && written < total {
		return Transient(fmt.Errorf("connection closed after %d of %d bytes: %w", written, total, io.ErrUnexpectedEOF))
	}
	return nil
}

// parseContentRangeTotal extracts the total from "bytes 0-0/TOTAL".
func parseContentRangeTotal(contentRange string) (int64, bool) {
	if contentRange == "" {
		return 0, false
	}
	idx := strings.LastIndex(contentRange, "/")
	if idx == -1 {
		return 0, false
	}
	sizeStr := contentRange[idx+1:]
	if sizeStr == "*" {
		return 0, false
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return size, true
}

// statusToError converts an HTTP status into a classified error. Server
// overload answers are retryable; client errors are not.
func statusToError(code int) error {
	err := &StatusError{StatusCode: code}
	switch {
	case code >= 500, code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return Transient(err)
	default:
		return err
	}
}
