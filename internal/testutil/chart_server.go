package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
)

// ChartServer is a configurable HTTP test server for transport testing.
type ChartServer struct {
	Server *httptest.Server

	FileSize       int64
	SupportsRanges bool
	FailOnNth      int // fail the Nth request with a 503 (0 = never)
	Reject416      bool

	RequestCount atomic.Int64
	RangeCount   atomic.Int64

	data []byte
}

// ChartServerOption configures a ChartServer.
type ChartServerOption func(*ChartServer)

// WithFileSize sets the size of the served archive.
func WithFileSize(size int64) ChartServerOption {
	return func(s *ChartServer) { s.FileSize = size }
}

// WithRangeSupport enables or disables HTTP Range handling.
func WithRangeSupport(enabled bool) ChartServerOption {
	return func(s *ChartServer) { s.SupportsRanges = enabled }
}

// WithFailOnNthRequest makes the Nth request answer 503.
func WithFailOnNthRequest(n int) ChartServerOption {
	return func(s *ChartServer) { s.FailOnNth = n }
}

// WithRejectRanges makes every ranged request answer 416.
func WithRejectRanges() ChartServerOption {
	return func(s *ChartServer) { s.Reject416 = true }
}

// NewChartServer starts a server with deterministic content so checksums
// are reproducible across runs.
func NewChartServer(opts ...ChartServerOption) *ChartServer {
	s := &ChartServer{FileSize: 1024, SupportsRanges: true}
	for _, opt := range opts {
		opt(s)
	}
	s.data = make([]byte, s.FileSize)
	for i := range s.data {
		s.data[i] = byte(i % 251)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the server's base URL with a chart-like path.
func (s *ChartServer) URL() string {
	return s.Server.URL + "/charts/test-chart.zip"
}

// Data returns the full served content.
func (s *ChartServer) Data() []byte { return s.data }

// Close shuts down the server.
func (s *ChartServer) Close() { s.Server.Close() }

func (s *ChartServer) handle(w http.ResponseWriter, r *http.Request) {
	n := s.RequestCount.Add(1)
	if s.FailOnNth > 0 && n == int64(s.FailOnNth) {
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" || !s.SupportsRanges {
		w.Header().Set("Content-Length", strconv.FormatInt(s.FileSize, 10))
		w.WriteHeader(http.StatusOK)
		w.Write(s.data)
		return
	}

	s.RangeCount.Add(1)
	if s.Reject416 {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	start, end, ok := parseRange(rangeHeader, s.FileSize)
	if !ok || start >= s.FileSize {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, s.FileSize))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(s.data[start : end+1])
}

// parseRange handles the "bytes=START-" and "bytes=START-END" forms the
// transport client emits.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return 0, 0, false
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false
	}
	end = size - 1
	if parts[1] != "" {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil || end >= size {
			return 0, 0, false
		}
	}
	return start, end, start <= end
}
