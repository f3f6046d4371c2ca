// Package chart defines the data model shared by the download manager:
// queued tasks, observable progress, durable resume records and batch
// aggregates. All types here are plain data; field names and JSON tags are
// stable because they are read back from the on-disk state snapshot.
package chart

import (
	"encoding/json"
	"fmt"
	"time"
)

// Priority orders tasks within the download queue.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

var priorityNames = map[Priority]string{
	PriorityLow:    "low",
	PriorityNormal: "normal",
	PriorityHigh:   "high",
}

func (p Priority) String() string {
	if s, ok := priorityNames[p]; ok {
		return s
	}
	return "normal"
}

// ParsePriority maps a priority name to its value. Unknown names default to
// normal so manifests with typos still download.
func ParsePriority(s string) Priority {
	switch s {
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityNormal
	}
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("priority must be a string: %w", err)
	}
	*p = ParsePriority(s)
	return nil
}

// Status is the lifecycle state of a download.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether no further transfer activity can happen for this
// status without an explicit resume call.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// DownloadTask is a unit of queued or active work.
type DownloadTask struct {
	ChartID          string    `json:"chart_id"`
	URL              string    `json:"url"`
	Priority         Priority  `json:"priority"`
	ExpectedChecksum string    `json:"expected_checksum,omitempty"`
	AddedAt          time.Time `json:"added_at"`
	BatchID          string    `json:"batch_id,omitempty"`
}

// DownloadProgress is the observable state of an active or historical
// transfer. It is retained after completion/failure for UI polling until
// explicitly cleared.
type DownloadProgress struct {
	ChartID         string    `json:"chart_id"`
	Status          Status    `json:"status"`
	Progress        float64   `json:"progress"` // normalized [0,1]
	TotalBytes      int64     `json:"total_bytes"`
	DownloadedBytes int64     `json:"downloaded_bytes"`
	LastUpdated     time.Time `json:"last_updated"`
	Error           string    `json:"error,omitempty"`
	BatchID         string    `json:"batch_id,omitempty"`
}

// ResumeRecord is durable metadata enabling transfer resumption across
// process restarts. DownloadedBytes must reflect the real size of the
// on-disk partial file; the recovery sweep repairs any mismatch.
type ResumeRecord struct {
	ChartID         string    `json:"chart_id"`
	OriginalURL     string    `json:"original_url"`
	DownloadedBytes int64     `json:"downloaded_bytes"`
	LastAttempt     time.Time `json:"last_attempt"`
	Checksum        string    `json:"checksum,omitempty"`
	// SupportsRange is nil until learned from a server response.
	SupportsRange *bool  `json:"supports_range,omitempty"`
	Attempts      int    `json:"attempts"`
	LastErrorCode string `json:"last_error_code,omitempty"`
}

// BatchStatus is the aggregate state of a batch of downloads.
type BatchStatus string

const (
	BatchInProgress BatchStatus = "in_progress"
	BatchPaused     BatchStatus = "paused"
	BatchCompleted  BatchStatus = "completed"
	BatchCancelled  BatchStatus = "cancelled"
)

// BatchDownloadProgress aggregates progress over a set of chart downloads.
// OverallProgress is the arithmetic mean of member normalized progress
// values, not a byte-weighted average.
type BatchDownloadProgress struct {
	BatchID         string      `json:"batch_id"`
	TotalCharts     int         `json:"total_charts"`
	CompletedCharts int         `json:"completed_charts"`
	FailedCharts    int         `json:"failed_charts"`
	OverallProgress float64     `json:"overall_progress"`
	Status          BatchStatus `json:"status"`
}
