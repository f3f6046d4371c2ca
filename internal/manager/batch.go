package manager

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tidechart/tidechart/internal/chart"
)

type batchState struct {
	members []string
	status  chart.BatchStatus
}

// StartBatch enqueues one download per chartID/url pair under a fresh batch
// identifier and begins tracking aggregate progress.
func (m *Manager) StartBatch(chartIDs, urls []string, priority chart.Priority) (string, error) {
	if len(chartIDs) != len(urls) {
		return "", fmt.Errorf("batch: %d chart ids but %d urls", len(chartIDs), len(urls))
	}
	tasks := make([]chart.DownloadTask, len(chartIDs))
	for i, id := range chartIDs {
		tasks[i] = chart.DownloadTask{ChartID: id, URL: urls[i], Priority: priority}
	}
	return m.StartBatchTasks(tasks)
}

// StartBatchTasks is the general batch entry point for callers that carry
// per-chart checksums or priorities, such as YAML manifests.
func (m *Manager) StartBatchTasks(tasks []chart.DownloadTask) (string, error) {
	if len(tasks) == 0 {
		return "", fmt.Errorf("batch: no charts given")
	}

	batchID := uuid.New().String()
	members := make([]string, len(tasks))
	for i, t := range tasks {
		members[i] = t.ChartID
	}

	m.batchMu.Lock()
	m.batches[batchID] = &batchState{members: members, status: chart.BatchInProgress}
	m.batchMu.Unlock()

	now := time.Now()
	for _, t := range tasks {
		t.BatchID = batchID
		if t.AddedAt.IsZero() {
			t.AddedAt = now
		}
		m.Enqueue(t)
	}
	return batchID, nil
}

// GetBatchProgress returns a point-in-time aggregate for the batch. The
// overall value is the arithmetic mean of member normalized progress.
func (m *Manager) GetBatchProgress(batchID string) (chart.BatchDownloadProgress, bool) {
	m.batchMu.Lock()
	bs, ok := m.batches[batchID]
	if !ok {
		m.batchMu.Unlock()
		return chart.BatchDownloadProgress{}, false
	}
	members := make([]string, len(bs.members))
	copy(members, bs.members)
	status := bs.status
	m.batchMu.Unlock()

	agg := chart.BatchDownloadProgress{
		BatchID:     batchID,
		TotalCharts: len(members),
		Status:      status,
	}

	var sum float64
	m.progMu.RLock()
	for _, id := range members {
		p := m.progress[id]
		sum += p.Progress
		switch p.Status {
		case chart.StatusCompleted:
			agg.CompletedCharts++
		case chart.StatusFailed:
			agg.FailedCharts++
		}
	}
	m.progMu.RUnlock()

	if agg.TotalCharts > 0 {
		agg.OverallProgress = sum / float64(agg.TotalCharts)
	}
	if status == chart.BatchInProgress && agg.CompletedCharts+agg.FailedCharts == agg.TotalCharts {
		agg.Status = chart.BatchCompleted
	}
	return agg, true
}

// PauseBatch pauses every member download.
func (m *Manager) PauseBatch(batchID string) bool {
	members, ok := m.setBatchStatus(batchID, chart.BatchPaused)
	if !ok {
		return false
	}
	for _, id := range members {
		m.Pause(id)
	}
	return true
}

// ResumeBatch re-queues every member download that is not already running.
func (m *Manager) ResumeBatch(batchID string) bool {
	members, ok := m.setBatchStatus(batchID, chart.BatchInProgress)
	if !ok {
		return false
	}
	for _, id := range members {
		m.Resume(id)
	}
	return true
}

// CancelBatch cancels every member download.
func (m *Manager) CancelBatch(batchID string) bool {
	members, ok := m.setBatchStatus(batchID, chart.BatchCancelled)
	if !ok {
		return false
	}
	for _, id := range members {
		m.Cancel(id)
	}
	return true
}

func (m *Manager) setBatchStatus(batchID string, status chart.BatchStatus) ([]string, bool) {
	m.batchMu.Lock()
	defer m.batchMu.Unlock()
	bs, ok := m.batches[batchID]
	if !ok {
		return nil, false
	}
	bs.status = status
	members := make([]string, len(bs.members))
	copy(members, bs.members)
	return members, true
}
