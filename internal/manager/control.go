package manager

import (
	"time"

	"github.com/tidechart/tidechart/internal/chart"
)

// Pause stops a single download. An active transfer has its in-flight
// request cancelled and keeps its partial file; a queued task is pulled
// from the queue. Returns false when the chart is neither active nor
// queued.
func (m *Manager) Pause(chartID string) bool {
	m.queueMu.Lock()
	if at, ok := m.active[chartID]; ok {
		at.interrupt(intentPause)
		m.queueMu.Unlock()
		return true
	}
	removed := m.removeLocked(chartID)
	m.queueMu.Unlock()

	if removed {
		m.setStatus(chartID, chart.StatusPaused, "")
		m.saveAsync()
	}
	return removed
}

// Resume re-queues a paused or failed download. The task is rebuilt from
// the in-memory task cache when available, otherwise from the durable
// resume record, so resuming works across process restarts.
func (m *Manager) Resume(chartID string) bool {
	m.queueMu.Lock()
	_, active := m.active[chartID]
	queued := m.queuedLocked(chartID)
	m.queueMu.Unlock()
	if active || queued {
		return false
	}

	task, ok := m.knownTask(chartID)
	if !ok {
		rec, recOK := m.ResumeRecordFor(chartID)
		if !recOK {
			return false
		}
		task = chart.DownloadTask{
			ChartID:          chartID,
			URL:              rec.OriginalURL,
			Priority:         chart.PriorityNormal,
			ExpectedChecksum: rec.Checksum,
		}
	}
	task.AddedAt = time.Now()
	m.Enqueue(task)
	return true
}

// Cancel aborts a download. An active transfer is interrupted but its
// partial file is preserved, so a later resume can still continue it; a
// queued task is removed.
func (m *Manager) Cancel(chartID string) bool {
	m.queueMu.Lock()
	if at, ok := m.active[chartID]; ok {
		at.interrupt(intentCancel)
		m.queueMu.Unlock()
		return true
	}
	removed := m.removeLocked(chartID)
	m.queueMu.Unlock()

	if removed {
		m.setStatus(chartID, chart.StatusCancelled, "")
		m.saveAsync()
	}
	return removed
}

// PauseAll pauses every active transfer, used for graceful shutdown paths
// that want to keep the process alive afterwards.
func (m *Manager) PauseAll() {
	m.queueMu.Lock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	m.queueMu.Unlock()

	for _, id := range ids {
		m.Pause(id)
	}
}
