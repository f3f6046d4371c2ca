package manager

import (
	"time"

	"github.com/tidechart/tidechart/internal/chart"
)

// Enqueue adds a task to the download queue. A chart already queued or
// actively transferring is silently ignored; the queue stays ordered by
// priority descending, FIFO within each tier.
func (m *Manager) Enqueue(task chart.DownloadTask) {
	if task.ChartID == "" || task.URL == "" {
		return
	}
	if task.AddedAt.IsZero() {
		task.AddedAt = time.Now()
	}

	m.queueMu.Lock()
	if m.disposed {
		m.queueMu.Unlock()
		return
	}
	if _, active := m.active[task.ChartID]; active || m.queuedLocked(task.ChartID) {
		m.queueMu.Unlock()
		return
	}
	m.insertLocked(task)
	m.setStatusLocked(task.ChartID, chart.StatusQueued, task.BatchID)
	m.queueMu.Unlock()

	m.rememberTask(task)
	m.saveAsync()
	m.promote()
}

// insertLocked places the task before the first entry of lower priority,
// preserving insertion order within its own tier. Callers hold queueMu.
func (m *Manager) insertLocked(task chart.DownloadTask) {
	idx := len(m.queue)
	for i, t := range m.queue {
		if t.Priority < task.Priority {
			idx = i
			break
		}
	}
	m.queue = append(m.queue, chart.DownloadTask{})
	copy(m.queue[idx+1:], m.queue[idx:])
	m.queue[idx] = task
}

func (m *Manager) queuedLocked(chartID string) bool {
	for _, t := range m.queue {
		if t.ChartID == chartID {
			return true
		}
	}
	return false
}

// Remove deletes a chart from the queue. It has no effect on a transfer
// that is already active.
func (m *Manager) Remove(chartID string) {
	m.queueMu.Lock()
	removed := m.removeLocked(chartID)
	if removed {
		m.setStatusLocked(chartID, chart.StatusCancelled, "")
	}
	m.queueMu.Unlock()

	if removed {
		m.saveAsync()
	}
}

func (m *Manager) removeLocked(chartID string) bool {
	for i, t := range m.queue {
		if t.ChartID == chartID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the queue without touching active transfers.
func (m *Manager) Clear() {
	m.queueMu.Lock()
	cleared := m.queue
	m.queue = nil
	for _, t := range cleared {
		m.setStatusLocked(t.ChartID, chart.StatusCancelled, t.BatchID)
	}
	m.queueMu.Unlock()

	if len(cleared) > 0 {
		m.saveAsync()
	}
}

// GetDetailedQueue returns a copy of the pending queue in admission order.
func (m *Manager) GetDetailedQueue() []chart.DownloadTask {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	out := make([]chart.DownloadTask, len(m.queue))
	copy(out, m.queue)
	return out
}

// QueueLength reports the number of pending tasks.
func (m *Manager) QueueLength() int {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	return len(m.queue)
}

// ActiveCount reports the number of transfers currently running.
func (m *Manager) ActiveCount() int {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	return len(m.active)
}

// SetMaxConcurrent adjusts the transfer slot count for future admissions.
// Already-running transfers are never preempted when the cap shrinks.
func (m *Manager) SetMaxConcurrent(n int) {
	if n < 1 {
		n = 1
	}
	m.queueMu.Lock()
	m.maxConcurrent = n
	m.queueMu.Unlock()
	m.promote()
}

// MaxConcurrent returns the current transfer slot count.
func (m *Manager) MaxConcurrent() int {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	return m.maxConcurrent
}
