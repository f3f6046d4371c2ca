package manager

import (
	"time"

	"github.com/tidechart/tidechart/internal/chart"
)

const subscriberBuffer = 32

// applyProgress is the engine's progress callback: it updates the progress
// map and fans the update out to subscribers.
func (m *Manager) applyProgress(p chart.DownloadProgress) {
	m.progMu.Lock()
	if prev, ok := m.progress[p.ChartID]; ok && p.BatchID == "" {
		p.BatchID = prev.BatchID
	}
	m.progress[p.ChartID] = p
	m.progMu.Unlock()

	m.publish(p)
}

// setStatus records a status-only transition for a chart, preserving the
// byte counts of any prior progress entry.
func (m *Manager) setStatus(chartID string, status chart.Status, batchID string) {
	m.progMu.Lock()
	p := m.progress[chartID]
	p.ChartID = chartID
	p.Status = status
	p.LastUpdated = time.Now()
	if batchID != "" {
		p.BatchID = batchID
	}
	m.progress[chartID] = p
	m.progMu.Unlock()

	m.publish(p)
}

// setStatusLocked is setStatus for callers that already hold queueMu. The
// progress map has its own lock, so this only exists to document intent.
func (m *Manager) setStatusLocked(chartID string, status chart.Status, batchID string) {
	m.setStatus(chartID, status, batchID)
}

// GetProgress returns the last known progress for a chart.
func (m *Manager) GetProgress(chartID string) (chart.DownloadProgress, bool) {
	m.progMu.RLock()
	defer m.progMu.RUnlock()
	p, ok := m.progress[chartID]
	return p, ok
}

// AllProgress returns a copy of every known progress entry.
func (m *Manager) AllProgress() map[string]chart.DownloadProgress {
	m.progMu.RLock()
	defer m.progMu.RUnlock()
	out := make(map[string]chart.DownloadProgress, len(m.progress))
	for id, p := range m.progress {
		out[id] = p
	}
	return out
}

// ClearFinished drops progress entries for terminal downloads, keeping the
// map small for long-running processes. Active and paused entries stay.
func (m *Manager) ClearFinished() {
	m.progMu.Lock()
	for id, p := range m.progress {
		if p.Status.Terminal() {
			delete(m.progress, id)
		}
	}
	m.progMu.Unlock()
	m.saveAsync()
}

// Subscribe returns a stream of progress updates for one chart and a
// cancel function. The channel closes when the manager is disposed.
func (m *Manager) Subscribe(chartID string) (<-chan chart.DownloadProgress, func()) {
	ch := make(chan chart.DownloadProgress, subscriberBuffer)

	m.subMu.Lock()
	if m.closed {
		m.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	m.subs[chartID] = append(m.subs[chartID], ch)
	m.subMu.Unlock()

	unsubscribe := func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if m.closed {
			return
		}
		chans := m.subs[chartID]
		for i, c := range chans {
			if c == ch {
				m.subs[chartID] = append(chans[:i], chans[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

// publish pushes an update to every subscriber of the chart. A slow
// subscriber with a full buffer misses intermediate updates rather than
// stalling the transfer.
func (m *Manager) publish(p chart.DownloadProgress) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if m.closed {
		return
	}
	for _, ch := range m.subs[p.ChartID] {
		select {
		case ch <- p:
		default:
		}
	}
}
