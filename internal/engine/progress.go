package engine

import (
	"sync"
	"time"

	"github.com/tidechart/tidechart/internal/chart"
)

// emitter turns raw byte counts into DownloadProgress updates. Values are
// clamped to [0,1] and monotonically non-decreasing for the life of the
// task; intermediate updates are throttled, state transitions never are.
type emitter struct {
	e    *Engine
	task chart.DownloadTask

	mu       sync.Mutex
	total    int64
	last     chart.DownloadProgress
	lastSent time.Time
}

func newEmitter(e *Engine, task chart.DownloadTask) *emitter {
	return &emitter{
		e:     e,
		task:  task,
		total: -1,
		last: chart.DownloadProgress{
			ChartID: task.ChartID,
			BatchID: task.BatchID,
			Status:  chart.StatusDownloading,
		},
	}
}

// start emits the initial 0.0 update so observers never see a gap.
func (em *emitter) start() {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.last.Progress = 0
	em.last.DownloadedBytes = 0
	em.send(true)
}

func (em *emitter) setTotal(total int64) {
	em.mu.Lock()
	defer em.mu.Unlock()
	if total > 0 {
		em.total = total
		em.last.TotalBytes = total
	}
}

// observe handles a progress callback from the transport.
func (em *emitter) observe(downloaded, total int64) {
	em.mu.Lock()
	defer em.mu.Unlock()

	if total > 0 {
		em.total = total
		em.last.TotalBytes = total
	}
	if downloaded > em.last.DownloadedBytes {
		em.last.DownloadedBytes = downloaded
	}
	if em.total > 0 {
		p := float64(em.last.DownloadedBytes) / float64(em.total)
		if p > 1 {
			p = 1
		}
		if p > em.last.Progress {
			em.last.Progress = p
		}
	}
	em.last.Status = chart.StatusDownloading
	em.send(false)
}

func (em *emitter) complete(finalSize int64) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.last.Status = chart.StatusCompleted
	em.last.Progress = 1
	if finalSize > 0 {
		em.last.DownloadedBytes = finalSize
		em.last.TotalBytes = finalSize
	}
	em.last.Error = ""
	em.send(true)
}

func (em *emitter) fail(err error) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.last.Status = chart.StatusFailed
	if err != nil {
		em.last.Error = err.Error()
	}
	em.send(true)
}

// pause reports an interrupted transfer. The manager may relabel the status
// as cancelled depending on which operation interrupted it.
func (em *emitter) pause(downloaded int64) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.last.Status = chart.StatusPaused
	if downloaded > em.last.DownloadedBytes {
		em.last.DownloadedBytes = downloaded
	}
	em.send(true)
}

// send pushes the current snapshot to the manager. Callers hold em.mu.
func (em *emitter) send(force bool) {
	now := time.Now()
	if !force && now.Sub(em.lastSent) < em.e.cfg.ProgressInterval {
		return
	}
	em.lastSent = now
	em.last.LastUpdated = now
	if em.e.cfg.OnProgress != nil {
		em.e.cfg.OnProgress(em.last)
	}
}
