// Package manager owns the download queue, the bounded worker scheduler,
// per-chart progress streams and batch aggregation. It is the only
// component that transitions a task from queued to downloading, and it owns
// all in-memory state maps exclusively.
package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidechart/tidechart/internal/chart"
	"github.com/tidechart/tidechart/internal/config"
	"github.com/tidechart/tidechart/internal/engine"
	"github.com/tidechart/tidechart/internal/history"
	"github.com/tidechart/tidechart/internal/integrity"
	"github.com/tidechart/tidechart/internal/logging"
	"github.com/tidechart/tidechart/internal/state"
	"github.com/tidechart/tidechart/internal/transport"
)

// interruption intents, recorded before cancelling an active transfer so
// the worker knows which terminal status the caller wanted.
const (
	intentPause = iota
	intentCancel
	intentDispose
)

type activeTransfer struct {
	task   chart.DownloadTask
	cancel context.CancelFunc

	mu     sync.Mutex
	intent int
}

func (at *activeTransfer) interrupt(intent int) {
	at.mu.Lock()
	at.intent = intent
	at.mu.Unlock()
	at.cancel()
}

func (at *activeTransfer) intentValue() int {
	at.mu.Lock()
	defer at.mu.Unlock()
	return at.intent
}

// Config assembles a Manager.
type Config struct {
	ChartDir         string
	MaxConcurrent    int
	MaxAttempts      int
	BackoffBase      time.Duration
	ProgressInterval time.Duration

	Client  transport.Client
	History *history.Store // optional
}

// Manager is the public surface consumed by the chart layer.
type Manager struct {
	chartDir string

	// queueMu guards the queue, the active set, maxConcurrent and the
	// started/disposed flags; it is the scheduler lock.
	queueMu       sync.Mutex
	queue         []chart.DownloadTask
	active        map[string]*activeTransfer
	maxConcurrent int
	started       bool
	disposed      bool

	// known remembers every task seen this process, so Resume can rebuild
	// one for charts no longer in the queue.
	knownMu sync.Mutex
	known   map[string]chart.DownloadTask

	progMu   sync.RWMutex
	progress map[string]chart.DownloadProgress

	recMu  sync.Mutex
	resume map[string]chart.ResumeRecord

	batchMu sync.Mutex
	batches map[string]*batchState

	subMu  sync.Mutex
	subs   map[string][]chan chart.DownloadProgress
	closed bool

	engine  *engine.Engine
	store   *state.Store
	history *history.Store
	wg      sync.WaitGroup
	log     zerolog.Logger
}

// New builds a Manager. Call Recover before enqueuing work: the scheduler
// admits nothing until the recovery sweep has run.
func New(cfg Config) (*Manager, error) {
	if cfg.Client == nil {
		return nil, errors.New("manager: transport client is required")
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 3
	}
	if err := config.EnsureDirs(cfg.ChartDir); err != nil {
		return nil, err
	}

	m := &Manager{
		chartDir:      cfg.ChartDir,
		active:        map[string]*activeTransfer{},
		known:         map[string]chart.DownloadTask{},
		progress:      map[string]chart.DownloadProgress{},
		resume:        map[string]chart.ResumeRecord{},
		batches:       map[string]*batchState{},
		subs:          map[string][]chan chart.DownloadProgress{},
		maxConcurrent: cfg.MaxConcurrent,
		store:         state.NewStore(config.StatePath(cfg.ChartDir)),
		history:       cfg.History,
		log:           logging.Component("manager"),
	}
	m.engine = engine.New(engine.Config{
		Client:           cfg.Client,
		ChartDir:         cfg.ChartDir,
		MaxAttempts:      cfg.MaxAttempts,
		BackoffBase:      cfg.BackoffBase,
		ProgressInterval: cfg.ProgressInterval,
		OnProgress:       m.applyProgress,
		OnRecord:         m.setResumeRecord,
		OnRecordCleared:  m.clearResumeRecord,
	})
	return m, nil
}

// Recover loads the persisted snapshot, runs the reconciliation sweep and
// starts admitting work. Transfers that were mid-flight when the process
// died come back as paused, with their resume records repaired against the
// partial files actually on disk.
func (m *Manager) Recover() state.SweepResult {
	snap := m.store.Load()
	res := m.store.Sweep(snap, m.chartDir)

	m.progMu.Lock()
	for id, p := range snap.Downloads {
		if p.Status == chart.StatusDownloading || p.Status == chart.StatusQueued {
			p.Status = chart.StatusPaused
			p.LastUpdated = time.Now()
		}
		m.progress[id] = p
	}
	m.progMu.Unlock()

	m.recMu.Lock()
	for id, rec := range snap.ResumeData {
		m.resume[id] = rec
	}
	m.recMu.Unlock()

	m.queueMu.Lock()
	m.queue = append(m.queue, snap.Queue...)
	for _, t := range snap.Queue {
		m.rememberTask(t)
		m.setStatusLocked(t.ChartID, chart.StatusQueued, t.BatchID)
	}
	m.started = true
	m.queueMu.Unlock()

	// Persist sweep-driven repairs before any new work mutates state.
	m.saveAsync()
	m.promote()
	return res
}

// Dispose cancels every active transfer, stops the scheduler, performs a
// final best-effort save and closes all progress streams. Persisted state
// is left on disk for the next run.
func (m *Manager) Dispose() {
	m.queueMu.Lock()
	if m.disposed {
		m.queueMu.Unlock()
		return
	}
	m.disposed = true
	for _, at := range m.active {
		at.interrupt(intentDispose)
	}
	m.queueMu.Unlock()

	m.wg.Wait()

	if err := m.store.Save(m.snapshot()); err != nil {
		m.log.Warn().Err(err).Msg("final state save failed")
	}

	m.subMu.Lock()
	m.closed = true
	for _, chans := range m.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	m.subs = map[string][]chan chart.DownloadProgress{}
	m.subMu.Unlock()

	if err := m.history.Close(); err != nil {
		m.log.Debug().Err(err).Msg("history close failed")
	}
}

// promote admits queued tasks while transfer slots are free. It is called
// after every event that can free a slot or add work.
func (m *Manager) promote() {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	if !m.started || m.disposed {
		return
	}
	for len(m.active) < m.maxConcurrent && len(m.queue) > 0 {
		task := m.queue[0]
		m.queue = m.queue[1:]

		ctx, cancel := context.WithCancel(context.Background())
		at := &activeTransfer{task: task, cancel: cancel}
		m.active[task.ChartID] = at

		m.wg.Add(1)
		go m.run(ctx, at)
	}
}

// run executes one admitted task on its own goroutine and reconciles the
// outcome. Completion of one transfer immediately admits the next.
func (m *Manager) run(ctx context.Context, at *activeTransfer) {
	defer m.wg.Done()
	task := at.task

	prior := m.resumeRecordFor(task.ChartID)
	err := m.engine.Execute(ctx, task, prior)

	switch {
	case err == nil:
		m.recordHistory(task, chart.StatusCompleted, true)

	case errors.Is(err, engine.ErrInterrupted):
		if at.intentValue() == intentCancel {
			m.setStatus(task.ChartID, chart.StatusCancelled, task.BatchID)
			m.recordHistory(task, chart.StatusCancelled, false)
		}
		// pause and dispose both leave the paused status the engine set

	default:
		m.log.Error().Err(err).Str("chart", task.ChartID).Msg("download failed")
		m.recordHistory(task, chart.StatusFailed, false)
	}

	m.queueMu.Lock()
	delete(m.active, task.ChartID)
	m.queueMu.Unlock()

	m.saveAsync()
	m.promote()
}

func (m *Manager) recordHistory(task chart.DownloadTask, status chart.Status, completed bool) {
	if m.history == nil {
		return
	}
	entry := history.Entry{
		ChartID:    task.ChartID,
		URL:        task.URL,
		Status:     string(status),
		FinishedAt: time.Now(),
	}
	if p, ok := m.GetProgress(task.ChartID); ok {
		entry.TotalBytes = p.DownloadedBytes
	}
	if completed {
		finalPath := chart.FinalPath(m.chartDir, task.ChartID, task.URL)
		entry.ContentType = integrity.SniffType(finalPath)
		entry.ChecksumOK = task.ExpectedChecksum != ""
	}
	m.history.Record(entry)
}

// snapshot assembles the serializable state under the map locks.
func (m *Manager) snapshot() *state.Snapshot {
	snap := state.NewSnapshot()

	m.queueMu.Lock()
	snap.Queue = append(snap.Queue, m.queue...)
	m.queueMu.Unlock()

	m.progMu.RLock()
	for id, p := range m.progress {
		snap.Downloads[id] = p
	}
	m.progMu.RUnlock()

	m.recMu.Lock()
	for id, rec := range m.resume {
		snap.ResumeData[id] = rec
	}
	m.recMu.Unlock()

	return snap
}

// saveAsync persists the snapshot without blocking the caller. Failures are
// logged, never surfaced: persistence is best-effort on the hot path.
func (m *Manager) saveAsync() {
	snap := m.snapshot()
	go func() {
		if err := m.store.Save(snap); err != nil {
			m.log.Warn().Err(err).Msg("state snapshot save failed")
		}
	}()
}

func (m *Manager) rememberTask(t chart.DownloadTask) {
	m.knownMu.Lock()
	m.known[t.ChartID] = t
	m.knownMu.Unlock()
}

func (m *Manager) knownTask(chartID string) (chart.DownloadTask, bool) {
	m.knownMu.Lock()
	defer m.knownMu.Unlock()
	t, ok := m.known[chartID]
	return t, ok
}

func (m *Manager) resumeRecordFor(chartID string) *chart.ResumeRecord {
	m.recMu.Lock()
	defer m.recMu.Unlock()
	if rec, ok := m.resume[chartID]; ok {
		return &rec
	}
	return nil
}

func (m *Manager) setResumeRecord(rec chart.ResumeRecord) {
	m.recMu.Lock()
	m.resume[rec.ChartID] = rec
	m.recMu.Unlock()
	m.saveAsync()
}

func (m *Manager) clearResumeRecord(chartID string) {
	m.recMu.Lock()
	delete(m.resume, chartID)
	m.recMu.Unlock()
	m.saveAsync()
}

// ResumeRecordFor exposes a copy of the resume record for a chart, if any.
func (m *Manager) ResumeRecordFor(chartID string) (chart.ResumeRecord, bool) {
	m.recMu.Lock()
	defer m.recMu.Unlock()
	rec, ok := m.resume[chartID]
	return rec, ok
}

// ResumeRecords returns a copy of every durable resume record.
func (m *Manager) ResumeRecords() map[string]chart.ResumeRecord {
	m.recMu.Lock()
	defer m.recMu.Unlock()
	out := make(map[string]chart.ResumeRecord, len(m.resume))
	for id, rec := range m.resume {
		out[id] = rec
	}
	return out
}
