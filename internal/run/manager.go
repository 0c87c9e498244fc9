package run

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"davbackup/internal/backup"
)

// Pipeline runs one backup of root. *backup.Orchestrator implements it.
type Pipeline interface {
	Run(ctx context.Context, root string) (backup.Report, error)
}

// Manager starts backup runs one at a time and keeps their records.
type Manager struct {
	mu        sync.RWMutex
	runs      map[string]*Run
	root      string
	pipeline  Pipeline
	semaphore chan struct{}
	workersWG sync.WaitGroup
	baseCtx   context.Context
	store     RunStore
	logger    zerolog.Logger
}

func NewManager(pipeline Pipeline, opts Options, logger zerolog.Logger) *Manager {
	return &Manager{
		runs:      make(map[string]*Run),
		root:      opts.Root,
		pipeline:  pipeline,
		semaphore: make(chan struct{}, 1),
		baseCtx:   context.Background(),
		store:     NewFileStore(opts.DataDir),
		logger:    logger,
	}
}

// IsBusy reports whether a run is in progress.
func (m *Manager) IsBusy() bool {
	return len(m.semaphore) >= cap(m.semaphore)
}

// RunNow executes a run synchronously and returns its final record.
func (m *Manager) RunNow(ctx context.Context) (Run, error) {
	select {
	case m.semaphore <- struct{}{}:
	default:
		return Run{}, ErrBusy
	}
	r := m.newRun()
	m.execute(ctx, r)
	return m.snapshot(r), nil
}

// Start launches a run in the background and returns its initial record.
func (m *Manager) Start() (Run, error) {
	select {
	case m.semaphore <- struct{}{}:
	default:
		return Run{}, ErrBusy
	}
	r := m.newRun()
	initial := m.snapshot(r)

	m.mu.RLock()
	ctx := m.baseCtx
	m.mu.RUnlock()

	m.workersWG.Add(1)
	go func() {
		defer m.workersWG.Done()
		m.execute(ctx, r)
	}()
	return initial, nil
}

// GetRun returns a copy of the run with the given id.
func (m *Manager) GetRun(runID string) (Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[runID]
	if !ok {
		return Run{}, false
	}
	return r.clone(), true
}

// ListRuns returns copies of all known runs, newest first.
func (m *Manager) ListRuns() []Run {
	m.mu.RLock()
	out := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r.clone())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// SetBaseContext sets the context background runs inherit. Intended to be
// set at process startup and cancelled during shutdown.
func (m *Manager) SetBaseContext(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

// WaitAll blocks until background runs finish or the context is done.
// Returns true if all runs finished, false if timed out.
func (m *Manager) WaitAll(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		m.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) newRun() *Run {
	r := &Run{
		ID:        uuid.NewString(),
		Status:    StatusRunning,
		CreatedAt: time.Now(),
	}
	m.mu.Lock()
	m.runs[r.ID] = r
	m.mu.Unlock()
	if err := m.persistRun(r); err != nil { // best-effort
		m.logger.Warn().Str("run_id", r.ID).Err(err).Msg("persist run failed")
	}
	return r
}

// execute runs the pipeline for r and releases the slot acquired by the caller.
func (m *Manager) execute(ctx context.Context, r *Run) {
	defer func() { <-m.semaphore }()

	logger := m.logger.With().Str("run_id", r.ID).Logger()
	logger.Info().Str("root", m.root).Msg("backup run started")
	report, err := m.pipeline.Run(ctx, m.root)
	report.RunID = r.ID
	finished := time.Now()

	m.mu.Lock()
	r.FinishedAt = &finished
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
	} else {
		r.Status = StatusCompleted
		r.Report = &report
	}
	m.mu.Unlock()

	if err != nil {
		logger.Error().Err(err).Msg("backup run failed")
	} else {
		logger.Info().Int("tasks", report.Tasks).Int("failed", len(report.Failed)).
			Dur("duration", report.Duration).Msg("backup run finished")
	}
	if err := m.persistRun(r); err != nil {
		logger.Warn().Err(err).Msg("persist final run state failed")
	}
}

func (m *Manager) snapshot(r *Run) Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return r.clone()
}

func (m *Manager) persistRun(r *Run) error {
	if m.store == nil {
		return nil
	}
	snapshot := m.snapshot(r)
	return m.store.SaveRun(context.Background(), &snapshot) //nolint:wrapcheck
}
