// Package monitor coordinates the sampling pipeline: it drives the
// collector, engine and store in sequence, guarantees at most one run is
// in flight, and tracks run outcomes for health reporting.
package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kenn1ld/stop-killing-games-monitor/internal/analytics"
	"github.com/kenn1ld/stop-killing-games-monitor/internal/metrics"
	"github.com/kenn1ld/stop-killing-games-monitor/internal/models"
)

// Fetcher samples the upstream counter. Satisfied by collector.Collector.
type Fetcher interface {
	Fetch(ctx context.Context) (models.Snapshot, error)
}

// Recorder is the store surface the pipeline needs. Satisfied by
// store.Store.
type Recorder interface {
	RecentHistory(ctx context.Context, now time.Time, window time.Duration) ([]models.HistoryRecord, error)
	Append(ctx context.Context, rec models.HistoryRecord) error
}

// State is the coordinator's run state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// RunResult is what a single pipeline invocation reports. Skipped means
// another run was already in flight and nothing was executed.
type RunResult struct {
	RunID      string                `json:"run_id"`
	Skipped    bool                  `json:"skipped"`
	Error      string                `json:"error,omitempty"`
	FinishedAt time.Time             `json:"finished_at"`
	Record     *models.HistoryRecord `json:"record,omitempty"`
}

// Status is the coordinator's health-reporting view.
type Status struct {
	State             State      `json:"state"`
	LastSuccessfulRun *time.Time `json:"last_successful_run,omitempty"`
	ConsecutiveErrors int        `json:"consecutive_errors"`
	LastRunError      string     `json:"last_run_error,omitempty"`
}

// Monitor serializes pipeline runs through an idle/running guard. The
// guard is cooperative: checked-and-set at entry, cleared on exit via
// defer so a failed cycle can never leave it stuck running.
type Monitor struct {
	collector Fetcher
	engine    *analytics.Engine
	store     Recorder
	window    time.Duration
	interval  time.Duration

	mu                sync.Mutex
	running           bool
	lastSuccessfulRun *time.Time
	consecutiveErrors int
	lastRunError      string
}

func New(c Fetcher, e *analytics.Engine, s Recorder, window, interval time.Duration) *Monitor {
	if window <= 0 {
		window = analytics.DefaultWindow
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Monitor{
		collector: c,
		engine:    e,
		store:     s,
		window:    window,
		interval:  interval,
	}
}

// Start begins the periodic sampling loop: one run immediately, then one
// per tick until the context is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	log.Printf("Monitor started: sampling every %v", m.interval)

	m.Run(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Monitor stopping...")
			return
		case <-ticker.C:
			m.Run(ctx)
		}
	}
}

// Run executes one fetch-compute-store cycle. A call while another run
// is in flight is a no-op reported as skipped. Cycle failures are caught
// here: they are counted and logged, never propagated, so a bad cycle
// only costs one sample.
func (m *Monitor) Run(ctx context.Context) RunResult {
	result := RunResult{RunID: uuid.NewString()}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		log.Printf("Monitor: run %s skipped, already running", result.RunID)
		metrics.RunsTotal.WithLabelValues("skipped").Inc()
		result.Skipped = true
		result.FinishedAt = time.Now().UTC()
		return result
	}
	m.running = true
	m.mu.Unlock()

	start := time.Now()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		metrics.RunDuration.Observe(time.Since(start).Seconds())
	}()

	rec, err := m.cycle(ctx)
	result.FinishedAt = time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.consecutiveErrors++
		m.lastRunError = err.Error()
		metrics.ConsecutiveErrors.Set(float64(m.consecutiveErrors))
		metrics.RunsTotal.WithLabelValues("failure").Inc()
		log.Printf("Monitor: run %s failed (%d consecutive): %v", result.RunID, m.consecutiveErrors, err)
		result.Error = err.Error()
		return result
	}

	now := result.FinishedAt
	m.lastSuccessfulRun = &now
	m.consecutiveErrors = 0
	m.lastRunError = ""
	metrics.ConsecutiveErrors.Set(0)
	metrics.RunsTotal.WithLabelValues("success").Inc()
	metrics.SignatureCount.Set(float64(rec.Count))
	metrics.SignatureGoal.Set(float64(rec.Goal))
	metrics.ProgressPercent.Set(rec.ProgressPercent)
	log.Printf("Monitor: run %s recorded %d/%d signatures (%.2f%%, trend %s)",
		result.RunID, rec.Count, rec.Goal, rec.ProgressPercent, rec.Trend)
	result.Record = &rec
	return result
}

// cycle is the collector -> engine -> store sequence for one sample.
func (m *Monitor) cycle(ctx context.Context) (models.HistoryRecord, error) {
	snap, err := m.collector.Fetch(ctx)
	if err != nil {
		return models.HistoryRecord{}, err
	}

	history, err := m.store.RecentHistory(ctx, snap.CapturedAt, m.window)
	if err != nil {
		return models.HistoryRecord{}, err
	}

	rec := m.engine.Compute(snap, history)

	if err := m.store.Append(ctx, rec); err != nil {
		return models.HistoryRecord{}, err
	}
	return rec, nil
}

// Status reports the coordinator's state for health endpoints.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := StateIdle
	if m.running {
		state = StateRunning
	}
	return Status{
		State:             state,
		LastSuccessfulRun: m.lastSuccessfulRun,
		ConsecutiveErrors: m.consecutiveErrors,
		LastRunError:      m.lastRunError,
	}
}
