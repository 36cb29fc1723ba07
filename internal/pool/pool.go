// Package pool manages a fixed-size pool of isolated worker processes
// that execute blocking crawl jobs on behalf of the HTTP frontend.
//
// The pool and its free-worker coordinator are constructed atomically:
// either both are live or neither is. Only initialize, refresh, and
// shutdown mutate the pool references; Submit reads a snapshot and
// hands one job to one worker at a time.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ygrebnov/errorc"
	"go.uber.org/zap"

	"github.com/mfeit/textcrawler/internal/crawl"
	"github.com/mfeit/textcrawler/internal/metrics"
	"github.com/mfeit/textcrawler/internal/runner"
)

const namespace = "pool"

var (
	// ErrInitialization marks a failed pool/coordinator construction.
	ErrInitialization = errors.New(namespace + ": initialization failed")
	// ErrRefreshed is reported to submits interrupted by Refresh.
	ErrRefreshed = errors.New(namespace + ": refreshed while job was in flight")
	// ErrClosed is returned after Shutdown.
	ErrClosed = errors.New(namespace + ": closed")
)

// Manager owns the worker-process pool. One Manager is constructed at
// service start and passed by handle to the request layer.
type Manager struct {
	size    int
	command CommandFunc
	logger  *zap.Logger

	mu      sync.Mutex
	workers []*worker
	free    chan *worker
	gen     int
	closed  bool
}

// NewManager builds a Manager for size workers spawned via command.
// No processes start until EnsureInitialized or the first Submit.
func NewManager(size int, command CommandFunc, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{size: size, command: command, logger: logger}
}

// EnsureInitialized constructs the pool if it is not live. Idempotent;
// on construction failure both references stay unset and the next call
// retries.
func (m *Manager) EnsureInitialized() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.workers != nil {
		return nil
	}
	return m.initLocked()
}

func (m *Manager) initLocked() error {
	workers := make([]*worker, 0, m.size)
	for i := 0; i < m.size; i++ {
		w, err := startWorker(m.command)
		if err != nil {
			for _, started := range workers {
				started.kill()
			}
			return errorc.With(ErrInitialization, errorc.String("cause", err.Error()))
		}
		w.gen = m.gen
		workers = append(workers, w)
	}

	free := make(chan *worker, m.size)
	for _, w := range workers {
		free <- w
	}
	m.workers = workers
	m.free = free
	metrics.SetPoolWorkers(m.size)
	m.logger.Info("worker pool initialized",
		zap.Int("workers", m.size),
		zap.Int("generation", m.gen),
	)
	return nil
}

// WorkerPIDs lists the process IDs of the current pool members, useful
// for diagnostics and for observing pool identity across operations.
func (m *Manager) WorkerPIDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	pids := make([]int, 0, len(m.workers))
	for _, w := range m.workers {
		pids = append(pids, w.pid())
	}
	return pids
}

// Live reports whether the pool and coordinator are both constructed.
func (m *Manager) Live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workers != nil && !m.closed
}

// Submit runs one crawl job on an available worker and blocks the
// calling goroutine until the worker returns or dies; other goroutines
// proceed. There is no job-level timeout: a stuck worker holds its slot
// until Refresh discards the pool.
func (m *Manager) Submit(ctx context.Context, job crawl.Job) crawl.Outcome {
	if len(job.StartURLs) == 0 {
		return errOutcome("start_urls must be provided")
	}
	if err := m.EnsureInitialized(); err != nil {
		return errOutcome(fmt.Sprintf("initialize worker pool: %v", err))
	}

	m.mu.Lock()
	free := m.free
	m.mu.Unlock()
	if free == nil {
		// Refresh tore the pool down between ensure and snapshot.
		return errOutcome(ErrRefreshed.Error())
	}

	var w *worker
	select {
	case got, ok := <-free:
		if !ok {
			return errOutcome(ErrRefreshed.Error())
		}
		w = got
	case <-ctx.Done():
		return errOutcome(fmt.Sprintf("wait for free worker: %v", ctx.Err()))
	}

	start := time.Now()
	req := runner.Request{
		ID:             uuid.NewString(),
		StartURLs:      job.StartURLs,
		AllowedDomains: job.AllowedDomains,
	}
	resp, err := w.do(ctx, req)
	if err != nil {
		msg := m.handleWorkerFailure(w, err)
		metrics.ObserveJob(string(crawl.StatusError), time.Since(start))
		return errOutcome(msg)
	}
	m.release(w)

	results := resp.Results
	if results == nil {
		results = []crawl.PageResult{}
	}
	if resp.Err != "" {
		m.logger.Warn("job reported failure",
			zap.String("job_id", req.ID),
			zap.String("error", resp.Err),
		)
	}
	m.logger.Info("crawl completed",
		zap.String("job_id", req.ID),
		zap.Int("results", len(results)),
		zap.Strings("sample_urls", sampleURLs(results, 3)),
		zap.Duration("duration", time.Since(start)),
	)
	metrics.ObserveJob(string(crawl.StatusFinished), time.Since(start))
	return crawl.Outcome{Status: crawl.StatusFinished, Results: results}
}

// release hands a healthy worker back to the coordinator, unless the
// pool moved on to a new generation while the job ran.
func (m *Manager) release(w *worker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.free == nil || w.gen != m.gen {
		w.kill()
		return
	}
	m.free <- w
}

// handleWorkerFailure kills the failed worker and, when the pool is
// still on the worker's generation, spawns a replacement so capacity
// is preserved. Returns the caller-facing message.
func (m *Manager) handleWorkerFailure(w *worker, cause error) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	w.kill()
	if m.closed {
		return ErrClosed.Error()
	}
	if w.gen != m.gen {
		m.logger.Warn("job abandoned by pool refresh", zap.Int("worker_pid", w.pid()))
		return ErrRefreshed.Error()
	}

	m.removeLocked(w)
	m.logger.Error("worker failed, replacing pool member",
		zap.Int("worker_pid", w.pid()),
		zap.Error(cause),
	)
	replacement, err := startWorker(m.command)
	if err != nil {
		m.logger.Error("worker replacement failed", zap.Error(err))
		metrics.SetPoolWorkers(len(m.workers))
		return fmt.Sprintf("worker failed: %v", cause)
	}
	replacement.gen = m.gen
	m.workers = append(m.workers, replacement)
	m.free <- replacement
	return fmt.Sprintf("worker failed: %v", cause)
}

// Refresh drains the pool without waiting for in-flight jobs, then
// rebuilds it through the same construction path. Interrupted submits
// fail with ErrRefreshed rather than blocking the refresh caller. On
// reconstruction failure the pool stays unset and the next Submit
// retries initialization.
func (m *Manager) Refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		metrics.ObserveRefresh("error")
		return ErrClosed
	}

	m.teardownLocked()
	m.logger.Info("worker pool drained", zap.Int("generation", m.gen))

	if err := m.initLocked(); err != nil {
		metrics.ObserveRefresh("error")
		return fmt.Errorf("recreate worker pool: %w", err)
	}
	metrics.ObserveRefresh("refreshed_and_restarted")
	return nil
}

// Shutdown tears the pool down. Idempotent; the Manager is unusable
// afterwards.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.teardownLocked()
	m.closed = true
	m.logger.Info("worker pool shut down")
}

// teardownLocked kills every pool member, closes the coordinator so
// waiting submits observe the drain, and advances the generation.
func (m *Manager) teardownLocked() {
	if m.free != nil {
		close(m.free)
	}
	for _, w := range m.workers {
		w.kill()
	}
	m.workers = nil
	m.free = nil
	m.gen++
	metrics.SetPoolWorkers(0)
}

func (m *Manager) removeLocked(target *worker) {
	for i, w := range m.workers {
		if w == target {
			m.workers = append(m.workers[:i], m.workers[i+1:]...)
			return
		}
	}
}

func errOutcome(msg string) crawl.Outcome {
	return crawl.Outcome{
		Status:  crawl.StatusError,
		Results: []crawl.PageResult{},
		Message: msg,
	}
}

func sampleURLs(results []crawl.PageResult, n int) []string {
	if len(results) < n {
		n = len(results)
	}
	urls := make([]string, 0, n)
	for _, r := range results[:n] {
		urls = append(urls, r.URL)
	}
	return urls
}
