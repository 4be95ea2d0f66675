// Package job manages the lifecycle of transcription jobs: queueing, a
// fixed-size worker pool, status persistence, and live progress fan-out to
// subscribers.
//
// The Manager owns the job records; the actual media processing is injected
// as a [Runner] so this package stays independent of the pipeline stages.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soundscribe/soundscribe/internal/observe"
	"github.com/soundscribe/soundscribe/internal/store"
)

// ErrJobNotFound is returned by [Manager.Status] for unknown job IDs.
var ErrJobNotFound = errors.New("job: not found")

// ErrQueueFull is returned by [Manager.Enqueue] when the submission queue has
// no free slot.
var ErrQueueFull = errors.New("job: queue is full")

// ProgressFunc reports pipeline progress for a running job. percent is
// clamped to [0, 100].
type ProgressFunc func(percent int, message string)

// Runner executes the processing pipeline for one job. It must return nil
// only when a result has been produced and persisted.
type Runner func(ctx context.Context, job store.JobRecord, report ProgressFunc) error

// Option configures a Manager.
type Option func(*Manager)

// WithWorkers sets the number of concurrent workers. Defaults to 2.
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(metrics *observe.Metrics) Option {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// Manager runs jobs on a bounded worker pool and keeps their persisted state
// current. Safe for concurrent use.
type Manager struct {
	store   store.Store
	runner  Runner
	workers int
	metrics *observe.Metrics

	queue  chan store.JobRecord
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu   sync.Mutex
	subs map[string][]chan store.JobRecord
}

// New creates a Manager. Start must be called before jobs are processed.
func New(st store.Store, runner Runner, opts ...Option) *Manager {
	m := &Manager{
		store:   st,
		runner:  runner,
		workers: 2,
		metrics: observe.DefaultMetrics(),
		subs:    make(map[string][]chan store.JobRecord),
	}
	for _, o := range opts {
		o(m)
	}
	m.queue = make(chan store.JobRecord, m.workers*2)
	return m
}

// Start launches the worker pool. Workers run until Stop is called or ctx is
// cancelled.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	for range m.workers {
		m.wg.Add(1)
		go m.worker(ctx)
	}
}

// Stop cancels all workers and waits for in-flight jobs to finish their
// current persistence writes.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// Enqueue creates a queued job record for the given source, persists it, and
// submits it to the worker pool. Returns [ErrQueueFull] when no worker slot
// frees up immediately and the buffer is exhausted.
func (m *Manager) Enqueue(ctx context.Context, sourceType, source string) (store.JobRecord, error) {
	now := time.Now().UTC()
	job := store.JobRecord{
		ID:         uuid.NewString(),
		Status:     store.JobQueued,
		Message:    "Queued",
		SourceType: sourceType,
		Source:     source,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.store.SaveJob(ctx, job); err != nil {
		return store.JobRecord{}, fmt.Errorf("job: persist new job: %w", err)
	}

	select {
	case m.queue <- job:
		m.metrics.QueuedJobs.Add(ctx, 1)
	default:
		job.Status = store.JobFailed
		job.Error = ErrQueueFull.Error()
		job.UpdatedAt = time.Now().UTC()
		_ = m.store.SaveJob(ctx, job)
		return store.JobRecord{}, ErrQueueFull
	}
	return job, nil
}

// Status returns the persisted record for id, or [ErrJobNotFound].
func (m *Manager) Status(ctx context.Context, id string) (store.JobRecord, error) {
	job, err := m.store.GetJob(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.JobRecord{}, ErrJobNotFound
	}
	return job, err
}

// Subscribe registers for live status updates of jobID. The returned cancel
// function must be called to release the subscription. Updates are dropped,
// not buffered, when the subscriber cannot keep up.
func (m *Manager) Subscribe(jobID string) (<-chan store.JobRecord, func()) {
	ch := make(chan store.JobRecord, 16)

	m.mu.Lock()
	m.subs[jobID] = append(m.subs[jobID], ch)
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		chans := m.subs[jobID]
		for i, c := range chans {
			if c == ch {
				m.subs[jobID] = append(chans[:i], chans[i+1:]...)
				close(ch)
				break
			}
		}
		if len(m.subs[jobID]) == 0 {
			delete(m.subs, jobID)
		}
	}
	return ch, cancel
}

// worker pulls jobs off the queue until the context is cancelled.
func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case job := <-m.queue:
			m.metrics.QueuedJobs.Add(ctx, -1)
			m.run(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

// run executes one job through the injected Runner, keeping the persisted
// record and the subscribers current throughout.
func (m *Manager) run(ctx context.Context, job store.JobRecord) {
	log := observe.Logger(ctx).With("job_id", job.ID)
	started := time.Now()

	m.metrics.ActiveJobs.Add(ctx, 1)
	defer m.metrics.ActiveJobs.Add(ctx, -1)

	job.Status = store.JobProcessing
	job.Message = "Processing started"
	m.update(ctx, &job)

	report := func(percent int, message string) {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		job.Progress = percent
		job.Message = message
		m.update(ctx, &job)
	}

	err := m.runner(ctx, job, report)
	elapsed := time.Since(started).Seconds()

	if err != nil {
		log.Error("job failed", "err", err, "elapsed_s", elapsed)
		job.Status = store.JobFailed
		job.Error = err.Error()
		job.Message = "Processing failed"
		m.update(ctx, &job)
		m.metrics.RecordJobCompleted(ctx, "failed", elapsed)
		return
	}

	log.Info("job completed", "elapsed_s", elapsed)
	job.Status = store.JobCompleted
	job.Progress = 100
	job.Message = "Processing complete"
	m.update(ctx, &job)
	m.metrics.RecordJobCompleted(ctx, "completed", elapsed)
}

// update persists the record and fans it out to subscribers.
func (m *Manager) update(ctx context.Context, job *store.JobRecord) {
	job.UpdatedAt = time.Now().UTC()
	if err := m.store.SaveJob(ctx, *job); err != nil {
		observe.Logger(ctx).Warn("job: persist status update", "job_id", job.ID, "err", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs[job.ID] {
		select {
		case ch <- *job:
		default:
		}
	}
}
