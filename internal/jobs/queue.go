// Package jobs provides the in-memory background job queue. Jobs move
// forward through pending, running, and one terminal state; terminal jobs
// are retained briefly for UI polling and then purged.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/poteroapp/potero/internal/domain"
	"github.com/poteroapp/potero/internal/observability"
)

const (
	// DefaultMaxConcurrent bounds how many jobs run at once.
	DefaultMaxConcurrent = 3

	// DefaultRetention is how long terminal jobs stay visible.
	DefaultRetention = 5 * time.Minute

	// DefaultCleanupInterval is how often the janitor purges expired jobs.
	DefaultCleanupInterval = 30 * time.Second
)

// Task is the unit of work a job runs. The context is cancelled when the job
// is cancelled or the queue shuts down; report publishes progress and may be
// called freely from the task goroutine. The returned string becomes the
// job's result.
type Task func(ctx context.Context, report ReportFunc) (string, error)

// ReportFunc publishes task progress. Progress is clamped to [0, 100].
type ReportFunc func(progress int, message string)

// Options configures a Queue. Zero values take the package defaults.
type Options struct {
	MaxConcurrent   int
	Retention       time.Duration
	CleanupInterval time.Duration
	Metrics         *observability.Metrics
	Logger          zerolog.Logger
}

// Queue is an in-memory job queue. A single mutex guards the job table;
// job copies are handed out so readers never observe a job mid-update. A
// weighted semaphore enforces the concurrency bound, so submissions beyond
// it sit in pending until a slot frees up.
type Queue struct {
	mu          sync.Mutex
	jobs        map[uuid.UUID]*domain.Job
	cancels     map[uuid.UUID]context.CancelFunc
	subscribers map[int]chan []*domain.Job
	nextSub     int
	closed      bool

	sem       *semaphore.Weighted
	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup

	retention time.Duration
	metrics   *observability.Metrics
	logger    zerolog.Logger

	janitorStop chan struct{}
}

// New creates a queue and starts its janitor.
func New(opts Options) *Queue {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}

	baseCtx, cancelAll := context.WithCancel(context.Background())
	q := &Queue{
		jobs:        make(map[uuid.UUID]*domain.Job),
		cancels:     make(map[uuid.UUID]context.CancelFunc),
		subscribers: make(map[int]chan []*domain.Job),
		sem:         semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		baseCtx:     baseCtx,
		cancelAll:   cancelAll,
		retention:   opts.Retention,
		metrics:     opts.Metrics,
		logger:      opts.Logger.With().Str("component", "job_queue").Logger(),
		janitorStop: make(chan struct{}),
	}

	q.wg.Add(1)
	go q.janitor(opts.CleanupInterval)

	return q
}

// Submit enqueues a task and returns a snapshot of the pending job. The task
// starts as soon as a concurrency slot is free.
func (q *Queue) Submit(jobType domain.JobType, title, description string, paperID *uuid.UUID, task Task) (*domain.Job, error) {
	job := domain.NewJob(jobType, title, description, paperID)
	jobCtx, cancel := context.WithCancel(q.baseCtx)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		cancel()
		return nil, domain.ErrQueueClosed
	}
	q.jobs[job.ID] = job
	q.cancels[job.ID] = cancel
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.RecordJobSubmitted(string(jobType))
	}
	jobLogger := observability.WithJobContext(q.logger, job.ID.String(), string(jobType))
	jobLogger.Info().
		Str("title", title).
		Msg("job submitted")
	q.notify()

	q.wg.Add(1)
	go q.run(jobCtx, job.ID, task)

	return job.Clone(), nil
}

func (q *Queue) run(ctx context.Context, id uuid.UUID, task Task) {
	defer q.wg.Done()

	if err := q.sem.Acquire(ctx, 1); err != nil {
		// Cancelled while waiting for a slot. Cancel may have already
		// moved the job to cancelled; shutdown cancellation lands here.
		q.markCancelledPending(id)
		return
	}
	defer q.sem.Release(1)

	if !q.markRunning(id) {
		return
	}

	report := func(progress int, message string) {
		q.updateProgress(id, progress, message)
	}

	result, err := task(ctx, report)

	switch {
	case err == nil:
		q.finish(id, domain.JobStatusCompleted, result, "")
	case errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrCancelled) || ctx.Err() != nil:
		q.finish(id, domain.JobStatusCancelled, "", err.Error())
	default:
		q.finish(id, domain.JobStatusFailed, "", err.Error())
	}
}

// markRunning moves a pending job to running. Returns false if the job was
// cancelled before it got a slot.
func (q *Queue) markRunning(id uuid.UUID) bool {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || !job.Status.CanTransitionTo(domain.JobStatusRunning) {
		q.mu.Unlock()
		return false
	}
	now := time.Now()
	job.Status = domain.JobStatusRunning
	job.StartedAt = &now
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.RecordJobStarted()
	}
	q.notify()
	return true
}

// markCancelledPending finalizes a job that never started running.
func (q *Queue) markCancelledPending(id uuid.UUID) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != domain.JobStatusPending {
		q.mu.Unlock()
		return
	}
	now := time.Now()
	job.Status = domain.JobStatusCancelled
	job.CompletedAt = &now
	jobType := job.Type
	delete(q.cancels, id)
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.RecordJobCancelledPending(string(jobType))
	}
	q.notify()
}

func (q *Queue) finish(id uuid.UUID, status domain.JobStatus, result, errMsg string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || !job.Status.CanTransitionTo(status) {
		q.mu.Unlock()
		return
	}
	now := time.Now()
	job.Status = status
	job.Result = result
	job.Error = errMsg
	job.CompletedAt = &now
	if status == domain.JobStatusCompleted {
		job.Progress = 100
	}
	jobType := job.Type
	duration := job.Duration()
	if cancel, ok := q.cancels[id]; ok {
		cancel()
		delete(q.cancels, id)
	}
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.RecordJobFinished(string(jobType), string(status), duration.Seconds())
	}
	jobLogger := observability.WithJobContext(q.logger, id.String(), string(jobType))
	jobLogger.Info().
		Str("status", string(status)).
		Dur("duration", duration).
		Msg("job finished")
	q.notify()
}

func (q *Queue) updateProgress(id uuid.UUID, progress int, message string) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != domain.JobStatusRunning {
		q.mu.Unlock()
		return
	}
	job.Progress = progress
	job.Message = message
	q.mu.Unlock()

	q.notify()
}

// Get returns a snapshot of one job.
func (q *Queue) Get(id uuid.UUID) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil, domain.NewNotFoundError("job", id.String())
	}
	return job.Clone(), nil
}

// All returns a snapshot of every tracked job, newest first.
func (q *Queue) All() []*domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// Active returns a snapshot of pending and running jobs, newest first.
func (q *Queue) Active() []*domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*domain.Job
	for _, job := range q.jobs {
		if !job.Status.IsTerminal() {
			out = append(out, job.Clone())
		}
	}
	sortJobs(out)
	return out
}

// Cancel requests cancellation of a job. A pending job is finalized
// immediately and its task never runs; a running job gets its context
// cancelled and finalizes when the task returns. Cancelling a terminal job
// is an error.
func (q *Queue) Cancel(id uuid.UUID) error {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return domain.NewNotFoundError("job", id.String())
	}
	if job.Status.IsTerminal() {
		status := job.Status
		q.mu.Unlock()
		return fmt.Errorf("%w: job already %s", domain.ErrInvalidInput, status)
	}

	wasPending := job.Status == domain.JobStatusPending
	var jobType domain.JobType
	if wasPending {
		now := time.Now()
		job.Status = domain.JobStatusCancelled
		job.CompletedAt = &now
		jobType = job.Type
	}
	cancel := q.cancels[id]
	if wasPending {
		delete(q.cancels, id)
	}
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wasPending {
		if q.metrics != nil {
			q.metrics.RecordJobCancelledPending(string(jobType))
		}
		q.notify()
	}
	q.logger.Info().Str("job_id", id.String()).Bool("was_pending", wasPending).Msg("job cancellation requested")
	return nil
}

// ClearCompleted removes all terminal jobs immediately, returning how many
// were removed.
func (q *Queue) ClearCompleted() int {
	q.mu.Lock()
	removed := 0
	for id, job := range q.jobs {
		if job.Status.IsTerminal() {
			delete(q.jobs, id)
			removed++
		}
	}
	q.mu.Unlock()

	if removed > 0 {
		q.notify()
	}
	return removed
}

// Subscribe registers a listener for job table snapshots. The channel holds
// the latest snapshot only; slow consumers skip intermediate states rather
// than block the queue. The returned function unsubscribes.
func (q *Queue) Subscribe() (<-chan []*domain.Job, func()) {
	ch := make(chan []*domain.Job, 1)

	q.mu.Lock()
	id := q.nextSub
	q.nextSub++
	q.subscribers[id] = ch
	snapshot := q.snapshotLocked()
	q.mu.Unlock()

	ch <- snapshot

	return ch, func() {
		q.mu.Lock()
		delete(q.subscribers, id)
		q.mu.Unlock()
	}
}

// Shutdown stops accepting jobs, cancels everything in flight, and waits for
// running tasks to wind down or the context to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	close(q.janitorStop)
	q.cancelAll()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) janitor(interval time.Duration) {
	defer q.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.janitorStop:
			return
		case <-q.baseCtx.Done():
			return
		case <-ticker.C:
			q.purgeExpired()
		}
	}
}

func (q *Queue) purgeExpired() {
	cutoff := time.Now().Add(-q.retention)

	q.mu.Lock()
	removed := 0
	for id, job := range q.jobs {
		if job.Status.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(q.jobs, id)
			removed++
		}
	}
	q.mu.Unlock()

	if removed > 0 {
		q.logger.Debug().Int("removed", removed).Msg("purged expired jobs")
		q.notify()
	}
}

// notify pushes a fresh snapshot to every subscriber, dropping the stale one
// if the subscriber has not caught up.
func (q *Queue) notify() {
	q.mu.Lock()
	snapshot := q.snapshotLocked()
	channels := make([]chan []*domain.Job, 0, len(q.subscribers))
	for _, ch := range q.subscribers {
		channels = append(channels, ch)
	}
	q.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func (q *Queue) snapshotLocked() []*domain.Job {
	out := make([]*domain.Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		out = append(out, job.Clone())
	}
	sortJobs(out)
	return out
}

func sortJobs(jobs []*domain.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID.String() < jobs[j].ID.String()
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}
