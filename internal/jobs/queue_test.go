package jobs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poteroapp/potero/internal/domain"
)

func newTestQueue(t *testing.T, opts Options) *Queue {
	t.Helper()
	opts.Logger = zerolog.Nop()
	q := New(opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Shutdown(ctx)
	})
	return q
}

// waitForStatus polls until the job reaches the wanted status or the
// deadline expires.
func waitForStatus(t *testing.T, q *Queue, id uuid.UUID, want domain.JobStatus) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := q.Get(id)
		require.NoError(t, err)
		if job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := q.Get(id)
	t.Fatalf("job %s never reached %s, last status %s", id, want, job.Status)
	return nil
}

func TestQueueRunsJobToCompletion(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t, Options{})

	job, err := q.Submit(domain.JobTypeNarrativeGeneration, "Generate narratives", "test", nil, func(ctx context.Context, report ReportFunc) (string, error) {
		report(50, "halfway")
		return "4 narratives", nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)

	done := waitForStatus(t, q, job.ID, domain.JobStatusCompleted)
	assert.Equal(t, "4 narratives", done.Result)
	assert.Equal(t, 100, done.Progress)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
}

func TestQueueRecordsFailure(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t, Options{})

	job, err := q.Submit(domain.JobTypePaperAnalysis, "Analyze", "", nil, func(ctx context.Context, report ReportFunc) (string, error) {
		return "", errors.New("pipeline exploded")
	})
	require.NoError(t, err)

	done := waitForStatus(t, q, job.ID, domain.JobStatusFailed)
	assert.Equal(t, "pipeline exploded", done.Error)
	assert.Empty(t, done.Result)
}

func TestQueueProgressClamped(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t, Options{})

	reported := make(chan int, 2)
	job, err := q.Submit(domain.JobTypeAutoTagging, "Tag", "", nil, func(ctx context.Context, report ReportFunc) (string, error) {
		report(-20, "low")
		report(250, "high")
		reported <- 1
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.NoError(t, err)

	<-reported
	got, err := q.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "high", got.Message)

	require.NoError(t, q.Cancel(job.ID))
	waitForStatus(t, q, job.ID, domain.JobStatusCancelled)
}

func TestQueueCancelRunningJob(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t, Options{})

	started := make(chan struct{})
	job, err := q.Submit(domain.JobTypeNarrativeGeneration, "Generate", "", nil, func(ctx context.Context, report ReportFunc) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.NoError(t, err)

	<-started
	require.NoError(t, q.Cancel(job.ID))

	done := waitForStatus(t, q, job.ID, domain.JobStatusCancelled)
	assert.NotNil(t, done.CompletedAt)
}

func TestQueueCancelPendingJobNeverRuns(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t, Options{MaxConcurrent: 1})

	blockerStarted := make(chan struct{})
	release := make(chan struct{})
	blocker, err := q.Submit(domain.JobTypeNarrativeGeneration, "Blocker", "", nil, func(ctx context.Context, report ReportFunc) (string, error) {
		close(blockerStarted)
		<-release
		return "done", nil
	})
	require.NoError(t, err)
	<-blockerStarted

	var ran int32
	pending, err := q.Submit(domain.JobTypeNarrativeGeneration, "Starved", "", nil, func(ctx context.Context, report ReportFunc) (string, error) {
		atomic.AddInt32(&ran, 1)
		return "", nil
	})
	require.NoError(t, err)

	got, err := q.Get(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, got.Status)

	require.NoError(t, q.Cancel(pending.ID))
	done := waitForStatus(t, q, pending.ID, domain.JobStatusCancelled)
	assert.Nil(t, done.StartedAt)

	close(release)
	waitForStatus(t, q, blocker.ID, domain.JobStatusCompleted)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
}

func TestQueueCancelTerminalJobFails(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t, Options{})

	job, err := q.Submit(domain.JobTypeMetadataRefresh, "Refresh", "", nil, func(ctx context.Context, report ReportFunc) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	waitForStatus(t, q, job.ID, domain.JobStatusCompleted)

	err = q.Cancel(job.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQueueCancelUnknownJob(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t, Options{})

	err := q.Cancel(uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueueConcurrencyBound(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t, Options{MaxConcurrent: 2})

	var running, peak int32
	release := make(chan struct{})
	for i := 0; i < 6; i++ {
		_, err := q.Submit(domain.JobTypeNarrativeGeneration, "Bounded", "", nil, func(ctx context.Context, report ReportFunc) (string, error) {
			now := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if now <= old || atomic.CompareAndSwapInt32(&peak, old, now) {
					break
				}
			}
			<-release
			atomic.AddInt32(&running, -1)
			return "", nil
		})
		require.NoError(t, err)
	}

	// let the queue admit what it will
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&running), int32(2))
	close(release)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(q.Active()) == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Empty(t, q.Active())
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestQueueAllAndActive(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t, Options{})

	release := make(chan struct{})
	started := make(chan struct{})
	runningJob, err := q.Submit(domain.JobTypeNarrativeGeneration, "Running", "", nil, func(ctx context.Context, report ReportFunc) (string, error) {
		close(started)
		<-release
		return "", nil
	})
	require.NoError(t, err)
	<-started

	doneJob, err := q.Submit(domain.JobTypePaperAnalysis, "Done", "", nil, func(ctx context.Context, report ReportFunc) (string, error) {
		return "", nil
	})
	require.NoError(t, err)
	waitForStatus(t, q, doneJob.ID, domain.JobStatusCompleted)

	all := q.All()
	assert.Len(t, all, 2)

	active := q.Active()
	require.Len(t, active, 1)
	assert.Equal(t, runningJob.ID, active[0].ID)

	close(release)
	waitForStatus(t, q, runningJob.ID, domain.JobStatusCompleted)
}

func TestQueueClearCompleted(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t, Options{})

	job, err := q.Submit(domain.JobTypePaperAnalysis, "Done", "", nil, func(ctx context.Context, report ReportFunc) (string, error) {
		return "", nil
	})
	require.NoError(t, err)
	waitForStatus(t, q, job.ID, domain.JobStatusCompleted)

	assert.Equal(t, 1, q.ClearCompleted())
	assert.Empty(t, q.All())

	_, err = q.Get(job.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueueJanitorPurgesExpired(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t, Options{
		Retention:       20 * time.Millisecond,
		CleanupInterval: 10 * time.Millisecond,
	})

	job, err := q.Submit(domain.JobTypePaperAnalysis, "Ephemeral", "", nil, func(ctx context.Context, report ReportFunc) (string, error) {
		return "", nil
	})
	require.NoError(t, err)
	waitForStatus(t, q, job.ID, domain.JobStatusCompleted)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := q.Get(job.ID); errors.Is(err, domain.ErrNotFound) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("terminal job was never purged")
}

func TestQueueSubscribe(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t, Options{})

	ch, unsubscribe := q.Subscribe()
	defer unsubscribe()

	// initial snapshot is empty
	snapshot := <-ch
	assert.Empty(t, snapshot)

	job, err := q.Submit(domain.JobTypeNarrativeGeneration, "Watched", "", nil, func(ctx context.Context, report ReportFunc) (string, error) {
		return "", nil
	})
	require.NoError(t, err)
	waitForStatus(t, q, job.ID, domain.JobStatusCompleted)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snapshot = <-ch
		if len(snapshot) == 1 && snapshot[0].Status == domain.JobStatusCompleted {
			return
		}
	}
	t.Fatal("never observed completed job through subscription")
}

func TestQueueShutdown(t *testing.T) {
	t.Parallel()
	q := New(Options{Logger: zerolog.Nop()})

	started := make(chan struct{})
	job, err := q.Submit(domain.JobTypeNarrativeGeneration, "Interrupted", "", nil, func(ctx context.Context, report ReportFunc) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))

	got, err := q.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, got.Status)

	_, err = q.Submit(domain.JobTypeNarrativeGeneration, "Late", "", nil, func(ctx context.Context, report ReportFunc) (string, error) {
		return "", nil
	})
	assert.ErrorIs(t, err, domain.ErrQueueClosed)
}

// captureWriter is a goroutine-safe log sink.
type captureWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *captureWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *captureWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestQueueLogsCarryJobContext(t *testing.T) {
	t.Parallel()

	out := &captureWriter{}
	q := New(Options{Logger: zerolog.New(out)})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Shutdown(ctx)
	})

	job, err := q.Submit(domain.JobTypeNarrativeGeneration, "Generate narratives", "", nil, func(context.Context, ReportFunc) (string, error) {
		return "done", nil
	})
	require.NoError(t, err)
	waitForStatus(t, q, job.ID, domain.JobStatusCompleted)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "job finished")
	}, 2*time.Second, 10*time.Millisecond)

	logs := out.String()
	assert.Contains(t, logs, "job submitted")
	assert.Contains(t, logs, `"job_id":"`+job.ID.String()+`"`)
	assert.Contains(t, logs, `"job_type":"narrative_generation"`)
}
