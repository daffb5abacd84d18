// Package dispatch runs fire-and-forget work, such as notification delivery,
// off the request path.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultWorkers is the number of delivery workers.
	DefaultWorkers = 4
	// DefaultQueueSize bounds the number of pending jobs.
	DefaultQueueSize = 256
	// DefaultJobTimeout bounds the run time of a single job.
	DefaultJobTimeout = 10 * time.Second
)

// Job is a unit of outbound work.
type Job func(ctx context.Context) error

type job struct {
	id   string
	name string
	fn   Job
}

// Bridge is a bounded queue consumed by a fixed worker pool.
// Schedule never blocks; a full or closed queue drops the job.
type Bridge struct {
	queue   chan job
	timeout time.Duration
	wg      sync.WaitGroup
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// New starts a Bridge with the given number of workers. Non-positive
// arguments fall back to the defaults.
func New(workers, queueSize int, jobTimeout time.Duration) *Bridge {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}

	b := &Bridge{
		queue:   make(chan job, queueSize),
		timeout: jobTimeout,
		logger:  slog.With("component", "dispatch"),
	}

	for i := 1; i <= workers; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}

	return b
}

// Schedule enqueues fn and returns immediately. It reports false when the
// job was dropped.
func (b *Bridge) Schedule(name string, fn Job) bool {
	j := job{id: uuid.NewString(), name: name, fn: fn}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("job dropped, bridge is shut down", "job", name, "job_id", j.id)
		return false
	}

	select {
	case b.queue <- j:
		return true
	default:
		b.logger.Warn("job dropped, queue is full", "job", name, "job_id", j.id, "queue_size", cap(b.queue))
		return false
	}
}

// Pending returns the number of queued jobs.
func (b *Bridge) Pending() int {
	return len(b.queue)
}

func (b *Bridge) worker(workerID int) {
	defer b.wg.Done()

	b.logger.Debug("worker started", "worker", workerID)

	for j := range b.queue {
		b.run(workerID, j)
	}

	b.logger.Debug("worker stopped", "worker", workerID)
}

func (b *Bridge) run(workerID int, j job) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	start := time.Now()
	if err := safeCall(ctx, j.fn); err != nil {
		b.logger.Error("job failed",
			"job", j.name,
			"job_id", j.id,
			"worker", workerID,
			"error", err,
		)
		return
	}

	b.logger.Debug("job done", "job", j.name, "job_id", j.id, "worker", workerID, "took", time.Since(start))
}

func safeCall(ctx context.Context, fn Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Shutdown stops accepting jobs and waits for queued jobs to finish or for
// ctx to expire.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("dispatch bridge shut down cleanly")
		return nil
	case <-ctx.Done():
		b.logger.Warn("dispatch bridge shutdown timed out", "pending", len(b.queue))
		return fmt.Errorf("dispatch shutdown: %w", ctx.Err())
	}
}
