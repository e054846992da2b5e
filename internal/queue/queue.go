package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daimoniac/pkgwatch/internal/errors"
	"github.com/daimoniac/pkgwatch/internal/observability"
	"github.com/daimoniac/pkgwatch/internal/types"
)

// TaskQueue manages a queue of maintainer refresh tasks
type TaskQueue interface {
	// Enqueue adds a task to the queue. A task for an identifier that is
	// already pending is dropped and Enqueue reports false.
	Enqueue(ctx context.Context, task *RefreshTask) (bool, error)

	// Dequeue retrieves a task for processing (blocking)
	Dequeue(ctx context.Context) (*RefreshTask, error)

	// Complete marks a task as successfully processed (for metrics/logging)
	Complete(ctx context.Context, taskID string) error

	// Fail marks a task as failed (for metrics/logging)
	Fail(ctx context.Context, taskID string, err error) error

	// GetQueueDepth returns current queue size
	GetQueueDepth(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully
	Close() error
}

// RefreshTask asks the worker to refresh one maintainer's package list.
type RefreshTask struct {
	ID         string
	Identifier string
	Repo       string
	Reason     string // types.NotificationScheduled or types.NotificationManual
	Policy     string // per-maintainer policy expression, empty for the default
	EnqueuedAt time.Time
	Attempts   int
}

// NewRefreshTask creates a task with a fresh ID.
func NewRefreshTask(identifier, repo, reason string) *RefreshTask {
	if reason == "" {
		reason = types.NotificationScheduled
	}
	return &RefreshTask{
		ID:         uuid.NewString(),
		Identifier: identifier,
		Repo:       repo,
		Reason:     reason,
		EnqueuedAt: time.Now().UTC(),
	}
}

// InMemoryQueue implements TaskQueue using Go channels
type InMemoryQueue struct {
	tasks      chan *RefreshTask
	pending    map[string]bool // identifier -> queued
	pendingMu  sync.RWMutex
	metrics    *QueueMetrics
	metricsMu  sync.RWMutex
	closed     bool
	closedMu   sync.RWMutex
	bufferSize int
}

// QueueMetrics tracks queue operation statistics
type QueueMetrics struct {
	Enqueued  int64
	Dequeued  int64
	Completed int64
	Failed    int64
	Dropped   int64 // Dropped due to deduplication
}

// NewInMemoryQueue creates a new in-memory task queue
func NewInMemoryQueue(bufferSize int) *InMemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryQueue{
		tasks:      make(chan *RefreshTask, bufferSize),
		pending:    make(map[string]bool),
		metrics:    &QueueMetrics{},
		bufferSize: bufferSize,
	}
}

// Enqueue adds a task to the queue with deduplication per identifier
func (q *InMemoryQueue) Enqueue(ctx context.Context, task *RefreshTask) (bool, error) {
	q.closedMu.RLock()
	defer q.closedMu.RUnlock()
	if q.closed {
		return false, errors.NewPermanentf("queue is closed")
	}

	if task == nil {
		return false, errors.NewPermanentf("%w: task cannot be nil", errors.ErrInvalidInput)
	}
	if task.Identifier == "" {
		return false, errors.NewPermanentf("%w: task identifier cannot be empty", errors.ErrInvalidInput)
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	q.pendingMu.Lock()
	if q.pending[task.Identifier] {
		q.pendingMu.Unlock()
		q.incrementMetric("dropped")
		return false, nil
	}
	q.pending[task.Identifier] = true
	q.pendingMu.Unlock()

	select {
	case q.tasks <- task:
		q.incrementMetric("enqueued")
		return true, nil
	case <-ctx.Done():
		q.pendingMu.Lock()
		delete(q.pending, task.Identifier)
		q.pendingMu.Unlock()
		return false, ctx.Err()
	}
}

// Dequeue retrieves a task for processing (blocking)
func (q *InMemoryQueue) Dequeue(ctx context.Context) (*RefreshTask, error) {
	select {
	case task, ok := <-q.tasks:
		if !ok {
			return nil, errors.NewPermanentf("queue is closed")
		}

		q.pendingMu.Lock()
		delete(q.pending, task.Identifier)
		q.pendingMu.Unlock()

		q.incrementMetric("dequeued")
		return task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// IsPending reports whether a task for identifier is waiting in the queue.
func (q *InMemoryQueue) IsPending(identifier string) bool {
	q.pendingMu.RLock()
	defer q.pendingMu.RUnlock()
	return q.pending[identifier]
}

// Complete marks a task as successfully processed
func (q *InMemoryQueue) Complete(ctx context.Context, taskID string) error {
	q.incrementMetric("completed")
	return nil
}

// Fail marks a task as failed
func (q *InMemoryQueue) Fail(ctx context.Context, taskID string, err error) error {
	q.incrementMetric("failed")
	return nil
}

// GetQueueDepth returns current queue size
func (q *InMemoryQueue) GetQueueDepth(ctx context.Context) (int, error) {
	return len(q.tasks), nil
}

// Close shuts down the queue gracefully
func (q *InMemoryQueue) Close() error {
	q.closedMu.Lock()
	defer q.closedMu.Unlock()

	if q.closed {
		return errors.NewPermanentf("queue already closed")
	}

	q.closed = true
	close(q.tasks)
	return nil
}

// GetMetrics returns a copy of current metrics
func (q *InMemoryQueue) GetMetrics() QueueMetrics {
	q.metricsMu.RLock()
	defer q.metricsMu.RUnlock()
	return *q.metrics
}

// incrementMetric updates the local counters and the Prometheus series.
func (q *InMemoryQueue) incrementMetric(metric string) {
	q.metricsMu.Lock()
	defer q.metricsMu.Unlock()

	m := observability.GetMetrics()
	switch metric {
	case "enqueued":
		q.metrics.Enqueued++
		m.QueueEnqueued.Inc()
	case "dequeued":
		q.metrics.Dequeued++
		m.QueueDequeued.Inc()
	case "completed":
		q.metrics.Completed++
		m.QueueCompleted.Inc()
	case "failed":
		q.metrics.Failed++
		m.QueueFailed.Inc()
	case "dropped":
		q.metrics.Dropped++
	}
	m.QueueDepth.Set(float64(len(q.tasks)))
}
