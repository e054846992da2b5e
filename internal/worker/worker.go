package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenk/backoff"

	"github.com/daimoniac/pkgwatch/internal/errors"
	"github.com/daimoniac/pkgwatch/internal/observability"
	"github.com/daimoniac/pkgwatch/internal/policy"
	"github.com/daimoniac/pkgwatch/internal/queue"
	"github.com/daimoniac/pkgwatch/internal/statestore"
	"github.com/daimoniac/pkgwatch/internal/types"
)

// Worker defines the interface for processing refresh tasks
type Worker interface {
	// Start begins processing tasks from the queue
	Start(ctx context.Context) error

	// ProcessTask executes the complete workflow for one maintainer
	ProcessTask(ctx context.Context, task *queue.RefreshTask) error
}

// Checker is the part of the package checker the worker drives.
type Checker interface {
	GetOutdatedPackages(ctx context.Context, identifier, repo string, forceRefresh bool) ([]types.PackageRecord, error)
}

// Policies resolves the notification policy for a task. An empty expression
// selects the default policy.
type Policies interface {
	For(expression string) (*policy.Engine, error)
}

// Config contains configuration for the worker
type Config struct {
	RetryAttempts int
	RetryBackoff  time.Duration
	Concurrency   int // Number of concurrent workers
}

// DefaultConfig returns default worker configuration
func DefaultConfig() Config {
	return Config{
		RetryAttempts: 3,
		RetryBackoff:  10 * time.Second,
		Concurrency:   3,
	}
}

// RefreshWorker implements the Worker interface
type RefreshWorker struct {
	queue         queue.TaskQueue
	checker       Checker
	policies      Policies
	notifications statestore.NotificationStore
	config        Config
	logger        *slog.Logger
	wg            sync.WaitGroup
	pipeline      *Pipeline
	now           func() time.Time
}

// NewRefreshWorker creates a new worker instance
func NewRefreshWorker(
	queue queue.TaskQueue,
	checker Checker,
	policies Policies,
	notifications statestore.NotificationStore,
	config Config,
	logger *slog.Logger,
) *RefreshWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 1
	}

	worker := &RefreshWorker{
		queue:         queue,
		checker:       checker,
		policies:      policies,
		notifications: notifications,
		config:        config,
		logger:        logger,
		now:           time.Now,
	}

	worker.pipeline = NewPipeline(worker, logger)

	return worker
}

// Start begins processing tasks from the queue
func (w *RefreshWorker) Start(ctx context.Context) error {
	concurrency := w.config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	w.logger.Info("worker starting", "concurrency", concurrency)

	// Register database metrics collector (once across all worker instances)
	if q, ok := w.notifications.(statestore.StateStoreQuery); ok {
		observability.RegisterDatabaseCollector(q, w.logger)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go func(workerID int) {
			defer w.wg.Done()
			w.processLoop(workerCtx, workerID)
		}(i)
	}

	<-workerCtx.Done()

	w.logger.Info("worker shutting down, waiting for in-flight tasks to complete")

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker shutdown complete")
		return nil
	case <-time.After(30 * time.Second):
		w.logger.Warn("worker shutdown timeout, some tasks may not have completed")
		return fmt.Errorf("shutdown timeout")
	}
}

// processLoop is the main task processing loop
func (w *RefreshWorker) processLoop(ctx context.Context, workerID int) {
	w.logger.Info("worker processing loop started", "worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker processing loop stopping", "worker_id", workerID)
			return
		default:
			task, err := w.queue.Dequeue(ctx)
			if err != nil {
				if ctx.Err() != nil {
					w.logger.Info("worker dequeue cancelled", "worker_id", workerID, "error", err)
					return
				}
				if errors.IsPermanent(err) {
					// queue closed and drained
					w.logger.Info("worker queue closed", "worker_id", workerID)
					return
				}
				w.logger.Error("failed to dequeue task", "worker_id", workerID, "error", err)
				time.Sleep(time.Second)
				continue
			}

			w.logger.Info("processing task",
				"worker_id", workerID,
				"task_id", task.ID,
				"identifier", task.Identifier,
				"repo", task.Repo,
				"reason", task.Reason)

			metrics := observability.GetMetrics()
			if err := w.ProcessTask(ctx, task); err != nil {
				w.logger.Error("task processing failed",
					"worker_id", workerID,
					"task_id", task.ID,
					"identifier", task.Identifier,
					"attempts", task.Attempts,
					"error", err)
				metrics.WorkerErrors.Inc()
				_ = w.queue.Fail(ctx, task.ID, err)
			} else {
				w.logger.Info("task processing completed",
					"worker_id", workerID,
					"task_id", task.ID,
					"identifier", task.Identifier)
				metrics.WorkerTasksProcessed.Inc()
				_ = w.queue.Complete(ctx, task.ID)
			}
		}
	}
}

// ErrorHandlerAction determines what action to take for a given error
type ErrorHandlerAction int

const (
	// ActionRetry indicates the error is transient and should be retried
	ActionRetry ErrorHandlerAction = iota
	// ActionFail indicates the error is permanent and should not be retried
	ActionFail
)

// handleTaskError classifies an error and determines the appropriate action.
func (w *RefreshWorker) handleTaskError(err error, attempt int, task *queue.RefreshTask, b backoff.BackOff) (ErrorHandlerAction, time.Duration) {
	if err == nil || !isTransientError(err) {
		return ActionFail, 0
	}
	if attempt >= w.config.RetryAttempts {
		return ActionFail, 0
	}

	wait := b.NextBackOff()
	if wait == backoff.Stop {
		return ActionFail, 0
	}

	w.logger.Warn("transient error, retrying",
		"task_id", task.ID,
		"identifier", task.Identifier,
		"attempt", attempt,
		"max_attempts", w.config.RetryAttempts,
		"backoff", wait,
		"error", err)

	return ActionRetry, wait
}

func (w *RefreshWorker) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if w.config.RetryBackoff > 0 {
		b.InitialInterval = w.config.RetryBackoff
		b.MaxInterval = w.config.RetryBackoff * 8
	}
	b.Multiplier = 2.0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// ProcessTask executes the complete workflow for one maintainer with retry logic
func (w *RefreshWorker) ProcessTask(ctx context.Context, task *queue.RefreshTask) error {
	if task == nil {
		return errors.NewPermanentf("%w: task is nil", errors.ErrInvalidInput)
	}

	b := w.newBackOff()
	var lastErr error
	for attempt := 1; attempt <= w.config.RetryAttempts; attempt++ {
		task.Attempts = attempt
		err := w.pipeline.Execute(ctx, task)
		if err == nil {
			return nil
		}
		lastErr = err

		action, wait := w.handleTaskError(err, attempt, task, b)
		if action == ActionFail {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return errors.NewPermanentf("max retries exceeded: %w", lastErr)
}
