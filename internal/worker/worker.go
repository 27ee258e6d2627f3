package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
	"github.com/custodia-labs/coderag-core/internal/core/ports/driven"
	"github.com/custodia-labs/coderag-core/internal/core/ports/driving"
)

// runLockTTL bounds how long a crashed worker can block a repository.
const runLockTTL = 30 * time.Minute

// Worker processes indexing tasks from the task queue.
// It drives the indexing service for each dequeued task, holding a
// distributed lock so a repository is only indexed by one run at a time.
type Worker struct {
	taskQueue driven.TaskQueue
	indexer   driving.IndexingService
	lock      driven.DistributedLock
	logger    *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Config holds configuration for the worker.
type Config struct {
	TaskQueue      driven.TaskQueue
	Indexer        driving.IndexingService
	Lock           driven.DistributedLock // optional, skips locking when nil
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent task processors
	DequeueTimeout int // Seconds to wait for a task before checking again
}

// New creates a new indexing worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		indexer:        cfg.Indexer,
		lock:           cfg.Lock,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	// Wait for workers to finish
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			time.Sleep(time.Second) // Back off on error
			continue
		}

		if task == nil {
			// No task available, continue
			continue
		}

		w.processTask(ctx, task, logger)
	}
}

// processTask processes a single task.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type)
	logger.Info("processing task")

	startTime := time.Now()

	lockName := runLockName(task)
	if w.lock != nil {
		acquired, err := w.lock.Acquire(ctx, lockName, runLockTTL)
		if err != nil {
			logger.Error("failed to acquire run lock", "lock", lockName, "error", err)
			w.nack(ctx, task, err, logger)
			return
		}
		if !acquired {
			logger.Info("run lock held elsewhere, requeueing", "lock", lockName)
			w.nack(ctx, task, errors.New("indexing run already in progress"), logger)
			return
		}
		defer func() {
			if err := w.lock.Release(ctx, lockName); err != nil {
				logger.Warn("failed to release run lock", "lock", lockName, "error", err)
			}
		}()
	}

	var err error
	switch task.Type {
	case domain.TaskTypeFullIndex:
		err = w.handleFullIndex(ctx, task)
	case domain.TaskTypeIncremental:
		err = w.handleIncremental(ctx, task)
	default:
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}

	duration := time.Since(startTime)

	if err != nil {
		logger.Error("task failed",
			"duration", duration,
			"error", err,
		)
		w.nack(ctx, task, err, logger)
		return
	}

	logger.Info("task completed", "duration", duration)

	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

func (w *Worker) nack(ctx context.Context, task *domain.Task, cause error, logger *slog.Logger) {
	if nackErr := w.taskQueue.Nack(ctx, task.ID, cause.Error()); nackErr != nil {
		logger.Error("failed to nack task", "nack_error", nackErr)
	}
}

// handleFullIndex handles a full_index task.
func (w *Worker) handleFullIndex(ctx context.Context, task *domain.Task) error {
	if task.ProjectID == "" || task.Repo == "" || task.Ref == "" {
		return fmt.Errorf("full index task missing project, repo or ref")
	}

	index, err := w.indexer.IndexRepository(ctx, task.ProjectID, task.Repo, task.Ref)
	if err != nil {
		return err
	}

	if index.Status == domain.IndexStatusFailed {
		return fmt.Errorf("indexing run failed: %s", index.Error)
	}

	return nil
}

// handleIncremental handles an incremental_index task.
func (w *Worker) handleIncremental(ctx context.Context, task *domain.Task) error {
	if task.IndexID == "" {
		return fmt.Errorf("incremental task missing index id")
	}
	if task.Changes == nil || task.Changes.IsEmpty() {
		return fmt.Errorf("incremental task has no changes")
	}

	index, err := w.indexer.UpdateIndex(ctx, task.IndexID, task.Changes, task.Ref)
	if err != nil {
		return err
	}

	if index.Status == domain.IndexStatusFailed {
		return fmt.Errorf("indexing run failed: %s", index.Error)
	}

	return nil
}

// runLockName keys the run lock by what the run mutates: the target
// index for incremental runs, the repository otherwise.
func runLockName(task *domain.Task) string {
	if task.Type == domain.TaskTypeIncremental {
		return "index:" + task.IndexID
	}
	return "repo:" + task.ProjectID + ":" + task.Repo
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
