package driven

import (
	"context"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

// TaskQueue handles background indexing task queuing and processing.
type TaskQueue interface {
	// Enqueue adds a task to the queue for processing.
	Enqueue(ctx context.Context, task *domain.Task) error

	// DequeueWithTimeout retrieves the next available task, waiting up to
	// timeout seconds. Returns nil, nil when the timeout elapses with no
	// task available. The returned task is marked processing and will not
	// be handed to other workers.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error)

	// Ack acknowledges successful completion of a task.
	Ack(ctx context.Context, taskID string) error

	// Nack indicates task processing failed. The task is requeued with an
	// incremented retry count, or marked failed once MaxRetry is exceeded.
	Nack(ctx context.Context, taskID string, reason string) error

	// GetTask retrieves a task by ID (for status checking).
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	// Stats returns queue statistics.
	Stats(ctx context.Context) (*QueueStats, error)

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}

// QueueStats contains queue statistics
type QueueStats struct {
	PendingCount    int64 `json:"pending_count"`
	ProcessingCount int64 `json:"processing_count"`
	CompletedCount  int64 `json:"completed_count"`
	FailedCount     int64 `json:"failed_count"`
}
