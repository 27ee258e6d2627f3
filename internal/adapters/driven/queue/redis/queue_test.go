package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

func setupTestQueue(t *testing.T) (*Queue, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	queue, err := NewQueue(client, "test-worker")
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}

	return queue, func() {
		client.Close()
		mr.Close()
	}
}

func TestQueue_EnqueueDequeue(t *testing.T) {
	queue, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	task := domain.NewFullIndexTask("task-1", "proj-1", "acme/api", "main")
	if err := queue.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := queue.DequeueWithTimeout(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a task")
	}
	if got.ID != "task-1" {
		t.Errorf("expected task-1, got %s", got.ID)
	}
	if got.Status != domain.TaskStatusProcessing {
		t.Errorf("expected processing status, got %s", got.Status)
	}
	if got.Type != domain.TaskTypeFullIndex {
		t.Errorf("expected full index type, got %s", got.Type)
	}

	// Queue is now empty.
	next, err := queue.DequeueWithTimeout(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != nil {
		t.Errorf("expected empty queue, got %s", next.ID)
	}
}

func TestQueue_Ack(t *testing.T) {
	queue, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	task := domain.NewFullIndexTask("task-1", "proj-1", "acme/api", "main")
	_ = queue.Enqueue(ctx, task)
	_, _ = queue.DequeueWithTimeout(ctx, 0)

	if err := queue.Ack(ctx, "task-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := queue.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.TaskStatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}

	stats, err := queue.Stats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.CompletedCount != 1 {
		t.Errorf("expected 1 completed, got %d", stats.CompletedCount)
	}
}

func TestQueue_NackRequeues(t *testing.T) {
	queue, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	task := domain.NewFullIndexTask("task-1", "proj-1", "acme/api", "main")
	_ = queue.Enqueue(ctx, task)
	_, _ = queue.DequeueWithTimeout(ctx, 0)

	if err := queue.Nack(ctx, "task-1", "vector store unreachable"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := queue.DequeueWithTimeout(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected requeued task")
	}
	if got.Retries != 1 {
		t.Errorf("expected 1 retry, got %d", got.Retries)
	}
	if got.Error != "vector store unreachable" {
		t.Errorf("expected failure reason kept, got %q", got.Error)
	}
}

func TestQueue_NackExhaustsRetries(t *testing.T) {
	queue, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	task := domain.NewFullIndexTask("task-1", "proj-1", "acme/api", "main")
	task.Retries = task.MaxRetry
	_ = queue.Enqueue(ctx, task)
	_, _ = queue.DequeueWithTimeout(ctx, 0)

	if err := queue.Nack(ctx, "task-1", "still broken"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := queue.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.TaskStatusFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}

	// Nothing left to dequeue.
	next, _ := queue.DequeueWithTimeout(ctx, 0)
	if next != nil {
		t.Errorf("failed task must not be requeued")
	}

	stats, _ := queue.Stats(ctx)
	if stats.FailedCount != 1 {
		t.Errorf("expected 1 failed, got %d", stats.FailedCount)
	}
}

func TestQueue_GetTaskNotFound(t *testing.T) {
	queue, cleanup := setupTestQueue(t)
	defer cleanup()

	_, err := queue.GetTask(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueue_IncrementalTaskRoundTrip(t *testing.T) {
	queue, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	changes := &domain.FileChanges{
		Added:    []string{"c.go"},
		Modified: []string{"b.go"},
		Removed:  []string{"a.go"},
	}
	task := domain.NewIncrementalTask("task-2", "idx-1", "def456", changes)
	_ = queue.Enqueue(ctx, task)

	got, err := queue.DequeueWithTimeout(ctx, 0)
	if err != nil || got == nil {
		t.Fatalf("expected task, got %v (err %v)", got, err)
	}
	if got.Type != domain.TaskTypeIncremental {
		t.Errorf("expected incremental type, got %s", got.Type)
	}
	if got.IndexID != "idx-1" {
		t.Errorf("expected idx-1, got %s", got.IndexID)
	}
	if got.Changes == nil || len(got.Changes.Removed) != 1 || got.Changes.Removed[0] != "a.go" {
		t.Errorf("changes did not survive the round trip: %+v", got.Changes)
	}
}
