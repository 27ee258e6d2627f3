package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
	"github.com/custodia-labs/coderag-core/internal/core/ports/driven"
)

const (
	// Stream names
	taskStream = "coderag:tasks"
	taskGroup  = "coderag:workers"

	// Key prefixes
	taskKeyPrefix    = "coderag:task:"
	taskMsgKeyPrefix = "coderag:task:msg:"

	// Counters
	completedCounter = "coderag:tasks:completed"
	failedCounter    = "coderag:tasks:failed"

	// Default consumer name prefix
	consumerPrefix = "worker-"

	// Task data retention
	taskTTL = 24 * time.Hour
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue using Redis Streams.
// Redis Streams provide reliable message queuing with consumer groups
// and per-message acknowledgment tracking.
type Queue struct {
	client       *redis.Client
	consumerName string
}

// NewQueue creates a new Redis-backed task queue.
// The consumerName should be unique per worker instance (e.g., hostname + PID).
func NewQueue(client *redis.Client, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = fmt.Sprintf("%s%d", consumerPrefix, time.Now().UnixNano())
	}

	q := &Queue{
		client:       client,
		consumerName: consumerName,
	}

	// Create consumer group if it doesn't exist
	ctx := context.Background()
	err := q.client.XGroupCreateMkStream(ctx, taskStream, taskGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return q, nil
}

// Enqueue adds a task to the queue for processing.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, taskKeyPrefix+task.ID, taskData, taskTTL)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: taskStream,
		Values: map[string]interface{}{
			"task_id": task.ID,
			"type":    string(task.Type),
		},
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// DequeueWithTimeout retrieves the next available task, waiting up to
// timeout seconds. Returns nil, nil when nothing arrives in time.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	block := time.Duration(timeout) * time.Second
	if timeout <= 0 {
		block = -1 // no BLOCK option; return immediately
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    taskGroup,
		Consumer: q.consumerName,
		Streams:  []string{taskStream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	msg := streams[0].Messages[0]
	taskID, _ := msg.Values["task_id"].(string)
	if taskID == "" {
		// Malformed entry; drop it.
		_ = q.client.XAck(ctx, taskStream, taskGroup, msg.ID).Err()
		return nil, nil
	}

	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		_ = q.client.XAck(ctx, taskStream, taskGroup, msg.ID).Err()
		return nil, fmt.Errorf("dequeued unknown task %s: %w", taskID, err)
	}

	task.Status = domain.TaskStatusProcessing
	if err := q.saveTask(ctx, task); err != nil {
		return nil, err
	}
	// Remember the stream message so Ack/Nack can settle it.
	if err := q.client.Set(ctx, taskMsgKeyPrefix+taskID, msg.ID, taskTTL).Err(); err != nil {
		return nil, fmt.Errorf("failed to record message id: %w", err)
	}

	return task, nil
}

// Ack acknowledges successful completion of a task.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	if err := q.settleMessage(ctx, taskID); err != nil {
		return err
	}

	task.Status = domain.TaskStatusCompleted
	if err := q.saveTask(ctx, task); err != nil {
		return err
	}
	return q.client.Incr(ctx, completedCounter).Err()
}

// Nack indicates task processing failed. The task is requeued with an
// incremented retry count, or marked failed once MaxRetry is exceeded.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	if err := q.settleMessage(ctx, taskID); err != nil {
		return err
	}

	task.Retries++
	task.Error = reason

	if task.Retries > task.MaxRetry {
		task.Status = domain.TaskStatusFailed
		if err := q.saveTask(ctx, task); err != nil {
			return err
		}
		return q.client.Incr(ctx, failedCounter).Err()
	}

	task.Status = domain.TaskStatusPending
	return q.Enqueue(ctx, task)
}

// GetTask retrieves a task by ID.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := q.client.Get(ctx, taskKeyPrefix+taskID).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// Stats returns queue statistics.
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	stats := &driven.QueueStats{}

	length, err := q.client.XLen(ctx, taskStream).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read stream length: %w", err)
	}

	pending, err := q.client.XPending(ctx, taskStream, taskGroup).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read pending entries: %w", err)
	}
	if pending != nil {
		stats.ProcessingCount = pending.Count
	}
	stats.PendingCount = length - stats.ProcessingCount
	if stats.PendingCount < 0 {
		stats.PendingCount = 0
	}

	stats.CompletedCount, _ = q.client.Get(ctx, completedCounter).Int64()
	stats.FailedCount, _ = q.client.Get(ctx, failedCounter).Int64()

	return stats, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close cleans up resources. The shared Redis client is owned by the
// caller and stays open.
func (q *Queue) Close() error {
	return nil
}

// saveTask persists the task record.
func (q *Queue) saveTask(ctx context.Context, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := q.client.Set(ctx, taskKeyPrefix+task.ID, data, taskTTL).Err(); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// settleMessage acknowledges the stream entry backing a dequeued task.
func (q *Queue) settleMessage(ctx context.Context, taskID string) error {
	msgKey := taskMsgKeyPrefix + taskID
	msgID, err := q.client.Get(ctx, msgKey).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get message id: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.XAck(ctx, taskStream, taskGroup, msgID)
	pipe.XDel(ctx, taskStream, msgID)
	pipe.Del(ctx, msgKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

func isGroupExistsError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}
