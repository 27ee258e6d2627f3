package domain

import "time"

// TaskType identifies what kind of indexing run a task requests
type TaskType string

const (
	TaskTypeFullIndex   TaskType = "full_index"
	TaskTypeIncremental TaskType = "incremental_index"
)

// TaskStatus is the queue lifecycle state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is one queued indexing run.
type Task struct {
	ID        string       `json:"id"`
	Type      TaskType     `json:"type"`
	ProjectID string       `json:"project_id"`
	Repo      string       `json:"repo"`
	Ref       string       `json:"ref"`
	IndexID   string       `json:"index_id,omitempty"` // set for incremental runs
	Changes   *FileChanges `json:"changes,omitempty"`  // set for incremental runs
	Status    TaskStatus   `json:"status"`
	Retries   int          `json:"retries"`
	MaxRetry  int          `json:"max_retry"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewFullIndexTask builds a pending full-index task.
func NewFullIndexTask(id, projectID, repo, ref string) *Task {
	return &Task{
		ID:        id,
		Type:      TaskTypeFullIndex,
		ProjectID: projectID,
		Repo:      repo,
		Ref:       ref,
		Status:    TaskStatusPending,
		MaxRetry:  3,
		CreatedAt: time.Now(),
	}
}

// NewIncrementalTask builds a pending incremental-index task.
func NewIncrementalTask(id, indexID, ref string, changes *FileChanges) *Task {
	return &Task{
		ID:        id,
		Type:      TaskTypeIncremental,
		IndexID:   indexID,
		Ref:       ref,
		Changes:   changes,
		Status:    TaskStatusPending,
		MaxRetry:  3,
		CreatedAt: time.Now(),
	}
}
