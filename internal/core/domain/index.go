package domain

import "time"

// IndexStatus is the lifecycle state of an indexing run
type IndexStatus string

const (
	IndexStatusPending   IndexStatus = "pending"
	IndexStatusIndexing  IndexStatus = "indexing"
	IndexStatusUpdating  IndexStatus = "updating"
	IndexStatusCompleted IndexStatus = "completed"
	IndexStatusFailed    IndexStatus = "failed"
)

// statusRank orders statuses for the forward-only transition rule.
var statusRank = map[IndexStatus]int{
	IndexStatusPending:   0,
	IndexStatusIndexing:  1,
	IndexStatusUpdating:  2,
	IndexStatusCompleted: 3,
	IndexStatusFailed:    4,
}

// Index identifies one indexing run over a repository snapshot
// (repo + commit/branch ref). Exactly one run owns an Index at a time.
type Index struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"project_id"`
	Repo        string      `json:"repo"` // owner/name
	Ref         string      `json:"ref"`  // commit SHA or branch
	Status      IndexStatus `json:"status"`
	TotalFiles  int         `json:"total_files"`
	TotalChunks int         `json:"total_chunks"`
	TotalTokens int         `json:"total_tokens"`
	CostUSD     float64     `json:"cost_usd"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	LastUsedAt  *time.Time  `json:"last_used_at,omitempty"`
}

// CanTransition reports whether moving to the given status is legal.
// Transitions are forward-only, except that any state may move to
// failed. Failed and completed are terminal (a completed index may
// re-enter updating for an incremental run).
func (i *Index) CanTransition(to IndexStatus) bool {
	if i.Status == IndexStatusFailed {
		return false
	}
	if to == IndexStatusFailed {
		return true
	}
	// A completed index re-enters updating during incremental runs.
	if i.Status == IndexStatusCompleted {
		return to == IndexStatusUpdating
	}
	if i.Status == IndexStatusUpdating {
		return to == IndexStatusCompleted
	}
	return statusRank[to] > statusRank[i.Status]
}

// IsQueryable reports whether retrievals may be served from this index.
func (i *Index) IsQueryable() bool {
	return i.Status == IndexStatusCompleted
}

// IndexStats holds the aggregate totals of a finished or in-flight run.
type IndexStats struct {
	Files      int     `json:"files"`
	Chunks     int     `json:"chunks"`
	Tokens     int     `json:"tokens"`
	CostUSD    float64 `json:"cost_usd"`
	Skipped    int     `json:"skipped"` // files that failed and were skipped
	DurationMS int64   `json:"duration_ms"`
}
