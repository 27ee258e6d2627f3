package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
	"github.com/custodia-labs/coderag-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore implements driven.IndexStore using PostgreSQL.
type IndexStore struct {
	db *DB
}

// NewIndexStore creates a new IndexStore
func NewIndexStore(db *DB) *IndexStore {
	return &IndexStore{db: db}
}

const indexColumns = "id, project_id, repo, ref, status, total_files, total_chunks, total_tokens, cost_usd, error, created_at, completed_at, last_used_at"

// Create inserts a new index row.
func (s *IndexStore) Create(ctx context.Context, index *domain.Index) error {
	query := `
		INSERT INTO indexes (id, project_id, repo, ref, status, total_files, total_chunks, total_tokens, cost_usd, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		index.ID,
		index.ProjectID,
		index.Repo,
		index.Ref,
		string(index.Status),
		index.TotalFiles,
		index.TotalChunks,
		index.TotalTokens,
		index.CostUSD,
		index.Error,
		index.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Get returns an index by id.
func (s *IndexStore) Get(ctx context.Context, id string) (*domain.Index, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+indexColumns+" FROM indexes WHERE id = $1", id)
	return scanIndex(row)
}

// LatestCompleted returns the most recent completed index of a project.
func (s *IndexStore) LatestCompleted(ctx context.Context, projectID string) (*domain.Index, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+indexColumns+" FROM indexes WHERE project_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 1",
		projectID, string(domain.IndexStatusCompleted),
	)
	index, err := scanIndex(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoCompletedIndex
	}
	return index, err
}

// SetStatus moves an index to a new status, enforcing the transition
// rules under a row lock.
func (s *IndexStore) SetStatus(ctx context.Context, id string, status domain.IndexStatus, errText string) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, "SELECT status FROM indexes WHERE id = $1 FOR UPDATE", id).Scan(&current)
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		idx := domain.Index{Status: domain.IndexStatus(current)}
		if !idx.CanTransition(status) {
			return fmt.Errorf("%s -> %s: %w", current, status, domain.ErrIndexStatusTransition)
		}

		if status == domain.IndexStatusCompleted || status == domain.IndexStatusFailed {
			_, err = tx.ExecContext(ctx,
				"UPDATE indexes SET status = $1, error = $2, completed_at = $3 WHERE id = $4",
				string(status), errText, time.Now(), id,
			)
		} else {
			_, err = tx.ExecContext(ctx,
				"UPDATE indexes SET status = $1, error = $2 WHERE id = $3",
				string(status), errText, id,
			)
		}
		return err
	})
}

// UpdateTotals increments the aggregate counters by delta.
func (s *IndexStore) UpdateTotals(ctx context.Context, id string, files, chunks, tokens int, costUSD float64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE indexes SET
			total_files = total_files + $1,
			total_chunks = total_chunks + $2,
			total_tokens = total_tokens + $3,
			cost_usd = cost_usd + $4
		WHERE id = $5
	`, files, chunks, tokens, costUSD, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// SetRef advances the snapshot ref after an incremental run.
func (s *IndexStore) SetRef(ctx context.Context, id string, ref string) error {
	result, err := s.db.ExecContext(ctx, "UPDATE indexes SET ref = $1 WHERE id = $2", ref, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Touch records that the index served a retrieval.
func (s *IndexStore) Touch(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "UPDATE indexes SET last_used_at = $1 WHERE id = $2", time.Now(), id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// ListByProject returns a project's indexes, newest first.
func (s *IndexStore) ListByProject(ctx context.Context, projectID string) ([]*domain.Index, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+indexColumns+" FROM indexes WHERE project_id = $1 ORDER BY created_at DESC",
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []*domain.Index
	for rows.Next() {
		index, err := scanIndexRow(rows)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, index)
	}
	return indexes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIndex(row *sql.Row) (*domain.Index, error) {
	index, err := scanIndexRow(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return index, err
}

func scanIndexRow(row rowScanner) (*domain.Index, error) {
	var index domain.Index
	var status string
	var completedAt, lastUsedAt sql.NullTime
	err := row.Scan(
		&index.ID,
		&index.ProjectID,
		&index.Repo,
		&index.Ref,
		&status,
		&index.TotalFiles,
		&index.TotalChunks,
		&index.TotalTokens,
		&index.CostUSD,
		&index.Error,
		&index.CreatedAt,
		&completedAt,
		&lastUsedAt,
	)
	if err != nil {
		return nil, err
	}
	index.Status = domain.IndexStatus(status)
	index.CompletedAt = TimePtr(completedAt)
	index.LastUsedAt = TimePtr(lastUsedAt)
	return &index, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// isUniqueViolation detects a Postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
