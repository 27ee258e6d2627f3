package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
	"github.com/custodia-labs/coderag-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore implements driven.ChunkStore using PostgreSQL.
// Note: Embeddings are stored in the vector store, not here.
type ChunkStore struct {
	db *DB
}

// NewChunkStore creates a new ChunkStore
func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

const chunkColumns = "id, index_id, file_path, content, start_line, end_line, chunk_type, language, name, metadata, created_at"

// SaveBatch saves chunks in a transaction, replacing on id conflict.
func (s *ChunkStore) SaveBatch(ctx context.Context, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO chunks (id, index_id, file_path, content, start_line, end_line, chunk_type, language, name, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				content = EXCLUDED.content,
				start_line = EXCLUDED.start_line,
				end_line = EXCLUDED.end_line,
				chunk_type = EXCLUDED.chunk_type,
				name = EXCLUDED.name,
				metadata = EXCLUDED.metadata
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			metadata, err := marshalMetadata(chunk.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata for chunk %s: %w", chunk.ID, err)
			}
			_, err = stmt.ExecContext(ctx,
				chunk.ID,
				chunk.IndexID,
				chunk.FilePath,
				chunk.Content,
				chunk.StartLine,
				chunk.EndLine,
				string(chunk.Type),
				chunk.Language,
				chunk.Name,
				metadata,
				chunk.CreatedAt,
			)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// GetByIDs returns the chunks for the given ids. Missing ids are
// silently absent from the result.
func (s *ChunkStore) GetByIDs(ctx context.Context, ids []string) ([]*domain.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := "SELECT " + chunkColumns + " FROM chunks WHERE id = ANY($1)"
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunks(rows)
}

// GetByIndex returns an index's chunks ordered by file path and position.
func (s *ChunkStore) GetByIndex(ctx context.Context, indexID string, limit, offset int) ([]*domain.Chunk, error) {
	query := "SELECT " + chunkColumns + " FROM chunks WHERE index_id = $1 ORDER BY file_path, start_line"
	args := []any{indexID}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunks(rows)
}

// GetByIndexAndPaths returns the chunks of specific files within an index.
func (s *ChunkStore) GetByIndexAndPaths(ctx context.Context, indexID string, paths []string) ([]*domain.Chunk, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	query := "SELECT " + chunkColumns + " FROM chunks WHERE index_id = $1 AND file_path = ANY($2) ORDER BY file_path, start_line"
	rows, err := s.db.QueryContext(ctx, query, indexID, pq.Array(paths))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunks(rows)
}

// SearchKeyword returns chunks whose content matches any keyword
// (case-insensitive substring), narrowed by the filter.
func (s *ChunkStore) SearchKeyword(ctx context.Context, indexID string, keywords []string, filter domain.RetrievalFilter, limit int) ([]*domain.Chunk, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("SELECT " + chunkColumns + " FROM chunks WHERE index_id = $1 AND (")
	args := []any{indexID}
	for i, kw := range keywords {
		if i > 0 {
			b.WriteString(" OR ")
		}
		args = append(args, "%"+escapeLike(kw)+"%")
		fmt.Fprintf(&b, "content ILIKE $%d", len(args))
	}
	b.WriteString(")")

	if filter.Language != "" {
		args = append(args, filter.Language)
		fmt.Fprintf(&b, " AND language = $%d", len(args))
	}
	if filter.ChunkType != "" {
		args = append(args, string(filter.ChunkType))
		fmt.Fprintf(&b, " AND chunk_type = $%d", len(args))
	}
	if len(filter.FilePaths) > 0 {
		args = append(args, pq.Array(filter.FilePaths))
		fmt.Fprintf(&b, " AND file_path = ANY($%d)", len(args))
	}

	b.WriteString(" ORDER BY file_path, start_line")
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunks(rows)
}

// DeleteByIndex removes all chunks of an index.
func (s *ChunkStore) DeleteByIndex(ctx context.Context, indexID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE index_id = $1", indexID)
	return err
}

// DeleteByIndexAndPaths removes the chunks of specific files and
// returns the deleted chunk ids, for mirroring the delete in the
// vector store.
func (s *ChunkStore) DeleteByIndexAndPaths(ctx context.Context, indexID string, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"DELETE FROM chunks WHERE index_id = $1 AND file_path = ANY($2) RETURNING id",
		indexID, pq.Array(paths),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deleted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		deleted = append(deleted, id)
	}
	return deleted, rows.Err()
}

// CountByIndex returns the number of chunks in an index.
func (s *ChunkStore) CountByIndex(ctx context.Context, indexID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE index_id = $1", indexID).Scan(&n)
	return n, err
}

// scanChunks reads all rows into chunks.
func scanChunks(rows *sql.Rows) ([]*domain.Chunk, error) {
	var chunks []*domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var chunkType string
		var metadata []byte
		err := rows.Scan(
			&c.ID,
			&c.IndexID,
			&c.FilePath,
			&c.Content,
			&c.StartLine,
			&c.EndLine,
			&chunkType,
			&c.Language,
			&c.Name,
			&metadata,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		c.Type = domain.ChunkType(chunkType)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata for chunk %s: %w", c.ID, err)
			}
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(metadata)
}

// escapeLike escapes LIKE wildcards in user-derived keywords.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
