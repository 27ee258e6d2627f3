package driven

import (
	"context"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

// ContentProvider serves file trees and file content for a repository
// snapshot, keyed by repo and ref. VCS API clients (GitHub, GitLab,
// Bitbucket) implement this elsewhere; this core only consumes it.
type ContentProvider interface {
	// ListFiles enumerates all files in the snapshot.
	ListFiles(ctx context.Context, repo, ref string) ([]domain.FileEntry, error)

	// GetFile returns the raw content of one file.
	GetFile(ctx context.Context, repo, ref, path string) ([]byte, error)
}
