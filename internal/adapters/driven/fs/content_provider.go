package fs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
	"github.com/custodia-labs/coderag-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ContentProvider = (*ContentProvider)(nil)

// ContentProvider serves repository snapshots from a local directory
// tree. The repo argument is the directory path; refs carry no meaning
// for local checkouts and are ignored.
type ContentProvider struct {
	// skipDirs are directory names never descended into.
	skipDirs map[string]bool
}

// defaultSkipDirs mirror what indexing would discard anyway; skipping
// them here keeps the walk cheap.
var defaultSkipDirs = []string{
	".git", ".svn", ".hg",
	"node_modules", "vendor", "__pycache__",
	".idea", ".vscode",
	"dist", "build", "target",
}

// NewContentProvider creates a new filesystem ContentProvider.
func NewContentProvider() *ContentProvider {
	skip := make(map[string]bool, len(defaultSkipDirs))
	for _, d := range defaultSkipDirs {
		skip[d] = true
	}
	return &ContentProvider{skipDirs: skip}
}

// ListFiles walks the directory tree and returns every regular file,
// paths relative to the root with forward slashes.
func (p *ContentProvider) ListFiles(ctx context.Context, repo, ref string) ([]domain.FileEntry, error) {
	root, err := filepath.Abs(repo)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", repo, domain.ErrInvalidInput)
	}

	var entries []domain.FileEntry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable entries are skipped, not fatal.
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && p.skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		// Skip symlinks.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		entries = append(entries, domain.FileEntry{
			Path: filepath.ToSlash(rel),
			Size: fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", repo, err)
	}

	return entries, nil
}

// GetFile reads one file from the snapshot.
func (p *ContentProvider) GetFile(ctx context.Context, repo, ref, path string) ([]byte, error) {
	if strings.Contains(path, "..") {
		return nil, fmt.Errorf("path %s escapes the snapshot: %w", path, domain.ErrInvalidInput)
	}

	full := filepath.Join(repo, filepath.FromSlash(path))
	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
