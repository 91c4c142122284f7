package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// WalkDocuments walks root and calls fn for every lab document (pdf, png,
// jpg, jpeg). Hidden files and directories are skipped when skipHidden is set.
// Errors from fn are counted as failures and do not stop the walk.
func WalkDocuments(ctx context.Context, root string, skipHidden bool, fn func(path string) error) (DirStats, error) {
	var stats DirStats
	if strings.TrimSpace(root) == "" {
		return stats, errors.New("root path is required")
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			stats.Failed++
			if path == root {
				return walkErr
			}
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !allowed(path) {
			return nil
		}
		stats.Matched++
		if err := fn(path); err != nil {
			stats.Failed++
			return nil
		}
		stats.Queued++
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walk: %w", err)
	}
	return stats, nil
}
