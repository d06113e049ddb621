// Package filetree turns a directory tree on disk into file entities in
// the inventory graph, with parent links and normalized relative paths.
package filetree

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/oscomply/inventoryd/inventory"
)

// Scanner walks directory trees and persists them as file entities.
type Scanner struct {
	// SkipPatterns are doublestar globs matched against the
	// slash-normalized relative path; matches are skipped along with
	// their subtrees for directories.
	SkipPatterns []string

	logger *slog.Logger
}

// NewScanner creates a Scanner with the given skip patterns.
func NewScanner(skipPatterns []string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{SkipPatterns: skipPatterns, logger: logger}
}

// Scan walks root recursively and records every file and directory as
// an entity owned by the project and attached to the inventory item.
// Symbolic links are skipped. Entities previously stored under root are
// purged first so re-scans stay idempotent; the anchor entity for root
// itself is preserved (or created on first scan). All new entities are
// inserted in one batch.
func (s *Scanner) Scan(tx *inventory.Tx, project *inventory.Project, item *inventory.InventoryItem, root string) (int, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return 0, fmt.Errorf("resolve scan root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return 0, fmt.Errorf("stat scan root: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("scan root is not a directory: %s", absRoot)
	}

	purged, err := tx.PurgeFilesUnder(project.ID, absRoot, absRoot)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.logger.Debug("purged stale file entities", "root", absRoot, "count", purged)
	}

	anchor, err := tx.FindFileByPath(project.ID, absRoot)
	if err == inventory.ErrNotFound {
		anchor = &inventory.File{
			ProjectID:       project.ID,
			InventoryItemID: item.ID,
			Name:            filepath.Base(absRoot),
			AbsPath:         absRoot,
			IsDir:           true,
		}
		if err := tx.CreateFile(anchor); err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	}

	var batch []*inventory.File
	// parents maps directory abs paths to their entity IDs so children
	// can point at them before anything is inserted.
	parents := map[string]string{absRoot: anchor.ID}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == absRoot {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		rel := RelativePath(absRoot, path)
		if s.skip(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// IDs are assigned up front so child entries can reference
		// their parent before the batch is written.
		f := &inventory.File{
			ID:              uuid.New().String(),
			ProjectID:       project.ID,
			ParentID:        parents[filepath.Dir(path)],
			InventoryItemID: item.ID,
			Name:            d.Name(),
			AbsPath:         path,
			RelPath:         rel,
			IsDir:           d.IsDir(),
		}
		batch = append(batch, f)
		if d.IsDir() {
			parents[path] = f.ID
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", absRoot, err)
	}

	if err := tx.InsertFiles(batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}

func (s *Scanner) skip(rel string) bool {
	for _, pattern := range s.SkipPatterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// RelativePath computes the path of p relative to root with separators
// normalized to '/'.
func RelativePath(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		rel = strings.TrimPrefix(p, root)
		rel = strings.TrimLeft(rel, string(os.PathSeparator))
	}
	return filepath.ToSlash(rel)
}
