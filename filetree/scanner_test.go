package filetree

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oscomply/inventoryd/inventory"
)

func setupScanFixture(t *testing.T) (tx *inventory.Tx, project *inventory.Project, item *inventory.InventoryItem, root string) {
	t.Helper()
	store, err := inventory.Open(filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tx, err = store.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { tx.Rollback() })

	project = &inventory.Project{Name: "scan-test"}
	require.NoError(t, tx.CreateProject(project))
	item = &inventory.InventoryItem{ProjectID: project.ID, DisplayName: "scanned"}
	require.NoError(t, tx.CreateItem(item))

	root = t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "LICENSE"), []byte("MIT"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.c"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "sub", "b.c"), []byte("b"), 0o644))
	return tx, project, item, root
}

func TestScanRecordsTreeWithParentLinks(t *testing.T) {
	tx, project, item, root := setupScanFixture(t)

	n, err := NewScanner(nil, nil).Scan(tx, project, item, root)
	require.NoError(t, err)
	// LICENSE, src, src/a.c, src/sub, src/sub/b.c
	require.Equal(t, 5, n)

	sub, err := tx.FindFileByPath(project.ID, filepath.Join(root, "src", "sub"))
	require.NoError(t, err)
	require.True(t, sub.IsDir)
	require.Equal(t, "src/sub", sub.RelPath)

	b, err := tx.FindFileByPath(project.ID, filepath.Join(root, "src", "sub", "b.c"))
	require.NoError(t, err)
	require.Equal(t, sub.ID, b.ParentID)
	require.Equal(t, item.ID, b.InventoryItemID)
	require.Equal(t, "src/sub/b.c", b.RelPath)

	// The anchor entity for the scan root exists and parents src.
	anchor, err := tx.FindFileByPath(project.ID, root)
	require.NoError(t, err)
	src, err := tx.FindFileByPath(project.ID, filepath.Join(root, "src"))
	require.NoError(t, err)
	require.Equal(t, anchor.ID, src.ParentID)
}

func TestScanIsIdempotent(t *testing.T) {
	tx, project, item, root := setupScanFixture(t)
	scanner := NewScanner(nil, nil)

	_, err := scanner.Scan(tx, project, item, root)
	require.NoError(t, err)
	first, err := tx.Count("files")
	require.NoError(t, err)

	_, err = scanner.Scan(tx, project, item, root)
	require.NoError(t, err)
	second, err := tx.Count("files")
	require.NoError(t, err)

	require.Equal(t, first, second, "re-scan must not duplicate file entities")
}

func TestScanSkipsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks not reliable on windows")
	}
	tx, project, item, root := setupScanFixture(t)
	require.NoError(t, os.Symlink(filepath.Join(root, "LICENSE"), filepath.Join(root, "link")))

	_, err := NewScanner(nil, nil).Scan(tx, project, item, root)
	require.NoError(t, err)

	_, err = tx.FindFileByPath(project.ID, filepath.Join(root, "link"))
	require.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestScanSkipPatterns(t *testing.T) {
	tx, project, item, root := setupScanFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref"), 0o644))

	_, err := NewScanner([]string{".git", ".git/**"}, nil).Scan(tx, project, item, root)
	require.NoError(t, err)

	_, err = tx.FindFileByPath(project.ID, filepath.Join(root, ".git"))
	require.ErrorIs(t, err, inventory.ErrNotFound)
	_, err = tx.FindFileByPath(project.ID, filepath.Join(root, ".git", "HEAD"))
	require.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestRelativePathNormalizesSeparators(t *testing.T) {
	tests := []struct {
		root, path, want string
	}{
		{"/scan/root", "/scan/root/a/b.c", "a/b.c"},
		{"/scan/root", "/scan/root", "."},
	}
	for _, tt := range tests {
		got := RelativePath(tt.root, tt.path)
		if got != tt.want {
			t.Errorf("RelativePath(%q, %q) = %q, want %q", tt.root, tt.path, got, tt.want)
		}
	}
}
