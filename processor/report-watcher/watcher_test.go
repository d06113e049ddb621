package reportwatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsIngestible(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"acme.spdx.json", true},
		{"acme.SPDX.JSON", true},
		{"inventory.json", true},
		{"scan.csv", true},
		{"notes.txt", false},
		{"archive.tar.gz", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsIngestible(tt.path), tt.path)
	}
}

func waitForEvent(t *testing.T, events <-chan string) string {
	t.Helper()
	select {
	case path, ok := <-events:
		require.True(t, ok, "events channel closed")
		return path
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
		return ""
	}
}

func TestWatcherEmitsSettledFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewDropWatcher(dir, 50*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))

	path := filepath.Join(dir, "scan.csv")
	require.NoError(t, os.WriteFile(path, []byte("Component\nzlib 1.2.13\n"), 0644))

	got := waitForEvent(t, w.Events())
	assert.Equal(t, path, got)
}

func TestWatcherPicksUpExistingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acme.spdx.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	w, err := NewDropWatcher(dir, 10*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))

	got := waitForEvent(t, w.Events())
	assert.Equal(t, path, got)
}

func TestWatcherIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	w, err := NewDropWatcher(dir, 10*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	select {
	case path := <-w.Events():
		t.Fatalf("unexpected event for %s", path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.csv")
	require.NoError(t, os.WriteFile(path, []byte("Component\n"), 0644))

	require.NoError(t, MarkProcessed(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, processedDirName, "scan.csv"))
	require.NoError(t, err)
}
