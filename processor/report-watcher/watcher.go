package reportwatcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// eventChannelBuffer is the size of the watch event channel.
const eventChannelBuffer = 100

// processedDirName is where handled files are moved inside the drop
// directory.
const processedDirName = "processed"

// DropWatcher watches a drop directory for SBOM and report files. A
// file is reported only after no further writes arrived for the
// debounce window, so half-copied files are never picked up.
type DropWatcher struct {
	dropDir  string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	pendingMu sync.Mutex
	pending   map[string]time.Time

	events chan string
}

// NewDropWatcher creates a watcher over dropDir.
func NewDropWatcher(dropDir string, debounce time.Duration, logger *slog.Logger) (*DropWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DropWatcher{
		dropDir:  dropDir,
		debounce: debounce,
		watcher:  fsw,
		logger:   logger,
		pending:  make(map[string]time.Time),
		events:   make(chan string, eventChannelBuffer),
	}, nil
}

// Events returns the channel of settled file paths.
func (w *DropWatcher) Events() <-chan string {
	return w.events
}

// Start begins watching the drop directory. Files already present are
// enqueued immediately.
func (w *DropWatcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dropDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(w.dropDir, processedDirName), 0755); err != nil {
		return err
	}
	if err := w.watcher.Add(w.dropDir); err != nil {
		return err
	}

	if err := w.enqueueExisting(); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Drop watcher started",
		"drop_dir", w.dropDir,
		"debounce", w.debounce)
	return nil
}

// Stop stops the watcher. The events channel is closed by processEvents
// when it exits.
func (w *DropWatcher) Stop() error {
	return w.watcher.Close()
}

// IsIngestible reports whether the file name is a kind this watcher
// handles.
func IsIngestible(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	return strings.HasSuffix(name, ".spdx.json") ||
		strings.HasSuffix(name, ".json") ||
		strings.HasSuffix(name, ".csv")
}

// enqueueExisting marks files already sitting in the drop directory as
// pending so a restart never strands them.
func (w *DropWatcher) enqueueExisting() error {
	entries, err := os.ReadDir(w.dropDir)
	if err != nil {
		return err
	}
	now := time.Now()
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dropDir, entry.Name())
		if IsIngestible(path) {
			w.pending[path] = now
		}
	}
	return nil
}

// processEvents handles fsnotify events with debouncing.
func (w *DropWatcher) processEvents(ctx context.Context) {
	defer close(w.events)
	interval := w.debounce / 2
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushSettled(ctx)
		}
	}
}

// handleFSEvent records write activity on ingestible files.
func (w *DropWatcher) handleFSEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !IsIngestible(event.Name) {
		return
	}
	if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
		return
	}

	w.pendingMu.Lock()
	w.pending[event.Name] = time.Now()
	w.pendingMu.Unlock()

	w.logger.Debug("Dropped file detected", "path", event.Name)
}

// flushSettled emits files whose last write is older than the debounce
// window.
func (w *DropWatcher) flushSettled(ctx context.Context) {
	cutoff := time.Now().Add(-w.debounce)

	w.pendingMu.Lock()
	var settled []string
	for path, last := range w.pending {
		if last.Before(cutoff) {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.pendingMu.Unlock()

	for _, path := range settled {
		select {
		case <-ctx.Done():
			return
		case w.events <- path:
		default:
			w.logger.Warn("Event channel full, dropping file event", "path", path)
		}
	}
}

// MarkProcessed moves a handled file into the processed subdirectory so
// it is not enqueued again.
func MarkProcessed(path string) error {
	dir := filepath.Dir(path)
	dest := filepath.Join(dir, processedDirName, filepath.Base(path))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.Rename(path, dest)
}
