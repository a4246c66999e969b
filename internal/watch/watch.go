// Package watch implements continuous mode: filesystem events are
// debounced and handed to a callback that re-runs the impacted-only
// pipeline.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gauntlet/internal/logging"
)

// OnChange receives the batch of changed paths after the debounce
// window closes.
type OnChange func(ctx context.Context, changed []string)

// Watcher watches a project tree and triggers re-runs on change.
type Watcher struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	root    string
	ignore  map[string]bool
	onChng  OnChange

	pending     map[string]time.Time
	debounceDur time.Duration

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a watcher rooted at the project directory. Directory
// names in ignore are not watched.
func New(root string, ignore []string, onChange OnChange) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ig := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		ig[name] = true
	}

	return &Watcher{
		watcher:     fsw,
		root:        root,
		ignore:      ig,
		onChng:      onChange,
		pending:     make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a
// goroutine until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		return err
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for cleanup.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("error closing watcher: %v", err)
	}
	logging.Watch("watcher stopped")
}

// addTree registers every non-ignored directory under dir.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignore[d.Name()] {
			return fs.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			logging.Get(logging.CategoryWatch).Warn("cannot watch %s: %v", path, err)
		}
		return nil
	})
}

// run is the main event loop.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	flushTicker := time.NewTicker(100 * time.Millisecond)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Watch("context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Error("watch error: %v", err)

		case <-flushTicker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if isEditorNoise(event.Name) {
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if w.ignore[part] {
			return
		}
	}

	// New directories join the watch set so nested creates are seen.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addTree(event.Name)
			return
		}
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	w.pending[rel] = time.Now()
	w.mu.Unlock()
	logging.WatchDebug("event: %s %s", event.Op, rel)
}

// flush fires the callback for paths quiet past the debounce window.
func (w *Watcher) flush(ctx context.Context) {
	now := time.Now()

	w.mu.Lock()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounceDur {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	if len(ready) == 0 {
		return
	}
	sort.Strings(ready)

	logging.Watch("%d changed paths after debounce", len(ready))
	w.onChng(ctx, ready)
}

// isEditorNoise filters temp/backup files editors write on save.
func isEditorNoise(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasSuffix(base, ".tmp") ||
		strings.HasPrefix(base, ".#") ||
		strings.HasPrefix(base, "#")
}
