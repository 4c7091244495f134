package cache

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of write events an ingest produces
// into a single invalidation.
const watchDebounce = 2 * time.Second

// Watcher invalidates cached catalog facts when the catalog database file
// changes on disk (for example, an ingest run by another process).
type Watcher struct {
	fsw        *fsnotify.Watcher
	path       string
	invalidate func()

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

// NewWatcher watches the catalog database at path and calls invalidate
// after changes settle.
func NewWatcher(path string, invalidate func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: sqlite swaps files during WAL checkpoints, and
	// watching the file directly loses the watch on rename.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:        fsw,
		path:       path,
		invalidate: invalidate,
		done:       make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	base := filepath.Base(w.path)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			// The -wal companion changes on every committed write.
			if name != base && !strings.HasPrefix(name, base+"-") {
				continue
			}
			// Chmod covers metadata-only touches: 'coatseek cache
			// invalidate' signals watchers by updating the file's mtime,
			// which fsnotify reports as Chmod on Linux.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Chmod) == 0 {
				continue
			}
			w.schedule()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("catalog_watch_error", slog.String("error", err.Error()))
		}
	}
}

// schedule (re)arms the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(watchDebounce, func() {
		slog.Info("catalog_changed_invalidating_cache", slog.String("path", w.path))
		w.invalidate()
	})
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}
