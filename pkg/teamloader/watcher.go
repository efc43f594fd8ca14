package teamloader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeEvent reports that a team definition file changed.
type ChangeEvent struct {
	Path      string
	Timestamp time.Time
}

const debounceDelay = 500 * time.Millisecond

// Watcher watches a team definitions directory and reports changed
// definition files, debounced to absorb rapid editor writes.
type Watcher struct {
	watcher       *fsnotify.Watcher
	events        chan ChangeEvent
	debounceTimer *time.Timer
	debounceMu    sync.Mutex
	closed        bool
	closeMu       sync.RWMutex
}

// NewWatcher creates a watcher; call Watch then Start.
func NewWatcher() (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		watcher: watcher,
		events:  make(chan ChangeEvent, 16),
	}, nil
}

// Watch starts watching a team definitions directory.
func (w *Watcher) Watch(dir string) error {
	w.closeMu.RLock()
	if w.closed {
		w.closeMu.RUnlock()
		return fmt.Errorf("watcher is closed")
	}
	w.closeMu.RUnlock()

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	if err := w.watcher.Add(absDir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", absDir, err)
	}

	slog.Debug("Started watching team definitions", "dir", absDir)
	return nil
}

// Events returns the channel change events are delivered on.
func (w *Watcher) Events() <-chan ChangeEvent {
	return w.events
}

// Start begins processing file system events until ctx is cancelled or
// the watcher is closed, then closes the events channel. Call it at
// most once.
func (w *Watcher) Start(ctx context.Context) {
	go w.processEvents(ctx)
}

func (w *Watcher) processEvents(ctx context.Context) {
	// Shut down under closeMu so a pending debounce callback either
	// delivers before the events channel closes or sees closed and
	// drops its event.
	defer func() {
		w.closeMu.Lock()
		defer w.closeMu.Unlock()

		if !w.closed {
			w.closed = true
			w.stopDebounce()
			if err := w.watcher.Close(); err != nil {
				slog.Error("Failed to close file watcher", "error", err)
			}
		}
		close(w.events)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			ext := filepath.Ext(event.Name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			slog.Debug("Team definition changed", "path", event.Name, "op", event.Op)
			w.scheduleEmit(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Team definition watcher error", "error", err)
		}
	}
}

// scheduleEmit emits a change event after the debounce delay, replacing
// any pending emit.
func (w *Watcher) scheduleEmit(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(debounceDelay, func() {
		w.closeMu.RLock()
		defer w.closeMu.RUnlock()
		if w.closed {
			return
		}

		select {
		case w.events <- ChangeEvent{Path: path, Timestamp: time.Now()}:
		default:
			slog.Warn("Team definition change channel full, skipping event")
		}
	})
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.closeMu.Lock()
	defer w.closeMu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.stopDebounce()

	return w.watcher.Close()
}

func (w *Watcher) stopDebounce() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
}
