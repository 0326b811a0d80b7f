// Package watcher re-indexes a project when its tag files change.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle
const DefaultDebounce = 500 * time.Millisecond

// Event is one changed tag file
type Event struct {
	Path      string
	Operation string // "write", "create", "remove", "rename"
	Timestamp time.Time
}

// Config controls which files are watched
type Config struct {
	TagFileNames []string               // base names that count as tag files
	Recursive    bool                   // watch directories below the root
	SkipDir      func(name string) bool // directory base names never watched; nil skips none
	Debounce     time.Duration          // default DefaultDebounce
}

// Watcher watches a project tree and reports batches of tag file changes
type Watcher struct {
	root      string
	names     map[string]bool
	recursive bool
	skip      func(name string) bool
	debounce  time.Duration
	onChange  func(context.Context, []Event)
	logger    *slog.Logger

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]Event
	timer   *time.Timer
	flush   chan struct{}
}

// New creates a watcher over root. onChange runs on the watcher's goroutine,
// so batches never overlap.
func New(root string, cfg Config, onChange func(context.Context, []Event), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	if len(cfg.TagFileNames) == 0 {
		return nil, fmt.Errorf("no tag file names to watch")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		root:      absRoot,
		names:     toSet(cfg.TagFileNames),
		recursive: cfg.Recursive,
		skip:      cfg.SkipDir,
		debounce:  cfg.Debounce,
		onChange:  onChange,
		logger:    logger,
		fsw:       fsw,
		pending:   make(map[string]Event),
		flush:     make(chan struct{}, 1),
	}
	if err := w.addTree(absRoot); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Watch runs a watcher over root until ctx is cancelled
func Watch(ctx context.Context, root string, cfg Config, onChange func(context.Context, []Event), logger *slog.Logger) error {
	w, err := New(root, cfg, onChange, logger)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// Run processes file system events until ctx is cancelled, then closes the
// watcher. Pending events are dropped on shutdown.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		_ = w.fsw.Close()
	}()

	w.logger.Info("watch.start", "root", w.root)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch.error", "error", err)

		case <-w.flush:
			if events := w.takePending(); len(events) > 0 && w.onChange != nil {
				w.logger.Debug("watch.flush", "events", len(events))
				w.onChange(ctx, events)
			}
		}
	}
}

// addTree watches dir and, when recursive, every directory below it that
// is not skipped
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (!w.recursive || w.skipDir(d.Name())) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			w.logger.Warn("watch.add_failed", "dir", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) skipDir(name string) bool {
	return w.skip != nil && w.skip(name)
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.recursive && !w.skipDir(filepath.Base(event.Name)) {
				if err := w.addTree(event.Name); err != nil {
					w.logger.Warn("watch.add_failed", "dir", event.Name, "error", err)
				}
			}
			return
		}
	}
	if !w.names[filepath.Base(event.Name)] {
		return
	}

	var operation string
	switch {
	case event.Has(fsnotify.Write):
		operation = "write"
	case event.Has(fsnotify.Create):
		operation = "create"
	case event.Has(fsnotify.Remove):
		operation = "remove"
	case event.Has(fsnotify.Rename):
		operation = "rename"
	default:
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[event.Name] = Event{Path: event.Name, Operation: operation, Timestamp: time.Now()}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.flush <- struct{}{}:
		default:
		}
	})
}

// takePending drains pending events sorted by path
func (w *Watcher) takePending() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	events := make([]Event, 0, len(w.pending))
	for _, e := range w.pending {
		events = append(events, e)
	}
	w.pending = make(map[string]Event)
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
