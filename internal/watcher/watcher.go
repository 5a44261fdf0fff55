// Package watcher turns bursty filesystem notifications into a debounced
// stream of per-file change events.
package watcher

import (
	"context"
	"errors"
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

// DefaultDebounce is how long a path must stay quiet before it is emitted.
const DefaultDebounce = 500 * time.Millisecond

// ErrNotDirectory is returned when a watch root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

type pendingEvent struct {
	kind     EventKind
	lastSeen time.Time
}

// Watcher buffers raw events per path and emits them once they settle.
type Watcher struct {
	source   Source
	filter   *Filter
	debounce time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]pendingEvent
	roots   map[string]struct{}
	dirs    map[string]struct{} // every directory registered with the source
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSource replaces the fsnotify source.
func WithSource(s Source) Option {
	return func(w *Watcher) { w.source = s }
}

// WithFilter replaces the default indexability filter.
func WithFilter(f *Filter) Option {
	return func(w *Watcher) { w.filter = f }
}

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// WithLogger sets the logger for dropped events and source errors.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// New creates a watcher with no roots. Without WithSource it opens an
// fsnotify handle.
func New(opts ...Option) (*Watcher, error) {
	w := &Watcher{
		debounce: DefaultDebounce,
		now:      time.Now,
		logger:   slog.Default(),
		pending:  make(map[string]pendingEvent),
		roots:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.filter == nil {
		w.filter = DefaultFilter()
	}
	if w.source == nil {
		src, err := NewFSNotifySource()
		if err != nil {
			return nil, err
		}
		w.source = src
	}
	return w, nil
}

// Close releases the event source.
func (w *Watcher) Close() error {
	return w.source.Close()
}

// Filter returns the indexability filter in use.
func (w *Watcher) Filter() *Filter {
	return w.filter
}

// Canonicalize returns the absolute, symlink-free form of dir and checks
// that it is a directory.
func Canonicalize(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", resolved, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", resolved, ErrNotDirectory)
	}
	return resolved, nil
}

// Watch adds dir and its subdirectories. Watching an already watched root
// is a no-op.
func (w *Watcher) Watch(dir string) error {
	root, err := Canonicalize(dir)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.roots[root]; ok {
		return nil
	}
	if err := w.addTree(root); err != nil {
		return err
	}
	w.roots[root] = struct{}{}
	w.logger.Info("watching root", "root", root)
	return nil
}

// Unwatch removes root dir and stops watching directories that no other
// root covers. Pending events under it are dropped. Unknown roots are a
// no-op.
func (w *Watcher) Unwatch(dir string) error {
	root, err := Canonicalize(dir)
	if err != nil {
		// the directory may already be gone
		abs, absErr := filepath.Abs(dir)
		if absErr != nil {
			return err
		}
		root = filepath.Clean(abs)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.roots[root]; !ok {
		return nil
	}
	delete(w.roots, root)

	for d := range w.dirs {
		if !isWithin(root, d) || w.coveredLocked(d) {
			continue
		}
		if err := w.source.Remove(d); err != nil {
			w.logger.Debug("failed to remove watch", "dir", d, "error", err)
		}
		delete(w.dirs, d)
	}
	for p := range w.pending {
		if isWithin(root, p) && !w.coveredLocked(p) {
			delete(w.pending, p)
		}
	}
	w.logger.Info("unwatched root", "root", root)
	return nil
}

// Roots returns the watched roots, sorted.
func (w *Watcher) Roots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	roots := make([]string, 0, len(w.roots))
	for r := range w.roots {
		roots = append(roots, r)
	}
	sort.Strings(roots)
	return roots
}

// Pending returns the number of paths waiting for their quiet period.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Poll drains the raw events available right now, then returns every path
// that has been quiet for the debounce period, oldest first. It never blocks.
func (w *Watcher) Poll() []FileEvent {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.drainLocked()

	now := w.now()
	type ready struct {
		path string
		pendingEvent
	}
	var due []ready
	for path, p := range w.pending {
		if now.Sub(p.lastSeen) >= w.debounce {
			due = append(due, ready{path: path, pendingEvent: p})
			delete(w.pending, path)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].lastSeen.Equal(due[j].lastSeen) {
			return due[i].lastSeen.Before(due[j].lastSeen)
		}
		return due[i].path < due[j].path
	})

	events := make([]FileEvent, len(due))
	for i, d := range due {
		events[i] = FileEvent{Path: d.path, Kind: d.kind}
	}
	return events
}

// Run polls every interval and passes non-empty batches to handle until
// ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, interval time.Duration, handle func(context.Context, []FileEvent)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if events := w.Poll(); len(events) > 0 {
				handle(ctx, events)
			}
		}
	}
}

func (w *Watcher) drainLocked() {
	for {
		select {
		case ev, ok := <-w.source.Events():
			if !ok {
				return
			}
			w.applyLocked(ev)
		case err, ok := <-w.source.Errors():
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		default:
			return
		}
	}
}

func (w *Watcher) applyLocked(ev fsnotify.Event) {
	kind, ok := kindFromOp(ev.Op)
	if !ok || ev.Name == "" {
		return
	}
	path := filepath.Clean(ev.Name)

	if kind == Created {
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			w.enterDirLocked(path)
			return
		}
	}
	if kind == Deleted {
		if _, ok := w.dirs[path]; ok {
			delete(w.dirs, path)
		}
	}

	w.recordLocked(path, kind)
}

func (w *Watcher) recordLocked(path string, kind EventKind) {
	if !w.filter.AllowIn(w.rootForLocked(path), path) {
		return
	}
	now := w.now()
	if p, ok := w.pending[path]; ok {
		kind = merge(p.kind, kind)
	}
	w.pending[path] = pendingEvent{kind: kind, lastSeen: now}
}

// enterDirLocked starts watching a directory created under a root and
// records the files that appeared in it before the watch was in place.
func (w *Watcher) enterDirLocked(dir string) {
	if IsSkipDir(filepath.Base(dir)) || !w.coveredLocked(dir) {
		return
	}
	if err := w.addTree(dir); err != nil {
		w.logger.Warn("failed to watch new directory", "dir", dir, "error", err)
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && IsSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		w.recordLocked(path, Created)
		return nil
	})
}

// addTree registers dir and its subdirectories with the source, skipping
// skip-list directories. Errors on dir itself are returned; errors below
// it are logged.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("failed to walk %s: %w", dir, err)
			}
			w.logger.Debug("skipping unreadable directory", "dir", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && IsSkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if _, ok := w.dirs[path]; ok {
			return nil
		}
		if err := w.source.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			w.logger.Debug("failed to watch directory", "dir", path, "error", err)
			return nil
		}
		w.dirs[path] = struct{}{}
		return nil
	})
}

// rootForLocked returns the deepest watched root containing path, or "".
func (w *Watcher) rootForLocked(path string) string {
	best := ""
	for root := range w.roots {
		if isWithin(root, path) && len(root) > len(best) {
			best = root
		}
	}
	return best
}

// coveredLocked reports whether path lies under any watched root.
func (w *Watcher) coveredLocked(path string) bool {
	for root := range w.roots {
		if isWithin(root, path) {
			return true
		}
	}
	return false
}
