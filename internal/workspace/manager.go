// Package workspace keeps the set of watch roots and scans them.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"codeindex/internal/contextutil"
	"codeindex/internal/storage"
	"codeindex/internal/watcher"
)

// RootWatcher is the part of the change watcher the manager drives.
type RootWatcher interface {
	Watch(dir string) error
	Unwatch(dir string) error
}

// Manager persists watch roots and keeps the watcher in sync with them.
type Manager struct {
	rootRepo storage.RootStore
	watcher  RootWatcher
	scanner  *Scanner

	mu    sync.RWMutex
	roots map[string]storage.RootRecord // Cache roots by canonical path
}

// NewManager restores the stored roots, adds initial, and starts watching
// all of them. Stored roots that no longer exist are logged and skipped.
func NewManager(ctx context.Context, rootRepo storage.RootStore, w RootWatcher, scanner *Scanner, initial []string) (*Manager, error) {
	logger := contextutil.LoggerFromContext(ctx)
	if scanner == nil {
		scanner = NewScanner(nil)
	}

	m := &Manager{
		rootRepo: rootRepo,
		watcher:  w,
		scanner:  scanner,
		roots:    make(map[string]storage.RootRecord),
	}

	stored, err := rootRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load roots: %w", err)
	}
	for _, root := range stored {
		if err := w.Watch(root.Path); err != nil {
			logger.WarnContext(ctx, "skipping stored root", "root", root.Path, "error", err)
			continue
		}
		m.roots[root.Path] = root
	}

	for _, dir := range initial {
		if _, err := m.Add(ctx, dir); err != nil {
			return nil, fmt.Errorf("failed to add root %s: %w", dir, err)
		}
	}

	return m, nil
}

// Add canonicalises dir, stores it and starts watching it. Adding a known
// root returns its existing record.
func (m *Manager) Add(ctx context.Context, dir string) (storage.RootRecord, error) {
	path, err := watcher.Canonicalize(dir)
	if err != nil {
		return storage.RootRecord{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if root, ok := m.roots[path]; ok {
		return root, nil
	}

	root, err := m.rootRepo.Add(ctx, path)
	if err != nil {
		return storage.RootRecord{}, fmt.Errorf("failed to store root: %w", err)
	}
	if err := m.watcher.Watch(path); err != nil {
		return storage.RootRecord{}, fmt.Errorf("failed to watch root: %w", err)
	}

	m.roots[path] = *root
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "root added", "root", path)
	return *root, nil
}

// Remove stops watching dir and forgets it. Returns storage.ErrNotFound for
// unknown roots.
func (m *Manager) Remove(ctx context.Context, dir string) error {
	path, err := watcher.Canonicalize(dir)
	if err != nil {
		// the directory may already be gone
		abs, absErr := filepath.Abs(dir)
		if absErr != nil {
			return err
		}
		path = filepath.Clean(abs)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.rootRepo.Remove(ctx, path); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to remove root: %w", err)
	}
	delete(m.roots, path)

	if err := m.watcher.Unwatch(path); err != nil {
		return fmt.Errorf("failed to unwatch root: %w", err)
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "root removed", "root", path)
	return nil
}

// List returns the active roots ordered by path.
func (m *Manager) List() []storage.RootRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roots := make([]storage.RootRecord, 0, len(m.roots))
	for _, root := range m.roots {
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Path < roots[j].Path })
	return roots
}

// Paths returns the active root paths, sorted.
func (m *Manager) Paths() []string {
	roots := m.List()
	paths := make([]string, len(roots))
	for i, root := range roots {
		paths[i] = root.Path
	}
	return paths
}

// Contains reports whether path lies under an active root.
func (m *Manager) Contains(path string) bool {
	for _, root := range m.Paths() {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !startsWithParent(rel) {
			return true
		}
	}
	return false
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:2] == ".." && rel[2] == filepath.Separator
}

// ScanAll scans all active roots.
func (m *Manager) ScanAll(ctx context.Context) ([]ScannedFile, error) {
	return m.scanner.ScanAll(ctx, m.Paths())
}
