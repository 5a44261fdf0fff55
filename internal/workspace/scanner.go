package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"codeindex/internal/watcher"
)

// ScannedFile represents an indexable file found during a root scan.
type ScannedFile struct {
	Root    string // Canonical root the file was found under
	RelPath string // Relative path from root, forward slashes (e.g., "cmd/main.go")
	AbsPath string // Absolute file path
}

// Scanner walks watch roots and collects the files the watcher would accept.
type Scanner struct {
	filter *watcher.Filter
}

// NewScanner creates a scanner. A nil filter selects watcher.DefaultFilter.
func NewScanner(filter *watcher.Filter) *Scanner {
	if filter == nil {
		filter = watcher.DefaultFilter()
	}
	return &Scanner{filter: filter}
}

// ScanAll scans every root and returns the indexable files, sorted by
// absolute path. A file under two overlapping roots is returned once.
func (s *Scanner) ScanAll(ctx context.Context, roots []string) ([]ScannedFile, error) {
	var scannedFiles []ScannedFile
	seen := make(map[string]struct{})

	for _, root := range roots {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return fmt.Errorf("failed to access path %s: %w", path, err)
			}

			if d.IsDir() {
				if path != root && watcher.IsSkipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !s.filter.AllowIn(root, path) {
				return nil
			}
			if _, ok := seen[path]; ok {
				return nil
			}

			relPath, err := filepath.Rel(root, path)
			if err != nil {
				return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
			}

			seen[path] = struct{}{}
			scannedFiles = append(scannedFiles, ScannedFile{
				Root:    root,
				RelPath: filepath.ToSlash(relPath),
				AbsPath: path,
			})
			return nil
		})
		if err != nil {
			return scannedFiles, fmt.Errorf("failed to scan root %s: %w", root, err)
		}
	}

	sort.Slice(scannedFiles, func(i, j int) bool {
		return scannedFiles[i].AbsPath < scannedFiles[j].AbsPath
	})
	return scannedFiles, nil
}
