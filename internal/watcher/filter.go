package watcher

import (
	"os"
	"path/filepath"
	"strings"

	"codeindex/internal/filetypes"
)

// skipDirs are directory names whose contents are never indexed.
var skipDirs = map[string]struct{}{
	"node_modules": {},
	"target":       {},
	"vendor":       {},
	"__pycache__":  {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	".bzr":         {},
	".idea":        {},
	".vscode":      {},
	".vs":          {},
}

// IsSkipDir reports whether a directory with this base name is skipped.
func IsSkipDir(name string) bool {
	_, ok := skipDirs[name]
	return ok
}

// Filter decides which paths are worth indexing.
type Filter struct {
	tempRoots []string
}

// NewFilter returns a filter that rejects everything under tempRoots.
func NewFilter(tempRoots ...string) *Filter {
	f := &Filter{}
	for _, root := range tempRoots {
		if root == "" {
			continue
		}
		f.tempRoots = append(f.tempRoots, filepath.Clean(root))
		if resolved, err := filepath.EvalSymlinks(root); err == nil && resolved != filepath.Clean(root) {
			f.tempRoots = append(f.tempRoots, resolved)
		}
	}
	return f
}

// DefaultFilter rejects the usual OS temp directories.
func DefaultFilter() *Filter {
	return NewFilter(DefaultTempRoots()...)
}

// DefaultTempRoots lists the OS temp directories.
func DefaultTempRoots() []string {
	roots := []string{os.TempDir()}
	for _, r := range []string{"/tmp", "/var/tmp", "/private/tmp", "/private/var/folders"} {
		if r != os.TempDir() {
			roots = append(roots, r)
		}
	}
	return roots
}

// Allow reports whether path may enter the debounce buffer. Paths that no
// longer exist are judged by name alone.
func (f *Filter) Allow(path string) bool {
	return f.AllowIn("", path)
}

// AllowIn is Allow for a path found under the watch root root. Skip-list
// directories only count below the root, so a root such as
// /srv/vendor/lib is still indexed. Temp directories count anywhere. An
// empty root checks the whole path.
func (f *Filter) AllowIn(root, path string) bool {
	if info, err := os.Lstat(path); err == nil && info.IsDir() {
		return false
	}

	dir := filepath.Dir(path)
	if root != "" {
		if !isWithin(root, path) {
			return false
		}
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			return false
		}
		dir = rel
	}
	if f.underTempRoot(path) {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if IsSkipDir(part) {
			return false
		}
	}
	return filetypes.IsIndexable(path)
}

func (f *Filter) underTempRoot(path string) bool {
	for _, root := range f.tempRoots {
		if isWithin(root, path) {
			return true
		}
	}
	return false
}

// isWithin reports whether path is root or lies below it.
func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
