// Package filetypes holds the extension and filename tables used to decide
// whether a file is source code and whether it is worth indexing at all.
package filetypes

import (
	"path/filepath"
	"strings"
)

// codeExtensions are lower-case extensions (with dot) of source files.
var codeExtensions = map[string]struct{}{
	".go": {}, ".rs": {}, ".c": {}, ".h": {}, ".cc": {}, ".cpp": {}, ".cxx": {}, ".hpp": {}, ".hh": {},
	".cs": {}, ".java": {}, ".kt": {}, ".kts": {}, ".scala": {}, ".groovy": {}, ".swift": {},
	".m": {}, ".mm": {}, ".py": {}, ".pyi": {}, ".rb": {}, ".php": {}, ".pl": {}, ".pm": {},
	".lua": {}, ".r": {}, ".jl": {}, ".dart": {}, ".ex": {}, ".exs": {}, ".erl": {}, ".hrl": {},
	".hs": {}, ".ml": {}, ".mli": {}, ".fs": {}, ".fsx": {}, ".clj": {}, ".cljs": {}, ".elm": {},
	".js": {}, ".jsx": {}, ".mjs": {}, ".cjs": {}, ".ts": {}, ".tsx": {}, ".vue": {}, ".svelte": {},
	".sh": {}, ".bash": {}, ".zsh": {}, ".fish": {}, ".ps1": {}, ".bat": {}, ".cmd": {},
	".sql": {}, ".proto": {}, ".graphql": {}, ".zig": {}, ".nim": {}, ".v": {}, ".sv": {},
	".vhd": {}, ".asm": {}, ".s": {}, ".cmake": {}, ".gradle": {}, ".tf": {}, ".nix": {},
	".sol": {}, ".wgsl": {}, ".glsl": {}, ".hlsl": {}, ".cu": {},
}

// codeFilenames are build and tooling files without a telling extension.
var codeFilenames = map[string]struct{}{
	"makefile": {}, "gnumakefile": {}, "dockerfile": {}, "containerfile": {},
	"cmakelists.txt": {}, "jenkinsfile": {}, "rakefile": {}, "gemfile": {},
	"vagrantfile": {}, "justfile": {}, "build": {}, "build.bazel": {}, "workspace": {},
}

// documentExtensions are text formats that are indexed but are not code.
var documentExtensions = map[string]struct{}{
	".md": {}, ".markdown": {}, ".mdx": {}, ".txt": {}, ".rst": {}, ".adoc": {}, ".asciidoc": {},
	".org": {}, ".tex": {}, ".html": {}, ".htm": {}, ".xml": {}, ".json": {}, ".jsonl": {},
	".yaml": {}, ".yml": {}, ".toml": {}, ".ini": {}, ".cfg": {}, ".conf": {}, ".csv": {},
	".tsv": {}, ".css": {}, ".scss": {}, ".less": {}, ".env": {}, ".properties": {},
	".pdf": {}, ".epub": {}, ".dcm": {}, ".ipynb": {},
}

// conventionFilenames are extensionless files that carry project documentation.
var conventionFilenames = map[string]struct{}{
	"readme": {}, "license": {}, "licence": {}, "copying": {}, "authors": {}, "contributors": {},
	"changelog": {}, "changes": {}, "notice": {}, "todo": {}, "codeowners": {}, "procfile": {},
}

// IsCode reports whether path names a source-code file, by extension or by
// a well-known filename such as Makefile or Dockerfile.
func IsCode(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if _, ok := codeFilenames[base]; ok {
		return true
	}
	if strings.HasPrefix(base, "dockerfile.") || strings.HasSuffix(base, ".dockerfile") {
		return true
	}
	_, ok := codeExtensions[strings.ToLower(filepath.Ext(base))]
	return ok
}

// IsIndexable reports whether the file name alone qualifies for indexing:
// code, a known document format, or a convention file like README.
func IsIndexable(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if IsEditorArtifact(base) {
		return false
	}
	if IsCode(base) {
		return true
	}
	ext := filepath.Ext(base)
	if _, ok := documentExtensions[ext]; ok {
		return true
	}
	_, ok := conventionFilenames[base]
	return ok
}

// IsEditorArtifact reports whether base looks like a swap, backup or lock
// file written by an editor.
func IsEditorArtifact(base string) bool {
	switch {
	case strings.HasSuffix(base, "~"),
		strings.HasPrefix(base, ".#"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swo"),
		strings.HasSuffix(base, ".swx"),
		strings.HasSuffix(base, ".tmp"),
		strings.HasSuffix(base, ".bak"),
		base == "4913":
		return true
	}
	return false
}
