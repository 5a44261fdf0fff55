package indexer

import (
	"log/slog"
	"sort"
	"strings"
)

// lineLocator maps chunk contents back to line ranges of the source
// document. Chunks are anchored at the first line of the block they come
// from, plus their byte offset inside that block.
type lineLocator struct {
	doc    string
	starts []int // byte offset of the first byte of each line
	logger *slog.Logger
}

func newLineLocator(doc string, logger *slog.Logger) *lineLocator {
	starts := []int{0}
	for i := 0; i < len(doc); i++ {
		if doc[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineLocator{doc: doc, starts: starts, logger: logger}
}

// lineAt returns the 0-based line containing byte offset off.
func (l *lineLocator) lineAt(off int) int {
	if off <= 0 {
		return 0
	}
	return sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > off }) - 1
}

// locate returns the inclusive line range of content, expected at byte
// offset off within the block that starts on blockLine.
func (l *lineLocator) locate(content string, blockLine, off int) (int, int) {
	from := len(l.doc)
	if blockLine >= 0 && blockLine < len(l.starts) {
		from = l.starts[blockLine]
	}
	from += off
	if from < 0 {
		from = 0
	}
	if from > len(l.doc) {
		from = len(l.doc)
	}

	if content != "" {
		end := from + len(content)
		if end <= len(l.doc) && l.doc[from:end] == content {
			return l.lineAt(from), l.lineAt(end - 1)
		}
		if idx := strings.Index(l.doc[from:], content); idx >= 0 {
			start := from + idx
			return l.lineAt(start), l.lineAt(start + len(content) - 1)
		}
	}

	// Fall back to an estimate derived from the chunk's own line count.
	startLine := l.lineAt(from)
	endLine := startLine + strings.Count(content, "\n")
	if last := len(l.starts) - 1; endLine > last {
		endLine = last
	}
	l.logger.Debug("chunk line range estimated",
		"start_line", startLine,
		"end_line", endLine,
		"content_bytes", len(content),
	)
	return startLine, endLine
}
