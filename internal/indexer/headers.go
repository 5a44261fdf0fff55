package indexer

import (
	"fmt"
	"strings"
)

// headingInfo tracks heading level and text for building heading paths.
type headingInfo struct {
	Level int
	Title string
}

// HeaderStack is the path of currently open sections, outermost first.
// Levels are strictly increasing from bottom to top.
type HeaderStack struct {
	entries []headingInfo
}

// Enter opens a section of the given level. Every open section of the same
// or a deeper level is closed first, so a new H2 closes a sibling H2 and any
// H3 below it but leaves the enclosing H1 open.
func (s *HeaderStack) Enter(level int, title string) {
	for len(s.entries) > 0 && s.entries[len(s.entries)-1].Level >= level {
		s.entries = s.entries[:len(s.entries)-1]
	}
	s.entries = append(s.entries, headingInfo{Level: level, Title: title})
}

// Len returns the number of open sections.
func (s *HeaderStack) Len() int {
	return len(s.entries)
}

// Levels returns the open levels, outermost first.
func (s *HeaderStack) Levels() []int {
	levels := make([]int, len(s.entries))
	for i, h := range s.entries {
		levels[i] = h.Level
	}
	return levels
}

// Titles returns the open titles, outermost first.
func (s *HeaderStack) Titles() []string {
	titles := make([]string, len(s.entries))
	for i, h := range s.entries {
		titles[i] = h.Title
	}
	return titles
}

// Breadcrumb renders the stack on one line.
// Format: "# Heading1 > ## Heading2 > ### Heading3"
func (s *HeaderStack) Breadcrumb() string {
	return s.render(" > ")
}

// Markdown renders the stack as one header line per entry.
func (s *HeaderStack) Markdown() string {
	return s.render("\n")
}

func (s *HeaderStack) render(sep string) string {
	if len(s.entries) == 0 {
		return ""
	}

	parts := make([]string, len(s.entries))
	for i, h := range s.entries {
		hashes := strings.Repeat("#", h.Level)
		parts[i] = fmt.Sprintf("%s %s", hashes, h.Title)
	}

	return strings.Join(parts, sep)
}
