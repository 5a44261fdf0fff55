package indexer

import (
	"strings"
	"unicode"
)

// BlockKind is the structural type of a run of lines.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeader
	BlockCodeFence
	BlockTable
	BlockList
	BlockBlockquote
)

func (k BlockKind) String() string {
	switch k {
	case BlockHeader:
		return "header"
	case BlockCodeFence:
		return "code_fence"
	case BlockTable:
		return "table"
	case BlockList:
		return "list"
	case BlockBlockquote:
		return "blockquote"
	default:
		return "paragraph"
	}
}

// Block is a typed, contiguous line range of a document.
type Block struct {
	Kind      BlockKind
	Level     int    // headers only, 1-6
	Title     string // headers only
	Language  string // code fences only, lower-cased, "" when absent
	StartLine int    // 0-based, inclusive
	EndLine   int    // 0-based, inclusive
	Content   string // lines StartLine..EndLine joined with "\n"
}

// Segmenter splits a document into blocks. It owns the line array and walks
// it with an index cursor, so scanning can be restarted from any line.
type Segmenter struct {
	lines []string
	pos   int
}

// NewSegmenter creates a segmenter positioned at the first line of text.
func NewSegmenter(text string) *Segmenter {
	var lines []string
	if text != "" {
		lines = strings.Split(text, "\n")
	}
	return &Segmenter{lines: lines}
}

// Lines returns the number of lines in the document.
func (s *Segmenter) Lines() int {
	return len(s.lines)
}

// Position returns the index of the next line to be scanned.
func (s *Segmenter) Position() int {
	return s.pos
}

// Seek moves the cursor to line, clamped to the document.
func (s *Segmenter) Seek(line int) {
	switch {
	case line < 0:
		s.pos = 0
	case line > len(s.lines):
		s.pos = len(s.lines)
	default:
		s.pos = line
	}
}

// Blocks returns every remaining block.
func (s *Segmenter) Blocks() []Block {
	var blocks []Block
	for {
		b, ok := s.Next()
		if !ok {
			return blocks
		}
		blocks = append(blocks, b)
	}
}

// Next returns the next block, or false at end of document.
// Blank lines between blocks are skipped.
func (s *Segmenter) Next() (Block, bool) {
	for s.pos < len(s.lines) && isBlank(s.lines[s.pos]) {
		s.pos++
	}
	if s.pos >= len(s.lines) {
		return Block{}, false
	}

	start := s.pos
	line := s.lines[start]

	if level, title, ok := parseHeader(line); ok {
		s.pos = start + 1
		return s.block(Block{Kind: BlockHeader, Level: level, Title: title}, start, start), true
	}
	if lang, ok := parseFenceOpen(line); ok {
		end := s.fenceEnd(start)
		s.pos = end + 1
		return s.block(Block{Kind: BlockCodeFence, Language: lang}, start, end), true
	}
	if isTableRow(line) {
		end := start
		for end+1 < len(s.lines) && isTableRow(s.lines[end+1]) {
			end++
		}
		s.pos = end + 1
		return s.block(Block{Kind: BlockTable}, start, end), true
	}
	if isListItem(line) {
		end := s.listEnd(start)
		s.pos = end + 1
		return s.block(Block{Kind: BlockList}, start, end), true
	}
	if isBlockquote(line) {
		end := s.quoteEnd(start)
		s.pos = end + 1
		return s.block(Block{Kind: BlockBlockquote}, start, end), true
	}

	end := start
	for end+1 < len(s.lines) {
		next := s.lines[end+1]
		if isBlank(next) || startsConstruct(next) {
			break
		}
		end++
	}
	s.pos = end + 1
	return s.block(Block{Kind: BlockParagraph}, start, end), true
}

func (s *Segmenter) block(b Block, start, end int) Block {
	b.StartLine = start
	b.EndLine = end
	b.Content = strings.Join(s.lines[start:end+1], "\n")
	return b
}

// fenceEnd returns the closing fence line, or the last line when unclosed.
func (s *Segmenter) fenceEnd(open int) int {
	for i := open + 1; i < len(s.lines); i++ {
		if isFenceDelimiter(s.lines[i]) {
			return i
		}
	}
	return len(s.lines) - 1
}

// listEnd absorbs list items, indented continuation lines and single blank
// lines. Two blank lines in a row, or any other line, end the list.
func (s *Segmenter) listEnd(start int) int {
	last := start
	i := start + 1
	for i < len(s.lines) {
		line := s.lines[i]
		switch {
		case isBlank(line):
			if i+1 < len(s.lines) && isBlank(s.lines[i+1]) {
				return last
			}
			i++
		case isListItem(line):
			last = i
			i++
		case isContinuation(line):
			if _, ok := parseFenceOpen(line); ok {
				// keep an indented fence whole inside the item
				last = s.fenceEnd(i)
				i = last + 1
				continue
			}
			last = i
			i++
		default:
			return last
		}
	}
	return last
}

// quoteEnd absorbs quote lines and blank lines up to the first other line.
func (s *Segmenter) quoteEnd(start int) int {
	last := start
	for i := start + 1; i < len(s.lines); i++ {
		line := s.lines[i]
		if isBlank(line) {
			continue
		}
		if !isBlockquote(line) {
			break
		}
		last = i
	}
	return last
}

func trimLeft(line string) string {
	return strings.TrimLeftFunc(line, unicode.IsSpace)
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// parseHeader accepts 1-6 '#' followed by a space and non-empty text.
func parseHeader(line string) (int, string, bool) {
	t := trimLeft(line)
	level := 0
	for level < len(t) && t[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level >= len(t) || t[level] != ' ' {
		return 0, "", false
	}
	title := strings.TrimSpace(t[level+1:])
	if title == "" {
		return 0, "", false
	}
	return level, title, true
}

func isFenceDelimiter(line string) bool {
	return strings.HasPrefix(trimLeft(line), "```")
}

// parseFenceOpen returns the lower-cased language tag of a fence opener.
func parseFenceOpen(line string) (string, bool) {
	t := trimLeft(line)
	if !strings.HasPrefix(t, "```") {
		return "", false
	}
	info := strings.TrimLeft(t, "`")
	fields := strings.FieldsFunc(info, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
	if len(fields) == 0 {
		return "", true
	}
	return strings.ToLower(fields[0]), true
}

func isTableRow(line string) bool {
	t := strings.TrimSpace(line)
	return len(t) >= 2 && t[0] == '|' && t[len(t)-1] == '|'
}

func isListItem(line string) bool {
	t := trimLeft(line)
	if strings.HasPrefix(t, "- ") || strings.HasPrefix(t, "* ") || strings.HasPrefix(t, "+ ") {
		return true
	}
	digits := 0
	for digits < len(t) && t[digits] >= '0' && t[digits] <= '9' {
		digits++
	}
	if digits == 0 || digits >= len(t) || t[digits] != '.' {
		return false
	}
	rest := t[digits+1:]
	return rest == "" || rest[0] == ' ' || strings.TrimSpace(rest) == ""
}

func isContinuation(line string) bool {
	return strings.HasPrefix(line, "  ") && !isBlank(line)
}

func isBlockquote(line string) bool {
	return strings.HasPrefix(trimLeft(line), ">")
}

func startsConstruct(line string) bool {
	if _, _, ok := parseHeader(line); ok {
		return true
	}
	if _, ok := parseFenceOpen(line); ok {
		return true
	}
	return isTableRow(line) || isListItem(line) || isBlockquote(line)
}
