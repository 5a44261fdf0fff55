package indexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"codeindex/internal/tokens"
)

// span is a byte range [start, end) within a block's content.
type span struct {
	start, end int
}

// window is one piece of an oversized block.
type window struct {
	span
}

// windows splits the content of an oversized non-structural block into
// pieces whose header-decorated form fits MaxTokens. Consecutive windows
// share up to OverlapTokens of trailing text.
func (c *Chunker) windows(content, prefix string) []window {
	budget := c.cfg.MaxTokens - c.est.Count(prefix)
	if budget < 1 {
		budget = 1
	}
	units := splitUnits(content, budget, c.est)
	if len(units) == 0 {
		return nil
	}

	fits := func(s, e int) bool {
		return c.est.Count(prefix+content[units[s].start:units[e].end]) <= c.cfg.MaxTokens
	}

	var out []window
	start, prevEnd := 0, -1
	for start < len(units) {
		end := start
		for end+1 < len(units) && fits(start, end+1) {
			end++
		}
		if end <= prevEnd {
			// the overlap alone filled the window; restart without it
			start = prevEnd + 1
			continue
		}

		w := window{span: span{start: units[start].start, end: units[end].end}}
		w.end = trimRightEnd(content, w.start, w.end)
		out = append(out, w)

		if end == len(units)-1 {
			break
		}
		prevEnd = end
		next := end + 1
		if c.cfg.OverlapTokens > 0 {
			for next-1 > start && c.est.Count(content[units[next-1].start:units[end].end]) <= c.cfg.OverlapTokens {
				next--
			}
		}
		start = next
	}
	return out
}

// splitUnits cuts content into contiguous units: whole lines when they fit
// the budget, otherwise words, otherwise rune runs.
func splitUnits(content string, budget int, est tokens.Estimator) []span {
	var units []span
	lineStart := 0
	for lineStart <= len(content) {
		lineEnd := strings.IndexByte(content[lineStart:], '\n')
		if lineEnd < 0 {
			lineEnd = len(content)
		} else {
			lineEnd += lineStart
		}

		if est.Count(content[lineStart:lineEnd]) <= budget {
			units = append(units, span{lineStart, lineEnd})
		} else {
			for _, w := range splitWords(content, lineStart, lineEnd) {
				if est.Count(content[w.start:w.end]) <= budget {
					units = append(units, w)
					continue
				}
				units = append(units, splitRunes(content, w, budget, est)...)
			}
		}

		if lineEnd == len(content) {
			break
		}
		lineStart = lineEnd + 1
	}
	return units
}

// splitWords cuts [start, end) at the beginning of each word. Each piece
// keeps its trailing whitespace; the first keeps any leading indentation.
func splitWords(content string, start, end int) []span {
	var pieces []span
	pieceStart := start
	inSpace := false
	for i, r := range content[start:end] {
		off := start + i
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && off > pieceStart {
			pieces = append(pieces, span{pieceStart, off})
			pieceStart = off
		}
		inSpace = false
	}
	pieces = append(pieces, span{pieceStart, end})
	return pieces
}

// splitRunes cuts s into the longest rune-aligned prefixes that fit budget.
func splitRunes(content string, s span, budget int, est tokens.Estimator) []span {
	var pieces []span
	start := s.start
	for start < s.end {
		// binary search the number of runes that still fits
		text := content[start:s.end]
		n := utf8.RuneCountInString(text)
		lo, hi := 1, n
		for lo < hi {
			mid := (lo + hi + 1) / 2
			if est.Count(text[:runeOffset(text, mid)]) <= budget {
				lo = mid
			} else {
				hi = mid - 1
			}
		}
		end := start + runeOffset(text, lo)
		pieces = append(pieces, span{start, end})
		start = end
	}
	return pieces
}

// runeOffset returns the byte offset of the n-th rune in s.
func runeOffset(s string, n int) int {
	i := 0
	for off := range s {
		if i == n {
			return off
		}
		i++
	}
	return len(s)
}

func trimRightEnd(content string, start, end int) int {
	trimmed := strings.TrimRightFunc(content[start:end], unicode.IsSpace)
	if trimmed == "" {
		return end
	}
	return start + len(trimmed)
}
