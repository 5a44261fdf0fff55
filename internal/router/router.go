// Package router classifies paths and queries and maps them to the
// embedding model family best suited to them. Every function is pure.
package router

import (
	"strings"
	"unicode"

	"codeindex/internal/filetypes"
	"codeindex/internal/tokens"
)

// ContentType is the routing class of a path or query.
type ContentType int

const (
	Text ContentType = iota
	Code
	Cjk
)

func (c ContentType) String() string {
	switch c {
	case Code:
		return "code"
	case Cjk:
		return "cjk"
	default:
		return "text"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c ContentType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ClassifyPath routes by extension or well-known filename only.
func ClassifyPath(path string) ContentType {
	if filetypes.IsCode(path) {
		return Code
	}
	return Text
}

// ClassifyQuery returns Cjk if the query contains any CJK rune, otherwise
// Code if any token looks like an identifier, otherwise Text.
func ClassifyQuery(query string) ContentType {
	for _, r := range query {
		if tokens.IsCJK(r) {
			return Cjk
		}
	}
	for _, tok := range strings.FieldsFunc(query, notIdentRune) {
		if IsCodeIdentifier(tok) {
			return Code
		}
	}
	return Text
}

func notIdentRune(r rune) bool {
	return !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
}

// IsCodeIdentifier reports whether tok is written in camelCase,
// snake_case or SCREAMING_SNAKE_CASE.
func IsCodeIdentifier(tok string) bool {
	return isCamelCase(tok) || isSnakeCase(tok)
}

// isCamelCase matches a lower-case letter directly followed by an
// upper-case one, as in getUser or HttpServer.
func isCamelCase(tok string) bool {
	prevLower := false
	for _, r := range tok {
		if prevLower && unicode.IsUpper(r) {
			return true
		}
		prevLower = unicode.IsLower(r)
	}
	return false
}

// isSnakeCase matches letters joined by underscores in one case, as in
// parse_config or MAX_SIZE. Leading or trailing underscores alone do not
// count.
func isSnakeCase(tok string) bool {
	parts := strings.Split(strings.Trim(tok, "_"), "_")
	if len(parts) < 2 {
		return false
	}

	hasUpper, hasLower := false, false
	for _, part := range parts {
		if part == "" {
			continue
		}
		letter := false
		for _, r := range part {
			switch {
			case unicode.IsUpper(r):
				hasUpper, letter = true, true
			case unicode.IsLower(r):
				hasLower, letter = true, true
			}
		}
		if !letter {
			return false
		}
	}
	return hasUpper != hasLower
}

// RecommendedModel is the fixed mapping from content type to model.
func RecommendedModel(ct ContentType) EmbeddingModel {
	switch ct {
	case Cjk:
		return JinaColbert
	case Code:
		return UniXcoder
	default:
		return Xtr
	}
}

// DetectCorpusModel picks one model for a whole file set: UniXcoder when
// more than half of the paths are code, Xtr otherwise.
func DetectCorpusModel(paths []string) EmbeddingModel {
	if len(paths) == 0 {
		return DefaultModel
	}
	code := 0
	for _, p := range paths {
		if ClassifyPath(p) == Code {
			code++
		}
	}
	if float64(code)/float64(len(paths)) > 0.5 {
		return UniXcoder
	}
	return Xtr
}
