package search

import (
	"strings"
	"unicode"

	"codeindex/internal/tokens"
)

const (
	lexicalLengthScale = float32(10.0)
	maxLexicalScore    = float32(0.4)
	headingMatchBonus  = float32(0.1)
)

var lexicalStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {},
}

// lexicalScore computes a lightweight lexical relevance score for a chunk relative to a query.
// The score is normalized to remain in a predictable range so it can be blended with vector scores.
func lexicalScore(query, chunkText, headerContext string) float32 {
	queryTokens := filterStopwords(tokenize(query))
	if len(queryTokens) == 0 {
		return 0
	}

	chunkTokens := tokenize(chunkText)
	if len(chunkTokens) == 0 {
		return 0
	}

	chunkFreq := make(map[string]int, len(chunkTokens))
	for _, token := range chunkTokens {
		chunkFreq[token]++
	}

	var rawMatches int
	for _, token := range queryTokens {
		rawMatches += chunkFreq[token]
	}

	score := (float32(rawMatches) / (1 + float32(len(chunkTokens)))) * lexicalLengthScale

	if headerContext != "" {
		headingSet := make(map[string]struct{})
		for _, token := range tokenize(headerContext) {
			headingSet[token] = struct{}{}
		}
		var headingMatches int
		for _, token := range queryTokens {
			if _, ok := headingSet[token]; ok {
				headingMatches++
			}
		}
		score += float32(headingMatches) * headingMatchBonus
	}

	if score > maxLexicalScore {
		return maxLexicalScore
	}
	if score < 0 {
		return 0
	}
	return score
}

// tokenize lower-cases text and splits it into words. Identifiers also
// yield their camelCase and snake_case parts, and every CJK rune is a
// token of its own.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var result []string
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	for _, word := range words {
		result = append(result, splitWord(word)...)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func splitWord(word string) []string {
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(word)
	for i, r := range runes {
		switch {
		case tokens.IsCJK(r):
			flush()
			out = append(out, string(r))
		case r == '_':
			flush()
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()

	// keep the whole identifier too so exact matches count double
	if len(out) > 1 && !containsCJK(word) {
		out = append(out, strings.ToLower(strings.ReplaceAll(word, "_", "")))
	}
	return out
}

func containsCJK(s string) bool {
	for _, r := range s {
		if tokens.IsCJK(r) {
			return true
		}
	}
	return false
}

func filterStopwords(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}

	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := lexicalStopwords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
