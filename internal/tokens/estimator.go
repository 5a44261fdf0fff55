// Package tokens estimates how many model tokens a piece of text occupies.
package tokens

import (
	"fmt"
	"sync"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// RunesPerToken is the average number of non-CJK runes per token.
const RunesPerToken = 4

// Estimator maps text to a token count.
// Implementations must be deterministic and safe for concurrent use.
type Estimator interface {
	Count(text string) int
}

// Heuristic is the default estimator. Each CJK rune counts as one token and
// every maximal run of other runes counts ceil(runes/4) tokens.
type Heuristic struct{}

// Count implements Estimator.
func (Heuristic) Count(text string) int {
	if text == "" {
		return 0
	}

	total := 0
	run := 0
	for _, r := range text {
		if IsCJK(r) {
			total += (run + RunesPerToken - 1) / RunesPerToken
			run = 0
			total++
			continue
		}
		run++
	}
	total += (run + RunesPerToken - 1) / RunesPerToken
	return total
}

// IsCJK reports whether r belongs to a CJK script or CJK punctuation block.
func IsCJK(r rune) bool {
	switch {
	case unicode.Is(unicode.Han, r),
		unicode.Is(unicode.Hiragana, r),
		unicode.Is(unicode.Katakana, r),
		unicode.Is(unicode.Hangul, r),
		unicode.Is(unicode.Bopomofo, r):
		return true
	case r >= 0x3000 && r <= 0x303F: // CJK symbols and punctuation
		return true
	case r >= 0xFF00 && r <= 0xFFEF: // halfwidth and fullwidth forms
		return true
	}
	return false
}

// Tiktoken counts tokens with a BPE encoding.
// The encoding tables are fetched on first use, so construction may fail
// when the machine is offline.
type Tiktoken struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// DefaultEncoding is used when NewTiktoken is given an empty name.
const DefaultEncoding = "cl100k_base"

// NewTiktoken loads the named encoding.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Count implements Estimator.
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	// Encode keeps an internal cache that is not goroutine-safe.
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// New returns the estimator for a configured tokenizer name.
// "heuristic" or "" selects Heuristic; anything else is treated as a
// tiktoken encoding name.
func New(name string) (Estimator, error) {
	switch name {
	case "", "heuristic":
		return Heuristic{}, nil
	default:
		return NewTiktoken(name)
	}
}
