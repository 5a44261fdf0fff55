package router

import (
	"fmt"
	"strings"
)

// EmbeddingModel identifies an embedding model family.
type EmbeddingModel int

const (
	// Xtr is the general-purpose multilingual text model.
	Xtr EmbeddingModel = iota
	// UniXcoder is trained on source code.
	UniXcoder
	// JinaColbert is the late-interaction model used for CJK text.
	JinaColbert
	// JinaCode is the Jina code model. It is never picked by routing and
	// is only used when forced.
	JinaCode
)

// DefaultModel is used when nothing better can be inferred.
const DefaultModel = Xtr

var modelNames = map[EmbeddingModel]string{
	Xtr:         "xtr",
	UniXcoder:   "unixcoder",
	JinaColbert: "jina-colbert",
	JinaCode:    "jina-code",
}

// AllModels lists every known model in declaration order.
func AllModels() []EmbeddingModel {
	return []EmbeddingModel{Xtr, UniXcoder, JinaColbert, JinaCode}
}

func (m EmbeddingModel) String() string {
	if name, ok := modelNames[m]; ok {
		return name
	}
	return fmt.Sprintf("model(%d)", int(m))
}

// Valid reports whether m is a known model.
func (m EmbeddingModel) Valid() bool {
	_, ok := modelNames[m]
	return ok
}

// ParseModel parses a model name. Matching ignores case, and underscores
// are accepted in place of dashes.
func ParseModel(s string) (EmbeddingModel, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for m, n := range modelNames {
		if n == name {
			return m, nil
		}
	}
	switch name {
	case "jinacolbert", "colbert":
		return JinaColbert, nil
	case "jinacode":
		return JinaCode, nil
	}
	return 0, fmt.Errorf("unknown embedding model %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m EmbeddingModel) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown embedding model %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *EmbeddingModel) UnmarshalText(text []byte) error {
	parsed, err := ParseModel(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
