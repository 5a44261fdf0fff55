package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  ContentType
	}{
		{"cjk beats everything", "search for 東京", Cjk},
		{"cjk with identifiers", "parseConfig 関数", Cjk},
		{"hangul", "검색", Cjk},
		{"fullwidth punctuation", "hello！", Cjk},
		{"camel case", "where is getUserName defined", Code},
		{"pascal case", "HttpServer timeout", Code},
		{"snake case", "parse_config errors", Code},
		{"screaming snake", "what sets MAX_RETRIES", Code},
		{"mixed snake is not code", "Mixed_Case", Text},
		{"plain english", "how do I configure logging", Text},
		{"capitalised sentence", "The Quick Brown Fox", Text},
		{"all caps word", "HTTP timeout", Text},
		{"dunder alone", "__init__", Text},
		{"empty", "", Text},
		{"digits in snake part", "v1_2", Text},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyQuery(tt.query))
		})
	}
}

func TestClassifyQuery_Deterministic(t *testing.T) {
	for _, q := range []string{"search for 東京", "getUser", "plain words"} {
		first := ClassifyQuery(q)
		for i := 0; i < 10; i++ {
			require.Equal(t, first, ClassifyQuery(q), "query %q", q)
		}
	}
}

func TestClassifyPath(t *testing.T) {
	tests := []struct {
		path string
		want ContentType
	}{
		{"/src/main.go", Code},
		{"lib/mod.rs", Code},
		{"/repo/Makefile", Code},
		{"/repo/Dockerfile", Code},
		{"/notes/東京.md", Text},
		{"/docs/README", Text},
		{"/docs/guide.txt", Text},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPath(tt.path))
		})
	}
}

func TestRecommendedModel(t *testing.T) {
	assert.Equal(t, JinaColbert, RecommendedModel(Cjk))
	assert.Equal(t, UniXcoder, RecommendedModel(Code))
	assert.Equal(t, Xtr, RecommendedModel(Text))
}

func TestDetectCorpusModel(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  EmbeddingModel
	}{
		{"empty uses default", nil, DefaultModel},
		{"all code", []string{"a.go", "b.rs"}, UniXcoder},
		{"exactly half is not enough", []string{"a.go", "b.md"}, Xtr},
		{"majority code", []string{"a.go", "b.py", "c.md"}, UniXcoder},
		{"cjk docs are still text", []string{"東京.md", "大阪.md", "a.go"}, Xtr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectCorpusModel(tt.paths))
		})
	}
}

func TestParseModel(t *testing.T) {
	for _, m := range AllModels() {
		got, err := ParseModel(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	got, err := ParseModel("JINA_COLBERT")
	require.NoError(t, err)
	assert.Equal(t, JinaColbert, got)

	_, err = ParseModel("bert")
	assert.Error(t, err)

	assert.False(t, EmbeddingModel(42).Valid())
	assert.Equal(t, "model(42)", EmbeddingModel(42).String())
}

func TestEmbeddingModel_TextRoundTrip(t *testing.T) {
	var m EmbeddingModel
	require.NoError(t, m.UnmarshalText([]byte("unixcoder")))
	assert.Equal(t, UniXcoder, m)

	text, err := JinaCode.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "jina-code", string(text))
}
