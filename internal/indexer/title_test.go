package indexer

import "testing"

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		filename string
		want     string
	}{
		{
			name:     "first h1 wins",
			content:  "## Intro\n\n# Main\n\n# Second",
			filename: "doc.md",
			want:     "Main",
		},
		{
			name:     "h2 when no h1",
			content:  "## First H2\n\nContent\n\n## Second H2",
			filename: "h2-title.md",
			want:     "First H2",
		},
		{
			name:     "inline markup is flattened",
			content:  "# The *quick* `fox`\n",
			filename: "fox.md",
			want:     "The quick fox",
		},
		{
			name:     "no headings uses filename",
			content:  "Just some content without headings.",
			filename: "notes/no headings.md",
			want:     "No Headings",
		},
		{
			name:     "empty content uses filename",
			content:  "",
			filename: "empty.md",
			want:     "Empty",
		},
		{
			name:     "code files are not parsed",
			content:  "# not a heading in python\nprint(1)\n",
			filename: "src/main.py",
			want:     "Main",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTitle([]byte(tt.content), tt.filename)
			if got != tt.want {
				t.Errorf("ExtractTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractTitleFromFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{
			name:     "simple filename",
			filename: "test.md",
			want:     "Test",
		},
		{
			name:     "filename with spaces",
			filename: "my test file.md",
			want:     "My Test File",
		},
		{
			name:     "filename with underscores",
			filename: "my_test_file.md",
			want:     "My_test_file",
		},
		{
			name:     "filename without extension",
			filename: "test",
			want:     "Test",
		},
		{
			name:     "path with directory",
			filename: "folder/test.md",
			want:     "Test",
		},
		{
			name:     "dotfile keeps its name",
			filename: ".env",
			want:     ".env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractTitleFromFilename(tt.filename)
			if got != tt.want {
				t.Errorf("extractTitleFromFilename(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
