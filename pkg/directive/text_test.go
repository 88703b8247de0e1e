package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/text"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"emphasis and code", "Hello *big* `code` world\n", "Hello big code world"},
		{"soft break", "line one\nline two\n", "line one\nline two"},
		{"link text", "See [the docs](https://example.com).\n", "See the docs."},
		{"autolink", "<https://example.com>\n", "https://example.com"},
		{"fenced code skipped", "Intro\n\n```\nskip me\n```\n", "Intro"},
		{"raw html skipped", "a <b>bold</b> move\n", "a bold move"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := []byte(tt.src)
			doc := goldmark.New().Parser().Parse(text.NewReader(source))
			assert.Equal(t, tt.want, ExtractText(doc, source))
		})
	}
}
