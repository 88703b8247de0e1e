// Package frontmatter splits the YAML header off chapter sources.
package frontmatter

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

var delimiter = []byte("---")

// Frontmatter holds the optional per-chapter overrides. Anything the
// catalog already knows is usually left out.
type Frontmatter struct {
	Title            string `yaml:"title,omitempty"`
	Description      string `yaml:"description,omitempty"`
	Tier             int    `yaml:"tier,omitempty"`
	EstimatedMinutes int    `yaml:"estimatedMinutes,omitempty"`
	Draft            bool   `yaml:"draft,omitempty"`

	// Raw keeps every key, including ones not mapped above.
	Raw map[string]any `yaml:"-"`
}

// Parse returns the frontmatter and the body that follows it. Content
// without a leading --- line has empty frontmatter and is returned whole.
func Parse(content []byte) (Frontmatter, []byte, error) {
	header, body, ok, err := split(content)
	if err != nil || !ok {
		return Frontmatter{}, body, err
	}

	var fm Frontmatter
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return Frontmatter{}, nil, utils.WrapErrorf(utils.ErrParsing, "frontmatter yaml: %v", err)
	}
	if err := yaml.Unmarshal(header, &fm.Raw); err != nil {
		return Frontmatter{}, nil, utils.WrapErrorf(utils.ErrParsing, "frontmatter yaml: %v", err)
	}
	return fm, body, nil
}

// Strip drops a leading frontmatter block without parsing it. Unclosed
// blocks are left in place.
func Strip(content []byte) []byte {
	_, body, ok, err := split(content)
	if err != nil || !ok {
		return content
	}
	return body
}

func split(content []byte) (header, body []byte, ok bool, err error) {
	first, rest, _ := cutLine(content)
	if !bytes.Equal(trimCR(first), delimiter) {
		return nil, content, false, nil
	}

	offset := len(content) - len(rest)
	for len(rest) > 0 {
		line, next, _ := cutLine(rest)
		if bytes.Equal(trimCR(line), delimiter) {
			end := len(content) - len(rest)
			return content[offset:end], next, true, nil
		}
		rest = next
	}
	return nil, content, false, utils.WrapErrorf(utils.ErrParsing, "unclosed frontmatter")
}

func cutLine(b []byte) (line, rest []byte, found bool) {
	return bytes.Cut(b, []byte("\n"))
}

func trimCR(b []byte) []byte {
	return bytes.TrimSuffix(b, []byte("\r"))
}
