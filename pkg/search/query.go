package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Sriram-PR/book-viewer/pkg/models"
)

const (
	DefaultMaxResults     = 10
	DefaultMinQueryLength = 2

	excerptBefore   = 50
	excerptAfter    = 100
	excerptFallback = 150
)

// QueryOptions bounds a query. Zero values use the defaults.
type QueryOptions struct {
	MinLength  int
	MaxResults int
}

// Query matches q against each chapter's title, then its content, then its
// headings, and returns at most one result per chapter in index order.
// Content matches when it contains the whole query or every query word
// longer than one rune.
func Query(index models.SearchIndex, q string, opts QueryOptions) []models.SearchResult {
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinQueryLength
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}

	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < opts.MinLength {
		return nil
	}
	needle := strings.ToLower(q)
	var words []string
	for _, w := range strings.Fields(needle) {
		if utf8.RuneCountInString(w) > 1 {
			words = append(words, w)
		}
	}

	results := []models.SearchResult{}
	for _, ch := range index.Chapters {
		if len(results) == opts.MaxResults {
			break
		}
		hit := models.SearchResult{Slug: ch.Slug, Title: ch.Title, Chapter: ch.Chapter}

		if strings.Contains(strings.ToLower(ch.Title), needle) {
			hit.Excerpt = Excerpt(ch.Content, needle)
			results = append(results, hit)
			continue
		}

		content := strings.ToLower(ch.Content)
		if strings.Contains(content, needle) || (len(words) > 0 && containsAll(content, words)) {
			hit.Excerpt = Excerpt(ch.Content, needle)
			results = append(results, hit)
			continue
		}

		for _, h := range ch.Headings {
			if strings.Contains(strings.ToLower(h.Text), needle) || strings.Contains(strings.ToLower(h.Content), needle) {
				heading := h
				hit.Excerpt = Excerpt(h.Content, needle)
				hit.Heading = &heading
				results = append(results, hit)
				break
			}
		}
	}
	return results
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}

// Excerpt returns the text around the first occurrence of query (or, failing
// that, of any of its words) in content: 50 runes before, 100 from the
// match, with "..." marking cut ends. Without any match the first 150 runes
// are returned.
func Excerpt(content, query string) string {
	text := []rune(content)
	lower := make([]rune, len(text))
	for i, r := range text {
		lower[i] = unicode.ToLower(r)
	}

	at := indexRunes(lower, []rune(strings.ToLower(query)))
	if at < 0 {
		for _, w := range strings.Fields(strings.ToLower(query)) {
			if at = indexRunes(lower, []rune(w)); at >= 0 {
				break
			}
		}
	}
	if at < 0 {
		if len(text) <= excerptFallback {
			return strings.TrimSpace(content)
		}
		return strings.TrimSpace(string(text[:excerptFallback])) + "..."
	}

	start := max(0, at-excerptBefore)
	end := min(len(text), at+excerptAfter)
	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(strings.TrimSpace(string(text[start:end])))
	if end < len(text) {
		b.WriteString("...")
	}
	return b.String()
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, r := range needle {
			if haystack[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}
