package toc

import (
	"strconv"
	"strings"
	"unicode"
)

// Slugger produces GitHub-style heading slugs that are unique within one
// document. The zero value is ready to use.
type Slugger struct {
	occurrences map[string]int
}

// NewSlugger returns an empty slugger.
func NewSlugger() *Slugger {
	return &Slugger{}
}

// Slug returns the slug for text. The first occurrence of a slug is
// returned as is; repeats get -1, -2, ... appended, skipping any suffixed
// form already taken.
func (s *Slugger) Slug(text string) string {
	if s.occurrences == nil {
		s.occurrences = make(map[string]int)
	}
	base := Slugify(text)
	slug := base
	for {
		if _, taken := s.occurrences[slug]; !taken {
			break
		}
		s.occurrences[base]++
		slug = base + "-" + strconv.Itoa(s.occurrences[base])
	}
	s.occurrences[slug] = 0
	return slug
}

// Reset forgets every slug handed out so far.
func (s *Slugger) Reset() {
	clear(s.occurrences)
}

// Slugify lowercases text, drops everything but letters, marks, digits,
// connector punctuation, spaces and hyphens, and turns each space into a
// hyphen. It does not collapse runs.
func Slugify(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r == ' ':
			b.WriteByte('-')
		case r == '-',
			unicode.IsLetter(r),
			unicode.IsDigit(r),
			unicode.IsNumber(r),
			unicode.Is(unicode.M, r),
			unicode.Is(unicode.Pc, r):
			b.WriteRune(r)
		}
	}
	return b.String()
}
