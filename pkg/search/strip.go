package search

import (
	"regexp"
	"strings"
)

type rewrite struct {
	re   *regexp.Regexp
	repl string
}

// Order matters: frontmatter and imports go first, images before links so
// that no "!" survives, and whitespace is normalized last.
var stripRules = []rewrite{
	{regexp.MustCompile(`^---[\s\S]*?---\n`), ""},
	{regexp.MustCompile(`(?m)^import .+$`), ""},
	{regexp.MustCompile(`<[^>]+>`), " "},
	{regexp.MustCompile("```[\\s\\S]*?```"), " "},
	{regexp.MustCompile("`[^`]+`"), " "},
	{regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`), ""},
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`), "$1"},
	{regexp.MustCompile(`(?m)^#{1,6}\s+`), ""},
	{regexp.MustCompile(`\*\*([^*]+)\*\*`), "$1"},
	{regexp.MustCompile(`\*([^*]+)\*`), "$1"},
	{regexp.MustCompile(`__([^_]+)__`), "$1"},
	{regexp.MustCompile(`_([^_]+)_`), "$1"},
	{regexp.MustCompile(`(?m)^>\s*`), ""},
	{regexp.MustCompile(`(?m)^---+$`), ""},
	{regexp.MustCompile(`(?m)^\s*[-*+]\s+`), ""},
	{regexp.MustCompile(`(?m)^\s*\d+\.\s+`), ""},
	{regexp.MustCompile(`<!--[\s\S]*?-->`), ""},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
	{regexp.MustCompile(`\s+`), " "},
}

// Strip turns chapter markdown into the plain text used by search. It is
// idempotent: Strip(Strip(s)) == Strip(s).
func Strip(content string) string {
	out := stripOnce(content)
	for {
		// After the first pass every change shortens the text.
		next := stripOnce(out)
		if next == out {
			return out
		}
		out = next
	}
}

func stripOnce(s string) string {
	for _, r := range stripRules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return strings.TrimSpace(s)
}
