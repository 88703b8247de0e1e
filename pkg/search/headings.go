package search

import (
	"regexp"
	"strings"

	"github.com/Sriram-PR/book-viewer/pkg/models"
)

var (
	headingLine    = regexp.MustCompile(`^(#{2,3})\s+(.+)$`)
	nonAlnumRun    = regexp.MustCompile(`[^a-z0-9]+`)
	chapterPrefix  = regexp.MustCompile(`^(\d+)-`)
	codeFenceStart = regexp.MustCompile("^\\s*(`{3,}|~{3,})")
)

// Slugify is the search index's own heading slug: lowercase, runs of
// anything but a-z and 0-9 become one hyphen, edge hyphens trimmed. It
// does not disambiguate repeats.
func Slugify(text string) string {
	s := nonAlnumRun.ReplaceAllString(strings.ToLower(text), "-")
	return strings.Trim(s, "-")
}

// ExtractHeadings splits content at level 2 and 3 headings and returns one
// record per heading with its stripped body. Lines inside fenced code are
// never headings. maxLen caps each body in runes; maxHeadings caps the
// number of records. Non-positive caps disable the limit.
func ExtractHeadings(content string, maxLen, maxHeadings int) []models.HeadingRecord {
	records := []models.HeadingRecord{}
	var (
		current *models.HeadingRecord
		body    []string
		fence   string // Opening marker while inside fenced code
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Content = truncateRunes(Strip(strings.Join(body, "\n")), maxLen)
		records = append(records, *current)
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if m := codeFenceStart.FindStringSubmatch(line); m != nil {
			switch {
			case fence == "":
				fence = m[1]
			case closesFence(fence, m[1]):
				fence = ""
			}
		}
		if fence == "" {
			if m := headingLine.FindStringSubmatch(line); m != nil {
				flush()
				text := strings.TrimSpace(m[2])
				current = &models.HeadingRecord{Slug: Slugify(text), Text: text}
				body = body[:0]
				continue
			}
		}
		if current != nil {
			body = append(body, line)
		}
	}
	flush()

	if maxHeadings > 0 && len(records) > maxHeadings {
		records = records[:maxHeadings]
	}
	return records
}

// closesFence reports whether marker ends a block opened with open: same
// character and at least as long.
func closesFence(open, marker string) bool {
	return marker[0] == open[0] && len(marker) >= len(open)
}

// ChapterNumber returns the numeric prefix of a chapter slug such as
// "04-caching", or "00" when there is none.
func ChapterNumber(slug string) string {
	if m := chapterPrefix.FindStringSubmatch(slug); m != nil {
		return m[1]
	}
	return "00"
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
