package models

import "time"

// ChapterMeta describes one chapter in a course catalog.
type ChapterMeta struct {
	Slug             string `json:"slug" yaml:"slug"`
	Number           string `json:"number" yaml:"number"` // Two-digit, e.g. "04"
	Title            string `json:"title" yaml:"title"`
	Tier             int    `json:"tier" yaml:"tier"`
	EstimatedMinutes int    `json:"estimatedMinutes" yaml:"estimated_minutes"`
}

// Tier groups chapters for the table of contents.
type Tier struct {
	Number      int           `json:"number"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Chapters    []ChapterMeta `json:"chapters"`
}

// TableOfContents is the course-level chapter listing, tiers ascending.
type TableOfContents struct {
	Tiers []Tier `json:"tiers"`
}

// TocEntry is one heading of a rendered chapter.
type TocEntry struct {
	Depth int    `json:"depth" yaml:"depth"`
	Text  string `json:"text" yaml:"text"`
	Slug  string `json:"slug" yaml:"slug"`
}

// Concept is a reviewable concept card collected at build time.
type Concept struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	ChapterSlug string `json:"chapterSlug"`
}

// HeadingRecord is the stripped body under one level-2/3 heading.
type HeadingRecord struct {
	Slug    string `json:"slug"`
	Text    string `json:"text"`
	Content string `json:"content"`
}

// SearchRecord is one chapter entry of the search index artifact.
type SearchRecord struct {
	Slug     string          `json:"slug"`
	Title    string          `json:"title"`
	Chapter  string          `json:"chapter"` // Display label, e.g. "Ch. 04"
	Content  string          `json:"content"`
	Headings []HeadingRecord `json:"headings"`
}

// SearchIndex is the JSON artifact consumed by search clients.
type SearchIndex struct {
	Chapters []SearchRecord `json:"chapters"`
}

// SearchResult is a single chapter hit for a query.
type SearchResult struct {
	Slug    string         `json:"slug"`
	Title   string         `json:"title"`
	Chapter string         `json:"chapter"`
	Excerpt string         `json:"excerpt"`
	Heading *HeadingRecord `json:"heading,omitempty"`
}

// ChapterDocument is the build output for one chapter besides its HTML.
type ChapterDocument struct {
	Meta        ChapterMeta    `json:"meta"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	TOC         []TocEntry     `json:"toc"`
	Concepts    []Concept      `json:"concepts"`
	Widgets     map[string]int `json:"widgets,omitempty"` // Widget kind -> count
	Interactive []WidgetRef    `json:"interactive,omitempty"`
	Prev        string         `json:"prev,omitempty"`
	Next        string         `json:"next,omitempty"`
}

// WidgetRef identifies a widget that records reader progress.
type WidgetRef struct {
	Component string `json:"component"`
	ID        string `json:"id"`
	Items     int    `json:"items,omitempty"` // Checklist length for checkpoints
}

// Widget finds the widget with the given component name and id.
func (d ChapterDocument) Widget(component, id string) (WidgetRef, bool) {
	for _, w := range d.Interactive {
		if w.Component == component && w.ID == id {
			return w, true
		}
	}
	return WidgetRef{}, false
}

// ChapterState is the persisted incremental-build record for one chapter.
type ChapterState struct {
	Status      BuildStatus `json:"status"`
	ContentHash string      `json:"content_hash,omitempty"`
	ErrorType   string      `json:"error_type,omitempty"`
	BuiltAt     time.Time   `json:"built_at,omitempty"`
	LastAttempt time.Time   `json:"last_attempt"`
}

// BuildMetadata is written as YAML next to a course's build output.
type BuildMetadata struct {
	CourseKey      string                 `yaml:"course_key"`
	CourseTitle    string                 `yaml:"course_title,omitempty"`
	BuildStartTime time.Time              `yaml:"build_start_time"`
	BuildEndTime   time.Time              `yaml:"build_end_time"`
	TotalChapters  int                    `yaml:"total_chapters"`
	SkippedCount   int                    `yaml:"skipped_count"`
	Chapters       []ChapterBuildMetadata `yaml:"chapters"`
}

// ChapterBuildMetadata holds metadata for a single built chapter.
type ChapterBuildMetadata struct {
	Slug        string      `yaml:"slug"`
	Title       string      `yaml:"title,omitempty"`
	SourceFile  string      `yaml:"source_file"`
	OutputFile  string      `yaml:"output_file"`
	ContentHash string      `yaml:"content_hash,omitempty"`
	Status      BuildStatus `yaml:"status"`
	TocEntries  int         `yaml:"toc_entries"`
	Concepts    int         `yaml:"concepts"`
	BuiltAt     time.Time   `yaml:"built_at"`
}
