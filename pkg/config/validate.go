package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

var chapterNumberPrefix = regexp.MustCompile(`^(\d+)-`)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.ContentBaseDir == "" {
		warnings = append(warnings, "content_base_dir is empty, defaulting to './content'")
		c.ContentBaseDir = "./content"
	}

	if c.OutputBaseDir == "" {
		warnings = append(warnings, "output_base_dir is empty, defaulting to './dist'")
		c.OutputBaseDir = "./dist"
	}

	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './.book-state'")
		c.StateDir = "./.book-state"
	}

	if c.ProgressKey == "" {
		c.ProgressKey = "swe-book-progress"
	}

	switch c.ProgressBackend {
	case "":
		c.ProgressBackend = ProgressBackendBadger
	case ProgressBackendBadger, ProgressBackendFile, ProgressBackendMemory:
	default:
		warnings = append(warnings, fmt.Sprintf(
			"progress_backend '%s' is unknown, defaulting to '%s'", c.ProgressBackend, ProgressBackendBadger))
		c.ProgressBackend = ProgressBackendBadger
	}

	// TOC depth range
	if c.TocMinDepth == 0 {
		c.TocMinDepth = 2
	}
	if c.TocMaxDepth == 0 {
		c.TocMaxDepth = 3
	}
	if c.TocMinDepth < 1 || c.TocMaxDepth > 6 || c.TocMinDepth > c.TocMaxDepth {
		warnings = append(warnings, fmt.Sprintf(
			"toc depth range [%d, %d] is invalid, defaulting to [2, 3]", c.TocMinDepth, c.TocMaxDepth))
		c.TocMinDepth, c.TocMaxDepth = 2, 3
	}

	// Search caps
	if c.SearchMaxContentLength <= 0 {
		c.SearchMaxContentLength = 5000
	}
	if c.SearchMaxHeadings <= 0 {
		c.SearchMaxHeadings = 20
	}
	if c.SearchMaxResults <= 0 {
		c.SearchMaxResults = 10
	}
	if c.SearchMinQueryLength <= 0 {
		c.SearchMinQueryLength = 2
	}
	if c.SearchIndexFilename == "" {
		c.SearchIndexFilename = "search-index.json"
	}

	if len(c.SourceExtensions) == 0 {
		c.SourceExtensions = []string{".mdx", ".md"}
	}
	for i, ext := range c.SourceExtensions {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			c.SourceExtensions[i] = "." + ext
		}
	}

	if w, ok := normalizeIDStrategy(&c.IDStrategy, "id_strategy"); !ok {
		warnings = append(warnings, w)
	}
	if c.IDStrategy == "" {
		c.IDStrategy = IDStrategyCounter
	}

	if c.MaxParallelBuilds <= 0 {
		c.MaxParallelBuilds = 2
	}

	if c.EnableMetadataYAML && c.MetadataYAMLFilename == "" {
		warnings = append(warnings,
			"Global 'enable_metadata_yaml' is true but 'metadata_yaml_filename' is empty. "+
				"Defaulting to 'metadata.yaml'")
		c.MetadataYAMLFilename = "metadata.yaml"
	}

	if c.DBGCInterval <= 0 {
		c.DBGCInterval = 10 * time.Minute
	}
	if c.WatchDebounce <= 0 {
		c.WatchDebounce = 300 * time.Millisecond
	}

	if _, err := utils.CompileRegexPatterns(c.ExcludePatterns); err != nil {
		return warnings, err
	}

	if len(c.Courses) == 0 {
		warnings = append(warnings, "no courses configured")
	}

	return warnings, nil
}

// normalizeIDStrategy clears an unknown strategy so the caller's default applies.
func normalizeIDStrategy(strategy *string, field string) (warning string, ok bool) {
	switch *strategy {
	case "", IDStrategyCounter, IDStrategyHash:
		return "", true
	}
	warning = fmt.Sprintf("%s '%s' is unknown, falling back to '%s'", field, *strategy, IDStrategyCounter)
	*strategy = ""
	return warning, false
}

// Validate checks CourseConfig fields and applies defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place (chapter numbers, tier titles).
func (c *CourseConfig) Validate() (warnings []string, err error) {
	if c.Title == "" {
		return nil, fmt.Errorf("%w: course needs a title", utils.ErrConfigValidation)
	}

	if c.TocMinDepth != nil && c.TocMaxDepth != nil && *c.TocMinDepth > *c.TocMaxDepth {
		return nil, fmt.Errorf("%w: toc_min_depth (%d) > toc_max_depth (%d)",
			utils.ErrConfigValidation, *c.TocMinDepth, *c.TocMaxDepth)
	}
	for _, d := range []*int{c.TocMinDepth, c.TocMaxDepth} {
		if d != nil && (*d < 1 || *d > 6) {
			return nil, fmt.Errorf("%w: toc depth %d outside 1-6", utils.ErrConfigValidation, *d)
		}
	}

	if w, ok := normalizeIDStrategy(&c.IDStrategy, "course id_strategy"); !ok {
		warnings = append(warnings, w)
	}

	if _, err := utils.CompileRegexPatterns(c.ExcludePatterns); err != nil {
		return warnings, err
	}

	if len(c.Chapters) == 0 {
		warnings = append(warnings, "course has no chapters in its catalog; chapters will be discovered from content")
	}

	seen := make(map[string]bool, len(c.Chapters))
	for i := range c.Chapters {
		ch := &c.Chapters[i]
		if ch.Slug == "" {
			return nil, fmt.Errorf("%w: chapter #%d has no slug", utils.ErrConfigValidation, i+1)
		}
		if seen[ch.Slug] {
			return nil, fmt.Errorf("%w: duplicate chapter slug '%s'", utils.ErrConfigValidation, ch.Slug)
		}
		seen[ch.Slug] = true

		if ch.Title == "" {
			return nil, fmt.Errorf("%w: chapter '%s' has no title", utils.ErrConfigValidation, ch.Slug)
		}
		if ch.Number == "" {
			ch.Number = ChapterNumberFromSlug(ch.Slug)
		}
		if ch.Tier <= 0 {
			warnings = append(warnings, fmt.Sprintf("chapter '%s' has no tier, defaulting to 1", ch.Slug))
			ch.Tier = 1
		}
		if ch.EstimatedMinutes <= 0 {
			return nil, fmt.Errorf("%w: chapter '%s' needs a positive estimated_minutes",
				utils.ErrConfigValidation, ch.Slug)
		}
		if _, ok := c.Tiers[ch.Tier]; !ok {
			if c.Tiers == nil {
				c.Tiers = make(map[int]TierConfig)
			}
			warnings = append(warnings, fmt.Sprintf("tier %d has no title, defaulting to 'Tier %d'", ch.Tier, ch.Tier))
			c.Tiers[ch.Tier] = TierConfig{Title: fmt.Sprintf("Tier %d", ch.Tier)}
		}
	}

	return warnings, nil
}

// ChapterNumberFromSlug returns the zero-padded numeric prefix of a slug
// ("4-x" gives "04"), or "00" when the slug has none.
func ChapterNumberFromSlug(slug string) string {
	m := chapterNumberPrefix.FindStringSubmatch(slug)
	if m == nil {
		return "00"
	}
	if len(m[1]) == 1 {
		return "0" + m[1]
	}
	return m[1]
}
