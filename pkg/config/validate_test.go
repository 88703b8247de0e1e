package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

func TestAppConfig_Validate_Defaults(t *testing.T) {
	cfg := AppConfig{}
	warnings, err := cfg.Validate()

	require.NoError(t, err)

	assert.Equal(t, "./content", cfg.ContentBaseDir)
	assert.Equal(t, "./dist", cfg.OutputBaseDir)
	assert.Equal(t, "./.book-state", cfg.StateDir)
	assert.Equal(t, "swe-book-progress", cfg.ProgressKey)
	assert.Equal(t, ProgressBackendBadger, cfg.ProgressBackend)
	assert.Equal(t, 2, cfg.TocMinDepth)
	assert.Equal(t, 3, cfg.TocMaxDepth)
	assert.Equal(t, 5000, cfg.SearchMaxContentLength)
	assert.Equal(t, 20, cfg.SearchMaxHeadings)
	assert.Equal(t, 10, cfg.SearchMaxResults)
	assert.Equal(t, 2, cfg.SearchMinQueryLength)
	assert.Equal(t, "search-index.json", cfg.SearchIndexFilename)
	assert.Equal(t, []string{".mdx", ".md"}, cfg.SourceExtensions)
	assert.Equal(t, IDStrategyCounter, cfg.IDStrategy)
	assert.Equal(t, 2, cfg.MaxParallelBuilds)
	assert.Equal(t, 10*time.Minute, cfg.DBGCInterval)
	assert.Equal(t, 300*time.Millisecond, cfg.WatchDebounce)

	assert.True(t, containsWarning(warnings, "content_base_dir is empty"))
	assert.True(t, containsWarning(warnings, "output_base_dir is empty"))
	assert.True(t, containsWarning(warnings, "state_dir is empty"))
	assert.True(t, containsWarning(warnings, "no courses configured"))
}

func TestAppConfig_Validate_ValidConfig(t *testing.T) {
	cfg := AppConfig{
		ContentBaseDir:   "/content",
		OutputBaseDir:    "/out",
		StateDir:         "/state",
		ProgressBackend:  ProgressBackendFile,
		TocMinDepth:      1,
		TocMaxDepth:      4,
		SourceExtensions: []string{"md"},
		IDStrategy:       IDStrategyHash,
		Courses:          map[string]CourseConfig{"swe": {Title: "SWE"}},
	}
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, ProgressBackendFile, cfg.ProgressBackend)
	assert.Equal(t, 1, cfg.TocMinDepth)
	assert.Equal(t, 4, cfg.TocMaxDepth)
	assert.Equal(t, []string{".md"}, cfg.SourceExtensions)
	assert.Equal(t, IDStrategyHash, cfg.IDStrategy)
}

func TestAppConfig_Validate_Corrections(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AppConfig
		warning string
		check   func(t *testing.T, c AppConfig)
	}{
		{
			name:    "inverted toc range",
			cfg:     AppConfig{TocMinDepth: 4, TocMaxDepth: 2},
			warning: "toc depth range [4, 2] is invalid",
			check: func(t *testing.T, c AppConfig) {
				assert.Equal(t, 2, c.TocMinDepth)
				assert.Equal(t, 3, c.TocMaxDepth)
			},
		},
		{
			name:    "unknown id strategy",
			cfg:     AppConfig{IDStrategy: "uuid"},
			warning: "id_strategy 'uuid' is unknown",
			check: func(t *testing.T, c AppConfig) {
				assert.Equal(t, IDStrategyCounter, c.IDStrategy)
			},
		},
		{
			name:    "unknown progress backend",
			cfg:     AppConfig{ProgressBackend: "localStorage"},
			warning: "progress_backend 'localStorage' is unknown",
			check: func(t *testing.T, c AppConfig) {
				assert.Equal(t, ProgressBackendBadger, c.ProgressBackend)
			},
		},
		{
			name:    "metadata filename defaulted",
			cfg:     AppConfig{EnableMetadataYAML: true},
			warning: "metadata_yaml_filename' is empty",
			check: func(t *testing.T, c AppConfig) {
				assert.Equal(t, "metadata.yaml", c.MetadataYAMLFilename)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			warnings, err := cfg.Validate()
			require.NoError(t, err)
			assert.True(t, containsWarning(warnings, tt.warning), "warnings: %v", warnings)
			tt.check(t, cfg)
		})
	}
}

func TestAppConfig_Validate_BadExcludePattern(t *testing.T) {
	cfg := AppConfig{ExcludePatterns: []string{"[oops"}}
	_, err := cfg.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func validCourse() CourseConfig {
	return CourseConfig{
		Title: "Software Engineering",
		Tiers: map[int]TierConfig{1: {Title: "Foundations"}},
		Chapters: []models.ChapterMeta{
			{Slug: "00-introduction", Title: "Introduction", Tier: 1, EstimatedMinutes: 10},
			{Slug: "01-systems", Number: "01", Title: "Systems", Tier: 1, EstimatedMinutes: 25},
		},
	}
}

func TestCourseConfig_Validate_Valid(t *testing.T) {
	c := validCourse()
	warnings, err := c.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "00", c.Chapters[0].Number, "number derived from slug")
	assert.Equal(t, "01", c.Chapters[1].Number)
}

func TestCourseConfig_Validate_Errors(t *testing.T) {
	intPtr := func(i int) *int { return &i }

	tests := []struct {
		name   string
		mutate func(c *CourseConfig)
		errMsg string
	}{
		{"missing title", func(c *CourseConfig) { c.Title = "" }, "needs a title"},
		{"missing slug", func(c *CourseConfig) { c.Chapters[0].Slug = "" }, "has no slug"},
		{"duplicate slug", func(c *CourseConfig) { c.Chapters[1].Slug = c.Chapters[0].Slug }, "duplicate chapter slug"},
		{"missing chapter title", func(c *CourseConfig) { c.Chapters[1].Title = "" }, "has no title"},
		{"zero minutes", func(c *CourseConfig) { c.Chapters[0].EstimatedMinutes = 0 }, "estimated_minutes"},
		{"inverted toc", func(c *CourseConfig) { c.TocMinDepth, c.TocMaxDepth = intPtr(3), intPtr(2) }, "toc_min_depth"},
		{"toc out of range", func(c *CourseConfig) { c.TocMaxDepth = intPtr(7) }, "outside 1-6"},
		{"bad pattern", func(c *CourseConfig) { c.ExcludePatterns = []string{"("} }, "invalid regex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCourse()
			tt.mutate(&c)
			_, err := c.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrConfigValidation)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestCourseConfig_Validate_Warnings(t *testing.T) {
	c := validCourse()
	c.Chapters = append(c.Chapters, models.ChapterMeta{Slug: "02-x", Title: "X", EstimatedMinutes: 5})
	c.Chapters = append(c.Chapters, models.ChapterMeta{Slug: "03-y", Title: "Y", Tier: 4, EstimatedMinutes: 5})
	c.IDStrategy = "random"

	warnings, err := c.Validate()

	require.NoError(t, err)
	assert.True(t, containsWarning(warnings, "chapter '02-x' has no tier"))
	assert.True(t, containsWarning(warnings, "tier 4 has no title"))
	assert.True(t, containsWarning(warnings, "course id_strategy 'random' is unknown"))
	assert.Equal(t, 1, c.Chapters[2].Tier)
	assert.Equal(t, "Tier 4", c.Tiers[4].Title)
	assert.Empty(t, c.IDStrategy)
}

func TestCourseConfig_Validate_EmptyCatalog(t *testing.T) {
	c := CourseConfig{Title: "LLM"}
	warnings, err := c.Validate()

	require.NoError(t, err)
	assert.True(t, containsWarning(warnings, "no chapters"))
}

func TestChapterNumberFromSlug(t *testing.T) {
	tests := []struct {
		slug string
		want string
	}{
		{"02-foo", "02"},
		{"10-baz", "10"},
		{"4-short", "04"},
		{"appendix", "00"},
		{"", "00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChapterNumberFromSlug(tt.slug), tt.slug)
	}
}

// containsWarning checks if any warning contains the substring.
func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
