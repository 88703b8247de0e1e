package config

import (
	"path/filepath"
	"time"

	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

// ID strategies for directive widgets that lack an explicit id.
const (
	IDStrategyCounter = "counter" // name-0, name-1, ... per build
	IDStrategyHash    = "hash"    // Derived from course, chapter, name and ordinal
)

// Progress storage backends.
const (
	ProgressBackendBadger = "badger"
	ProgressBackendFile   = "file"
	ProgressBackendMemory = "memory" // Nothing survives the process
)

// TierConfig describes one tier of a course.
type TierConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
}

// CourseConfig holds configuration specific to a single course (book)
type CourseConfig struct {
	Title                  string               `yaml:"title"`
	ContentDir             string               `yaml:"content_dir,omitempty"` // Defaults to <content_base_dir>/<course key>
	OutputDir              string               `yaml:"output_dir,omitempty"`  // Defaults to <output_base_dir>/<course key>
	ProgressKey            string               `yaml:"progress_key,omitempty"`
	Tiers                  map[int]TierConfig   `yaml:"tiers,omitempty"`
	Chapters               []models.ChapterMeta `yaml:"chapters"`
	TocMinDepth            *int                 `yaml:"toc_min_depth,omitempty"`
	TocMaxDepth            *int                 `yaml:"toc_max_depth,omitempty"`
	SearchMaxContentLength *int                 `yaml:"search_max_content_length,omitempty"`
	SearchMaxHeadings      *int                 `yaml:"search_max_headings,omitempty"`
	IDStrategy             string               `yaml:"id_strategy,omitempty"`
	ExcludePatterns        []string             `yaml:"exclude_patterns,omitempty"` // Regexes matched against source file names
}

// AppConfig holds the global application configuration
type AppConfig struct {
	ContentBaseDir         string                  `yaml:"content_base_dir"`
	OutputBaseDir          string                  `yaml:"output_base_dir"`
	StateDir               string                  `yaml:"state_dir"`
	ProgressKey            string                  `yaml:"progress_key,omitempty"`
	ProgressBackend        string                  `yaml:"progress_backend,omitempty"`
	TocMinDepth            int                     `yaml:"toc_min_depth,omitempty"`
	TocMaxDepth            int                     `yaml:"toc_max_depth,omitempty"`
	SearchMaxContentLength int                     `yaml:"search_max_content_length,omitempty"`
	SearchMaxHeadings      int                     `yaml:"search_max_headings,omitempty"`
	SearchMaxResults       int                     `yaml:"search_max_results,omitempty"`
	SearchMinQueryLength   int                     `yaml:"search_min_query_length,omitempty"`
	SearchIndexFilename    string                  `yaml:"search_index_filename,omitempty"`
	SourceExtensions       []string                `yaml:"source_extensions,omitempty"`
	IDStrategy             string                  `yaml:"id_strategy,omitempty"`
	MaxParallelBuilds      int                     `yaml:"max_parallel_builds,omitempty"`
	EnableIncremental      bool                    `yaml:"enable_incremental,omitempty"`
	EnableMetadataYAML     bool                    `yaml:"enable_metadata_yaml,omitempty"`
	MetadataYAMLFilename   string                  `yaml:"metadata_yaml_filename,omitempty"`
	ExcludePatterns        []string                `yaml:"exclude_patterns,omitempty"`
	DBGCInterval           time.Duration           `yaml:"db_gc_interval,omitempty"`
	WatchDebounce          time.Duration           `yaml:"watch_debounce,omitempty"`
	Courses                map[string]CourseConfig `yaml:"courses"`
}

// GetEffectiveContentDir resolves where a course's chapter sources live.
func GetEffectiveContentDir(courseKey string, courseCfg CourseConfig, appCfg AppConfig) string {
	if courseCfg.ContentDir != "" {
		return courseCfg.ContentDir
	}
	return filepath.Join(appCfg.ContentBaseDir, utils.SanitizeFilename(courseKey))
}

// GetEffectiveOutputDir resolves where a course's build artifacts are written.
func GetEffectiveOutputDir(courseKey string, courseCfg CourseConfig, appCfg AppConfig) string {
	if courseCfg.OutputDir != "" {
		return courseCfg.OutputDir
	}
	return filepath.Join(appCfg.OutputBaseDir, utils.SanitizeFilename(courseKey))
}

// GetEffectiveProgressKey returns the storage key for a course's progress blob.
func GetEffectiveProgressKey(courseCfg CourseConfig, appCfg AppConfig) string {
	if courseCfg.ProgressKey != "" {
		return courseCfg.ProgressKey
	}
	if appCfg.ProgressKey != "" {
		return appCfg.ProgressKey
	}
	return "swe-book-progress"
}

// GetEffectiveTocDepths returns the heading depth range for TOC extraction.
func GetEffectiveTocDepths(courseCfg CourseConfig, appCfg AppConfig) (minDepth, maxDepth int) {
	minDepth, maxDepth = appCfg.TocMinDepth, appCfg.TocMaxDepth
	if courseCfg.TocMinDepth != nil {
		minDepth = *courseCfg.TocMinDepth
	}
	if courseCfg.TocMaxDepth != nil {
		maxDepth = *courseCfg.TocMaxDepth
	}
	if minDepth <= 0 {
		minDepth = 2
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return minDepth, maxDepth
}

// GetEffectiveSearchMaxContentLength returns the per-record content cap.
func GetEffectiveSearchMaxContentLength(courseCfg CourseConfig, appCfg AppConfig) int {
	if courseCfg.SearchMaxContentLength != nil && *courseCfg.SearchMaxContentLength > 0 {
		return *courseCfg.SearchMaxContentLength
	}
	if appCfg.SearchMaxContentLength > 0 {
		return appCfg.SearchMaxContentLength
	}
	return 5000
}

// GetEffectiveSearchMaxHeadings returns the per-record heading cap.
func GetEffectiveSearchMaxHeadings(courseCfg CourseConfig, appCfg AppConfig) int {
	if courseCfg.SearchMaxHeadings != nil && *courseCfg.SearchMaxHeadings > 0 {
		return *courseCfg.SearchMaxHeadings
	}
	if appCfg.SearchMaxHeadings > 0 {
		return appCfg.SearchMaxHeadings
	}
	return 20
}

// GetEffectiveIDStrategy returns the fallback id strategy for a course.
func GetEffectiveIDStrategy(courseCfg CourseConfig, appCfg AppConfig) string {
	if courseCfg.IDStrategy != "" {
		return courseCfg.IDStrategy
	}
	if appCfg.IDStrategy != "" {
		return appCfg.IDStrategy
	}
	return IDStrategyCounter
}

// GetEffectiveExcludePatterns concatenates global and course patterns.
func GetEffectiveExcludePatterns(courseCfg CourseConfig, appCfg AppConfig) []string {
	out := make([]string, 0, len(appCfg.ExcludePatterns)+len(courseCfg.ExcludePatterns))
	out = append(out, appCfg.ExcludePatterns...)
	return append(out, courseCfg.ExcludePatterns...)
}

// GetEffectiveMetadataYAMLFilename determines the filename for the YAML metadata.
func GetEffectiveMetadataYAMLFilename(appCfg AppConfig) string {
	if appCfg.MetadataYAMLFilename != "" {
		return appCfg.MetadataYAMLFilename
	}
	return "metadata.yaml"
}
