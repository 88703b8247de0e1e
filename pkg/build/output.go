package build

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/book-viewer/pkg/config"
	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/search"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

const (
	ConceptsFilename           = "concepts.json"
	CourseFilename             = "course.json"
	DefaultSearchIndexFilename = "search-index.json"
)

// CourseManifest describes a built course for readers of the output.
type CourseManifest struct {
	Key             string                 `json:"key"`
	Title           string                 `json:"title"`
	TableOfContents models.TableOfContents `json:"tableOfContents"`
	TotalMinutes    int                    `json:"totalMinutes"`
	Chapters        []string               `json:"chapters"` // Built slugs in reading order
	BuiltAt         time.Time              `json:"builtAt"`
}

func (b *Builder) writeChapter(slug, html string, doc *models.ChapterDocument) error {
	htmlPath := b.chapterPath(slug, ".html")
	if err := os.WriteFile(htmlPath, []byte(html), 0644); err != nil {
		return utils.WrapErrorf(utils.ErrFilesystem, "write chapter html '%s': %v", htmlPath, err)
	}
	return writeJSON(b.chapterPath(slug, ".json"), doc)
}

// writeArtifacts writes the course-level files: search index, concept
// catalog and manifest.
func (b *Builder) writeArtifacts(records []models.SearchRecord, result *Result) error {
	indexPath := SearchIndexPath(b.outputDir, b.appCfg)
	if err := search.WriteIndex(indexPath, models.SearchIndex{Chapters: records}); err != nil {
		return err
	}
	b.log.Infof("Search index written: %d chapters -> %s", len(records), indexPath)

	if err := writeJSON(filepath.Join(b.outputDir, ConceptsFilename), result.Concepts); err != nil {
		return err
	}

	slugs := make([]string, 0, len(result.Chapters))
	for _, ch := range result.Chapters {
		slugs = append(slugs, ch.Slug)
	}
	manifest := CourseManifest{
		Key:             b.courseKey,
		Title:           b.catalog.Title(),
		TableOfContents: b.catalog.TableOfContents(),
		TotalMinutes:    b.catalog.TotalReadingTime(),
		Chapters:        slugs,
		BuiltAt:         b.now(),
	}
	return writeJSON(filepath.Join(b.outputDir, CourseFilename), manifest)
}

// SearchIndexPath is where a course's search index is written under outputDir.
func SearchIndexPath(outputDir string, appCfg config.AppConfig) string {
	name := appCfg.SearchIndexFilename
	if name == "" {
		name = DefaultSearchIndexFilename
	}
	return filepath.Join(outputDir, name)
}

func (b *Builder) chapterMetadata(ch *pending, doc *models.ChapterDocument, status models.BuildStatus) models.ChapterBuildMetadata {
	md := models.ChapterBuildMetadata{
		Slug:       doc.Meta.Slug,
		Title:      doc.Meta.Title,
		OutputFile: filepath.Base(b.chapterPath(doc.Meta.Slug, ".html")),
		Status:     status,
		TocEntries: len(doc.TOC),
		Concepts:   len(doc.Concepts),
		BuiltAt:    b.now(),
	}
	if ch != nil {
		md.SourceFile = ch.Path
		md.ContentHash = ch.hash
	}
	return md
}

// writeMetadataYAML writes the build summary. Failures are logged only.
func (b *Builder) writeMetadataYAML(start time.Time, result *Result) {
	meta := models.BuildMetadata{
		CourseKey:      b.courseKey,
		CourseTitle:    b.catalog.Title(),
		BuildStartTime: start,
		BuildEndTime:   start.Add(result.Duration),
		TotalChapters:  len(result.Chapters),
		SkippedCount:   result.Skipped,
		Chapters:       result.Chapters,
	}
	data, err := yaml.Marshal(&meta)
	if err != nil {
		b.log.Errorf("Failed to marshal build metadata: %v", err)
		return
	}
	path := filepath.Join(b.outputDir, config.GetEffectiveMetadataYAMLFilename(b.appCfg))
	if err := os.WriteFile(path, data, 0644); err != nil {
		b.log.Errorf("Failed to write build metadata '%s': %v", path, err)
		return
	}
	b.log.Infof("Build metadata written to %s", path)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return utils.WrapErrorf(utils.ErrParsing, "marshal '%s': %v", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return utils.WrapErrorf(utils.ErrFilesystem, "write '%s': %v", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return utils.WrapErrorf(utils.ErrNotFound, "'%s'", path)
	}
	if err != nil {
		return utils.WrapErrorf(utils.ErrFilesystem, "read '%s': %v", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return utils.WrapErrorf(utils.ErrParsing, "decode '%s': %v", path, err)
	}
	return nil
}

func readChapterDocument(path string) (*models.ChapterDocument, error) {
	var doc models.ChapterDocument
	if err := readJSON(path, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadChapterDocument reads a built chapter's document. A chapter that was
// never built yields an error matching utils.ErrNotFound.
func LoadChapterDocument(outputDir, slug string) (*models.ChapterDocument, error) {
	return readChapterDocument(filepath.Join(outputDir, utils.SanitizeFilename(slug)+".json"))
}

// LoadConcepts reads a course's concept catalog.
func LoadConcepts(outputDir string) ([]models.Concept, error) {
	var concepts []models.Concept
	if err := readJSON(filepath.Join(outputDir, ConceptsFilename), &concepts); err != nil {
		return nil, err
	}
	return concepts, nil
}

// LoadManifest reads a course's manifest.
func LoadManifest(outputDir string) (*CourseManifest, error) {
	var m CourseManifest
	if err := readJSON(filepath.Join(outputDir, CourseFilename), &m); err != nil {
		return nil, err
	}
	return &m, nil
}
