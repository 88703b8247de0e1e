package build

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/book-viewer/pkg/catalog"
	"github.com/Sriram-PR/book-viewer/pkg/config"
	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/search"
	"github.com/Sriram-PR/book-viewer/pkg/storage"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

type fixture struct {
	contentDir string
	outputDir  string
	appCfg     config.AppConfig
	courseCfg  config.CourseConfig
	catalog    *catalog.Catalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		contentDir: filepath.Join(root, "content", "swe"),
		outputDir:  filepath.Join(root, "dist", "swe"),
	}
	f.appCfg = config.AppConfig{
		ContentBaseDir: filepath.Join(root, "content"),
		OutputBaseDir:  filepath.Join(root, "dist"),
		StateDir:       filepath.Join(root, "state"),
	}
	_, err := f.appCfg.Validate()
	require.NoError(t, err)

	f.courseCfg = config.CourseConfig{
		Title: "Software Engineering",
		Chapters: []models.ChapterMeta{
			{Slug: "01-source", Number: "01", Title: "What is Source Code?", Tier: 1, EstimatedMinutes: 20},
			{Slug: "02-github", Number: "02", Title: "GitHub Setup Guide", Tier: 1, EstimatedMinutes: 30},
			{Slug: "03-diffs", Number: "03", Title: "Understanding Diffs", Tier: 2, EstimatedMinutes: 25},
		},
	}
	_, err = f.courseCfg.Validate()
	require.NoError(t, err)
	f.catalog, err = catalog.FromConfig("swe", f.courseCfg)
	require.NoError(t, err)

	writeFile(t, f.contentDir, "01-source.md", "## Files\n\n:::concept\nSource code is text.\n:::\n")
	writeFile(t, f.contentDir, "02-github.md", "---\ntitle: GitHub Setup\n---\n## Accounts\n\n:::concept\nA repository stores history.\n:::\n")
	writeFile(t, f.contentDir, "03-diffs.mdx", sampleChapter)
	return f
}

func (f *fixture) builder(t *testing.T, state storage.BuildStateStore) *Builder {
	t.Helper()
	b, err := NewBuilder("swe", f.appCfg, f.courseCfg, f.catalog, state, testLogger())
	require.NoError(t, err)
	return b
}

func TestBuilder_Build(t *testing.T) {
	f := newFixture(t)
	result, err := f.builder(t, nil).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Built)
	assert.Zero(t, result.Failed)
	assert.Equal(t, f.outputDir, result.OutputDir)

	for _, name := range []string{"01-source.html", "01-source.json", "03-diffs.html", "search-index.json", ConceptsFilename, CourseFilename} {
		_, err := os.Stat(filepath.Join(f.outputDir, name))
		assert.NoError(t, err, name)
	}

	doc, err := LoadChapterDocument(f.outputDir, "02-github")
	require.NoError(t, err)
	assert.Equal(t, "GitHub Setup", doc.Meta.Title, "frontmatter title wins")
	assert.Equal(t, 30, doc.Meta.EstimatedMinutes, "catalog fills the rest")
	assert.Equal(t, "01-source", doc.Prev)
	assert.Equal(t, "03-diffs", doc.Next)
	assert.Equal(t, []models.TocEntry{{Depth: 2, Text: "Accounts", Slug: "accounts"}}, doc.TOC)

	concepts, err := LoadConcepts(f.outputDir)
	require.NoError(t, err)
	require.Len(t, concepts, 3)
	assert.Equal(t, "concept-0", concepts[0].ID)
	assert.Equal(t, "01-source", concepts[0].ChapterSlug)
	assert.Equal(t, "concept-1", concepts[1].ID)
	assert.Equal(t, "03-diffs", concepts[2].ChapterSlug)

	index, err := search.LoadIndex(filepath.Join(f.outputDir, "search-index.json"))
	require.NoError(t, err)
	require.Len(t, index.Chapters, 3)
	assert.Equal(t, "Ch. 01", index.Chapters[0].Chapter)
	assert.Equal(t, "GitHub Setup", index.Chapters[1].Title)

	manifest, err := LoadManifest(f.outputDir)
	require.NoError(t, err)
	assert.Equal(t, "Software Engineering", manifest.Title)
	assert.Equal(t, 75, manifest.TotalMinutes)
	assert.Equal(t, []string{"01-source", "02-github", "03-diffs"}, manifest.Chapters)
	require.Len(t, manifest.TableOfContents.Tiers, 2)
}

func TestBuilder_MissingContentDir(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.RemoveAll(f.contentDir))

	result, err := f.builder(t, nil).Build(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Built)

	index, err := search.LoadIndex(filepath.Join(f.outputDir, "search-index.json"))
	require.NoError(t, err)
	assert.Empty(t, index.Chapters)
	assert.NotNil(t, index.Chapters)
}

func TestBuilder_DraftsAndFailures(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.contentDir, "04-draft.md", "---\ndraft: true\n---\n## Soon\n")
	writeFile(t, f.contentDir, "05-broken.md", "---\ntitle: [oops\n---\n")
	state := storage.NewMemoryStore()

	result, err := f.builder(t, state).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Built)
	assert.Equal(t, 1, result.Drafts)
	assert.Equal(t, 1, result.Failed)

	_, err = LoadChapterDocument(f.outputDir, "04-draft")
	assert.ErrorIs(t, err, utils.ErrNotFound)

	failed, found, err := state.GetChapterState("swe", "05-broken")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.BuildStatusFailed, failed.Status)
	assert.Equal(t, "Parsing_YAML", failed.ErrorType)

	doc, err := LoadChapterDocument(f.outputDir, "03-diffs")
	require.NoError(t, err)
	assert.Empty(t, doc.Next, "last catalogued chapter has no next")
}

func TestBuilder_IncrementalCounterIDs(t *testing.T) {
	f := newFixture(t)
	f.appCfg.EnableIncremental = true
	state := storage.NewMemoryStore()

	first, err := f.builder(t, state).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Built)

	second, err := f.builder(t, state).Build(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Built)
	assert.Equal(t, 3, second.Skipped)
	assert.Len(t, second.Concepts, 3, "reused chapters still feed the concept catalog")

	writeFile(t, f.contentDir, "02-github.md", "## Accounts\n\nEdited.\n")
	third, err := f.builder(t, state).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, third.Built, "counter ids force a full rebuild")
}

func TestBuilder_IncrementalHashIDs(t *testing.T) {
	f := newFixture(t)
	f.appCfg.EnableIncremental = true
	f.appCfg.IDStrategy = config.IDStrategyHash
	state := storage.NewMemoryStore()

	_, err := f.builder(t, state).Build(context.Background())
	require.NoError(t, err)
	before, err := LoadConcepts(f.outputDir)
	require.NoError(t, err)

	writeFile(t, f.contentDir, "02-github.md", "## Accounts\n\n:::concept\nEdited.\n:::\n")
	result, err := f.builder(t, state).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Built)
	assert.Equal(t, 2, result.Skipped)

	after, err := LoadConcepts(f.outputDir)
	require.NoError(t, err)
	require.Len(t, after, 3)
	assert.Equal(t, before[1].ID, after[1].ID, "hash ids are stable across rebuilds")
	assert.Contains(t, after[1].Text, "Edited.")
}

func TestBuilder_MetadataYAML(t *testing.T) {
	f := newFixture(t)
	f.appCfg.EnableMetadataYAML = true
	f.appCfg.MetadataYAMLFilename = "metadata.yaml"

	_, err := f.builder(t, nil).Build(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(f.outputDir, "metadata.yaml"))
	require.NoError(t, err)
	var meta models.BuildMetadata
	require.NoError(t, yaml.Unmarshal(data, &meta))
	assert.Equal(t, "swe", meta.CourseKey)
	assert.Equal(t, 3, meta.TotalChapters)
	require.Len(t, meta.Chapters, 3)
	assert.Equal(t, "01-source.html", meta.Chapters[0].OutputFile)
	assert.NotEmpty(t, meta.Chapters[0].ContentHash)
}

func TestBuilder_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.builder(t, nil).Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewBuilder_NilCatalogPanics(t *testing.T) {
	f := newFixture(t)
	assert.Panics(t, func() {
		_, _ = NewBuilder("swe", f.appCfg, f.courseCfg, nil, nil, testLogger())
	})
}
