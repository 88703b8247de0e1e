// Package build renders one course's chapter sources into HTML fragments,
// chapter documents, a search index and a concept catalog.
package build

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/book-viewer/pkg/catalog"
	"github.com/Sriram-PR/book-viewer/pkg/config"
	"github.com/Sriram-PR/book-viewer/pkg/directive"
	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/search"
	"github.com/Sriram-PR/book-viewer/pkg/storage"
	"github.com/Sriram-PR/book-viewer/pkg/toc"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

// Result summarises one course build
type Result struct {
	CourseKey string
	OutputDir string
	Built     int
	Skipped   int
	Drafts    int
	Failed    int
	Chapters  []models.ChapterBuildMetadata
	Concepts  []models.Concept
	Duration  time.Duration
}

// Builder builds a single course. A Builder is not safe for concurrent
// Build calls; the orchestrator uses one per course.
type Builder struct {
	courseKey string
	appCfg    config.AppConfig
	courseCfg config.CourseConfig
	catalog   *catalog.Catalog
	state     storage.BuildStateStore // Nil disables incremental builds
	log       *logrus.Entry

	contentDir string
	outputDir  string
	exclude    []*regexp.Regexp
	renderer   *Renderer
	now        func() time.Time
}

// NewBuilder prepares a builder. state may be nil.
func NewBuilder(courseKey string, appCfg config.AppConfig, courseCfg config.CourseConfig, cat *catalog.Catalog, state storage.BuildStateStore, log *logrus.Entry) (*Builder, error) {
	if cat == nil {
		panic("build: NewBuilder called with a nil catalog")
	}
	exclude, err := utils.CompileRegexPatterns(config.GetEffectiveExcludePatterns(courseCfg, appCfg))
	if err != nil {
		return nil, err
	}
	minDepth, maxDepth := config.GetEffectiveTocDepths(courseCfg, appCfg)

	return &Builder{
		courseKey:  courseKey,
		appCfg:     appCfg,
		courseCfg:  courseCfg,
		catalog:    cat,
		state:      state,
		log:        log.WithField("course", courseKey),
		contentDir: config.GetEffectiveContentDir(courseKey, courseCfg, appCfg),
		outputDir:  config.GetEffectiveOutputDir(courseKey, courseCfg, appCfg),
		exclude:    exclude,
		renderer:   NewRenderer(toc.Options{MinDepth: minDepth, MaxDepth: maxDepth}),
		now:        time.Now,
	}, nil
}

// OutputDir is where artifacts are written
func (b *Builder) OutputDir() string { return b.outputDir }

// ContentDir is where chapter sources are read from
func (b *Builder) ContentDir() string { return b.contentDir }

// newIDSource returns the id source for one build of the course.
func (b *Builder) newIDSource() directive.IDSource {
	if config.GetEffectiveIDStrategy(b.courseCfg, b.appCfg) == config.IDStrategyHash {
		return directive.NewHashIDs(b.courseKey)
	}
	return directive.NewCounter()
}

// SearchOptions are the options the course's search index is built with
func (b *Builder) SearchOptions() search.Options {
	return searchOptions(b.courseCfg, b.appCfg, b.exclude)
}

// pending is a discovered source with its content and build decision.
type pending struct {
	Source
	content   []byte
	hash      string
	unchanged bool
}

// Build renders every chapter. Chapter failures are logged, recorded and
// counted; only output-directory and artifact errors abort the build.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := b.now()
	result := &Result{CourseKey: b.courseKey, OutputDir: b.outputDir, Concepts: []models.Concept{}}

	sources, err := Discover(b.contentDir, b.appCfg.SourceExtensions, b.exclude)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		b.log.Warnf("No chapter sources found in '%s'", b.contentDir)
	}
	if err := os.MkdirAll(b.outputDir, 0755); err != nil {
		return nil, utils.WrapErrorf(utils.ErrFilesystem, "create output dir '%s': %v", b.outputDir, err)
	}

	chapters, err := b.load(sources)
	if err != nil {
		return nil, err
	}
	b.decideSkips(chapters)

	ids := b.newIDSource()
	records := []models.SearchRecord{}
	var built []string // Slugs in build order, for prev/next of uncatalogued chapters
	docs := make(map[string]*models.ChapterDocument)
	htmls := make(map[string]string) // Only chapters rendered this build

	for _, ch := range chapters {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		chLog := b.log.WithField("chapter", ch.Slug)

		if ch.unchanged {
			doc, err := readChapterDocument(b.chapterPath(ch.Slug, ".json"))
			if err == nil {
				chLog.Debug("Source unchanged, reusing previous output")
				docs[ch.Slug] = doc
				records = append(records, search.BuildRecord(ch.Slug, ch.content, b.SearchOptions()))
				built = append(built, ch.Slug)
				continue
			}
			chLog.Warnf("Previous output unreadable, rebuilding: %v", err)
			ch.unchanged = false
		}

		rendered, err := b.renderer.Render(ch.Slug, ch.content, ids)
		if err != nil {
			chLog.Errorf("Chapter build failed: %v", err)
			result.Failed++
			b.recordState(ch, models.BuildStatusFailed, err)
			continue
		}
		if rendered.Frontmatter.Draft {
			chLog.Info("Skipping draft chapter")
			result.Drafts++
			b.recordState(ch, models.BuildStatusSkipped, nil)
			continue
		}
		for _, name := range rendered.Unknown {
			chLog.Debugf("Unrecognized directive '%s' left in place", name)
		}

		docs[ch.Slug] = &models.ChapterDocument{
			Meta:        b.chapterMeta(ch.Slug, rendered),
			Frontmatter: rendered.Frontmatter.Raw,
			TOC:         nonNilTOC(rendered.TOC),
			Concepts:    rendered.Concepts,
			Widgets:     rendered.Widgets,
			Interactive: rendered.Interactive,
		}
		htmls[ch.Slug] = rendered.HTML
		records = append(records, search.BuildRecord(ch.Slug, ch.content, b.SearchOptions()))
		built = append(built, ch.Slug)
	}

	// Links are set once every chapter is known, so reused documents are rewritten too.
	for i, slug := range built {
		doc := docs[slug]
		doc.Prev, doc.Next = b.neighbours(built, i)
		ch := findPending(chapters, slug)

		status := models.BuildStatusSkipped
		if html, ok := htmls[slug]; ok {
			if err := b.writeChapter(slug, html, doc); err != nil {
				return nil, err
			}
			status = models.BuildStatusBuilt
			result.Built++
		} else {
			if err := writeJSON(b.chapterPath(slug, ".json"), doc); err != nil {
				return nil, err
			}
			result.Skipped++
		}
		b.recordState(ch, models.BuildStatusBuilt, nil)
		result.Chapters = append(result.Chapters, b.chapterMetadata(ch, doc, status))
		result.Concepts = append(result.Concepts, doc.Concepts...)
	}

	search.SortRecords(records)
	if err := b.writeArtifacts(records, result); err != nil {
		return nil, err
	}

	result.Duration = b.now().Sub(start)
	if b.appCfg.EnableMetadataYAML {
		b.writeMetadataYAML(start, result)
	}
	b.log.Infof("Course built: %d built, %d unchanged, %d drafts, %d failed in %v",
		result.Built, result.Skipped, result.Drafts, result.Failed, result.Duration)
	return result, nil
}

// load reads every source and hashes it.
func (b *Builder) load(sources []Source) ([]*pending, error) {
	out := make([]*pending, 0, len(sources))
	for _, src := range sources {
		content, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, utils.WrapErrorf(utils.ErrFilesystem, "read chapter '%s': %v", src.Path, err)
		}
		out = append(out, &pending{
			Source:  src,
			content: content,
			hash:    utils.CalculateStringSHA256(string(content)),
		})
	}
	return out, nil
}

// decideSkips marks chapters whose source matches the last successful build.
// Counter ids depend on build order, so with the counter strategy chapters
// are only reused when the whole course is unchanged.
func (b *Builder) decideSkips(chapters []*pending) {
	if b.state == nil || !b.appCfg.EnableIncremental {
		return
	}
	allUnchanged := true
	for _, ch := range chapters {
		prev, found, err := b.state.GetContentHash(b.courseKey, ch.Slug)
		if err != nil {
			b.log.Warnf("Reading build state for '%s': %v", ch.Slug, err)
		}
		ch.unchanged = found && prev == ch.hash
		allUnchanged = allUnchanged && ch.unchanged
	}
	if allUnchanged || config.GetEffectiveIDStrategy(b.courseCfg, b.appCfg) == config.IDStrategyHash {
		return
	}
	for _, ch := range chapters {
		ch.unchanged = false
	}
	b.log.Debug("Sources changed with counter ids, rebuilding every chapter")
}

func (b *Builder) recordState(ch *pending, status models.BuildStatus, buildErr error) {
	if b.state == nil || ch == nil {
		return
	}
	now := b.now()
	state := &models.ChapterState{Status: status, LastAttempt: now}
	if prev, found, _ := b.state.GetChapterState(b.courseKey, ch.Slug); found {
		state.BuiltAt = prev.BuiltAt
	}
	switch status {
	case models.BuildStatusBuilt:
		state.ContentHash = ch.hash
		if !ch.unchanged {
			state.BuiltAt = now
		}
	case models.BuildStatusFailed:
		state.ErrorType = utils.CategorizeError(buildErr)
	}
	if err := b.state.UpdateChapterState(b.courseKey, ch.Slug, state); err != nil {
		b.log.Warnf("Failed to record build state for '%s': %v", ch.Slug, err)
	}
}

// chapterMeta merges catalog metadata with frontmatter. Frontmatter wins;
// the catalog fills what it leaves out.
func (b *Builder) chapterMeta(slug string, r *RenderedChapter) models.ChapterMeta {
	meta, ok := b.catalog.Chapter(slug)
	if !ok {
		meta = models.ChapterMeta{Slug: slug, Number: config.ChapterNumberFromSlug(slug)}
	}
	fm := r.Frontmatter
	if t := strings.TrimSpace(fm.Title); t != "" {
		meta.Title = t
	}
	if fm.Tier > 0 {
		meta.Tier = fm.Tier
	}
	if fm.EstimatedMinutes > 0 {
		meta.EstimatedMinutes = fm.EstimatedMinutes
	}
	if meta.Title == "" {
		meta.Title = slug
	}
	if meta.Tier <= 0 {
		meta.Tier = 1
	}
	return meta
}

// neighbours prefers catalog order and falls back to build order for
// chapters the catalog does not know.
func (b *Builder) neighbours(built []string, i int) (prev, next string) {
	slug := built[i]
	if _, ok := b.catalog.Chapter(slug); ok {
		if p, ok := b.catalog.Prev(slug); ok {
			prev = p.Slug
		}
		if n, ok := b.catalog.Next(slug); ok {
			next = n.Slug
		}
		return prev, next
	}
	if i > 0 {
		prev = built[i-1]
	}
	if i+1 < len(built) {
		next = built[i+1]
	}
	return prev, next
}

func (b *Builder) chapterPath(slug, ext string) string {
	return filepath.Join(b.outputDir, utils.SanitizeFilename(slug)+ext)
}

func findPending(chapters []*pending, slug string) *pending {
	for _, ch := range chapters {
		if ch.Slug == slug {
			return ch
		}
	}
	return nil
}

func nonNilTOC(entries []models.TocEntry) []models.TocEntry {
	if entries == nil {
		return []models.TocEntry{}
	}
	return entries
}
