package build

import (
	"bytes"
	"encoding/json"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/Sriram-PR/book-viewer/pkg/directive"
	"github.com/Sriram-PR/book-viewer/pkg/frontmatter"
	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/toc"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

const (
	conceptSelector     = `[data-widget="ConceptCard"]`
	interactiveSelector = `[data-widget="QuestionBlock"][id], [data-widget="Checkpoint"][id], [data-widget="TryBlock"][id]`
)

// RenderedChapter is the output of rendering one chapter source.
type RenderedChapter struct {
	Frontmatter frontmatter.Frontmatter
	HTML        string
	TOC         []models.TocEntry
	Concepts    []models.Concept
	Widgets     map[string]int
	Interactive []models.WidgetRef
	Unknown     []string // Directive names left unrendered
}

// NewMarkdown returns the goldmark instance used for chapters: GFM plus
// directives, with raw HTML passed through.
func NewMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM, directive.New()),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
}

// Renderer turns chapter sources into HTML fragments.
type Renderer struct {
	md        goldmark.Markdown
	converter *md.Converter
	toc       toc.Options
}

// NewRenderer returns a renderer anchoring headings within tocOpts.
func NewRenderer(tocOpts toc.Options) *Renderer {
	return &Renderer{
		md:        NewMarkdown(),
		converter: md.NewConverter("", true, nil),
		toc:       tocOpts,
	}
}

// Render parses frontmatter, renders the body with directives, anchors
// headings and collects concept cards. ids is shared by the whole build.
func (r *Renderer) Render(slug string, source []byte, ids directive.IDSource) (*RenderedChapter, error) {
	fm, body, err := frontmatter.Parse(source)
	if err != nil {
		return nil, err
	}

	pc := directive.NewContext(ids, slug)
	var buf bytes.Buffer
	if err := r.md.Convert(body, &buf, parser.WithContext(pc)); err != nil {
		return nil, utils.WrapErrorf(utils.ErrRender, "render chapter '%s': %v", slug, err)
	}

	anchored, err := toc.Extract(buf.String(), r.toc)
	if err != nil {
		return nil, err
	}

	out := &RenderedChapter{
		Frontmatter: fm,
		HTML:        anchored.HTML,
		TOC:         anchored.Entries,
		Widgets:     map[string]int{},
	}
	if res := directive.ResultFrom(pc); res != nil {
		for name, n := range res.Widgets {
			out.Widgets[name.String()] = n
		}
		out.Unknown = res.Unrecognized
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(anchored.HTML))
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "parse chapter '%s' html: %v", slug, err)
	}
	out.Concepts, err = r.concepts(slug, doc)
	if err != nil {
		return nil, err
	}
	out.Interactive, err = interactive(slug, doc)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// interactive lists the widgets whose state is kept in reader progress.
func interactive(slug string, doc *goquery.Document) ([]models.WidgetRef, error) {
	refs := []models.WidgetRef{}
	var parseErr error
	doc.Find(interactiveSelector).EachWithBreak(func(_ int, w *goquery.Selection) bool {
		ref := models.WidgetRef{
			Component: w.AttrOr("data-widget", ""),
			ID:        w.AttrOr("id", ""),
		}
		if raw, ok := w.Attr("data-items"); ok {
			var items []string
			if err := json.Unmarshal([]byte(raw), &items); err != nil {
				parseErr = utils.WrapErrorf(utils.ErrParsing, "chapter '%s' checkpoint '%s' items: %v", slug, ref.ID, err)
				return false
			}
			ref.Items = len(items)
		}
		refs = append(refs, ref)
		return true
	})
	return refs, parseErr
}

// concepts collects every concept card in document order, converting its
// body back to Markdown for the review catalog.
func (r *Renderer) concepts(slug string, doc *goquery.Document) ([]models.Concept, error) {
	concepts := []models.Concept{}
	var convErr error
	doc.Find(conceptSelector).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		id, _ := card.Attr("id")
		inner, err := card.Html()
		if err != nil {
			convErr = utils.WrapErrorf(utils.ErrRender, "concept '%s': %v", id, err)
			return false
		}
		text, err := r.converter.ConvertString(inner)
		if err != nil {
			convErr = utils.WrapErrorf(utils.ErrParsing, "concept '%s' to markdown: %v", id, err)
			return false
		}
		chapter := slug
		if v, ok := card.Attr("data-chapter-slug"); ok && v != "" {
			chapter = v
		}
		concepts = append(concepts, models.Concept{
			ID:          id,
			Text:        strings.TrimSpace(text),
			ChapterSlug: chapter,
		})
		return true
	})
	return concepts, convErr
}
