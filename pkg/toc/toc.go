// Package toc assigns anchors to rendered chapter headings and collects the
// chapter's table of contents.
package toc

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

const (
	DefaultMinDepth = 2
	DefaultMaxDepth = 3

	// AnchorClass is added to every heading that receives an id.
	AnchorClass = "heading-anchor"
)

const headingSelector = "h1, h2, h3, h4, h5, h6"

// Options bounds the heading levels that get anchors. Zero values fall back
// to DefaultMinDepth and DefaultMaxDepth.
type Options struct {
	MinDepth int
	MaxDepth int
}

func (o Options) bounds() (int, int) {
	lo, hi := o.MinDepth, o.MaxDepth
	if lo <= 0 {
		lo = DefaultMinDepth
	}
	if hi <= 0 {
		hi = DefaultMaxDepth
	}
	return lo, hi
}

// Result is the rewritten HTML fragment plus its TOC in document order.
type Result struct {
	HTML    string
	Entries []models.TocEntry
}

// Extract parses an HTML fragment, injects heading ids and the anchor
// class, and returns the rewritten fragment with its entries.
func Extract(fragment string, opts Options) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return Result{}, utils.WrapErrorf(utils.ErrParsing, "parse rendered html: %v", err)
	}

	entries := Apply(doc.Selection, opts)

	out, err := doc.Find("body").Html()
	if err != nil {
		return Result{}, utils.WrapErrorf(utils.ErrRender, "serialize html: %v", err)
	}
	return Result{HTML: out, Entries: entries}, nil
}

// Apply mutates the headings below sel in place and returns the entries.
// Each call uses a fresh slugger, so slugs are unique per call only.
func Apply(sel *goquery.Selection, opts Options) []models.TocEntry {
	lo, hi := opts.bounds()
	slugger := NewSlugger()
	entries := []models.TocEntry{}

	sel.Find(headingSelector).Each(func(_ int, h *goquery.Selection) {
		depth := headingDepth(goquery.NodeName(h))
		if depth < lo || depth > hi {
			return
		}
		text := strings.TrimSpace(h.Text())
		if text == "" {
			return
		}
		slug := slugger.Slug(text)
		h.SetAttr("id", slug)
		h.AddClass(AnchorClass)
		entries = append(entries, models.TocEntry{Depth: depth, Text: text, Slug: slug})
	})
	return entries
}

func headingDepth(tag string) int {
	var depth int
	if _, err := fmt.Sscanf(tag, "h%d", &depth); err != nil {
		return 0
	}
	return depth
}
