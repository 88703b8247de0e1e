package directive

import (
	"encoding/json"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var (
	idSourceKey = parser.NewContextKey()
	chapterKey  = parser.NewContextKey()
	resultKey   = parser.NewContextKey()
)

// Result summarises what the transformer did to one document.
type Result struct {
	Widgets      map[Name]int // Widget count per kind
	IDs          []string     // Widget ids in document order
	Unrecognized []string     // Raw names of directives left in place
}

// NewContext returns a parser context for one chapter. ids must be the
// source shared by the whole build.
func NewContext(ids IDSource, chapterSlug string) parser.Context {
	if ids == nil {
		panic("directive: NewContext called with a nil IDSource")
	}
	pc := parser.NewContext()
	pc.Set(idSourceKey, ids)
	pc.Set(chapterKey, chapterSlug)
	return pc
}

// ResultFrom returns the transform summary stored in pc, or nil if the
// document has not been transformed.
func ResultFrom(pc parser.Context) *Result {
	r, _ := pc.Get(resultKey).(*Result)
	return r
}

// Transformer rewrites Directive nodes into Widget nodes.
type Transformer struct {
	fallback IDSource
}

// NewTransformer returns a transformer. fallback is used when the parser
// context carries no IDSource; it may be nil if every parse goes through
// NewContext.
func NewTransformer(fallback IDSource) *Transformer {
	return &Transformer{fallback: fallback}
}

func (t *Transformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	st := &transformState{
		source: reader.Source(),
		result: &Result{Widgets: make(map[Name]int)},
	}
	st.ids, _ = pc.Get(idSourceKey).(IDSource)
	if st.ids == nil {
		st.ids = t.fallback
	}
	if st.ids == nil {
		panic("directive: document parsed without an IDSource (use directive.NewContext or WithIDSource)")
	}
	st.chapter, _ = pc.Get(chapterKey).(string)
	pc.Set(resultKey, st.result)

	st.walk(doc)
}

type transformState struct {
	source  []byte
	ids     IDSource
	chapter string
	result  *Result
}

// walk visits parent's children depth first. A replaced directive is not
// visited again; its replacement's content is walked so nested directives
// are transformed exactly once.
func (st *transformState) walk(parent ast.Node) {
	for child := parent.FirstChild(); child != nil; {
		next := child.NextSibling()
		if child.Type() != ast.TypeBlock && child.Type() != ast.TypeDocument {
			child = next
			continue
		}
		if d, ok := child.(*Directive); ok {
			if replacement := st.replace(d); replacement != nil {
				parent.ReplaceChild(parent, d, replacement)
				st.walk(replacement)
				child = next
				continue
			}
			st.result.Unrecognized = append(st.result.Unrecognized, d.RawName)
		}
		st.walk(child)
		child = next
	}
}

func (st *transformState) replace(d *Directive) ast.Node {
	switch d.Name {
	case Concept:
		w := st.newWidget(d)
		appendBlocks(w, childList(d))
		return w

	case Question:
		return st.twoPhase(d, Reveal, "question", "answer")

	case Checkpoint:
		w := st.newWidget(d)
		items := checklistItems(d, st.source)
		encoded, err := json.Marshal(items)
		if err != nil {
			encoded = []byte("[]")
		}
		w.SetAttr("items", string(encoded))
		return w

	case Try:
		return st.twoPhase(d, Hint, "exercise", "hint")

	case Callout:
		w := st.newWidget(d)
		kind, ok := d.Attr("type")
		if !ok || kind == "" {
			kind = "info"
		}
		w.SetAttr("type", kind)
		appendBlocks(w, childList(d))
		return w

	case Reveal, Hint:
		p := &Passthrough{From: d.Name}
		appendBlocks(p, childList(d))
		return p
	}
	return nil
}

func (st *transformState) newWidget(d *Directive) *Widget {
	w := NewWidget(d.Name)
	if d.Name.needsID() {
		id := d.ID
		if id == "" {
			id = st.ids.NextID(d.Name, st.chapter)
		}
		w.SetAttr("id", id)
		w.SetAttr("chapterSlug", st.chapter)
		st.result.IDs = append(st.result.IDs, id)
	}
	st.result.Widgets[d.Name]++
	return w
}

// twoPhase builds question/answer and exercise/hint widgets. The primary
// slot is always emitted; the secondary one only when it has content.
func (st *transformState) twoPhase(d *Directive, marker Name, primary, secondary string) *Widget {
	w := st.newWidget(d)
	before, after, _ := SplitAt(childList(d), marker)

	if d.Name == Try && len(after) > 0 {
		w.SetAttr("hasHint", "true")
	}

	first := NewSlot(primary)
	appendBlocks(first, before)
	w.AppendChild(w, first)

	if len(after) > 0 {
		second := NewSlot(secondary)
		appendBlocks(second, after)
		w.AppendChild(w, second)
	}
	return w
}

// appendBlocks moves nodes under dst. Runs of inline nodes (a leaf
// directive's label) are wrapped in a paragraph.
func appendBlocks(dst ast.Node, nodes []ast.Node) {
	var para *ast.Paragraph
	for _, n := range nodes {
		if n.Type() == ast.TypeInline {
			if para == nil {
				para = ast.NewParagraph()
				dst.AppendChild(dst, para)
			}
			para.AppendChild(para, n)
			continue
		}
		para = nil
		dst.AppendChild(dst, n)
	}
}

// checklistItems flattens the items of every top-level list in d.
func checklistItems(d *Directive, source []byte) []string {
	items := []string{}
	for c := d.FirstChild(); c != nil; c = c.NextSibling() {
		list, ok := c.(*ast.List)
		if !ok {
			continue
		}
		for li := list.FirstChild(); li != nil; li = li.NextSibling() {
			if li.Kind() != ast.KindListItem {
				continue
			}
			if s := strings.TrimSpace(ExtractText(li, source)); s != "" {
				items = append(items, s)
			}
		}
	}
	return items
}
