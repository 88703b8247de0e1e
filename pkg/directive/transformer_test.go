package directive

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

func render(t *testing.T, ids IDSource, chapter, src string) (string, *Result) {
	t.Helper()
	md := goldmark.New(goldmark.WithExtensions(New()))
	pc := NewContext(ids, chapter)
	var buf bytes.Buffer
	require.NoError(t, md.Convert([]byte(src), &buf, parser.WithContext(pc)))
	return buf.String(), ResultFrom(pc)
}

func transform(t *testing.T, ids IDSource, chapter, src string) (ast.Node, []byte) {
	t.Helper()
	md := goldmark.New(goldmark.WithExtensions(New()))
	source := []byte(src)
	doc := md.Parser().Parse(text.NewReader(source), parser.WithContext(NewContext(ids, chapter)))
	return doc, source
}

func widgets(root ast.Node) []*Widget {
	var out []*Widget
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if w, ok := n.(*Widget); ok && entering {
			out = append(out, w)
		}
		return ast.WalkContinue, nil
	})
	return out
}

func slots(w *Widget) []*Slot {
	var out []*Slot
	for c := w.FirstChild(); c != nil; c = c.NextSibling() {
		if s, ok := c.(*Slot); ok {
			out = append(out, s)
		}
	}
	return out
}

func TestTransform_ConceptWithExplicitID(t *testing.T) {
	html, res := render(t, NewCounter(), "01-intro", ":::concept{#c-cache}\nA **cache** stores data.\n:::\n")

	assert.Contains(t, html, `<div class="widget widget-concept" data-widget="ConceptCard" id="c-cache" data-chapter-slug="01-intro">`)
	assert.Contains(t, html, "<p>A <strong>cache</strong> stores data.</p>")
	assert.Contains(t, html, "</div>")
	assert.Equal(t, []string{"c-cache"}, res.IDs)
	assert.Equal(t, 1, res.Widgets[Concept])
}

func TestTransform_GeneratedIDsShareOneSequence(t *testing.T) {
	src := `:::concept
One
:::

:::concept
Two
:::

:::question
Why?
:::
`
	ids := NewCounter()
	_, res := render(t, ids, "02-caching", src)
	assert.Equal(t, []string{"concept-0", "concept-1", "question-2"}, res.IDs)

	// A second chapter in the same build continues the sequence.
	_, res = render(t, ids, "03-queues", ":::concept\nThree\n:::\n")
	assert.Equal(t, []string{"concept-3"}, res.IDs)
}

func TestTransform_QuestionSplitsAtReveal(t *testing.T) {
	src := `:::question{#q1}
Why is p99 a better target?

Think about users.
::reveal
Because tail latency is what users feel.
:::
`
	doc, source := transform(t, NewCounter(), "01-intro", src)

	ws := widgets(doc)
	require.Len(t, ws, 1)
	w := ws[0]
	assert.Equal(t, Question, w.Name)
	id, _ := w.Attr("id")
	assert.Equal(t, "q1", id)

	ss := slots(w)
	require.Len(t, ss, 2)
	assert.Equal(t, "question", ss[0].SlotName)
	assert.Equal(t, 2, ss[0].ChildCount())
	assert.Equal(t, "answer", ss[1].SlotName)
	assert.Equal(t, 1, ss[1].ChildCount())
	assert.Equal(t, "Because tail latency is what users feel.", ExtractText(ss[1], source))
	assert.Empty(t, directives(doc))
}

func TestTransform_QuestionWithoutRevealHasOnlyQuestionSlot(t *testing.T) {
	html, _ := render(t, NewCounter(), "01-intro", ":::question\nOpen ended.\n:::\n")

	assert.Contains(t, html, `<div data-slot="question">`)
	assert.NotContains(t, html, `data-slot="answer"`)
}

func TestTransform_RevealAsFirstChild(t *testing.T) {
	doc, source := transform(t, NewCounter(), "01-intro", ":::question\n::reveal\nEverything is the answer.\n:::\n")

	ws := widgets(doc)
	require.Len(t, ws, 1)
	ss := slots(ws[0])
	require.Len(t, ss, 2)
	assert.Equal(t, 0, ss[0].ChildCount())
	assert.Equal(t, "Everything is the answer.", ExtractText(ss[1], source))
}

func TestTransform_RevealLabelLeadsAnswer(t *testing.T) {
	doc, source := transform(t, NewCounter(), "01-intro", ":::question\nQ?\n::reveal[Short answer]\nMore detail.\n:::\n")

	ss := slots(widgets(doc)[0])
	require.Len(t, ss, 2)
	require.Equal(t, 2, ss[1].ChildCount())
	assert.Equal(t, ast.KindParagraph, ss[1].FirstChild().Kind())
	assert.Equal(t, "Short answer", ExtractText(ss[1].FirstChild(), source))
	assert.Equal(t, "More detail.", ExtractText(ss[1].LastChild(), source))
}

func TestTransform_CheckpointItems(t *testing.T) {
	src := `:::checkpoint{#cp1}
Before you move on:

- I can explain **caching**
- I know what ` + "`TTL`" + ` means

And also:

- I can pick an eviction policy
:::
`
	html, res := render(t, NewCounter(), "02-caching", src)

	assert.Contains(t, html, `data-widget="Checkpoint" id="cp1"`)
	assert.Contains(t, html,
		`data-items="[&quot;I can explain caching&quot;,&quot;I know what TTL means&quot;,&quot;I can pick an eviction policy&quot;]"`)
	assert.NotContains(t, html, "<li>")
	assert.NotContains(t, html, "Before you move on")
	assert.Equal(t, 1, res.Widgets[Checkpoint])
}

func TestTransform_CheckpointWithoutListHasEmptyItems(t *testing.T) {
	html, _ := render(t, NewCounter(), "02-caching", ":::checkpoint\nNothing to check.\n:::\n")

	assert.Contains(t, html, `data-items="[]"`)
}

func TestTransform_TryWithHint(t *testing.T) {
	html, _ := render(t, NewCounter(), "04-load", ":::try{#t1}\nSize the pool.\n::hint\nLittle's law.\n:::\n")

	assert.Contains(t, html, `data-widget="TryBlock" id="t1" data-chapter-slug="04-load" data-has-hint="true"`)
	assert.Contains(t, html, "<div data-slot=\"exercise\">\n<p>Size the pool.</p>\n</div>")
	assert.Contains(t, html, "<div data-slot=\"hint\">\n<p>Little's law.</p>\n</div>")
}

func TestTransform_TryWithoutHint(t *testing.T) {
	html, _ := render(t, NewCounter(), "04-load", ":::try\nSize the pool.\n:::\n")

	assert.NotContains(t, html, "data-has-hint")
	assert.Contains(t, html, `data-slot="exercise"`)
	assert.NotContains(t, html, `data-slot="hint"`)
}

func TestTransform_Callout(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"default type", ":::callout\nNote.\n:::\n", `data-type="info"`},
		{"explicit type", ":::callout{type=warning}\nCareful.\n:::\n", `data-type="warning"`},
		{"escaped type", ":::callout{type=\"<b>\"}\nX\n:::\n", `data-type="&lt;b&gt;"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, res := render(t, NewCounter(), "01-intro", tt.src)
			assert.Contains(t, html, `data-widget="Callout"`)
			assert.Contains(t, html, tt.want)
			assert.NotContains(t, html, " id=")
			assert.Empty(t, res.IDs)
		})
	}
}

func TestTransform_StrayRevealBecomesPassthrough(t *testing.T) {
	html, _ := render(t, NewCounter(), "01-intro", "::reveal[Peek]\n")

	assert.Equal(t, "<div>\n<p>Peek</p>\n</div>\n", html)
}

func TestTransform_UnknownDirectiveLeftInPlace(t *testing.T) {
	html, res := render(t, NewCounter(), "01-intro", ":::sidebar{.wide}\nText\n:::\n")

	assert.Contains(t, html, `<div class="directive directive-sidebar wide">`)
	assert.Contains(t, html, "<p>Text</p>")
	assert.Equal(t, []string{"sidebar"}, res.Unrecognized)
	assert.Empty(t, res.Widgets)
}

func TestTransform_NestedDirectivesAreTransformed(t *testing.T) {
	src := `::::question
:::concept{#inner}
Nested.
:::
::reveal
:::callout
Answer note.
:::
::::
`
	doc, _ := transform(t, NewCounter(), "01-intro", src)

	ws := widgets(doc)
	require.Len(t, ws, 3)
	assert.Equal(t, Question, ws[0].Name)
	assert.Equal(t, Concept, ws[1].Name)
	assert.Equal(t, Callout, ws[2].Name)
	assert.Empty(t, directives(doc))

	ss := slots(ws[0])
	require.Len(t, ss, 2)
	assert.Equal(t, ast.Node(ss[0]), ws[1].Parent())
	assert.Equal(t, ast.Node(ss[1]), ws[2].Parent())
}

func TestTransform_FallbackIDSource(t *testing.T) {
	md := goldmark.New(goldmark.WithExtensions(New(WithIDSource(NewCounter()))))
	var buf bytes.Buffer

	require.NoError(t, md.Convert([]byte(":::concept\nX\n:::\n"), &buf))
	assert.Contains(t, buf.String(), `id="concept-0"`)
}

func TestTransform_MissingIDSourcePanics(t *testing.T) {
	md := goldmark.New(goldmark.WithExtensions(New()))
	var buf bytes.Buffer

	assert.Panics(t, func() { _ = md.Convert([]byte("text\n"), &buf) })
}

func TestNewContext_NilIDSourcePanics(t *testing.T) {
	assert.Panics(t, func() { NewContext(nil, "01-intro") })
}

func TestResultFrom_UntransformedContext(t *testing.T) {
	assert.Nil(t, ResultFrom(parser.NewContext()))
}
