package directive

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// Option configures the extension.
type Option func(*Extension)

// WithIDSource sets the id source used when a document is parsed without
// a context from NewContext.
func WithIDSource(ids IDSource) Option {
	return func(e *Extension) { e.ids = ids }
}

// Extension adds directive parsing, transformation and rendering to a
// goldmark instance.
type Extension struct {
	ids IDSource
}

// New returns the directive extension.
func New(opts ...Option) *Extension {
	e := &Extension{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithBlockParsers(util.Prioritized(NewParser(), 150)),
		parser.WithASTTransformers(util.Prioritized(NewTransformer(e.ids), 100)),
	)
	m.Renderer().AddOptions(
		renderer.WithNodeRenderers(util.Prioritized(NewRenderer(), 500)),
	)
}
