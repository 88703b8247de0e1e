package directive

import (
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// Renderer writes widgets as div elements the viewer's scripts hydrate.
type Renderer struct{}

// NewRenderer returns the HTML renderer for directive nodes.
func NewRenderer() renderer.NodeRenderer {
	return &Renderer{}
}

func (r *Renderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindWidget, r.renderWidget)
	reg.Register(KindSlot, r.renderSlot)
	reg.Register(KindPassthrough, r.renderPassthrough)
	reg.Register(KindDirective, r.renderDirective)
}

func (r *Renderer) renderWidget(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</div>\n")
		return ast.WalkContinue, nil
	}
	n := node.(*Widget)
	_, _ = w.WriteString(`<div class="widget widget-`)
	_, _ = w.WriteString(n.Name.String())
	_, _ = w.WriteString(`" data-widget="`)
	_, _ = w.WriteString(n.Name.Component())
	_ = w.WriteByte('"')
	for _, a := range n.Attrs {
		name := "data-" + kebab(a.Key)
		if a.Key == "id" {
			name = "id"
		}
		writeAttr(w, name, a.Value)
	}
	_, _ = w.WriteString(">\n")
	return ast.WalkContinue, nil
}

func (r *Renderer) renderSlot(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</div>\n")
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString("<div")
	writeAttr(w, "data-slot", node.(*Slot).SlotName)
	_, _ = w.WriteString(">\n")
	return ast.WalkContinue, nil
}

func (r *Renderer) renderPassthrough(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString("<div>\n")
	} else {
		_, _ = w.WriteString("</div>\n")
	}
	return ast.WalkContinue, nil
}

// renderDirective handles names the transformer does not know. Content is
// kept; the name survives as a class so authors can spot typos.
func (r *Renderer) renderDirective(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</div>\n")
		return ast.WalkContinue, nil
	}
	n := node.(*Directive)
	_, _ = w.WriteString(`<div class="directive directive-`)
	_, _ = w.Write(util.EscapeHTML([]byte(n.RawName)))
	for _, c := range n.Classes {
		_ = w.WriteByte(' ')
		_, _ = w.Write(util.EscapeHTML([]byte(c)))
	}
	_ = w.WriteByte('"')
	if n.ID != "" {
		writeAttr(w, "id", n.ID)
	}
	_, _ = w.WriteString(">\n")
	return ast.WalkContinue, nil
}

func writeAttr(w util.BufWriter, name, value string) {
	_ = w.WriteByte(' ')
	_, _ = w.WriteString(name)
	_, _ = w.WriteString(`="`)
	_, _ = w.Write(util.EscapeHTML([]byte(value)))
	_ = w.WriteByte('"')
}
