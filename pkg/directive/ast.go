package directive

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"
)

// Attribute is a single key/value pair from a directive's {...} block or a
// widget's output attributes. Order is preserved.
type Attribute struct {
	Key   string
	Value string
}

var (
	// KindDirective is the node kind of a parsed, not yet transformed directive.
	KindDirective = ast.NewNodeKind("Directive")
	// KindWidget is the node kind of a transformed directive.
	KindWidget = ast.NewNodeKind("Widget")
	// KindSlot is the node kind of a named content slot inside a widget.
	KindSlot = ast.NewNodeKind("WidgetSlot")
	// KindPassthrough is the node kind of a stray reveal/hint wrapper.
	KindPassthrough = ast.NewNodeKind("DirectivePassthrough")
)

// Directive is a container (:::name) or leaf (::name) directive block.
type Directive struct {
	ast.BaseBlock
	Name    Name
	RawName string
	Leaf    bool
	Label   string
	ID      string
	Classes []string
	Attrs   []Attribute

	fence int
}

// NewDirective returns an empty directive node. Mostly useful in tests;
// the block parser builds its own.
func NewDirective(rawName string, leaf bool) *Directive {
	fence := 3
	if leaf {
		fence = 2
	}
	return &Directive{Name: ParseName(rawName), RawName: rawName, Leaf: leaf, fence: fence}
}

func (n *Directive) Kind() ast.NodeKind { return KindDirective }

// Attr returns the value of a generic attribute.
func (n *Directive) Attr(key string) (string, bool) {
	return lookup(n.Attrs, key)
}

func (n *Directive) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Name":  n.RawName,
		"Leaf":  strconv.FormatBool(n.Leaf),
		"ID":    n.ID,
		"Label": n.Label,
	}, nil)
}

// Widget is the transformed form of a recognised directive.
type Widget struct {
	ast.BaseBlock
	Name  Name
	Attrs []Attribute
}

// NewWidget returns a widget of the given kind with no attributes.
func NewWidget(name Name) *Widget {
	return &Widget{Name: name}
}

func (n *Widget) Kind() ast.NodeKind { return KindWidget }

// SetAttr sets key, replacing an earlier value in place.
func (n *Widget) SetAttr(key, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Key == key {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attribute{Key: key, Value: value})
}

// Attr returns the value of key.
func (n *Widget) Attr(key string) (string, bool) {
	return lookup(n.Attrs, key)
}

func (n *Widget) Dump(source []byte, level int) {
	kv := map[string]string{"Name": n.Name.String()}
	for _, a := range n.Attrs {
		kv[a.Key] = a.Value
	}
	ast.DumpHelper(n, source, level, kv, nil)
}

// Slot holds one named region of a two-phase widget ("question", "answer",
// "exercise", "hint").
type Slot struct {
	ast.BaseBlock
	SlotName string
}

// NewSlot returns an empty slot.
func NewSlot(name string) *Slot {
	return &Slot{SlotName: name}
}

func (n *Slot) Kind() ast.NodeKind { return KindSlot }

func (n *Slot) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Slot": n.SlotName}, nil)
}

// Passthrough wraps the children of a reveal or hint that was not consumed
// by its parent block.
type Passthrough struct {
	ast.BaseBlock
	From Name
}

func (n *Passthrough) Kind() ast.NodeKind { return KindPassthrough }

func (n *Passthrough) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"From": n.From.String()}, nil)
}

func lookup(attrs []Attribute, key string) (string, bool) {
	for _, a := range attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// kebab turns an attribute key like chapterSlug into chapter-slug.
func kebab(key string) string {
	var b strings.Builder
	for i, r := range key {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
