package directive

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

type blockParser struct{}

var defaultBlockParser = &blockParser{}

// NewParser returns a block parser for container (:::name) and leaf
// (::name) directives.
//
//	:::question{#q-latency}
//	Why is p99 latency a better target than the mean?
//	::reveal
//	Because tail latency is what users feel.
//	:::
//
// A closing fence needs at least as many colons as its opening fence and
// always closes the innermost open container.
func NewParser() parser.BlockParser {
	return defaultBlockParser
}

func (p *blockParser) Trigger() []byte {
	return []byte{':'}
}

func (p *blockParser) Open(parent ast.Node, reader text.Reader, pc parser.Context) (ast.Node, parser.State) {
	line, segment := reader.PeekLine()
	pos := pc.BlockOffset()
	if pos < 0 || pos >= len(line) || line[pos] != ':' {
		return nil, parser.NoChildren
	}

	fence := 0
	for i := pos; i < len(line) && line[i] == ':'; i++ {
		fence++
	}
	if fence < 2 {
		return nil, parser.NoChildren
	}

	h, ok := parseHeader(line, pos+fence)
	if !ok {
		return nil, parser.NoChildren
	}

	node := &Directive{
		Name:    ParseName(h.name),
		RawName: h.name,
		Leaf:    fence == 2,
		ID:      h.id,
		Classes: h.classes,
		Attrs:   h.attrs,
		fence:   fence,
	}
	if h.labelStart >= 0 {
		node.Label = string(line[h.labelStart:h.labelStop])
	}

	if node.Leaf {
		// The label becomes the leaf's inline content.
		if h.labelStop > h.labelStart && h.labelStart >= 0 {
			start := segment.Start - segment.Padding + h.labelStart
			node.Lines().Append(text.NewSegment(start, start+h.labelStop-h.labelStart))
		}
		advanceToLineEnd(reader, line, segment)
		return node, parser.NoChildren
	}

	advanceToLineEnd(reader, line, segment)
	return node, parser.HasChildren
}

func (p *blockParser) Continue(node ast.Node, reader text.Reader, pc parser.Context) parser.State {
	d := node.(*Directive)
	if d.Leaf {
		return parser.Close
	}

	line, segment := reader.PeekLine()
	if line == nil {
		return parser.Close
	}
	if isClosingFence(line, reader.LineOffset(), d.fence) && !innerBlockOwnsFence(d, pc) {
		advanceToLineEnd(reader, line, segment)
		return parser.Close
	}
	return parser.Continue | parser.HasChildren
}

func (p *blockParser) Close(node ast.Node, reader text.Reader, pc parser.Context) {}

func (p *blockParser) CanInterruptParagraph() bool {
	return true
}

func (p *blockParser) CanAcceptIndentedLine() bool {
	return false
}

func advanceToLineEnd(reader text.Reader, line []byte, segment text.Segment) {
	n := segment.Len()
	if len(line) > 0 && line[len(line)-1] == '\n' {
		n--
	}
	if n > 0 {
		reader.Advance(n)
	}
}

func isClosingFence(line []byte, offset, fence int) bool {
	w, pos := util.IndentWidth(line, offset)
	if w > 3 {
		return false
	}
	n := 0
	for i := pos; i < len(line) && line[i] == ':'; i++ {
		n++
	}
	return n >= fence && util.IsBlank(line[pos+n:])
}

// innerBlockOwnsFence reports whether a container directive or fenced code
// block is open inside d. Such a block gets the fence line first.
func innerBlockOwnsFence(d *Directive, pc parser.Context) bool {
	below := false
	for _, b := range pc.OpenedBlocks() {
		if b.Node == ast.Node(d) {
			below = true
			continue
		}
		if !below {
			continue
		}
		if inner, ok := b.Node.(*Directive); ok && !inner.Leaf {
			return true
		}
		if b.Node.Kind() == ast.KindFencedCodeBlock {
			return true
		}
	}
	return false
}

type header struct {
	name       string
	labelStart int
	labelStop  int
	id         string
	classes    []string
	attrs      []Attribute
}

// parseHeader reads name[label]{attrs} starting at i. Trailing text other
// than whitespace rejects the line.
func parseHeader(line []byte, i int) (header, bool) {
	h := header{labelStart: -1, labelStop: -1}
	if i >= len(line) || !isNameStart(line[i]) {
		return h, false
	}
	start := i
	for i < len(line) && isNameChar(line[i]) {
		i++
	}
	h.name = string(line[start:i])

	if i < len(line) && line[i] == '[' {
		end := closingBracket(line, i)
		if end < 0 {
			return h, false
		}
		h.labelStart, h.labelStop = i+1, end
		i = end + 1
	}

	if i < len(line) && line[i] == '{' {
		next, ok := parseAttributes(line, i+1, &h)
		if !ok {
			return h, false
		}
		i = next
	}

	if !util.IsBlank(line[i:]) {
		return h, false
	}
	return h, true
}

func closingBracket(line []byte, open int) int {
	depth := 0
	for i := open; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		case '\n':
			return -1
		}
	}
	return -1
}

// parseAttributes reads {#id .class key=value key="v w" key='v' flag} after
// the opening brace and returns the index after the closing brace.
func parseAttributes(line []byte, i int, h *header) (int, bool) {
	for {
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		if i >= len(line) || line[i] == '\n' {
			return i, false
		}

		switch c := line[i]; {
		case c == '}':
			return i + 1, true
		case c == '#' || c == '.':
			j := i + 1
			for j < len(line) && isShortcutChar(line[j]) {
				j++
			}
			if j == i+1 {
				return i, false
			}
			if c == '#' {
				h.id = string(line[i+1 : j])
			} else {
				h.classes = append(h.classes, string(line[i+1:j]))
			}
			i = j
		default:
			j := i
			for j < len(line) && isKeyChar(line[j]) {
				j++
			}
			if j == i {
				return i, false
			}
			key := string(line[i:j])
			i = j
			if i >= len(line) || line[i] != '=' {
				h.attrs = append(h.attrs, Attribute{Key: key})
				continue
			}
			value, next, ok := attributeValue(line, i+1)
			if !ok {
				return i, false
			}
			i = next
			switch key {
			case "id":
				h.id = value
			case "class":
				h.classes = append(h.classes, strings.Fields(value)...)
			default:
				h.attrs = append(h.attrs, Attribute{Key: key, Value: value})
			}
		}
	}
}

func attributeValue(line []byte, i int) (string, int, bool) {
	if i >= len(line) {
		return "", i, false
	}
	if q := line[i]; q == '"' || q == '\'' {
		for j := i + 1; j < len(line); j++ {
			if line[j] == q {
				return string(line[i+1 : j]), j + 1, true
			}
			if line[j] == '\n' {
				break
			}
		}
		return "", i, false
	}
	j := i
	for j < len(line) && !util.IsSpace(line[j]) && line[j] != '}' && line[j] != '"' && line[j] != '\'' {
		j++
	}
	return string(line[i:j]), j, true
}

func isNameStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isKeyChar(c byte) bool {
	return isNameChar(c) || c == ':'
}

func isShortcutChar(c byte) bool {
	return !util.IsSpace(c) && c != '}' && c != '#' && c != '.' && c != '"' && c != '\'' && c != '='
}
