package directive

import "github.com/yuin/goldmark/ast"

// SplitAt divides children at the first leaf directive named marker found
// at the top level of the list. before holds the nodes preceding it; after
// holds the marker's own children followed by every later sibling.
// Markers nested deeper are not looked for. Without a marker, before is
// children and after is empty.
//
// SplitAt does not modify the tree.
func SplitAt(children []ast.Node, marker Name) (before, after []ast.Node, found bool) {
	for i, child := range children {
		d, ok := child.(*Directive)
		if !ok || !d.Leaf || d.Name != marker {
			continue
		}
		before = children[:i:i]
		for c := d.FirstChild(); c != nil; c = c.NextSibling() {
			after = append(after, c)
		}
		after = append(after, children[i+1:]...)
		return before, after, true
	}
	return children, nil, false
}

// childList snapshots n's children so they can be moved while iterating.
func childList(n ast.Node) []ast.Node {
	out := make([]ast.Node, 0, n.ChildCount())
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out = append(out, c)
	}
	return out
}
