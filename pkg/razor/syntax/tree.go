package syntax

import (
	"context"

	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor/diagnostics"
)

// Tree owns every node produced by one parse of one document version.
type Tree struct {
	Source      *position.Document
	Root        *Node
	Diagnostics []diagnostics.Diagnostic
	Options     Options
}

// Text returns the source text covered by n.
func (t *Tree) Text(n *Node) string {
	return t.Source.Text()[n.Start:n.End()]
}

// FindInnermostNode returns the most specific non-empty node containing index. An index at the
// very end of a node resolves to the last node ending there. Only an empty document yields nil.
func (t *Tree) FindInnermostNode(index int) *Node {
	if t.Root == nil || t.Root.Width == 0 {
		return nil
	}
	index = min(max(index, 0), t.Root.End())

	n := t.Root
	for {
		var next *Node
		for _, c := range n.Children {
			if c.Width > 0 && c.Start <= index && index < c.End() {
				next = c
				break
			}
		}
		if next == nil && index == n.End() {
			for i := len(n.Children) - 1; i >= 0; i-- {
				c := n.Children[i]
				if c.Width > 0 && c.End() == index {
					next = c
					break
				}
			}
		}
		if next == nil {
			return n
		}
		n = next
	}
}

// Directives returns every directive node named name, or all directives when name is empty, in
// document order.
func (t *Tree) Directives(name string) []*Node {
	var out []*Node
	Inspect(t.Root, func(n *Node) bool {
		if n.Kind == KindRazorDirective {
			if name == "" || n.Name == name {
				out = append(out, n)
			}
			return false
		}
		return true
	})
	return out
}

// DirectiveTokens returns the token nodes of a directive.
func DirectiveTokens(directive *Node) []*Node {
	return directive.ChildrenOf(KindDirectiveToken)
}

// Inspect visits n and its descendants depth first. fn returns false to skip a node's children.
func Inspect(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		Inspect(c, fn)
	}
}

// Walk visits the nodes overlapping span in document order. Subtrees entirely outside span are
// pruned before fn sees them, and ctx is checked between sibling subtrees.
func Walk(ctx context.Context, root *Node, span position.TextSpan, fn func(*Node) bool) error {
	if root == nil || !overlaps(root, span) {
		return nil
	}
	return walk(ctx, root, span, fn)
}

func walk(ctx context.Context, n *Node, span position.TextSpan, fn func(*Node) bool) error {
	if !fn(n) {
		return nil
	}
	for _, c := range n.Children {
		if !overlaps(c, span) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := walk(ctx, c, span, fn); err != nil {
			return err
		}
	}
	return nil
}

func overlaps(n *Node, span position.TextSpan) bool {
	if span.IsEmpty() || n.Width == 0 {
		return n.Span().OverlapsOrTouches(span)
	}
	return n.Span().Intersects(span)
}
