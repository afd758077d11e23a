package codegen

import (
	"strings"
	"unicode/utf16"

	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor/syntax"
)

// VirtualHTMLSuffix is appended to a Razor path to name its HTML projection.
const VirtualHTMLSuffix = "__virtual.html"

func isMarkup(k syntax.Kind) bool {
	return k >= syntax.KindMarkupBlock && k <= syntax.KindMarkupEscapedTransition
}

// ProjectHTML returns the Razor text with every C# and Razor construct replaced by spaces. Line
// breaks are kept and each rune is blanked with as many spaces as its UTF-16 length, so a
// line/character position means the same thing in both documents.
func ProjectHTML(tree *syntax.Tree) *position.Document {
	var sb strings.Builder
	sb.Grow(tree.Source.Length())
	project(&sb, tree.Root, false)
	return position.NewDocument(tree.Source.FilePath+VirtualHTMLSuffix, sb.String())
}

func project(sb *strings.Builder, n *syntax.Node, blank bool) {
	if (n.Kind == syntax.KindMarkupStartTag || n.Kind == syntax.KindMarkupEndTag) && n.IsTextTag {
		blank = true
	}
	if !n.IsLeaf() {
		for _, c := range n.Children {
			project(sb, c, blank)
		}
		return
	}

	keep := !blank && isMarkup(n.Kind)
	if n.Kind == syntax.KindWhitespace && n.Parent != nil && isMarkup(n.Parent.Kind) {
		keep = !blank
	}
	switch {
	case keep && n.Kind == syntax.KindMarkupEscapedTransition:
		sb.WriteString("@ ")
	case keep:
		sb.WriteString(n.Text)
	default:
		blankOut(sb, n.Text)
	}
}

func blankOut(sb *strings.Builder, s string) {
	for _, r := range s {
		switch r {
		case '\n', '\r':
			sb.WriteRune(r)
		default:
			sb.WriteString(strings.Repeat(" ", utf16.RuneLen(r)))
		}
	}
}
