package syntax

import (
	"fmt"
	"strings"

	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor/taghelper"
)

type Kind int

const (
	KindDocument Kind = iota

	// markup
	KindMarkupBlock
	KindMarkupText
	KindMarkupElement
	KindMarkupStartTag
	KindMarkupEndTag
	KindMarkupTagDelimiter
	KindMarkupTagName
	KindMarkupAttribute
	KindMarkupMinimizedAttribute
	KindMarkupAttributeName
	KindMarkupAttributeOperator
	KindMarkupAttributeQuote
	KindMarkupAttributeValue
	KindMarkupComment
	KindMarkupEscapedTransition
	KindMarkupTransition

	// razor
	KindTransition
	KindMetaCode
	KindRazorComment
	KindRazorCommentTransition
	KindRazorCommentStar
	KindRazorCommentLiteral
	KindRazorDirective
	KindRazorDirectiveKeyword
	KindWhitespace

	// csharp
	KindCSharpCodeBlock
	KindCSharpStatement
	KindCSharpExplicitExpression
	KindCSharpImplicitExpression
	KindCSharpCode
	KindDirectiveToken
)

var kindNames = map[Kind]string{
	KindDocument:                 "Document",
	KindMarkupBlock:              "MarkupBlock",
	KindMarkupText:               "MarkupText",
	KindMarkupElement:            "MarkupElement",
	KindMarkupStartTag:           "MarkupStartTag",
	KindMarkupEndTag:             "MarkupEndTag",
	KindMarkupTagDelimiter:       "MarkupTagDelimiter",
	KindMarkupTagName:            "MarkupTagName",
	KindMarkupAttribute:          "MarkupAttribute",
	KindMarkupMinimizedAttribute: "MarkupMinimizedAttribute",
	KindMarkupAttributeName:      "MarkupAttributeName",
	KindMarkupAttributeOperator:  "MarkupAttributeOperator",
	KindMarkupAttributeQuote:     "MarkupAttributeQuote",
	KindMarkupAttributeValue:     "MarkupAttributeValue",
	KindMarkupComment:            "MarkupComment",
	KindMarkupEscapedTransition:  "MarkupEscapedTransition",
	KindMarkupTransition:         "MarkupTransition",
	KindTransition:               "Transition",
	KindMetaCode:                 "MetaCode",
	KindRazorComment:             "RazorComment",
	KindRazorCommentTransition:   "RazorCommentTransition",
	KindRazorCommentStar:         "RazorCommentStar",
	KindRazorCommentLiteral:      "RazorCommentLiteral",
	KindRazorDirective:           "RazorDirective",
	KindRazorDirectiveKeyword:    "RazorDirectiveKeyword",
	KindWhitespace:               "Whitespace",
	KindCSharpCodeBlock:          "CSharpCodeBlock",
	KindCSharpStatement:          "CSharpStatement",
	KindCSharpExplicitExpression: "CSharpExplicitExpression",
	KindCSharpImplicitExpression: "CSharpImplicitExpression",
	KindCSharpCode:               "CSharpCode",
	KindDirectiveToken:           "DirectiveToken",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsCSharp reports whether nodes of this kind carry C# source that is lowered into the generated document.
func (k Kind) IsCSharp() bool {
	switch k {
	case KindCSharpCode, KindDirectiveToken:
		return true
	}
	return false
}

// TokenKind describes what a directive token holds.
type TokenKind int

const (
	TokenNone TokenKind = iota
	TokenType
	TokenMember
	TokenNamespace
	TokenString
	TokenAttribute
)

func (t TokenKind) String() string {
	switch t {
	case TokenType:
		return "type"
	case TokenMember:
		return "member"
	case TokenNamespace:
		return "namespace"
	case TokenString:
		return "string"
	case TokenAttribute:
		return "attribute"
	}
	return "none"
}

// Node is a single element of the syntax tree. Leaves carry their source text; composite nodes
// span from their first to their last child. Nodes are never modified once Parse returns.
type Node struct {
	Kind     Kind
	Start    int
	Width    int
	Parent   *Node
	Children []*Node

	// Text is set on leaves only.
	Text string

	// Name is the tag name for elements and tags, the attribute name for attributes and the
	// keyword for directives.
	Name string

	// TokenKind is set on directive tokens.
	TokenKind TokenKind

	// TagHelper is set on elements bound to at least one tag helper.
	TagHelper *taghelper.Binding

	// BoundAttribute is set on attributes of tag helper elements that bind to a property.
	BoundAttribute *taghelper.BoundAttributeDescriptor

	IsTextTag     bool
	IsSelfClosing bool
}

func (n *Node) End() int {
	return n.Start + n.Width
}

func (n *Node) Span() position.TextSpan {
	return position.TextSpan{Start: n.Start, Length: n.Width}
}

func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Child returns the first direct child of the given kind.
func (n *Node) Child(kind Kind) *Node {
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

func (n *Node) ChildrenOf(kind Kind) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Ancestor walks up the parent chain and returns the first node of the given kind.
func (n *Node) Ancestor(kind Kind) *Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Kind == kind {
			return p
		}
	}
	return nil
}

// Element returns the element owning a tag, tag name or attribute node.
func (n *Node) Element() *Node {
	if n.Kind == KindMarkupElement {
		return n
	}
	return n.Ancestor(KindMarkupElement)
}

func (n *Node) String() string {
	if n.IsLeaf() {
		return fmt.Sprintf("%s[%d..%d) %q", n.Kind, n.Start, n.End(), n.Text)
	}
	return fmt.Sprintf("%s[%d..%d)", n.Kind, n.Start, n.End())
}

// Dump renders the subtree rooted at n, one node per line. Used by tests and the tokens command.
func Dump(n *Node) string {
	var sb strings.Builder
	var rec func(n *Node, depth int)
	rec = func(n *Node, depth int) {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(n.String())
		if n.Name != "" {
			sb.WriteString(" name=" + n.Name)
		}
		if n.TokenKind != TokenNone {
			sb.WriteString(" token=" + n.TokenKind.String())
		}
		if n.TagHelper != nil {
			sb.WriteString(" taghelper")
		}
		sb.WriteString("\n")
		for _, c := range n.Children {
			rec(c, depth+1)
		}
	}
	rec(n, 0)
	return sb.String()
}

func newLeaf(kind Kind, src string, start int, end int) *Node {
	return &Node{Kind: kind, Start: start, Width: end - start, Text: src[start:end]}
}

// newComposite builds a node around children. start is used when children is empty.
func newComposite(kind Kind, start int, children ...*Node) *Node {
	n := &Node{Kind: kind, Start: start}
	n.setChildren(children)
	return n
}

func (n *Node) setChildren(children []*Node) {
	kept := children[:0:0]
	for _, c := range children {
		if c != nil {
			kept = append(kept, c)
		}
	}
	n.Children = kept
	for _, c := range kept {
		c.Parent = n
	}
	if len(kept) > 0 {
		n.Start = kept[0].Start
		n.Width = kept[len(kept)-1].End() - n.Start
	}
}
