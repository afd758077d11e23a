/*
Razor Tree Visitor:
------------------

The visitor walks only the part of the syntax tree that overlaps the requested span and classifies
the leaves the Razor language owns:

	Syntax Leaf                  Token Type
	-----------                  ----------
	MarkupTagDelimiter     ->    markupTagDelimiter
	MarkupTagName          ->    markupElement | razorTagHelperElement
	MarkupAttributeName    ->    markupAttribute | razorTagHelperAttribute
	MarkupAttributeValue   ->    markupAttributeValue
	Transition / MetaCode  ->    razorTransition
	DirectiveKeyword       ->    razorDirective
	@* ... *@              ->    razorCommentTransition, razorCommentStar, razorComment

C# text is left alone; its tokens come from the C# service.
*/
package semtok

import (
	"context"
	"strings"

	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor"
	"github.com/walteh/gorazor/pkg/razor/syntax"
)

type razorVisitor struct {
	doc             *razor.CodeDocument
	legend          *Legend
	span            position.TextSpan
	target          *[]SemanticRange
	colorBackground bool
}

// AddSemanticRanges appends a range for every Razor owned leaf overlapping span. Subtrees outside
// span are never entered and ctx is checked between subtrees.
func AddSemanticRanges(ctx context.Context, target *[]SemanticRange, doc *razor.CodeDocument, span position.TextSpan, legend *Legend, colorBackground bool) error {
	if doc == nil || doc.Tree == nil {
		return nil
	}
	v := &razorVisitor{doc: doc, legend: legend, span: span, target: target, colorBackground: colorBackground}
	return syntax.Walk(ctx, doc.Tree.Root, span, func(n *syntax.Node) bool {
		if n.IsLeaf() {
			v.visitLeaf(n)
		}
		return true
	})
}

func (v *razorVisitor) visitLeaf(n *syntax.Node) {
	if n.Width == 0 {
		return
	}
	switch n.Kind {
	case syntax.KindMarkupTagDelimiter:
		if tag := n.Parent; tag != nil && tag.IsTextTag {
			v.add(n, TypeRazorTransition)
			return
		}
		v.add(n, TypeMarkupTagDelimiter)

	case syntax.KindMarkupTagName:
		el := n.Element()
		switch {
		case n.Parent != nil && n.Parent.IsTextTag:
			v.add(n, TypeRazorTransition)
		case el != nil && el.TagHelper != nil:
			v.add(n, TypeRazorTagHelperElement)
		default:
			v.add(n, TypeMarkupElement)
		}

	case syntax.KindMarkupAttributeName:
		if n.Parent != nil && n.Parent.BoundAttribute != nil {
			v.add(n, TypeRazorTagHelperAttribute)
			return
		}
		v.add(n, TypeMarkupAttribute)

	case syntax.KindMarkupAttributeOperator:
		v.add(n, TypeMarkupOperator)

	case syntax.KindMarkupAttributeQuote:
		v.add(n, TypeMarkupAttributeQuote)

	case syntax.KindMarkupText:
		if n.Parent != nil && n.Parent.Kind == syntax.KindMarkupAttributeValue {
			v.add(n, TypeMarkupAttributeValue)
		}

	case syntax.KindMarkupComment:
		v.addComment(n)

	case syntax.KindTransition, syntax.KindMetaCode, syntax.KindMarkupTransition:
		mod := 0
		if v.colorBackground && n.Ancestor(syntax.KindCSharpCodeBlock) != nil {
			mod = v.legend.Modifier(ModifierRazorCode)
		}
		v.addSpan(n.Start, n.End(), TypeRazorTransition, mod)

	case syntax.KindRazorDirectiveKeyword:
		v.add(n, TypeRazorDirective)

	case syntax.KindRazorCommentTransition:
		v.add(n, TypeRazorCommentTransition)

	case syntax.KindRazorCommentStar:
		v.add(n, TypeRazorCommentStar)

	case syntax.KindRazorCommentLiteral:
		v.add(n, TypeRazorComment)
	}
}

func (v *razorVisitor) addComment(n *syntax.Node) {
	text := n.Text
	start, end := n.Start, n.End()
	if strings.HasPrefix(text, "<!--") {
		v.addSpan(start, start+4, TypeMarkupCommentPunctuation, 0)
		start += 4
	}
	closing := strings.HasSuffix(text, "-->") && end-3 >= start
	if closing {
		end -= 3
	}
	v.addSpan(start, end, TypeMarkupComment, 0)
	if closing {
		v.addSpan(end, end+3, TypeMarkupCommentPunctuation, 0)
	}
}

func (v *razorVisitor) add(n *syntax.Node, tokenType string) {
	v.addSpan(n.Start, n.End(), tokenType, 0)
}

// addSpan splits [start, end) into one range per line and skips the empty pieces.
func (v *razorVisitor) addSpan(start, end int, tokenType string, modifier int) {
	if end <= start || !position.NewTextSpanFromBounds(start, end).Intersects(v.span) {
		return
	}
	src := v.doc.Source
	kind := v.legend.Type(tokenType)
	first := src.Location(start)
	last := src.Location(end)
	for line := first.Line; line <= last.Line; line++ {
		s := max(start, src.LineStart(line))
		e := min(end, src.LineEnd(line))
		if e <= s {
			continue
		}
		from, to := src.Location(s), src.Location(e)
		*v.target = append(*v.target, SemanticRange{
			Kind:           kind,
			StartLine:      line,
			StartCharacter: from.Character,
			EndLine:        line,
			EndCharacter:   to.Character,
			Modifier:       modifier,
			FromRazor:      true,
		})
	}
}
