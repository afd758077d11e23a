package intermediate

import (
	"path/filepath"
	"strings"

	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor/syntax"
	"github.com/walteh/gorazor/pkg/razor/taghelper"
)

type Options struct {
	DesignTime    bool
	RootNamespace string
	// ClassName overrides the name derived from the file path.
	ClassName      string
	DefaultImports []string
}

var (
	LegacyDefaultImports = []string{
		"System",
		"System.Collections.Generic",
		"System.Linq",
		"System.Threading.Tasks",
		"Microsoft.AspNetCore.Mvc",
		"Microsoft.AspNetCore.Mvc.Rendering",
		"Microsoft.AspNetCore.Mvc.ViewFeatures",
	}
	ComponentDefaultImports = []string{
		"System",
		"System.Collections.Generic",
		"System.Linq",
		"System.Threading.Tasks",
		"Microsoft.AspNetCore.Components",
	}
)

const (
	legacyNamespace    = "AspNetCoreGeneratedDocument"
	componentNamespace = "__GeneratedComponent"
	razorPageBase      = "global::Microsoft.AspNetCore.Mvc.Razor.RazorPage<"
	componentBase      = "global::Microsoft.AspNetCore.Components.ComponentBase"
)

type lowerer struct {
	tree *syntax.Tree
	opts Options
	doc  *Document
	seen map[string]bool
	th   map[*taghelper.TagHelperDescriptor]bool
}

// Lower turns a syntax tree into the document model the code generator writes out.
func Lower(tree *syntax.Tree, opts Options) *Document {
	l := &lowerer{
		tree: tree,
		opts: opts,
		seen: map[string]bool{},
		th:   map[*taghelper.TagHelperDescriptor]bool{},
		doc: &Document{
			FilePath:   tree.Source.FilePath,
			FileKind:   tree.Options.FileKind,
			DesignTime: opts.DesignTime,
			ClassName:  opts.ClassName,
		},
	}
	if l.doc.ClassName == "" {
		l.doc.ClassName = ClassNameFromPath(tree.Source.FilePath)
	}

	imports := opts.DefaultImports
	if imports == nil {
		imports = LegacyDefaultImports
		if l.doc.FileKind == syntax.FileKindComponent {
			imports = ComponentDefaultImports
		}
	}
	for _, ns := range imports {
		l.doc.Usings = append(l.doc.Usings, Synthetic(ns))
	}

	for _, n := range tree.Root.Children {
		l.lower(&l.doc.Body, n)
	}

	l.finish()
	return l.doc
}

func (l *lowerer) finish() {
	d := l.doc
	if d.Namespace.Content == "" {
		switch {
		case l.opts.RootNamespace != "":
			d.Namespace = Synthetic(l.opts.RootNamespace)
		case d.FileKind == syntax.FileKindComponent:
			d.Namespace = Synthetic(componentNamespace)
		default:
			d.Namespace = Synthetic(legacyNamespace)
		}
	}
	if len(d.BaseType) == 0 {
		if d.FileKind == syntax.FileKindComponent {
			d.BaseType = []Token{Synthetic(componentBase)}
		} else {
			d.BaseType = []Token{Synthetic(razorPageBase), Synthetic("dynamic"), Synthetic(">")}
		}
	}
}

func (l *lowerer) span(n *syntax.Node) *position.SourceSpan {
	s := l.tree.Source.Span(n.Start, n.Width)
	return &s
}

func (l *lowerer) mapped(n *syntax.Node) Token {
	return Token{Content: n.Text, Source: l.span(n)}
}

// directiveToken maps a directive token at its point of use, or in design-time output through a
// directive helper, in which case the returned token is unmapped.
func (l *lowerer) directiveToken(directive string, n *syntax.Node) Token {
	if !l.opts.DesignTime {
		return l.mapped(n)
	}
	l.doc.DirectiveHelpers = append(l.doc.DirectiveHelpers, DirectiveHelper{Directive: directive, Kind: n.TokenKind, Token: l.mapped(n)})
	return Synthetic(n.Text)
}

func appendHTML(out *[]*Node, content string) {
	if content == "" {
		return
	}
	if len(*out) > 0 {
		if last := (*out)[len(*out)-1]; last.Kind == KindHTML {
			last.Token.Content += content
			return
		}
	}
	*out = append(*out, &Node{Kind: KindHTML, Token: Synthetic(content)})
}

func (l *lowerer) lower(out *[]*Node, n *syntax.Node) {
	switch n.Kind {
	case syntax.KindRazorComment, syntax.KindMarkupTransition, syntax.KindTransition, syntax.KindMetaCode:
		return

	case syntax.KindMarkupEscapedTransition:
		appendHTML(out, "@")

	case syntax.KindRazorDirective:
		l.lowerDirective(out, n)

	case syntax.KindCSharpImplicitExpression, syntax.KindCSharpExplicitExpression:
		if code := n.Child(syntax.KindCSharpCode); code != nil {
			*out = append(*out, &Node{Kind: KindCSharpExpression, Token: l.mapped(code)})
		}

	case syntax.KindCSharpCode:
		*out = append(*out, &Node{Kind: KindCSharpCode, Token: l.mapped(n)})

	case syntax.KindCSharpCodeBlock, syntax.KindCSharpStatement:
		for _, c := range n.Children {
			l.lower(out, c)
		}

	case syntax.KindMarkupElement:
		if n.TagHelper != nil {
			*out = append(*out, l.lowerTagHelper(n))
			return
		}
		for _, c := range n.Children {
			l.lower(out, c)
		}

	case syntax.KindMarkupStartTag, syntax.KindMarkupEndTag:
		if n.IsTextTag {
			return
		}
		for _, c := range n.Children {
			l.lower(out, c)
		}

	default:
		if n.IsLeaf() {
			appendHTML(out, n.Text)
			return
		}
		for _, c := range n.Children {
			l.lower(out, c)
		}
	}
}

func (l *lowerer) lowerTagHelper(el *syntax.Node) *Node {
	th := &Node{Kind: KindTagHelper, Name: el.Name, TagHelper: el.TagHelper}
	for _, d := range el.TagHelper.Descriptors {
		if !l.th[d] {
			l.th[d] = true
			l.doc.TagHelpers = append(l.doc.TagHelpers, d)
		}
	}

	start := el.Child(syntax.KindMarkupStartTag)
	for _, a := range start.Children {
		if a.Kind != syntax.KindMarkupAttribute && a.Kind != syntax.KindMarkupMinimizedAttribute {
			continue
		}
		value := a.Child(syntax.KindMarkupAttributeValue)

		if a.BoundAttribute == nil {
			attr := &Node{Kind: KindTagHelperHTMLAttribute, Name: a.Name}
			if value != nil {
				for _, c := range value.Children {
					l.lower(&attr.Children, c)
				}
			}
			th.Children = append(th.Children, attr)
			continue
		}

		desc, _, _ := el.TagHelper.BoundAttribute(a.Name)
		prop := &Node{Kind: KindTagHelperProperty, Name: a.Name, BoundAttribute: a.BoundAttribute, Descriptor: desc}
		if a.BoundAttribute.IsStringProperty() {
			if value != nil {
				for _, c := range value.Children {
					l.lower(&prop.Children, c)
				}
			}
		} else {
			if value == nil {
				continue
			}
			code := value.Child(syntax.KindCSharpCode)
			if code == nil {
				continue
			}
			prop.Token = l.mapped(code)
		}
		th.Children = append(th.Children, prop)
	}

	for _, c := range el.Children {
		if c.Kind == syntax.KindMarkupStartTag || c.Kind == syntax.KindMarkupEndTag {
			continue
		}
		l.lower(&th.Body, c)
	}
	return th
}

func (l *lowerer) lowerDirective(out *[]*Node, n *syntax.Node) {
	tokens := syntax.DirectiveTokens(n)
	d, _ := syntax.LookupDirective(n.Name)
	if d == nil {
		return
	}
	if d.Name != "page" && len(tokens) < len(d.Tokens) {
		return
	}
	repeated := l.seen[n.Name]
	l.seen[n.Name] = true
	if d.SingleUse && repeated {
		return
	}

	doc := l.doc
	switch n.Name {
	case "using":
		doc.Usings = append(doc.Usings, l.mapped(tokens[0]))

	case "namespace":
		if doc.Namespace.Content == "" {
			doc.Namespace = l.directiveToken(n.Name, tokens[0])
		}

	case "model":
		model := l.directiveToken(n.Name, tokens[0])
		if !l.seen["inherits"] {
			doc.BaseType = []Token{Synthetic(razorPageBase), model, Synthetic(">")}
		}

	case "inherits":
		doc.BaseType = []Token{l.directiveToken(n.Name, tokens[0])}

	case "inject":
		doc.Injects = append(doc.Injects, Inject{
			Type:   l.directiveToken(n.Name, tokens[0]),
			Member: l.directiveToken(n.Name, tokens[1]),
		})

	case "page":
		if len(tokens) > 0 {
			t := l.directiveToken(n.Name, tokens[0])
			doc.PageRoute = &t
		} else {
			doc.PageRoute = &Token{}
		}

	case "attribute":
		doc.Attributes = append(doc.Attributes, l.mapped(tokens[0]))

	case "implements":
		doc.Interfaces = append(doc.Interfaces, l.directiveToken(n.Name, tokens[0]))

	case "layout":
		t := l.directiveToken(n.Name, tokens[0])
		doc.Layout = &t

	case "typeparam":
		doc.TypeParameters = append(doc.TypeParameters, l.directiveToken(n.Name, tokens[0]))

	case "functions", "code":
		for _, c := range n.Children {
			switch c.Kind {
			case syntax.KindCSharpCode:
				doc.Members = append(doc.Members, &Node{Kind: KindCSharpCode, Token: l.mapped(c)})
			case syntax.KindMarkupBlock:
				l.lower(&doc.Members, c)
			}
		}

	case "section":
		sec := &Node{Kind: KindSection, Name: tokens[0].Text}
		if l.opts.DesignTime {
			l.directiveToken(n.Name, tokens[0])
		}
		if body := n.Child(syntax.KindMarkupBlock); body != nil {
			for _, c := range body.Children {
				l.lower(&sec.Children, c)
			}
		}
		*out = append(*out, sec)
	}
}

// ClassNameFromPath derives a C# identifier from a document path.
func ClassNameFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var sb strings.Builder
	for i, r := range base {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "__GeneratedDocument"
	}
	return sb.String()
}
