package codegen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor/diagnostics"
	"github.com/walteh/gorazor/pkg/razor/intermediate"
	"github.com/walteh/gorazor/pkg/razor/sourcemap"
	"github.com/walteh/gorazor/pkg/razor/syntax"
	"github.com/walteh/gorazor/pkg/razor/taghelper"
)

// VirtualCSharpSuffix is appended to a Razor path to name its generated C# document.
const VirtualCSharpSuffix = "__virtual.cs"

type Options struct {
	DesignTime     bool
	Nullable       bool
	RootNamespace  string
	DefaultImports []string
	IndentSize     int
	UseTabs        bool
}

// CSharpDocument is the generated C# for one Razor document version.
type CSharpDocument struct {
	*position.Document
	Mappings    *sourcemap.Table
	Diagnostics []diagnostics.Diagnostic
}

// Generate lowers tree and writes it out as C#.
func Generate(tree *syntax.Tree, opts Options) *CSharpDocument {
	ir := intermediate.Lower(tree, intermediate.Options{
		DesignTime:     opts.DesignTime,
		RootNamespace:  opts.RootNamespace,
		DefaultImports: opts.DefaultImports,
	})
	doc := Write(ir, opts)
	doc.Diagnostics = append([]diagnostics.Diagnostic(nil), tree.Diagnostics...)
	return doc
}

// Write renders a lowered document.
func Write(ir *intermediate.Document, opts Options) *CSharpDocument {
	g := &generator{
		ir:      ir,
		opts:    opts,
		w:       NewCodeWriter(opts.IndentSize, opts.UseTabs),
		builder: "__builder",
	}
	g.writeDocument()
	text, table := g.w.Finish(ir.FilePath + VirtualCSharpSuffix)
	return &CSharpDocument{Document: text, Mappings: table}
}

type generator struct {
	ir      *intermediate.Document
	opts    Options
	w       *CodeWriter
	seq     int
	helpers int
	builder string
}

func (g *generator) isComponent() bool {
	return g.ir.FileKind == syntax.FileKindComponent
}

func (g *generator) writeDocument() {
	w := g.w
	w.WriteLine("// <auto-generated/>")
	w.WriteLine("#pragma warning disable 1591")
	if g.opts.Nullable {
		w.WriteLine("#nullable enable")
	}

	w.Write("namespace ")
	g.writeToken(g.ir.Namespace)
	w.WriteLine("")
	w.Block("", func() {
		w.WriteLine("#line hidden")
		for _, u := range g.ir.Usings {
			g.writeUsing(u)
		}
		g.writeClass()
	})
	w.WriteLine("#pragma warning restore 1591")
}

func (g *generator) writeToken(t intermediate.Token) {
	if t.Source != nil {
		g.w.WriteMapped(t.Content, *t.Source)
		return
	}
	g.w.Write(t.Content)
}

func (g *generator) beginLinePragma(src position.SourceSpan) {
	g.w.EnsureNewLine()
	g.w.WriteLine(fmt.Sprintf("#line %d %q", src.LineIndex+1, g.ir.FilePath))
}

func (g *generator) endLinePragma() {
	g.w.EnsureNewLine()
	g.w.WriteLine("")
	g.w.WriteLine("#line default")
	g.w.WriteLine("#line hidden")
}

// writeMappedStatement writes prefix, the mapped token and suffix inside line pragmas. Design-time
// output pads the line so the mapped content keeps its original column.
func (g *generator) writeMappedStatement(prefix string, t intermediate.Token, suffix string) {
	if t.Source == nil {
		g.w.Write(prefix).Write(t.Content).WriteLine(suffix)
		return
	}
	g.beginLinePragma(*t.Source)
	if g.opts.DesignTime {
		g.w.WritePadding(prefix, *t.Source)
	}
	g.w.Write(prefix)
	g.w.WriteMapped(t.Content, *t.Source)
	g.w.Write(suffix)
	g.endLinePragma()
}

func (g *generator) writeUsing(u intermediate.Token) {
	if u.Source == nil {
		g.w.WriteLine("using " + u.Content + ";")
		return
	}
	g.writeMappedStatement("using ", u, ";")
}

func (g *generator) writeClass() {
	w := g.w
	ir := g.ir

	for _, a := range ir.Attributes {
		g.writeToken(a)
		w.WriteLine("")
	}
	if ir.PageRoute != nil && ir.PageRoute.Content != "" {
		w.Write(`[global::Microsoft.AspNetCore.Razor.Hosting.RazorCompiledItemMetadataAttribute("RouteTemplate", `)
		g.writeToken(*ir.PageRoute)
		w.WriteLine(")]")
	}
	if ir.Layout != nil {
		w.Write("[global::Microsoft.AspNetCore.Components.LayoutAttribute(typeof(")
		g.writeToken(*ir.Layout)
		w.WriteLine("))]")
	}

	if g.isComponent() {
		w.Write("public partial class " + ir.ClassName)
	} else {
		w.Write("public class " + ir.ClassName)
	}
	if len(ir.TypeParameters) > 0 {
		w.Write("<")
		for i, tp := range ir.TypeParameters {
			if i > 0 {
				w.Write(", ")
			}
			g.writeToken(tp)
		}
		w.Write(">")
	}
	w.Write(" : ")
	for _, t := range ir.BaseType {
		g.writeToken(t)
	}
	for _, i := range ir.Interfaces {
		w.Write(", ")
		g.writeToken(i)
	}
	w.WriteLine("")

	w.Block("", func() {
		if g.opts.DesignTime {
			g.writeDirectiveHelpers()
		}
		g.writeTagHelperFields()
		g.writeMethod()
		g.writeInjects()
		g.writeMembers()
	})
}

func (g *generator) writeDirectiveHelpers() {
	w := g.w
	if len(g.ir.DirectiveHelpers) > 0 {
		w.WriteLine("#pragma warning disable 219")
		w.Block("private void __RazorDirectiveTokenHelpers__()", func() {
			for _, h := range g.ir.DirectiveHelpers {
				w.WriteLine("((global::System.Action)(() => {")
				g.writeDirectiveHelper(h)
				w.WriteLine("}")
				w.WriteLine("))();")
			}
		})
		w.WriteLine("#pragma warning restore 219")
	}
	w.WriteLine("#pragma warning disable 0414")
	w.WriteLine("private static object __o = null;")
	w.WriteLine("#pragma warning restore 0414")
}

func (g *generator) writeDirectiveHelper(h intermediate.DirectiveHelper) {
	switch h.Kind {
	case syntax.TokenType:
		suffix := " __typeHelper = default(" + h.Token.Content + ");"
		if g.opts.Nullable {
			suffix = " __typeHelper = default!;"
		}
		g.writeMappedStatement("", h.Token, suffix)
	case syntax.TokenNamespace:
		g.writeMappedStatement("global::System.Object __typeHelper = nameof(", h.Token, ");")
	case syntax.TokenMember:
		suffix := " = null;"
		if g.opts.Nullable {
			suffix = " = null!;"
		}
		g.writeMappedStatement("global::System.Object ", h.Token, suffix)
	default:
		g.writeMappedStatement("global::System.Object __typeHelper = ", h.Token, ";")
	}
}

func tagHelperField(d *taghelper.TagHelperDescriptor) string {
	return "__" + strings.NewReplacer(".", "_", "<", "_", ">", "_", ",", "_", " ", "").Replace(d.TypeName)
}

func (g *generator) writeTagHelperFields() {
	if g.isComponent() || len(g.ir.TagHelpers) == 0 {
		return
	}
	w := g.w
	if !g.opts.DesignTime {
		w.WriteLine("#line hidden")
		w.WriteLine("#pragma warning disable 0649")
		w.WriteLine("private global::Microsoft.AspNetCore.Razor.Runtime.TagHelpers.TagHelperExecutionContext __tagHelperExecutionContext;")
		w.WriteLine("#pragma warning restore 0649")
		w.WriteLine("private global::Microsoft.AspNetCore.Razor.Runtime.TagHelpers.TagHelperRunner __tagHelperRunner = new global::Microsoft.AspNetCore.Razor.Runtime.TagHelpers.TagHelperRunner();")
		w.WriteLine("private global::Microsoft.AspNetCore.Razor.Runtime.TagHelpers.TagHelperScopeManager __tagHelperScopeManager = null;")
	}
	for _, d := range g.ir.TagHelpers {
		w.WriteLine("private global::" + d.TypeName + " " + tagHelperField(d) + " = null;")
	}
}

func (g *generator) writeMethod() {
	w := g.w
	w.WriteLine("#pragma warning disable 1998")
	header := "public async override global::System.Threading.Tasks.Task ExecuteAsync()"
	if g.isComponent() {
		header = "protected override void BuildRenderTree(global::Microsoft.AspNetCore.Components.Rendering.RenderTreeBuilder __builder)"
	}
	w.Block(header, func() {
		g.writeBody(g.ir.Body)
	})
	w.WriteLine("#pragma warning restore 1998")
}

func (g *generator) writeInjects() {
	w := g.w
	for _, in := range g.ir.Injects {
		w.WriteLine("[global::Microsoft.AspNetCore.Mvc.Razor.Internal.RazorInjectAttribute]")
		w.Write("public ")
		g.writeToken(in.Type)
		w.Write(" ")
		g.writeToken(in.Member)
		if g.opts.Nullable {
			w.WriteLine(" { get; private set; } = default!;")
		} else {
			w.WriteLine(" { get; private set; }")
		}
	}
}

func (g *generator) writeMembers() {
	for _, m := range g.ir.Members {
		switch m.Kind {
		case intermediate.KindCSharpCode:
			g.writeMappedStatement("", m.Token, "")
		default:
			g.writeBody([]*intermediate.Node{m})
		}
	}
}

func (g *generator) nextSeq() int {
	s := g.seq
	g.seq++
	return s
}

func (g *generator) writeBody(nodes []*intermediate.Node) {
	w := g.w
	for _, n := range nodes {
		switch n.Kind {
		case intermediate.KindHTML:
			if g.opts.DesignTime {
				continue
			}
			if g.isComponent() {
				w.WriteLine(fmt.Sprintf("%s.AddMarkupContent(%d, %s);", g.builder, g.nextSeq(), QuoteString(n.Token.Content)))
			} else {
				w.WriteLine("WriteLiteral(" + QuoteString(n.Token.Content) + ");")
			}

		case intermediate.KindCSharpExpression:
			switch {
			case g.opts.DesignTime:
				g.writeMappedStatement("__o = ", n.Token, ";")
			case g.isComponent():
				g.writeMappedStatement(fmt.Sprintf("%s.AddContent(%d, ", g.builder, g.nextSeq()), n.Token, ");")
			default:
				g.writeMappedStatement("Write(", n.Token, ");")
			}

		case intermediate.KindCSharpCode:
			g.writeMappedStatement("", n.Token, "")

		case intermediate.KindSection:
			g.writeSection(n)

		case intermediate.KindTagHelper:
			if g.isComponent() {
				g.writeComponent(n)
			} else {
				g.writeTagHelper(n)
			}
		}
	}
}

func (g *generator) writeSection(n *intermediate.Node) {
	w := g.w
	if g.isComponent() {
		g.writeBody(n.Children)
		return
	}
	lambda := "async() => {"
	if g.opts.DesignTime {
		lambda = "async(__razor_section_writer) => {"
	}
	w.WriteLine("DefineSection(" + QuoteString(n.Name) + ", " + lambda)
	w.Indent()
	g.writeBody(n.Children)
	w.Dedent()
	w.EnsureNewLine()
	w.WriteLine("}")
	w.WriteLine(");")
}

// writeValue writes an attribute value made of literal text and expressions as one C# expression.
func (g *generator) writeValue(parts []*intermediate.Node) {
	w := g.w
	if len(parts) == 0 {
		w.Write(`""`)
		return
	}
	for i, p := range parts {
		if i > 0 {
			w.Write(" + ")
		}
		switch p.Kind {
		case intermediate.KindCSharpExpression:
			w.Write("(")
			g.writeToken(p.Token)
			w.Write(")")
		default:
			w.Write(QuoteString(p.Token.Content))
		}
	}
}

// writeValueExpressions writes only the expressions of an attribute value, for design-time output.
func (g *generator) writeValueExpressions(parts []*intermediate.Node) {
	for _, p := range parts {
		if p.Kind == intermediate.KindCSharpExpression {
			g.writeMappedStatement("__o = ", p.Token, ";")
		}
	}
}

func (g *generator) tagHelperID(n *intermediate.Node) string {
	g.helpers++
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%s#%d", g.ir.FilePath, n.Name, g.helpers)))
	return strings.ReplaceAll(id.String(), "-", "")
}

func (g *generator) writeTagHelper(n *intermediate.Node) {
	w := g.w
	design := g.opts.DesignTime

	if !design {
		w.WriteLine(fmt.Sprintf("__tagHelperExecutionContext = __tagHelperScopeManager.Begin(%s, global::Microsoft.AspNetCore.Razor.TagHelpers.TagMode.StartTagAndEndTag, %q, async() => {",
			QuoteString(n.Name), g.tagHelperID(n)))
		w.Indent()
		g.writeBody(n.Body)
		w.Dedent()
		w.EnsureNewLine()
		w.WriteLine("}")
		w.WriteLine(");")
	}

	for _, d := range n.TagHelper.Descriptors {
		w.WriteLine(tagHelperField(d) + " = CreateTagHelper<global::" + d.TypeName + ">();")
		if !design {
			w.WriteLine("__tagHelperExecutionContext.Add(" + tagHelperField(d) + ");")
		}
	}

	for _, c := range n.Children {
		switch c.Kind {
		case intermediate.KindTagHelperProperty:
			target := tagHelperField(c.Descriptor) + "." + c.BoundAttribute.PropertyName
			if c.BoundAttribute.IsStringProperty() {
				if design {
					g.writeValueExpressions(c.Children)
				} else {
					w.Write(target + " = ")
					g.writeValue(c.Children)
					w.WriteLine(";")
				}
			} else {
				g.writeMappedStatement(target+" = ", c.Token, ";")
			}
			if !design {
				w.WriteLine(fmt.Sprintf("__tagHelperExecutionContext.AddTagHelperAttribute(%s, %s, global::Microsoft.AspNetCore.Razor.TagHelpers.HtmlAttributeValueStyle.DoubleQuotes);",
					QuoteString(c.Name), target))
			}

		case intermediate.KindTagHelperHTMLAttribute:
			if design {
				g.writeValueExpressions(c.Children)
				continue
			}
			w.Write("__tagHelperExecutionContext.AddHtmlAttribute(" + QuoteString(c.Name) + ", ")
			g.writeValue(c.Children)
			w.WriteLine(", global::Microsoft.AspNetCore.Razor.TagHelpers.HtmlAttributeValueStyle.DoubleQuotes);")
		}
	}

	if design {
		g.writeBody(n.Body)
		return
	}
	w.WriteLine("await __tagHelperRunner.RunAsync(__tagHelperExecutionContext);")
	w.Block("if (!__tagHelperExecutionContext.Output.IsContentModified)", func() {
		w.WriteLine("await __tagHelperExecutionContext.SetOutputContentAsync();")
	})
	w.WriteLine("Write(__tagHelperExecutionContext.Output);")
	w.WriteLine("__tagHelperExecutionContext = __tagHelperScopeManager.End();")
}

func (g *generator) writeComponent(n *intermediate.Node) {
	w := g.w
	typeName := n.TagHelper.Descriptors[0].TypeName
	w.WriteLine(fmt.Sprintf("%s.OpenComponent<global::%s>(%d);", g.builder, typeName, g.nextSeq()))

	for _, c := range n.Children {
		if c.Kind != intermediate.KindTagHelperProperty {
			continue
		}
		prefix := fmt.Sprintf("%s.AddAttribute(%d, %s, ", g.builder, g.nextSeq(), QuoteString(c.BoundAttribute.PropertyName))
		if c.BoundAttribute.IsStringProperty() {
			w.Write(prefix)
			g.writeValue(c.Children)
			w.WriteLine(");")
			continue
		}
		g.writeMappedStatement(prefix, c.Token, ");")
	}

	if len(n.Body) > 0 {
		outer := g.builder
		inner := fmt.Sprintf("__builder%d", g.helpers+2)
		g.helpers++
		w.WriteLine(fmt.Sprintf("%s.AddAttribute(%d, \"ChildContent\", (global::Microsoft.AspNetCore.Components.RenderFragment)((%s) => {", outer, g.nextSeq(), inner))
		w.Indent()
		g.builder = inner
		g.writeBody(n.Body)
		g.builder = outer
		w.Dedent()
		w.EnsureNewLine()
		w.WriteLine("}")
		w.WriteLine("));")
	}
	w.WriteLine(g.builder + ".CloseComponent();")
}
