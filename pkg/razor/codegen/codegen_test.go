package codegen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/gorazor/pkg/diff"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor/codegen"
	"github.com/walteh/gorazor/pkg/razor/syntax"
	"github.com/walteh/gorazor/pkg/razor/taghelper"
)

func binder() *taghelper.Binder {
	return taghelper.NewBinder([]*taghelper.TagHelperDescriptor{{
		Name:             "AllTagHelper",
		TypeName:         "TestNamespace.AllTagHelper",
		AssemblyName:     "TestAssembly",
		TagMatchingRules: []taghelper.TagMatchingRuleDescriptor{{TagName: "all"}},
		BoundAttributes: []taghelper.BoundAttributeDescriptor{
			{Name: "bar", PropertyName: "Bar", TypeName: "System.String"},
			{Name: "count", PropertyName: "Count", TypeName: "System.Int32"},
		},
	}}, "")
}

func generate(t *testing.T, path string, src string, opts codegen.Options) (*syntax.Tree, *codegen.CSharpDocument) {
	t.Helper()
	tree := syntax.Parse(position.NewDocument(path, src), syntax.Options{
		FileKind: syntax.FileKindFromPath(path),
		Binder:   binder(),
	})
	doc := codegen.Generate(tree, opts)
	require.NotNil(t, doc)
	assertMappingsMatch(t, tree, doc)
	return tree, doc
}

// every mapping covers identical text on both sides and the table is in generated order
func assertMappingsMatch(t *testing.T, tree *syntax.Tree, doc *codegen.CSharpDocument) {
	t.Helper()
	last := -1
	for _, m := range doc.Mappings.Mappings() {
		original := tree.Source.Slice(m.OriginalSpan.TextSpan())
		generated := doc.Slice(m.GeneratedSpan.TextSpan())
		require.Equal(t, original, generated, "mapping %s", m)
		require.GreaterOrEqual(t, m.GeneratedSpan.AbsoluteIndex, last)
		last = m.GeneratedSpan.AbsoluteIndex
	}
}

func mappedOriginals(doc *codegen.CSharpDocument, src string) []string {
	out := []string{}
	for _, m := range doc.Mappings.Mappings() {
		out = append(out, src[m.OriginalSpan.AbsoluteIndex:m.OriginalSpan.End()])
	}
	return out
}

const page = `@page "/index"
@using System.Text
@model IndexModel
@inject ILogger<IndexModel> Logger
<h1>@Model.Title</h1>
@{
    var x = 1;
}
<p>@(x + 1)</p>
@functions {
    int Count() => 2;
}
`

func TestRuntimeGeneration(t *testing.T) {
	_, doc := generate(t, "/Pages/Index.cshtml", page, codegen.Options{})
	text := doc.Text()

	assert.Contains(t, text, "namespace AspNetCoreGeneratedDocument")
	assert.Contains(t, text, "using System.Text;")
	assert.Contains(t, text, "public class Index : global::Microsoft.AspNetCore.Mvc.Razor.RazorPage<IndexModel>")
	assert.Contains(t, text, `RazorCompiledItemMetadataAttribute("RouteTemplate", "/index")`)
	assert.Contains(t, text, "public ILogger<IndexModel> Logger { get; private set; }")
	assert.Contains(t, text, `WriteLiteral("<h1>");`)
	assert.Contains(t, text, "Write(Model.Title);")
	assert.Contains(t, text, "Write(x + 1);")
	assert.Contains(t, text, "int Count() => 2;")
	assert.Contains(t, text, `#line 5 "/Pages/Index.cshtml"`)
	assert.NotContains(t, text, "__RazorDirectiveTokenHelpers__")

	originals := mappedOriginals(doc, page)
	for _, want := range []string{`"/index"`, "System.Text", "IndexModel", "ILogger<IndexModel>", "Logger", "Model.Title", "x + 1"} {
		assert.Contains(t, originals, want)
	}
}

func TestDesignTimeGeneration(t *testing.T) {
	_, doc := generate(t, "/Pages/Index.cshtml", page, codegen.Options{DesignTime: true, Nullable: true})
	text := doc.Text()

	assert.Contains(t, text, "#nullable enable")
	assert.Contains(t, text, "private void __RazorDirectiveTokenHelpers__()")
	assert.Contains(t, text, "IndexModel __typeHelper = default!;")
	assert.Contains(t, text, "global::System.Object Logger = null!;")
	assert.Contains(t, text, "private static object __o = null;")
	assert.Contains(t, text, "__o = Model.Title;")
	assert.NotContains(t, text, "WriteLiteral")

	// directive tokens map once, inside the helper method
	originals := mappedOriginals(doc, page)
	count := 0
	for _, o := range originals {
		if o == "IndexModel" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	helper := strings.Index(text, "__RazorDirectiveTokenHelpers__")
	for _, m := range doc.Mappings.Mappings() {
		if page[m.OriginalSpan.AbsoluteIndex:m.OriginalSpan.End()] == "IndexModel" {
			assert.Greater(t, m.GeneratedSpan.AbsoluteIndex, helper)
		}
	}
}

func TestDesignTimeExpressionKeepsColumn(t *testing.T) {
	src := "<div><h1>@Model.Title</h1></div>"
	_, doc := generate(t, "/a.cshtml", src, codegen.Options{DesignTime: true})

	var found bool
	for _, m := range doc.Mappings.Mappings() {
		if m.OriginalSpan.AbsoluteIndex == strings.Index(src, "Model") {
			found = true
			assert.Equal(t, m.OriginalSpan.CharacterIndex, m.GeneratedSpan.CharacterIndex)
		}
	}
	assert.True(t, found)
}

func TestPureMarkupHasNoMappings(t *testing.T) {
	src := "<div class=\"a\">\n  <p>hello</p>\n</div>\n"
	for _, design := range []bool{false, true} {
		_, doc := generate(t, "/a.cshtml", src, codegen.Options{DesignTime: design})
		assert.Zero(t, doc.Mappings.Len())
	}
}

func TestComponentGeneration(t *testing.T) {
	src := `@namespace MyApp.Pages
@typeparam TItem
@implements IDisposable
<h1>@Title</h1>
@code {
    public string Title { get; set; }
}
`
	_, doc := generate(t, "/Pages/Counter.razor", src, codegen.Options{})
	text := doc.Text()

	assert.Contains(t, text, "namespace MyApp.Pages")
	assert.Contains(t, text, "public partial class Counter<TItem> : global::Microsoft.AspNetCore.Components.ComponentBase, IDisposable")
	assert.Contains(t, text, "protected override void BuildRenderTree(")
	assert.Contains(t, text, `__builder.AddMarkupContent(0, "<h1>");`)
	assert.Contains(t, text, "__builder.AddContent(1, Title);")
	assert.Contains(t, text, "public string Title { get; set; }")
}

func TestSectionGeneration(t *testing.T) {
	src := "@section Scripts {\n<script></script>\n}\n"
	_, doc := generate(t, "/a.cshtml", src, codegen.Options{})
	assert.Contains(t, doc.Text(), `DefineSection("Scripts", async() => {`)
	assert.Contains(t, doc.Text(), `WriteLiteral("\n<script></script>\n");`)
}

func TestTagHelperGeneration(t *testing.T) {
	src := `<all bar="Foo" count="@x"></all>`

	_, runtime := generate(t, "/a.cshtml", src, codegen.Options{})
	text := runtime.Text()
	assert.Contains(t, text, "private global::TestNamespace.AllTagHelper __TestNamespace_AllTagHelper = null;")
	assert.Contains(t, text, "__TestNamespace_AllTagHelper = CreateTagHelper<global::TestNamespace.AllTagHelper>();")
	assert.Contains(t, text, `__TestNamespace_AllTagHelper.Bar = "Foo";`)
	assert.Contains(t, text, "__TestNamespace_AllTagHelper.Count = x;")
	assert.Contains(t, text, "__tagHelperScopeManager.Begin(\"all\"")
	assert.Equal(t, []string{"x"}, mappedOriginals(runtime, src))

	_, again := generate(t, "/a.cshtml", src, codegen.Options{})
	if d := diff.DiffText(text, again.Text()); d != "" {
		t.Errorf("tag helper ids are not stable: %s", d)
	}

	_, design := generate(t, "/a.cshtml", src, codegen.Options{DesignTime: true})
	assert.Contains(t, design.Text(), "__TestNamespace_AllTagHelper.Count = x;")
	assert.NotContains(t, design.Text(), "__tagHelperScopeManager")
}

func TestIndentation(t *testing.T) {
	_, doc := generate(t, "/a.cshtml", "@{ var x = 1; }", codegen.Options{UseTabs: true})
	assert.Contains(t, doc.Text(), "\n\tpublic class a")
}

func TestProjectHTML(t *testing.T) {
	src := "<p title=\"@x\">é @DateTime.Now</p>\r\n@* c *@\n@@ <text>t</text>"
	tree := syntax.Parse(position.NewDocument("/a.cshtml", src), syntax.Options{})
	html := codegen.ProjectHTML(tree)

	assert.Equal(t, "/a.cshtml__virtual.html", html.FilePath)
	assert.Equal(t, "<p title=\"  \">é              </p>\r\n       \n@ ", html.Text()[:len(html.Text())-len(" <text>t</text>")])
	assert.Equal(t, tree.Source.LineCount(), html.LineCount())

	for line := 0; line < tree.Source.LineCount(); line++ {
		p := tree.Source.Location(tree.Source.LineEnd(line))
		q := html.Location(html.LineEnd(line))
		assert.Equal(t, p, q, "line %d", line)
	}
}

func TestProjectHTMLBlanksTextTags(t *testing.T) {
	src := "@{ <text>hi</text> }"
	tree := syntax.Parse(position.NewDocument("/a.cshtml", src), syntax.Options{})
	assert.Equal(t, strings.Repeat(" ", 9)+"hi"+strings.Repeat(" ", 9), codegen.ProjectHTML(tree).Text())
}

func TestQuoteString(t *testing.T) {
	assert.Equal(t, `"a\"b\\c\n\r\t"`, codegen.QuoteString("a\"b\\c\n\r\t"))
}
