package razor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/gorazor/pkg/debug"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor"
	"github.com/walteh/gorazor/pkg/razor/syntax"
)

func TestProcess(t *testing.T) {
	engine := razor.NewEngine(razor.EngineOptions{DesignTime: true})
	src := position.NewDocument("/Pages/Index.cshtml", "@namespace A\n@namespace B\n<p>@x</p>")

	doc := engine.Process(context.Background(), src, 3)
	require.NotNil(t, doc)

	assert.Equal(t, int32(3), doc.Version)
	assert.Equal(t, syntax.FileKindLegacy, doc.FileKind)
	assert.False(t, doc.Unsupported)
	assert.Same(t, src, doc.Source)
	assert.Equal(t, src.LineCount(), doc.HTML.LineCount())
	assert.Positive(t, doc.Mappings().Len())
	require.Len(t, doc.Diagnostics, 1)
	assert.Equal(t, "RZ1014", doc.Diagnostics[0].ID())
}

func TestProcessComponent(t *testing.T) {
	engine := razor.NewEngine(razor.EngineOptions{})
	doc := engine.Process(context.Background(), position.NewDocument("/Counter.razor", "<p>@count</p>"), 1)
	assert.Equal(t, syntax.FileKindComponent, doc.FileKind)
	assert.Contains(t, doc.CSharp.Text(), "BuildRenderTree")
}

func TestUnsupported(t *testing.T) {
	engine := razor.NewEngine(razor.EngineOptions{})
	doc := engine.Unsupported(context.Background(), position.NewDocument("/a.cshtml", "@x"), 1)
	assert.True(t, doc.Unsupported)
	assert.NotNil(t, doc.Tree)
}

func TestIsRazorPath(t *testing.T) {
	assert.True(t, razor.IsRazorPath("/a/b.cshtml"))
	assert.True(t, razor.IsRazorPath("/a/b.razor"))
	assert.False(t, razor.IsRazorPath("/a/b.cs"))
}

func TestNilCodeDocumentHasNoMappings(t *testing.T) {
	var doc *razor.CodeDocument
	assert.Zero(t, doc.Mappings().Len())
}

func TestProcessKeepsMappingsInBounds(t *testing.T) {
	defer debug.SetAssertPanics(true)()

	engine := razor.NewEngine(razor.EngineOptions{DesignTime: true, Nullable: true})
	for _, src := range []string{
		"",
		"@",
		"@{",
		"@{ var x = 1;",
		"<p>@(</p>",
		"@model IndexModel\n@inject ILogger<IndexModel> Logger\n<h1>@Model.Title</h1>\n@functions { int Count() => 2; }",
		"@page \"/index\"\r\n@using System.Text\r\n<p title=\"@x\">é @* c *@</p>",
	} {
		assert.NotPanics(t, func() {
			engine.Process(context.Background(), position.NewDocument("/Pages/Index.cshtml", src), 1)
		}, "source %q", src)
	}
}
