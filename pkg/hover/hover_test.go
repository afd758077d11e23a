package hover_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gorazor/pkg/csharp"
	"github.com/walteh/gorazor/pkg/debug"
	"github.com/walteh/gorazor/pkg/hover"
	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/mapping"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor"
	"github.com/walteh/gorazor/pkg/razor/taghelper"
)

func binder() *taghelper.Binder {
	return taghelper.NewBinder([]*taghelper.TagHelperDescriptor{{
		Name:             "AllTagHelper",
		TypeName:         "TestNamespace.AllTagHelper",
		AssemblyName:     "TestAssembly",
		Documentation:    "Renders everything.",
		TagMatchingRules: []taghelper.TagMatchingRuleDescriptor{{TagName: "all"}},
		BoundAttributes: []taghelper.BoundAttributeDescriptor{
			{Name: "bar", PropertyName: "Bar", TypeName: "System.String", Documentation: "The bar."},
		},
	}}, "")
}

func process(t *testing.T, src string) *razor.CodeDocument {
	t.Helper()
	engine := razor.NewEngine(razor.EngineOptions{Binder: binder()})
	return engine.Process(context.Background(), position.NewDocument("/Pages/Index.cshtml", src), 1)
}

type fakeCSharp struct {
	csharp.Service

	hover *protocol.Hover
	err   error
	asked *position.Place
}

func (f *fakeCSharp) Hover(ctx context.Context, doc *razor.CodeDocument, generated position.Place) (*protocol.Hover, error) {
	f.asked = &generated
	return f.hover, f.err
}

func lspRange(startLine, startChar, endLine, endChar int) *protocol.Range {
	return &protocol.Range{
		Start: protocol.Position{Line: startLine, Character: startChar},
		End:   protocol.Position{Line: endLine, Character: endChar},
	}
}

func TestTagHelperAttributeHover(t *testing.T) {
	src := `<all Bar="Foo"></all>`
	doc := process(t, src)
	svc := hover.NewService(mapping.NewService(), &fakeCSharp{})

	for _, index := range []int{5, 6, 7} {
		h, err := svc.GetHover(context.Background(), doc, index)
		require.NoError(t, err)
		require.NotNil(t, h, "index %d", index)
		assert.Equal(t, lspRange(0, 5, 0, 8), h.Range)
		assert.Equal(t, protocol.Markdown, h.Contents.Kind)
		assert.Equal(t, "### Tag Helper Attribute\n\n```csharp\nSystem.String TestNamespace.AllTagHelper.Bar\n```\n\nThe bar.", h.Contents.Value)
	}
}

func TestTagHelperElementHover(t *testing.T) {
	src := `<all Bar="Foo"></all>`
	doc := process(t, src)
	svc := hover.NewService(mapping.NewService(), &fakeCSharp{})

	h, err := svc.GetHover(context.Background(), doc, 2)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, lspRange(0, 1, 0, 4), h.Range)
	assert.Equal(t, "### Tag Helper\n\n**AllTagHelper**\n\n```csharp\nTestNamespace.AllTagHelper\n```\n\nRenders everything.", h.Contents.Value)

	closing := strings.LastIndex(src, "all")
	h, err = svc.GetHover(context.Background(), doc, closing)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, lspRange(0, closing, 0, closing+3), h.Range)
}

func TestDirectiveHover(t *testing.T) {
	doc := process(t, "@model IndexModel\n<p>hi</p>")
	svc := hover.NewService(mapping.NewService(), &fakeCSharp{})

	for _, index := range []int{0, 3} {
		h, err := svc.GetHover(context.Background(), doc, index)
		require.NoError(t, err)
		require.NotNil(t, h)
		assert.Equal(t, lspRange(0, 0, 0, 6), h.Range)
		assert.Contains(t, h.Contents.Value, "@model <a type name>")
		assert.Contains(t, h.Contents.Value, "Specify the view or page model for the page.")
	}
}

func TestMarkupHasNoHover(t *testing.T) {
	doc := process(t, `<div class="x">text</div>`)
	fake := &fakeCSharp{hover: &protocol.Hover{}}
	svc := hover.NewService(mapping.NewService(), fake)

	for _, index := range []int{1, 6, 16} {
		h, err := svc.GetHover(context.Background(), doc, index)
		require.NoError(t, err)
		assert.Nil(t, h)
	}
	assert.Nil(t, fake.asked)
}

func TestCSharpHoverIsMappedBack(t *testing.T) {
	src := "<p>@Model.Title</p>"
	doc := process(t, src)
	m := mapping.NewService()

	title := strings.Index(src, "Title")
	_, start, ok := m.TryMapToGeneratedPosition(doc, title)
	require.True(t, ok)

	tests := []struct {
		name      string
		fake      *fakeCSharp
		wantNil   bool
		wantRange *protocol.Range
	}{
		{
			name: "mapped range",
			fake: &fakeCSharp{hover: &protocol.Hover{
				Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: "string Title"},
				Range:    lspRange(start.Line, start.Character, start.Line, start.Character+5),
			}},
			wantRange: lspRange(0, title, 0, title+5),
		},
		{
			name: "unmappable range is dropped",
			fake: &fakeCSharp{hover: &protocol.Hover{
				Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: "string Title"},
				Range:    lspRange(0, 0, 0, 2),
			}},
		},
		{name: "no answer", fake: &fakeCSharp{}, wantNil: true},
		{name: "service error", fake: &fakeCSharp{err: errors.New("closed")}, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := hover.NewService(m, tt.fake).GetHover(context.Background(), doc, title)
			require.NoError(t, err)
			require.NotNil(t, tt.fake.asked)
			assert.Equal(t, start, *tt.fake.asked)
			if tt.wantNil {
				assert.Nil(t, h)
				return
			}
			require.NotNil(t, h)
			assert.Equal(t, "string Title", h.Contents.Value)
			assert.Equal(t, tt.wantRange, h.Range)
		})
	}
}

func TestHoverInfoToLSP(t *testing.T) {
	var nilInfo *hover.HoverInfo
	assert.Nil(t, nilInfo.ToLSP())

	info := &hover.HoverInfo{Content: []string{"a", "b"}}
	assert.Equal(t, "a\n\n---\n\nb", info.ToLSP().Contents.Value)
}

func TestRazorHoverAtEveryIndex(t *testing.T) {
	defer debug.SetAssertPanics(true)()
	ctx := context.Background()

	for _, src := range []string{
		"",
		"@page\n<all bar=\"x\">@DateTime.Now</all>",
		"@{ <p>unclosed",
		"@* comment",
	} {
		doc := process(t, src)
		for i := -1; i <= len(src)+1; i++ {
			assert.NotPanics(t, func() { hover.BuildRazorHover(ctx, doc, i) }, "index %d of %q", i, src)
		}
	}

	assert.Nil(t, hover.BuildRazorHover(ctx, process(t, ""), 0))
}
