package csharp_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gorazor/pkg/csharp"
	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/mapping"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor"
	"github.com/walteh/gorazor/pkg/semtok"
)

func TestParseUsing(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    csharp.Using
		key     string
		wantErr bool
	}{
		{name: "plain", text: "using System.Text;", want: csharp.Using{Namespace: "System.Text"}, key: "System.Text"},
		{name: "razor content", text: "using Microsoft.AspNetCore.Mvc", want: csharp.Using{Namespace: "Microsoft.AspNetCore.Mvc"}, key: "Microsoft.AspNetCore.Mvc"},
		{name: "static", text: "using static System.Math;", want: csharp.Using{Namespace: "System.Math", Static: true}, key: "static System.Math"},
		{name: "alias", text: "using Json = System.Text.Json;", want: csharp.Using{Namespace: "System.Text.Json", Alias: "Json"}, key: "Json = System.Text.Json"},
		{name: "global qualified", text: "using global::System;", want: csharp.Using{Namespace: "global::System"}, key: "global::System"},
		{name: "global using", text: "global using System.Linq;", want: csharp.Using{Namespace: "System.Linq", Global: true}, key: "System.Linq"},
		{name: "generic alias", text: "using Names = System.Collections.Generic.List<string>;", want: csharp.Using{Namespace: "System.Collections.Generic.List<string>", Alias: "Names"}, key: "Names = System.Collections.Generic.List<string>"},
		{name: "using statement", text: "using (var x = Open())", wantErr: true},
		{name: "using declaration", text: "using var x = Open();", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := csharp.ParseUsing(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.key, got.Key())
		})
	}
}

func TestFindUsings(t *testing.T) {
	text := strings.Join([]string{
		"namespace Foo",
		"{",
		"#line hidden",
		"    using System;",
		"      using Microsoft.AspNetCore.Mvc;",
		"    using (var x = y) { }",
		"    using static System.Math;",
		"}",
	}, "\n")

	usings := csharp.FindUsings(text)
	require.Len(t, usings, 3)

	keys := []string{}
	for _, u := range usings {
		keys = append(keys, u.Key())
		assert.Equal(t, "using "+u.Key()+";", text[u.Span.Start:u.Span.End()])
	}
	assert.Equal(t, []string{"System", "Microsoft.AspNetCore.Mvc", "static System.Math"}, keys)

	assert.True(t, usings[0].IsSystem())
	assert.False(t, usings[1].IsSystem())
	assert.Equal(t, "@using Microsoft.AspNetCore.Mvc", usings[1].RazorText())
}

func TestClassify(t *testing.T) {
	legend := semtok.DefaultLegend()
	src := "// note\nvar x = Model.Title(\"a\", 42);"
	tokens, err := csharp.Classify(position.NewDocument("a.cs", src), legend)
	require.NoError(t, err)

	got := []string{}
	for _, tok := range tokens {
		got = append(got, src[indexOf(src, tok):indexOf(src, tok)+tok.Length]+"="+legend.TypeName(tok.Type))
	}
	assert.Equal(t, []string{
		"// note=comment",
		"var=keyword",
		"x=variable",
		"==operator",
		"Model=variable",
		"Title=method",
		"\"a\"=string",
		"42=number",
	}, got)
}

// indexOf converts a token position back to a byte offset; the inputs are ASCII.
func indexOf(src string, tok semtok.Token) int {
	offset := 0
	for i := 0; i < tok.Line; i++ {
		offset += strings.Index(src[offset:], "\n") + 1
	}
	return offset + tok.Character
}

func process(t *testing.T, src string) *razor.CodeDocument {
	t.Helper()
	engine := razor.NewEngine(razor.EngineOptions{})
	return engine.Process(context.Background(), position.NewDocument("/Pages/Index.cshtml", src), 3)
}

func TestLexicalSemanticTokensStayInRanges(t *testing.T) {
	legend := semtok.DefaultLegend()
	doc := process(t, "<p>@Model.Title</p>")
	lexical := csharp.NewLexical(legend)

	all, err := lexical.SemanticTokens(context.Background(), doc, []position.Range{doc.CSharp.RangeOf(0, doc.CSharp.Length())})
	require.NoError(t, err)

	mappings := doc.Mappings().Mappings()
	require.NotEmpty(t, mappings)
	m := mappings[len(mappings)-1]
	only := doc.CSharp.RangeOf(m.GeneratedSpan.AbsoluteIndex, m.GeneratedSpan.End())
	some, err := lexical.SemanticTokens(context.Background(), doc, []position.Range{only})
	require.NoError(t, err)

	assert.Greater(t, len(all), len(some))
	for _, tok := range semtok.Decode(some) {
		assert.Equal(t, only.Start.Line, tok.Line)
	}

	none, err := lexical.SemanticTokens(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestLexicalAddUsingAction(t *testing.T) {
	doc := process(t, "@{ var sb = new StringBuilder(); }")
	lexical := csharp.NewLexical(semtok.DefaultLegend())
	lexical.KnownTypes["StringBuilder"] = "System.Text"

	start := strings.Index(doc.CSharp.Text(), "StringBuilder")
	require.Positive(t, start)
	diag := protocol.Diagnostic{
		Range: doc.CSharp.RangeOf(start, start+len("StringBuilder")).ToLSP(),
		Code:  csharp.MissingTypeCode,
	}

	actions, err := lexical.CodeActions(context.Background(), doc, position.NewRangeFromLSP(diag.Range), protocol.CodeActionContext{Diagnostics: []protocol.Diagnostic{diag}})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "using System.Text;", actions[0].Title)
	edits := actions[0].Edit.Changes[csharp.HostURI(doc)]
	require.Len(t, edits, 1)
	assert.Equal(t, "using System.Text;\n", edits[0].NewText)

	resolved, err := lexical.ResolveCodeAction(context.Background(), doc, actions[0])
	require.NoError(t, err)
	assert.Equal(t, actions[0], *resolved)
}

type fakeClient struct {
	protocol.Client

	tokens  *protocol.DelegatedSemanticTokensParams
	hover   *protocol.DelegatedPositionParams
	resolve *protocol.DelegatedResolveParams
	err     error

	// lag makes every answer come from a C# buffer that many versions behind.
	lag int32
}

func (f *fakeClient) CSharpSemanticTokens(ctx context.Context, params *protocol.DelegatedSemanticTokensParams) (*protocol.DelegatedSemanticTokensResponse, error) {
	f.tokens = params
	if f.err != nil {
		return nil, f.err
	}
	return &protocol.DelegatedSemanticTokensResponse{
		Tokens:                  []uint32{0, 1, 2, 3, 0},
		HostDocumentSyncVersion: params.HostDocumentVersion - f.lag,
	}, nil
}

func (f *fakeClient) CSharpHover(ctx context.Context, params *protocol.DelegatedPositionParams) (*protocol.DelegatedHoverResponse, error) {
	f.hover = params
	return &protocol.DelegatedHoverResponse{
		Hover:                   protocol.Hover{Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: "int"}},
		HostDocumentSyncVersion: params.HostDocumentVersion - f.lag,
	}, f.err
}

func (f *fakeClient) CSharpResolveCodeAction(ctx context.Context, params *protocol.DelegatedResolveParams) (*protocol.DelegatedResolveResponse, error) {
	f.resolve = params
	resolved := params.CodeAction
	resolved.Edit = &protocol.WorkspaceEdit{}
	return &protocol.DelegatedResolveResponse{
		CodeAction:              resolved,
		HostDocumentSyncVersion: params.HostDocumentVersion - f.lag,
	}, f.err
}

func TestDelegated(t *testing.T) {
	doc := process(t, "<p>@x</p>")
	client := &fakeClient{}
	svc := csharp.NewDelegated(client)

	ranges := []position.Range{{Start: position.Place{Line: 4, Character: 1}, End: position.Place{Line: 4, Character: 3}}}
	data, err := svc.SemanticTokens(context.Background(), doc, ranges)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2, 3, 0}, data)
	assert.Equal(t, protocol.DocumentURI("file:///Pages/Index.cshtml"), client.tokens.HostDocumentURI)
	assert.Equal(t, int32(3), client.tokens.HostDocumentVersion)
	assert.Equal(t, []protocol.Range{ranges[0].ToLSP()}, client.tokens.Ranges)

	hover, err := svc.Hover(context.Background(), doc, position.Place{Line: 7, Character: 2})
	require.NoError(t, err)
	require.NotNil(t, hover)
	assert.Equal(t, "int", hover.Contents.Value)
	assert.Equal(t, protocol.Position{Line: 7, Character: 2}, client.hover.ProjectedPosition)

	resolved, err := svc.ResolveCodeAction(context.Background(), doc, protocol.CodeAction{Title: "fix"})
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "fix", resolved.Title)
	assert.NotNil(t, resolved.Edit)

	client.err = errors.New("gone")
	_, err = svc.SemanticTokens(context.Background(), doc, ranges)
	assert.ErrorIs(t, err, client.err)
}

func TestDelegatedDropsStaleAnswers(t *testing.T) {
	ctx := context.Background()
	doc := process(t, "<p>@x</p>")
	client := &fakeClient{lag: 1}
	svc := csharp.NewDelegated(client)

	ranges := []position.Range{{Start: position.Place{Line: 4, Character: 1}, End: position.Place{Line: 4, Character: 3}}}
	data, err := svc.SemanticTokens(ctx, doc, ranges)
	require.NoError(t, err)
	assert.Nil(t, data)
	require.NotNil(t, client.tokens)

	hover, err := svc.Hover(ctx, doc, position.Place{Line: 7, Character: 2})
	require.NoError(t, err)
	assert.Nil(t, hover)

	resolved, err := svc.ResolveCodeAction(ctx, doc, protocol.CodeAction{Title: "fix"})
	require.NoError(t, err)
	assert.Nil(t, resolved)

	t.Run("provider answers nothing", func(t *testing.T) {
		legend := semtok.DefaultLegend()
		doc := process(t, "<p>@DateTime.Now</p>")
		provider := semtok.NewProvider(legend, mapping.NewService(), svc)
		got, err := provider.GetSemanticTokens(ctx, doc, doc.Source.RangeOf(0, doc.Source.Length()), false)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
