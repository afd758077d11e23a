package lsp_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/gorazor/pkg/csharp"
	"github.com/walteh/gorazor/pkg/lsp"
	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/semtok"
)

const (
	root = "/proj"
	uri  = protocol.DocumentURI("file:///proj/Pages/Index.cshtml")
)

type harness struct {
	server *lsp.Server
	client *jrpc2.Client
	notes  chan *jrpc2.Request
}

func start(t *testing.T, opts lsp.Options, onCallback func(ctx context.Context, req *jrpc2.Request) (any, error)) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	if opts.Fs == nil {
		opts.Fs = afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(opts.Fs, root+"/gorazor.yaml", []byte("default_imports: []\n"), 0o644))
	}

	serverReader, clientWriter := io.Pipe()
	clientReader, serverWriter := io.Pipe()

	server := lsp.NewServer(ctx, opts)
	instance := protocol.NewServerInstance(ctx, server, &jrpc2.ServerOptions{RPCLog: protocol.NewTestLogger(t, nil)})
	server.SetCallbackClient(instance.Client())
	instance.Start(serverReader, serverWriter)

	notes := make(chan *jrpc2.Request, 256)
	client := jrpc2.NewClient(channel.LSP(clientReader, clientWriter), &jrpc2.ClientOptions{
		OnNotify: func(req *jrpc2.Request) {
			if req.Method() == "window/logMessage" {
				return
			}
			notes <- req
		},
		OnCallback: onCallback,
	})

	t.Cleanup(func() {
		require.NoError(t, server.Exit(ctx))
		client.Close()
		clientWriter.Close()
		serverWriter.Close()
		instance.Stop()
		cancel()
	})

	h := &harness{server: server, client: client, notes: notes}

	var init protocol.InitializeResult
	require.NoError(t, client.CallResult(ctx, "initialize", &protocol.InitializeParams{RootURI: "file://" + root}, &init))
	require.NoError(t, client.Notify(ctx, "initialized", &protocol.InitializedParams{}))
	return h
}

// next returns the next notification with method, skipping others.
func (h *harness) next(t *testing.T, method string) *jrpc2.Request {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case req := <-h.notes:
			if req.Method() == method {
				return req
			}
		case <-timeout:
			t.Fatalf("no %s notification", method)
			return nil
		}
	}
}

func (h *harness) open(t *testing.T, text string, version int32) {
	t.Helper()
	require.NoError(t, h.client.Notify(context.Background(), "textDocument/didOpen", &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "razor", Version: version, Text: text},
	}))
	h.next(t, "textDocument/publishDiagnostics")
}

func TestInitializeAdvertisesCapabilities(t *testing.T) {
	ctx := context.Background()
	h := start(t, lsp.Options{}, nil)

	var init protocol.InitializeResult
	require.NoError(t, h.client.CallResult(ctx, "initialize", &protocol.InitializeParams{}, &init))

	caps := init.Capabilities
	assert.Equal(t, protocol.SyncIncremental, caps.TextDocumentSync.Change)
	assert.True(t, caps.HoverProvider)
	assert.True(t, caps.CodeActionProvider)
	require.NotNil(t, caps.SemanticTokensProvider)
	assert.True(t, caps.SemanticTokensProvider.Range)
	assert.Equal(t, semtok.DefaultLegend().ToLSP(), caps.SemanticTokensProvider.Legend)
	require.NotNil(t, init.ServerInfo)
	assert.Equal(t, "gorazor", init.ServerInfo.Name)
}

func TestDocumentLifecyclePushesBuffers(t *testing.T) {
	ctx := context.Background()
	h := start(t, lsp.Options{}, nil)

	require.NoError(t, h.client.Notify(ctx, "textDocument/didOpen", &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, Version: 1, Text: "<p>@DateTime.Now</p>\n@{ var x = 1;"},
	}))

	var buf protocol.UpdateBufferRequest
	require.NoError(t, h.next(t, protocol.MethodUpdateCSharpBuffer).UnmarshalParams(&buf))
	assert.True(t, buf.PreviousWasEmpty)
	assert.Equal(t, int32(1), buf.HostDocumentVersion)
	assert.Equal(t, "/proj/Pages/Index.cshtml", buf.HostDocumentFilePath)
	require.Len(t, buf.Changes, 1)
	assert.Contains(t, buf.Changes[0].NewText, "DateTime.Now")
	generated := buf.Changes[0].NewText

	var html protocol.UpdateBufferRequest
	require.NoError(t, h.next(t, protocol.MethodUpdateHTMLBuffer).UnmarshalParams(&html))
	require.Len(t, html.Changes, 1)
	assert.True(t, strings.HasPrefix(html.Changes[0].NewText, "<p>"))
	assert.NotContains(t, html.Changes[0].NewText, "DateTime")

	var diags protocol.PublishDiagnosticsParams
	require.NoError(t, h.next(t, "textDocument/publishDiagnostics").UnmarshalParams(&diags))
	assert.Equal(t, uri, diags.URI)
	require.Len(t, diags.Diagnostics, 1)
	assert.Equal(t, "RZ1006", diags.Diagnostics[0].Code)

	end := protocol.Position{Line: 1, Character: 13}
	require.NoError(t, h.client.Notify(ctx, "textDocument/didChange", &protocol.DidChangeTextDocumentParams{
		TextDocument:   protocol.VersionedTextDocumentIdentifier{TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri}, Version: 2},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Range: &protocol.Range{Start: end, End: end}, Text: " }"}},
	}))

	var update protocol.UpdateBufferRequest
	require.NoError(t, h.next(t, protocol.MethodUpdateCSharpBuffer).UnmarshalParams(&update))
	assert.False(t, update.PreviousWasEmpty)
	assert.Equal(t, int32(2), update.HostDocumentVersion)
	assert.NotEmpty(t, update.Changes)

	var gen protocol.GeneratedDocumentResponse
	require.NoError(t, h.client.CallResult(ctx, protocol.MethodGeneratedDocument, &protocol.GeneratedDocumentParams{TextDocument: protocol.TextDocumentIdentifier{URI: uri}}, &gen))
	assert.Equal(t, gen.CSharp, applyBufferChanges(generated, update.Changes))

	require.NoError(t, h.next(t, "textDocument/publishDiagnostics").UnmarshalParams(&diags))
	assert.Equal(t, int32(2), diags.Version)
	assert.Empty(t, diags.Diagnostics)

	require.NoError(t, h.client.Notify(ctx, "textDocument/didClose", &protocol.DidCloseTextDocumentParams{TextDocument: protocol.TextDocumentIdentifier{URI: uri}}))
	require.NoError(t, h.next(t, "textDocument/publishDiagnostics").UnmarshalParams(&diags))
	assert.Empty(t, diags.Diagnostics)
	_, ok := h.server.Manager().Document("/proj/Pages/Index.cshtml")
	assert.False(t, ok)
}

func applyBufferChanges(text string, changes []protocol.BufferChange) string {
	edits := make([]position.TextChange, 0, len(changes))
	for _, c := range changes {
		edits = append(edits, position.TextChange{Span: position.TextSpan{Start: c.Span.Start, Length: c.Span.Length}, NewText: c.NewText})
	}
	return position.ApplyEdits(text, edits)
}

func TestTextChanges(t *testing.T) {
	tests := []struct {
		name   string
		before string
		after  string
	}{
		{name: "same", before: "a\nb\n", after: "a\nb\n"},
		{name: "insert line", before: "a\nc\n", after: "a\nb\nc\n"},
		{name: "delete line", before: "a\nb\nc\n", after: "a\nc\n"},
		{name: "replace last line without newline", before: "a\nb", after: "a\nbb"},
		{name: "from empty", before: "", after: "class X {}\n"},
		{name: "to empty", before: "class X {}\n", after: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := lsp.TextChanges(tt.before, tt.after)
			if tt.before == tt.after {
				assert.Empty(t, changes)
			}
			assert.Equal(t, tt.after, applyBufferChanges(tt.before, changes))
		})
	}
}

func TestRazorHoverChecksVersion(t *testing.T) {
	ctx := context.Background()
	h := start(t, lsp.Options{}, nil)
	h.open(t, "@page\n<p></p>", 3)

	var hover *protocol.Hover
	require.NoError(t, h.client.CallResult(ctx, protocol.MethodHover, &protocol.RazorHoverParams{
		TextDocument:        protocol.TextDocumentIdentifier{URI: uri},
		HostDocumentVersion: 3,
		Position:            protocol.Position{Line: 0, Character: 2},
	}, &hover))
	require.NotNil(t, hover)
	assert.Contains(t, hover.Contents.Value, "@page")

	hover = nil
	require.NoError(t, h.client.CallResult(ctx, protocol.MethodHover, &protocol.RazorHoverParams{
		TextDocument:        protocol.TextDocumentIdentifier{URI: uri},
		HostDocumentVersion: 2,
		Position:            protocol.Position{Line: 0, Character: 2},
	}, &hover))
	assert.Nil(t, hover)
}

func TestCSharpHoverIsDelegated(t *testing.T) {
	ctx := context.Background()
	asked := make(chan protocol.DelegatedPositionParams, 1)
	h := start(t, lsp.Options{}, func(ctx context.Context, req *jrpc2.Request) (any, error) {
		if req.Method() != protocol.MethodDelegatedCSharpHover {
			return nil, nil
		}
		var p protocol.DelegatedPositionParams
		if err := req.UnmarshalParams(&p); err != nil {
			return nil, err
		}
		asked <- p
		return &protocol.DelegatedHoverResponse{
			Hover:                   protocol.Hover{Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: "struct System.DateTime"}},
			HostDocumentSyncVersion: p.HostDocumentVersion,
		}, nil
	})
	h.open(t, "<p>@DateTime</p>", 1)

	var hover *protocol.Hover
	require.NoError(t, h.client.CallResult(ctx, "textDocument/hover", &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     protocol.Position{Line: 0, Character: 6},
		},
	}, &hover))
	require.NotNil(t, hover)
	assert.Equal(t, "struct System.DateTime", hover.Contents.Value)

	p := <-asked
	assert.Equal(t, uri, p.HostDocumentURI)
	assert.Equal(t, int32(1), p.HostDocumentVersion)
}

func TestMapToDocumentRanges(t *testing.T) {
	ctx := context.Background()
	h := start(t, lsp.Options{}, nil)
	text := "<p>@DateTime.Now</p>"
	h.open(t, text, 5)

	var gen protocol.GeneratedDocumentResponse
	require.NoError(t, h.client.CallResult(ctx, protocol.MethodGeneratedDocument, &protocol.GeneratedDocumentParams{TextDocument: protocol.TextDocumentIdentifier{URI: uri}}, &gen))
	require.NotEmpty(t, gen.Mappings)
	m := gen.Mappings[0]

	csharpDoc := position.NewDocument("/proj/Pages/Index.cshtml.g.cs", gen.CSharp)
	razorDoc := position.NewDocument("/proj/Pages/Index.cshtml", text)
	projected := csharpDoc.RangeOf(m.GeneratedStart, m.GeneratedStart+m.GeneratedLength).ToLSP()
	outside := csharpDoc.RangeOf(0, 1).ToLSP()

	var resp protocol.MapToDocumentRangesResponse
	require.NoError(t, h.client.CallResult(ctx, protocol.MethodMapToDocumentRanges, &protocol.MapToDocumentRangesParams{
		Kind:             protocol.LanguageKindCSharp,
		RazorDocumentURI: uri,
		ProjectedRanges:  []protocol.Range{projected, outside},
	}, &resp))
	assert.Equal(t, int32(5), resp.HostDocumentVersion)
	require.Len(t, resp.Ranges, 2)
	assert.Equal(t, razorDoc.RangeOf(m.OriginalStart, m.OriginalStart+m.OriginalLength).ToLSP(), resp.Ranges[0])
	assert.Equal(t, position.UndefinedRange.ToLSP(), resp.Ranges[1])

	require.NoError(t, h.client.CallResult(ctx, protocol.MethodMapToDocumentRanges, &protocol.MapToDocumentRangesParams{
		Kind:             protocol.LanguageKindCSharp,
		RazorDocumentURI: "file:///proj/Missing.cshtml",
		ProjectedRanges:  []protocol.Range{projected},
	}, &resp))
	assert.Equal(t, []protocol.Range{position.UndefinedRange.ToLSP()}, resp.Ranges)
}

const actionSource = "@{ var sb = new StringBuilder(); }\n<p>hi</p>\n"

func lexical() *csharp.Lexical {
	l := csharp.NewLexical(semtok.DefaultLegend())
	l.KnownTypes["StringBuilder"] = "System.Text"
	return l
}

func TestCodeActionsResolveToUsingDirective(t *testing.T) {
	ctx := context.Background()
	h := start(t, lsp.Options{CSharp: lexical()}, nil)
	h.open(t, actionSource, 4)

	startIdx := strings.Index(actionSource, "StringBuilder")
	rng := position.NewDocument("", actionSource).RangeOf(startIdx, startIdx+len("StringBuilder")).ToLSP()

	var actions []protocol.CodeAction
	require.NoError(t, h.client.CallResult(ctx, protocol.MethodProvideCodeActions, &protocol.RazorCodeActionParams{
		TextDocument:        protocol.TextDocumentIdentifier{URI: uri},
		HostDocumentVersion: 4,
		Range:               rng,
		Context: protocol.CodeActionContext{Diagnostics: []protocol.Diagnostic{{
			Range:   rng,
			Code:    csharp.MissingTypeCode,
			Message: "The type or namespace name 'StringBuilder' could not be found",
		}}},
	}, &actions))
	require.Len(t, actions, 1)
	assert.Nil(t, actions[0].Edit)

	var resolved protocol.CodeAction
	require.NoError(t, h.client.CallResult(ctx, protocol.MethodResolveCodeActions, &protocol.RazorResolveCodeActionParams{CodeAction: actions[0]}, &resolved))
	require.NotNil(t, resolved.Edit)
	require.Len(t, resolved.Edit.DocumentChanges, 1)
	change := resolved.Edit.DocumentChanges[0]
	assert.Equal(t, uri, change.TextDocument.URI)
	require.NotNil(t, change.TextDocument.Version)
	assert.Equal(t, int32(4), *change.TextDocument.Version)
	assert.Equal(t, []protocol.TextEdit{{NewText: "@using System.Text\n"}}, change.Edits)

	// a stale version gets no actions
	require.NoError(t, h.client.CallResult(ctx, protocol.MethodProvideCodeActions, &protocol.RazorCodeActionParams{
		TextDocument:        protocol.TextDocumentIdentifier{URI: uri},
		HostDocumentVersion: 3,
		Range:               rng,
	}, &actions))
	assert.Empty(t, actions)
}

func TestMapToDocumentEditsAddsUsing(t *testing.T) {
	ctx := context.Background()
	h := start(t, lsp.Options{}, nil)
	h.open(t, actionSource, 1)

	var resp protocol.MapToDocumentEditsResponse
	require.NoError(t, h.client.CallResult(ctx, protocol.MethodMapToDocumentEdits, &protocol.MapToDocumentEditsParams{
		Kind:             protocol.LanguageKindCSharp,
		RazorDocumentURI: uri,
		ProjectedEdits:   []protocol.TextEdit{{NewText: "using System.Text;\n"}},
	}, &resp))
	assert.Equal(t, int32(1), resp.HostDocumentVersion)
	assert.Equal(t, []protocol.TextEdit{{NewText: "@using System.Text\n"}}, resp.Edits)
}

func TestSemanticTokensRange(t *testing.T) {
	ctx := context.Background()
	legend := semtok.DefaultLegend()
	h := start(t, lsp.Options{CSharp: csharp.NewLexical(legend)}, nil)
	h.open(t, "@page\n<p>@DateTime.Now</p>", 2)

	full := protocol.Range{End: protocol.Position{Line: 1, Character: 20}}

	var tokens *protocol.SemanticTokens
	require.NoError(t, h.client.CallResult(ctx, "textDocument/semanticTokens/range", &protocol.SemanticTokensRangeParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Range:        full,
	}, &tokens))
	require.NotNil(t, tokens)
	require.GreaterOrEqual(t, len(tokens.Data), 10)
	assert.Equal(t, []uint32{0, 0, 1, uint32(legend.Type(semtok.TypeRazorTransition)), 0}, tokens.Data[:5])
	assert.Equal(t, []uint32{0, 1, 4, uint32(legend.Type(semtok.TypeRazorDirective)), 0}, tokens.Data[5:10])
	assert.NotEmpty(t, tokens.ResultID)

	var razorTokens *protocol.ProvideSemanticTokensResponse
	require.NoError(t, h.client.CallResult(ctx, protocol.MethodProvideSemanticTokensRange, &protocol.ProvideSemanticTokensRangeParams{
		TextDocument:                protocol.TextDocumentIdentifier{URI: uri},
		RequiredHostDocumentVersion: 2,
		Range:                       full,
	}, &razorTokens))
	require.NotNil(t, razorTokens)
	assert.Equal(t, int32(2), razorTokens.HostDocumentSyncVersion)
	assert.Equal(t, tokens.Data, razorTokens.Tokens)

	razorTokens = nil
	require.NoError(t, h.client.CallResult(ctx, protocol.MethodProvideSemanticTokensRange, &protocol.ProvideSemanticTokensRangeParams{
		TextDocument:                protocol.TextDocumentIdentifier{URI: uri},
		RequiredHostDocumentVersion: 1,
		Range:                       full,
	}, &razorTokens))
	assert.Nil(t, razorTokens)
}

func TestSemanticTokensIgnoreLaggingCSharpBuffer(t *testing.T) {
	ctx := context.Background()
	h := start(t, lsp.Options{}, func(ctx context.Context, req *jrpc2.Request) (any, error) {
		if req.Method() != protocol.MethodDelegatedCSharpSemanticTokens {
			return nil, nil
		}
		var p protocol.DelegatedSemanticTokensParams
		if err := req.UnmarshalParams(&p); err != nil {
			return nil, err
		}
		// the editor has not applied the latest buffer update yet
		return &protocol.DelegatedSemanticTokensResponse{
			Tokens:                  []uint32{0, 0, 8, 0, 0},
			HostDocumentSyncVersion: p.HostDocumentVersion - 1,
		}, nil
	})
	h.open(t, "<p>@DateTime.Now</p>", 2)

	var tokens *protocol.ProvideSemanticTokensResponse
	require.NoError(t, h.client.CallResult(ctx, protocol.MethodProvideSemanticTokensRange, &protocol.ProvideSemanticTokensRangeParams{
		TextDocument:                protocol.TextDocumentIdentifier{URI: uri},
		RequiredHostDocumentVersion: 2,
		Range:                       protocol.Range{End: protocol.Position{Line: 0, Character: 20}},
	}, &tokens))
	assert.Nil(t, tokens)
}

func TestShutdownRejectsRequests(t *testing.T) {
	ctx := context.Background()
	h := start(t, lsp.Options{}, nil)
	h.open(t, "<p></p>", 1)

	_, err := h.client.Call(ctx, "shutdown", nil)
	require.NoError(t, err)

	_, err = h.client.Call(ctx, "textDocument/hover", &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{TextDocument: protocol.TextDocumentIdentifier{URI: uri}},
	})
	var rpcErr *jrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.EqualValues(t, -32600, rpcErr.Code)
}
