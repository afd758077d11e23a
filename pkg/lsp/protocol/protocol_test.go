package protocol_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/walteh/gorazor/pkg/lsp/protocol"
)

type mockServer struct {
	mock.Mock
}

var _ protocol.Server = (*mockServer)(nil)

func ret[T any](args mock.Arguments) (T, error) {
	var zero T
	v, ok := args.Get(0).(T)
	if !ok {
		v = zero
	}
	return v, args.Error(1)
}

func (m *mockServer) Initialize(ctx context.Context, p *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	return ret[*protocol.InitializeResult](m.Called(ctx, p))
}

func (m *mockServer) Initialized(ctx context.Context, p *protocol.InitializedParams) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockServer) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockServer) Exit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockServer) DidOpen(ctx context.Context, p *protocol.DidOpenTextDocumentParams) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockServer) DidChange(ctx context.Context, p *protocol.DidChangeTextDocumentParams) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockServer) DidClose(ctx context.Context, p *protocol.DidCloseTextDocumentParams) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockServer) Hover(ctx context.Context, p *protocol.HoverParams) (*protocol.Hover, error) {
	return ret[*protocol.Hover](m.Called(ctx, p))
}

func (m *mockServer) SemanticTokensRange(ctx context.Context, p *protocol.SemanticTokensRangeParams) (*protocol.SemanticTokens, error) {
	return ret[*protocol.SemanticTokens](m.Called(ctx, p))
}

func (m *mockServer) CodeAction(ctx context.Context, p *protocol.CodeActionParams) ([]protocol.CodeAction, error) {
	return ret[[]protocol.CodeAction](m.Called(ctx, p))
}

func (m *mockServer) ResolveCodeAction(ctx context.Context, p *protocol.CodeAction) (*protocol.CodeAction, error) {
	return ret[*protocol.CodeAction](m.Called(ctx, p))
}

func (m *mockServer) ProvideSemanticTokensRange(ctx context.Context, p *protocol.ProvideSemanticTokensRangeParams) (*protocol.ProvideSemanticTokensResponse, error) {
	return ret[*protocol.ProvideSemanticTokensResponse](m.Called(ctx, p))
}

func (m *mockServer) RazorHover(ctx context.Context, p *protocol.RazorHoverParams) (*protocol.Hover, error) {
	return ret[*protocol.Hover](m.Called(ctx, p))
}

func (m *mockServer) ProvideCodeActions(ctx context.Context, p *protocol.RazorCodeActionParams) ([]protocol.CodeAction, error) {
	return ret[[]protocol.CodeAction](m.Called(ctx, p))
}

func (m *mockServer) ResolveRazorCodeAction(ctx context.Context, p *protocol.RazorResolveCodeActionParams) (*protocol.CodeAction, error) {
	return ret[*protocol.CodeAction](m.Called(ctx, p))
}

func (m *mockServer) MapToDocumentRanges(ctx context.Context, p *protocol.MapToDocumentRangesParams) (*protocol.MapToDocumentRangesResponse, error) {
	return ret[*protocol.MapToDocumentRangesResponse](m.Called(ctx, p))
}

func (m *mockServer) MapToDocumentEdits(ctx context.Context, p *protocol.MapToDocumentEditsParams) (*protocol.MapToDocumentEditsResponse, error) {
	return ret[*protocol.MapToDocumentEditsResponse](m.Called(ctx, p))
}

func (m *mockServer) GeneratedDocument(ctx context.Context, p *protocol.GeneratedDocumentParams) (*protocol.GeneratedDocumentResponse, error) {
	return ret[*protocol.GeneratedDocumentResponse](m.Called(ctx, p))
}

type pipes struct {
	client *jrpc2.Client
	done   chan error
}

func startServer(t *testing.T, ctx context.Context, srv protocol.Server, opts *jrpc2.ServerOptions, clientOpts *jrpc2.ClientOptions) (*protocol.ServerInstance, *pipes) {
	t.Helper()

	serverReader, clientWriter := io.Pipe()
	clientReader, serverWriter := io.Pipe()

	instance := protocol.NewServerInstance(ctx, srv, opts)

	instance.Start(serverReader, serverWriter)

	done := make(chan error, 1)
	go func() {
		done <- instance.Wait()
	}()

	client := jrpc2.NewClient(channel.LSP(clientReader, clientWriter), clientOpts)

	t.Cleanup(func() {
		client.Close()
		clientWriter.Close()
		serverWriter.Close()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not shut down")
		}
	})

	return instance, &pipes{client: client, done: done}
}

func TestInitializeAndRazorRequestDispatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := &mockServer{}
	srv.On("Initialize", mock.Anything, mock.MatchedBy(func(p *protocol.InitializeParams) bool {
		return p.RootURI == "file:///workspace"
	})).Return(&protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{OpenClose: true, Change: protocol.SyncIncremental},
			HoverProvider:    true,
		},
	}, nil).Once()

	srv.On("MapToDocumentRanges", mock.Anything, mock.MatchedBy(func(p *protocol.MapToDocumentRangesParams) bool {
		return p.Kind == protocol.LanguageKindCSharp && len(p.ProjectedRanges) == 1
	})).Return(&protocol.MapToDocumentRangesResponse{
		Ranges:              []protocol.Range{{Start: protocol.Position{Line: 0, Character: 1}, End: protocol.Position{Line: 0, Character: 5}}},
		HostDocumentVersion: 3,
	}, nil).Once()

	tracker := protocol.NewRPCTracker()
	_, p := startServer(t, ctx, srv, &jrpc2.ServerOptions{RPCLog: tracker, Concurrency: 1}, nil)

	var init protocol.InitializeResult
	err := p.client.CallResult(ctx, "initialize", &protocol.InitializeParams{ProcessID: 1, RootURI: "file:///workspace"}, &init)
	require.NoError(t, err)
	assert.True(t, init.Capabilities.HoverProvider)
	assert.Equal(t, protocol.SyncIncremental, init.Capabilities.TextDocumentSync.Change)

	var mapped protocol.MapToDocumentRangesResponse
	err = p.client.CallResult(ctx, protocol.MethodMapToDocumentRanges, &protocol.MapToDocumentRangesParams{
		Kind:             protocol.LanguageKindCSharp,
		RazorDocumentURI: "file:///workspace/Index.cshtml",
		ProjectedRanges:  []protocol.Range{{Start: protocol.Position{Line: 10, Character: 4}, End: protocol.Position{Line: 10, Character: 8}}},
	}, &mapped)
	require.NoError(t, err)
	assert.Equal(t, int32(3), mapped.HostDocumentVersion)
	require.Len(t, mapped.Ranges, 1)
	assert.Equal(t, 1, mapped.Ranges[0].Start.Character)

	msgs, ok := tracker.WaitForMessages(2, time.Second, func(m protocol.RPCMessage) bool {
		return m.Direction == protocol.Incoming && m.Response == nil
	})
	require.True(t, ok)
	assert.Equal(t, "initialize", msgs[0].Method)
	assert.Equal(t, protocol.MethodMapToDocumentRanges, msgs[1].Method)

	srv.AssertExpectations(t)
}

func TestUnknownParamsAreParseErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := &mockServer{}
	_, p := startServer(t, ctx, srv, nil, nil)

	_, err := p.client.Call(ctx, protocol.MethodHover, []int{1, 2, 3})
	require.Error(t, err)

	var rpcErr *jrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.EqualValues(t, -32700, rpcErr.Code)

	srv.AssertNotCalled(t, "RazorHover", mock.Anything, mock.Anything)
}

func TestCallbackClientPushesBufferUpdates(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *jrpc2.Request, 4)
	srv := &mockServer{}
	instance, p := startServer(t, ctx, srv, nil, &jrpc2.ClientOptions{
		OnNotify: func(req *jrpc2.Request) {
			received <- req
		},
		OnCallback: func(ctx context.Context, req *jrpc2.Request) (any, error) {
			if req.Method() != protocol.MethodDelegatedCSharpHover {
				return nil, nil
			}
			return &protocol.DelegatedHoverResponse{
				Hover:                   protocol.Hover{Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: "string"}},
				HostDocumentSyncVersion: 4,
			}, nil
		},
	})
	require.NotNil(t, p.client)

	err := instance.Client().UpdateCSharpBuffer(ctx, &protocol.UpdateBufferRequest{
		HostDocumentFilePath: "/workspace/Index.cshtml",
		HostDocumentVersion:  2,
		Changes:              []protocol.BufferChange{{Span: protocol.TextSpanDTO{Start: 0, Length: 0}, NewText: "class X {}"}},
	})
	require.NoError(t, err)

	select {
	case req := <-received:
		assert.Equal(t, protocol.MethodUpdateCSharpBuffer, req.Method())
		var got protocol.UpdateBufferRequest
		require.NoError(t, req.UnmarshalParams(&got))
		assert.Equal(t, int32(2), got.HostDocumentVersion)
		require.Len(t, got.Changes, 1)
		assert.Equal(t, "class X {}", got.Changes[0].NewText)
	case <-time.After(2 * time.Second):
		t.Fatal("no buffer update received")
	}

	hover, err := instance.Client().CSharpHover(ctx, &protocol.DelegatedPositionParams{HostDocumentURI: "file:///workspace/Index.cshtml", HostDocumentVersion: 4})
	require.NoError(t, err)
	require.NotNil(t, hover)
	assert.Equal(t, "string", hover.Contents.Value)
	assert.Equal(t, int32(4), hover.HostDocumentSyncVersion)
}

func TestParseMessageTypeFromZerolog(t *testing.T) {
	assert.Equal(t, protocol.Error, protocol.ParseMessageTypeFromZerolog("error"))
	assert.Equal(t, protocol.Warning, protocol.ParseMessageTypeFromZerolog("warn"))
	assert.Equal(t, protocol.Debug, protocol.ParseMessageTypeFromZerolog("trace"))
	assert.Equal(t, protocol.Log, protocol.ParseMessageTypeFromZerolog("something"))
}

func TestDocumentURIPath(t *testing.T) {
	assert.Equal(t, "/a/b.cshtml", protocol.DocumentURI("file:///a/b.cshtml").Path())
	assert.Equal(t, "/a/b.cshtml", protocol.DocumentURI("/a/b.cshtml").Path())
}
