package protocol

import (
	"context"
	"io"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
)

var (
	RequestCancelledError = &jrpc2.Error{Code: -32800, Message: "JSON RPC cancelled"}
	ContentModifiedError  = &jrpc2.Error{Code: -32801, Message: "content modified"}
	ShutdownError         = &jrpc2.Error{Code: -32600, Message: "server is shutting down"}
)

// Server is everything the razor language server answers to.
type Server interface {
	Initialize(context.Context, *InitializeParams) (*InitializeResult, error)
	Initialized(context.Context, *InitializedParams) error
	Shutdown(context.Context) error
	Exit(context.Context) error

	DidOpen(context.Context, *DidOpenTextDocumentParams) error
	DidChange(context.Context, *DidChangeTextDocumentParams) error
	DidClose(context.Context, *DidCloseTextDocumentParams) error

	Hover(context.Context, *HoverParams) (*Hover, error)
	SemanticTokensRange(context.Context, *SemanticTokensRangeParams) (*SemanticTokens, error)
	CodeAction(context.Context, *CodeActionParams) ([]CodeAction, error)
	ResolveCodeAction(context.Context, *CodeAction) (*CodeAction, error)

	ProvideSemanticTokensRange(context.Context, *ProvideSemanticTokensRangeParams) (*ProvideSemanticTokensResponse, error)
	RazorHover(context.Context, *RazorHoverParams) (*Hover, error)
	ProvideCodeActions(context.Context, *RazorCodeActionParams) ([]CodeAction, error)
	ResolveRazorCodeAction(context.Context, *RazorResolveCodeActionParams) (*CodeAction, error)
	MapToDocumentRanges(context.Context, *MapToDocumentRangesParams) (*MapToDocumentRangesResponse, error)
	MapToDocumentEdits(context.Context, *MapToDocumentEditsParams) (*MapToDocumentEditsResponse, error)
	GeneratedDocument(context.Context, *GeneratedDocumentParams) (*GeneratedDocumentResponse, error)
}

// Client is everything the server may push back to the editor, including the requests it forwards
// to the C# language service the editor hosts.
type Client interface {
	LogMessage(context.Context, *ExtendedLogMessageParams) error
	PublishDiagnostics(context.Context, *PublishDiagnosticsParams) error
	UpdateCSharpBuffer(context.Context, *UpdateBufferRequest) error
	UpdateHTMLBuffer(context.Context, *UpdateBufferRequest) error

	CSharpSemanticTokens(context.Context, *DelegatedSemanticTokensParams) (*DelegatedSemanticTokensResponse, error)
	CSharpHover(context.Context, *DelegatedPositionParams) (*DelegatedHoverResponse, error)
	CSharpCodeActions(context.Context, *DelegatedCodeActionParams) ([]CodeAction, error)
	CSharpResolveCodeAction(context.Context, *DelegatedResolveParams) (*DelegatedResolveResponse, error)
}

func buildServerDispatchMap(server Server) handler.Map {
	return handler.Map{
		"initialize":                        createHandler(server.Initialize),
		"initialized":                       createEmptyResultHandler(server.Initialized),
		"shutdown":                          createEmptyHandler(server.Shutdown),
		"exit":                              createEmptyHandler(server.Exit),
		"$/cancelRequest":                   createEmptyResultHandler(cancelRequest),
		"textDocument/didOpen":              createEmptyResultHandler(server.DidOpen),
		"textDocument/didChange":            createEmptyResultHandler(server.DidChange),
		"textDocument/didClose":             createEmptyResultHandler(server.DidClose),
		"textDocument/hover":                createHandler(server.Hover),
		"textDocument/semanticTokens/range": createHandler(server.SemanticTokensRange),
		"textDocument/codeAction":           createHandler(server.CodeAction),
		"codeAction/resolve":                createHandler(server.ResolveCodeAction),
		MethodProvideSemanticTokensRange:    createHandler(server.ProvideSemanticTokensRange),
		MethodHover:                         createHandler(server.RazorHover),
		MethodProvideCodeActions:            createHandler(server.ProvideCodeActions),
		MethodResolveCodeActions:            createHandler(server.ResolveRazorCodeAction),
		MethodMapToDocumentRanges:           createHandler(server.MapToDocumentRanges),
		MethodMapToDocumentEdits:            createHandler(server.MapToDocumentEdits),
		MethodGeneratedDocument:             createHandler(server.GeneratedDocument),
	}
}

// jrpc2 cancels in-flight handler contexts on its own; the notification only needs an answer.
func cancelRequest(ctx context.Context, params *CancelParams) error {
	return nil
}

type CallbackClient struct {
	serverOpts *jrpc2.ServerOptions
	server     *jrpc2.Server
}

var _ Client = (*CallbackClient)(nil)
var _ Callbacker = (*CallbackClient)(nil)

func NewCallbackClient(server *jrpc2.Server, serverOpts *jrpc2.ServerOptions) *CallbackClient {
	return &CallbackClient{server: server, serverOpts: serverOpts}
}

func (c *CallbackClient) Notify(ctx context.Context, method string, params any) error {
	if rl, ok := c.serverOpts.RPCLog.(CallbackRPCLogger); ok {
		rl.LogCallbackRequestRaw(ctx, method, params)
	}

	return c.server.Notify(ctx, method, params)
}

func (c *CallbackClient) Callback(ctx context.Context, method string, params any) (*jrpc2.Response, error) {
	if rl, ok := c.serverOpts.RPCLog.(CallbackRPCLogger); ok {
		rl.LogCallbackRequestRaw(ctx, method, params)
	}

	res, err := c.server.Callback(ctx, method, params)
	if err != nil {
		return nil, err
	}

	if rl, ok := c.serverOpts.RPCLog.(CallbackRPCLogger); ok {
		rl.LogCallbackResponse(ctx, res)
	}

	return res, nil
}

func (c *CallbackClient) LogMessage(ctx context.Context, params *ExtendedLogMessageParams) error {
	return createNotify(ctx, c, "window/logMessage", params)
}

func (c *CallbackClient) PublishDiagnostics(ctx context.Context, params *PublishDiagnosticsParams) error {
	return createNotify(ctx, c, "textDocument/publishDiagnostics", params)
}

func (c *CallbackClient) UpdateCSharpBuffer(ctx context.Context, params *UpdateBufferRequest) error {
	return createNotify(ctx, c, MethodUpdateCSharpBuffer, params)
}

func (c *CallbackClient) UpdateHTMLBuffer(ctx context.Context, params *UpdateBufferRequest) error {
	return createNotify(ctx, c, MethodUpdateHTMLBuffer, params)
}

func (c *CallbackClient) CSharpSemanticTokens(ctx context.Context, params *DelegatedSemanticTokensParams) (*DelegatedSemanticTokensResponse, error) {
	var result *DelegatedSemanticTokensResponse
	if err := createCallback(ctx, c, MethodDelegatedCSharpSemanticTokens, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *CallbackClient) CSharpHover(ctx context.Context, params *DelegatedPositionParams) (*DelegatedHoverResponse, error) {
	var result *DelegatedHoverResponse
	if err := createCallback(ctx, c, MethodDelegatedCSharpHover, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *CallbackClient) CSharpCodeActions(ctx context.Context, params *DelegatedCodeActionParams) ([]CodeAction, error) {
	var result []CodeAction
	if err := createCallback(ctx, c, MethodDelegatedCSharpCodeActions, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *CallbackClient) CSharpResolveCodeAction(ctx context.Context, params *DelegatedResolveParams) (*DelegatedResolveResponse, error) {
	var result *DelegatedResolveResponse
	if err := createCallback(ctx, c, MethodDelegatedCSharpResolve, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ServerInstance couples a jrpc2 server with the callback client that lets handlers reach the editor.
type ServerInstance struct {
	server   *jrpc2.Server
	callback *CallbackClient
}

func NewServerInstance(ctx context.Context, server Server, opts *jrpc2.ServerOptions) *ServerInstance {
	methods := buildServerDispatchMap(server)
	if opts == nil {
		opts = &jrpc2.ServerOptions{}
	}

	opts.AllowPush = true

	var callbackClient *CallbackClient

	opts.NewContext = func() context.Context {
		if callbackClient == nil {
			return ctx
		}
		return ApplyServerInstanceToZerolog(ctx, callbackClient)
	}

	srv := jrpc2.NewServer(methods, opts)

	callbackClient = NewCallbackClient(srv, opts)

	return &ServerInstance{server: srv, callback: callbackClient}
}

func (s *ServerInstance) Client() *CallbackClient {
	return s.callback
}

// Start serves LSP framed messages on r/w in the background.
func (s *ServerInstance) Start(r io.Reader, w io.WriteCloser) {
	s.server.Start(channel.LSP(r, w))
}

func (s *ServerInstance) Wait() error {
	return s.server.Wait()
}

// StartAndWait serves until the connection closes.
func (s *ServerInstance) StartAndWait(r io.Reader, w io.WriteCloser) error {
	s.Start(r, w)
	return s.Wait()
}

func (s *ServerInstance) Stop() {
	s.server.Stop()
}
