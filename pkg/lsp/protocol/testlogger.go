package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/creachadair/jrpc2"
	"github.com/rs/zerolog"
)

// CallbackRPCLogger is implemented by RPC loggers that also want the server to client traffic.
type CallbackRPCLogger interface {
	LogCallbackRequestRaw(ctx context.Context, method string, params any)
	LogCallbackRequest(ctx context.Context, req *jrpc2.Request)
	LogCallbackResponse(ctx context.Context, res *jrpc2.Response)
}

const maxLoggedLength = 1000

// DebugRPC reports whether tests should log full rpc payloads.
func DebugRPC() bool {
	return os.Getenv("GORAZOR_DEBUG_RPC") == "1" || os.Getenv("DEBUG") == "1"
}

// rpcTestLogger writes rpc traffic to the test log. Generated buffers are summarized unless
// DebugRPC is set, they are the bulk of every conversation.
type rpcTestLogger struct {
	t        zerolog.TestingLog
	rewrites map[string]string
	full     bool
}

var _ jrpc2.RPCLogger = (*rpcTestLogger)(nil)
var _ CallbackRPCLogger = (*rpcTestLogger)(nil)

// NewTestLogger logs rpc traffic through t. Every key of rewrites is replaced by its value in the
// output, which keeps temporary directories out of the logs.
func NewTestLogger(t zerolog.TestingLog, rewrites map[string]string) jrpc2.RPCLogger {
	return &rpcTestLogger{t: t, rewrites: rewrites, full: DebugRPC()}
}

func (l *rpcTestLogger) LogRequest(ctx context.Context, req *jrpc2.Request) {
	l.logParams("client", req.ID(), req.Method(), req.ParamString())
}

func (l *rpcTestLogger) LogResponse(ctx context.Context, res *jrpc2.Response) {
	l.logResult("server", res)
}

func (l *rpcTestLogger) LogCallbackRequest(ctx context.Context, req *jrpc2.Request) {
	l.logParams("server", req.ID(), req.Method(), req.ParamString())
}

func (l *rpcTestLogger) LogCallbackRequestRaw(ctx context.Context, method string, params any) {
	raw, err := json.Marshal(params)
	if err != nil {
		l.t.Logf("server %s: unencodable params: %v", method, err)
		return
	}
	l.logParams("server", "", method, string(raw))
}

func (l *rpcTestLogger) LogCallbackResponse(ctx context.Context, res *jrpc2.Response) {
	l.logResult("client", res)
}

func (l *rpcTestLogger) logParams(from, id, method, params string) {
	if method == "window/logMessage" && !l.full {
		return
	}
	if id == "" {
		id = "notify"
	}
	l.t.Logf("%s %s [%s] %s", from, method, id, l.summarize(method, params))
}

func (l *rpcTestLogger) logResult(from string, res *jrpc2.Response) {
	if err := res.Error(); err != nil {
		l.t.Logf("%s response [%s] error %d: %s", from, res.ID(), err.Code, err.Message)
		return
	}
	l.t.Logf("%s response [%s] %s", from, res.ID(), l.summarize("", res.ResultString()))
}

func (l *rpcTestLogger) summarize(method, payload string) string {
	if !l.full {
		switch method {
		case MethodUpdateCSharpBuffer, MethodUpdateHTMLBuffer:
			var req UpdateBufferRequest
			if err := json.Unmarshal([]byte(payload), &req); err == nil {
				return l.rewrite(fmt.Sprintf("%s v%d changes=%d previousWasEmpty=%t",
					req.HostDocumentFilePath, req.HostDocumentVersion, len(req.Changes), req.PreviousWasEmpty))
			}
		}
		if len(payload) > maxLoggedLength {
			return fmt.Sprintf("(%d bytes, set GORAZOR_DEBUG_RPC=1 to see them)", len(payload))
		}
	}
	return l.rewrite(payload)
}

func (l *rpcTestLogger) rewrite(s string) string {
	for from, to := range l.rewrites {
		s = strings.ReplaceAll(s, from, to)
	}
	return s
}
