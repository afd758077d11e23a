package protocol

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/walteh/gorazor/pkg/debug"
)

type MultiRPCLogger struct {
	mu      sync.Mutex
	loggers []jrpc2.RPCLogger
}

var _ jrpc2.RPCLogger = (*MultiRPCLogger)(nil)

func NewMultiRPCLogger(loggers ...jrpc2.RPCLogger) *MultiRPCLogger {
	return &MultiRPCLogger{loggers: loggers}
}

func (m *MultiRPCLogger) LogRequest(ctx context.Context, req *jrpc2.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, logger := range m.loggers {
		logger.LogRequest(ctx, req)
	}
}

func (m *MultiRPCLogger) LogResponse(ctx context.Context, resp *jrpc2.Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, logger := range m.loggers {
		logger.LogResponse(ctx, resp)
	}
}

func (m *MultiRPCLogger) LogCallbackRequestRaw(ctx context.Context, method string, params any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, logger := range m.loggers {
		if cl, ok := logger.(CallbackRPCLogger); ok {
			cl.LogCallbackRequestRaw(ctx, method, params)
		}
	}
}

func (m *MultiRPCLogger) LogCallbackRequest(ctx context.Context, req *jrpc2.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, logger := range m.loggers {
		if cl, ok := logger.(CallbackRPCLogger); ok {
			cl.LogCallbackRequest(ctx, req)
		}
	}
}

func (m *MultiRPCLogger) LogCallbackResponse(ctx context.Context, res *jrpc2.Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, logger := range m.loggers {
		if cl, ok := logger.(CallbackRPCLogger); ok {
			cl.LogCallbackResponse(ctx, res)
		}
	}
}

func (m *MultiRPCLogger) AddLogger(logger jrpc2.RPCLogger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loggers = append(m.loggers, logger)
}

var myLoggerId = xid.New().String()

// ExtendedLogMessageParams is a window/logMessage payload carrying the structured zerolog fields
// alongside the plain message.
type ExtendedLogMessageParams struct {
	Type         MessageType            `json:"type"`
	Message      string                 `json:"message"`
	Extra        map[string]interface{} `json:"extra,omitempty"`
	Time         string                 `json:"time,omitempty"`
	Source       string                 `json:"source,omitempty"`
	IsDependency bool                   `json:"is_dependency,omitempty"`
}

// ApplyServerInstanceToZerolog points the context logger at the client: a server speaking LSP
// over stdio has no console of its own.
func ApplyServerInstanceToZerolog(ctx context.Context, client Client) context.Context {
	writer := &logWriter{
		client: client,
		ctx:    ctx,
	}

	level := zerolog.Ctx(ctx).GetLevel()

	return zerolog.New(writer).With().
		Str("id", myLoggerId).
		Str("lsp_role", "server").
		Logger().
		Level(level).
		Hook(debug.TimeHook{}).
		Hook(debug.CallerHook{}).
		WithContext(ctx)
}

func ApplyRequestToZerolog(ctx context.Context, req *jrpc2.Request) context.Context {
	return zerolog.Ctx(ctx).With().Str("rpc_method", req.Method()).Str("rpc_id", req.ID()).Logger().WithContext(ctx)
}

type logWriter struct {
	client Client
	mu     sync.Mutex
	ctx    context.Context
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var logEntry map[string]interface{}
	if err := json.Unmarshal(p, &logEntry); err != nil {
		return len(p), nil
	}

	level := ParseMessageTypeFromZerolog(extractField(logEntry, "level", "info"))
	msg := extractField(logEntry, "message", "")
	id := extractField(logEntry, "id", "")
	time := extractField(logEntry, "time", "")
	source := extractField(logEntry, "caller", "")

	notification := &ExtendedLogMessageParams{
		Type:         level,
		Message:      msg,
		Extra:        logEntry,
		Time:         time,
		Source:       source,
		IsDependency: id != myLoggerId,
	}

	if w.client != nil {
		err = w.client.LogMessage(w.ctx, notification)
	}

	return len(p), err
}

func extractField(entry map[string]interface{}, key, defaultValue string) string {
	if v, ok := entry[key].(string); ok {
		delete(entry, key)
		return v
	}
	return defaultValue
}

// ParseMessageTypeFromZerolog converts zerolog level to LSP MessageType
func ParseMessageTypeFromZerolog(level string) MessageType {
	switch level {
	case "error", "fatal", "panic":
		return Error
	case "warn":
		return Warning
	case "info":
		return Info
	case "debug", "trace":
		return Debug
	default:
		return Log
	}
}
