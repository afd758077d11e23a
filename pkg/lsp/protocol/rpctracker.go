package protocol

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"
)

type rpcTrackerContextKey struct{}

type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// RPCMessage is one request, response or server push seen on the wire.
type RPCMessage struct {
	Method    string
	Direction Direction
	Params    json.RawMessage
	Response  *jrpc2.Response
	Time      time.Time
}

// RPCTracker records traffic through a server instance so tests can wait on it.
type RPCTracker struct {
	mu sync.Mutex

	messages     []RPCMessage
	knownMethods map[string]string
	changed      chan struct{}
}

var _ jrpc2.RPCLogger = (*RPCTracker)(nil)
var _ CallbackRPCLogger = (*RPCTracker)(nil)

func NewRPCTracker() *RPCTracker {
	return &RPCTracker{
		knownMethods: make(map[string]string),
		changed:      make(chan struct{}),
	}
}

func (t *RPCTracker) LogRequest(ctx context.Context, req *jrpc2.Request) {
	t.mu.Lock()
	t.knownMethods[req.ID()] = req.Method()
	t.mu.Unlock()

	t.Track(RPCMessage{Method: req.Method(), Direction: Incoming, Params: json.RawMessage(req.ParamString())})
}

func (t *RPCTracker) LogResponse(ctx context.Context, resp *jrpc2.Response) {
	t.mu.Lock()
	method := t.knownMethods[resp.ID()]
	t.mu.Unlock()

	t.Track(RPCMessage{Method: method, Direction: Outgoing, Response: resp})
}

func (t *RPCTracker) LogCallbackRequestRaw(ctx context.Context, method string, params any) {
	raw, err := json.Marshal(params)
	if err != nil {
		raw = nil
	}
	t.Track(RPCMessage{Method: method, Direction: Outgoing, Params: raw})
}

func (t *RPCTracker) LogCallbackRequest(ctx context.Context, req *jrpc2.Request) {
	t.Track(RPCMessage{Method: req.Method(), Direction: Outgoing, Params: json.RawMessage(req.ParamString())})
}

func (t *RPCTracker) LogCallbackResponse(ctx context.Context, res *jrpc2.Response) {
	t.Track(RPCMessage{Direction: Incoming, Response: res})
}

func (t *RPCTracker) Track(msg RPCMessage) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	msg.Time = time.Now()
	t.messages = append(t.messages, msg)

	close(t.changed)
	t.changed = make(chan struct{})
}

func (t *RPCTracker) GetMessages() []RPCMessage {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.messages)
}

func (t *RPCTracker) Clear() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}

func (t *RPCTracker) messagesLike(predicate func(RPCMessage) bool) ([]RPCMessage, <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := slices.DeleteFunc(slices.Clone(t.messages), func(msg RPCMessage) bool {
		return !predicate(msg)
	})
	return out, t.changed
}

// WaitForMessages blocks until count messages match predicate or the timeout passes.
func (t *RPCTracker) WaitForMessages(count int, timeout time.Duration, predicate func(RPCMessage) bool) ([]RPCMessage, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		result, changed := t.messagesLike(predicate)
		if len(result) >= count {
			return result, true
		}
		select {
		case <-changed:
		case <-timer.C:
			return result, false
		}
	}
}

// WaitForMethod waits for the first outgoing push of method.
func (t *RPCTracker) WaitForMethod(method string, timeout time.Duration) (RPCMessage, bool) {
	msgs, ok := t.WaitForMessages(1, timeout, func(m RPCMessage) bool {
		return m.Method == method && m.Direction == Outgoing && m.Response == nil
	})
	if !ok {
		return RPCMessage{}, false
	}
	return msgs[0], true
}

func GetRPCTrackerFromContext(ctx context.Context) *RPCTracker {
	if tracker, ok := ctx.Value(rpcTrackerContextKey{}).(*RPCTracker); ok {
		return tracker
	}
	return nil
}

func ContextWithRPCTracker(ctx context.Context, tracker *RPCTracker) context.Context {
	return context.WithValue(ctx, rpcTrackerContextKey{}, tracker)
}
