/*
Package project keeps the current CodeDocument of every Razor document in the workspace.

	  Open / Change / Close / Refresh / SetEngine
	                  |
	                  v
	          +---------------+        FIFO, one goroutine
	          |  write queue  |
	          +---------------+
	                  |
	        process, publish new map
	                  |
	      +-----------+-----------+
	      |                       |
	      v                       v
	+-----------+          +---------------+
	| snapshot  |          | subscriptions |
	| (atomic)  |          |  (events)     |
	+-----------+          +---------------+
	      ^
	      |  lock free reads
	hover, tokens, mapping

Readers hold on to the CodeDocument they loaded; a later write never changes it.
*/
package project

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor"
)

var ErrClosed = errors.New("project manager closed")

type EventKind int

const (
	DocumentOpened EventKind = iota
	DocumentChanged
	DocumentClosed
	// DocumentReprocessed is sent for every document when the engine changes.
	DocumentReprocessed
)

func (k EventKind) String() string {
	switch k {
	case DocumentOpened:
		return "opened"
	case DocumentChanged:
		return "changed"
	case DocumentClosed:
		return "closed"
	case DocumentReprocessed:
		return "reprocessed"
	}
	return "unknown"
}

type Event struct {
	Kind EventKind
	Path string
	Old  *razor.CodeDocument
	New  *razor.CodeDocument
}

// Change replaces Range with Text. A nil Range replaces the whole document.
type Change struct {
	Range *position.Range
	Text  string
}

type request struct {
	ctx   context.Context
	apply func(ctx context.Context) (*razor.CodeDocument, error)
	reply chan result
}

type result struct {
	doc *razor.CodeDocument
	err error
}

type Manager struct {
	engine   atomic.Pointer[razor.Engine]
	fallback *razor.Engine
	snapshot atomic.Pointer[map[string]*razor.CodeDocument]

	// open is only touched by the writer goroutine.
	open map[string]bool

	queue  chan request
	done   chan struct{}
	closed sync.Once

	subsMu      sync.Mutex
	subs        map[uint64]*Subscription
	nextSub     uint64
	subscribers atomic.Int64
}

// NewManager starts the writer goroutine. A nil engine means the project is not ready yet and
// every document is published as unsupported until SetEngine is called.
func NewManager(ctx context.Context, engine *razor.Engine) *Manager {
	m := &Manager{
		fallback: razor.NewEngine(razor.EngineOptions{}),
		open:     map[string]bool{},
		queue:    make(chan request, 64),
		done:     make(chan struct{}),
		subs:     map[uint64]*Subscription{},
	}
	m.engine.Store(engine)
	empty := map[string]*razor.CodeDocument{}
	m.snapshot.Store(&empty)

	go m.run(ctx)
	return m
}

func (m *Manager) run(ctx context.Context) {
	logger := zerolog.Ctx(ctx)
	for {
		select {
		case <-m.done:
			return
		case <-ctx.Done():
			m.Close()
			return
		case req := <-m.queue:
			doc, err := req.apply(req.ctx)
			if err != nil {
				logger.Debug().Err(err).Msg("project update failed")
			}
			req.reply <- result{doc: doc, err: err}
		}
	}
}

// submit queues fn and waits for the writer to run it. A caller whose ctx ends before the request
// is queued gets ctx.Err() and nothing changes. Once queued the request is applied in full and its
// result returned, even if ctx ends meanwhile.
func (m *Manager) submit(ctx context.Context, fn func(ctx context.Context) (*razor.CodeDocument, error)) (*razor.CodeDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := request{ctx: context.WithoutCancel(ctx), apply: fn, reply: make(chan result, 1)}
	select {
	case m.queue <- req:
	case <-m.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res.doc, res.err
	case <-m.done:
		return nil, ErrClosed
	}
}

func (m *Manager) Close() {
	m.closed.Do(func() {
		close(m.done)
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		for _, s := range m.subs {
			s.closeLocked()
		}
		m.subs = map[uint64]*Subscription{}
		m.subscribers.Store(0)
	})
}

// Document returns the latest published CodeDocument for path.
func (m *Manager) Document(path string) (*razor.CodeDocument, bool) {
	doc, ok := (*m.snapshot.Load())[path]
	return doc, ok
}

// Snapshot returns every published document. The map must not be modified.
func (m *Manager) Snapshot() map[string]*razor.CodeDocument {
	return *m.snapshot.Load()
}

func (m *Manager) Engine() *razor.Engine {
	return m.engine.Load()
}

func (m *Manager) process(ctx context.Context, source *position.Document, version int32) *razor.CodeDocument {
	if engine := m.engine.Load(); engine != nil {
		return engine.Process(ctx, source, version)
	}
	return m.fallback.Unsupported(ctx, source, version)
}

// publish swaps in a copy of the snapshot with path set to doc, or removed when doc is nil.
func (m *Manager) publish(ctx context.Context, kind EventKind, path string, doc *razor.CodeDocument) {
	current := *m.snapshot.Load()
	old := current[path]
	next := maps.Clone(current)
	if doc == nil {
		delete(next, path)
	} else {
		next[path] = doc
	}
	m.snapshot.Store(&next)
	m.broadcast(ctx, Event{Kind: kind, Path: path, Old: old, New: doc})
}

// Open processes text as the editor's view of path.
func (m *Manager) Open(ctx context.Context, path string, text string, version int32) (*razor.CodeDocument, error) {
	return m.submit(ctx, func(ctx context.Context) (*razor.CodeDocument, error) {
		doc := m.process(ctx, position.NewDocument(path, text), version)
		m.open[path] = true
		m.publish(ctx, DocumentOpened, path, doc)
		return doc, nil
	})
}

// Change applies changes in order to the current text of an open document.
func (m *Manager) Change(ctx context.Context, path string, version int32, changes []Change) (*razor.CodeDocument, error) {
	return m.submit(ctx, func(ctx context.Context) (*razor.CodeDocument, error) {
		current, ok := m.Document(path)
		if !ok || !m.open[path] {
			return nil, errors.Errorf("changing %s: document is not open", path)
		}
		text := current.Source.Text()
		for _, c := range changes {
			if c.Range == nil {
				text = c.Text
				continue
			}
			src := position.NewDocument(path, text)
			span, ok := src.TextSpanOf(*c.Range)
			if !ok {
				return nil, errors.Errorf("changing %s: range %s is outside the document", path, c.Range)
			}
			text = position.ApplyEdits(text, []position.TextChange{{Span: span, NewText: c.Text}})
		}
		doc := m.process(ctx, position.NewDocument(path, text), version)
		m.publish(ctx, DocumentChanged, path, doc)
		return doc, nil
	})
}

// CloseDocument drops path from the published documents.
func (m *Manager) CloseDocument(ctx context.Context, path string) error {
	_, err := m.submit(ctx, func(ctx context.Context) (*razor.CodeDocument, error) {
		delete(m.open, path)
		m.publish(ctx, DocumentClosed, path, nil)
		return nil, nil
	})
	return err
}

// Refresh publishes text read from disk. Documents open in the editor are left alone.
func (m *Manager) Refresh(ctx context.Context, path string, text string) (*razor.CodeDocument, error) {
	return m.submit(ctx, func(ctx context.Context) (*razor.CodeDocument, error) {
		if m.open[path] {
			doc, _ := m.Document(path)
			return doc, nil
		}
		version := int32(0)
		kind := DocumentOpened
		if old, ok := m.Document(path); ok {
			version = old.Version + 1
			kind = DocumentChanged
		}
		doc := m.process(ctx, position.NewDocument(path, text), version)
		m.publish(ctx, kind, path, doc)
		return doc, nil
	})
}

// Forget removes a document that disappeared from disk unless the editor has it open.
func (m *Manager) Forget(ctx context.Context, path string) error {
	_, err := m.submit(ctx, func(ctx context.Context) (*razor.CodeDocument, error) {
		if _, ok := m.Document(path); !ok || m.open[path] {
			return nil, nil
		}
		m.publish(ctx, DocumentClosed, path, nil)
		return nil, nil
	})
	return err
}

// SetEngine switches to engine and reprocesses every document at its current version.
func (m *Manager) SetEngine(ctx context.Context, engine *razor.Engine) error {
	_, err := m.submit(ctx, func(ctx context.Context) (*razor.CodeDocument, error) {
		m.engine.Store(engine)
		for path, doc := range m.Snapshot() {
			m.publish(ctx, DocumentReprocessed, path, m.process(ctx, doc.Source, doc.Version))
		}
		zerolog.Ctx(ctx).Debug().Int("documents", len(m.Snapshot())).Msg("reprocessed project")
		return nil, nil
	})
	return err
}
