package lsp

import (
	"context"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog"

	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/project"
	"github.com/walteh/gorazor/pkg/razor"
)

// pump forwards every published document to the client in publish order: the generated C# and
// HTML buffers first, then the Razor diagnostics.
func (s *Server) pump(ctx context.Context, sub *project.Subscription) {
	defer close(s.pumpDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case ev := <-sub.Events():
			client := s.client()
			if client == nil {
				continue
			}
			if err := pushEvent(ctx, client, ev); err != nil {
				zerolog.Ctx(ctx).Debug().Err(err).Str("path", ev.Path).Msg("pushing document update")
			}
		}
	}
}

func pushEvent(ctx context.Context, client protocol.Client, ev project.Event) error {
	uri := protocol.DocumentURI("file://" + ev.Path)

	if ev.Kind == project.DocumentClosed || ev.New == nil {
		return client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{URI: uri, Diagnostics: []protocol.Diagnostic{}})
	}

	if req := bufferUpdate(ev.Path, ev.Old, ev.New, csharpText); req != nil {
		if err := client.UpdateCSharpBuffer(ctx, req); err != nil {
			return err
		}
	}
	if req := bufferUpdate(ev.Path, ev.Old, ev.New, htmlText); req != nil {
		if err := client.UpdateHTMLBuffer(ctx, req); err != nil {
			return err
		}
	}

	diags := make([]protocol.Diagnostic, 0, len(ev.New.Diagnostics))
	for _, d := range ev.New.Diagnostics {
		diags = append(diags, d.ToLSP(ev.New.Source))
	}
	return client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Version:     ev.New.Version,
		Diagnostics: diags,
	})
}

func csharpText(doc *razor.CodeDocument) string {
	if doc == nil || doc.CSharp == nil {
		return ""
	}
	return doc.CSharp.Text()
}

func htmlText(doc *razor.CodeDocument) string {
	if doc == nil || doc.HTML == nil {
		return ""
	}
	return doc.HTML.Text()
}

// bufferUpdate describes how to turn the projection of old into the projection of next. It is nil
// when nothing changed.
func bufferUpdate(path string, old, next *razor.CodeDocument, text func(*razor.CodeDocument) string) *protocol.UpdateBufferRequest {
	before, after := text(old), text(next)
	req := &protocol.UpdateBufferRequest{
		HostDocumentFilePath: path,
		HostDocumentVersion:  next.Version,
		PreviousWasEmpty:     old == nil,
	}
	if old == nil {
		req.Changes = []protocol.BufferChange{{NewText: after}}
		return req
	}
	if before == after {
		return nil
	}
	req.Changes = TextChanges(before, after)
	return req
}

// TextChanges returns line based changes that turn before into after. Spans are byte offsets into
// before, ascending and non-overlapping.
func TextChanges(before, after string) []protocol.BufferChange {
	a := strings.SplitAfter(before, "\n")
	b := strings.SplitAfter(after, "\n")

	offsets := make([]int, len(a)+1)
	for i, line := range a {
		offsets[i+1] = offsets[i] + len(line)
	}

	var out []protocol.BufferChange
	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		out = append(out, protocol.BufferChange{
			Span:    protocol.TextSpanDTO{Start: offsets[op.I1], Length: offsets[op.I2] - offsets[op.I1]},
			NewText: strings.Join(b[op.J1:op.J2], ""),
		})
	}
	return out
}
