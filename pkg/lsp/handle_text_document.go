package lsp

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gorazor/pkg/codeaction"
	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/project"
	"github.com/walteh/gorazor/pkg/razor"
)

func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	if err := s.ready(); err != nil {
		return err
	}
	path := params.TextDocument.URI.Path()
	if !razor.IsRazorPath(path) {
		zerolog.Ctx(ctx).Debug().Str("uri", string(params.TextDocument.URI)).Msg("ignoring non razor document")
		return nil
	}
	zerolog.Ctx(ctx).Debug().Str("uri", string(params.TextDocument.URI)).Int32("version", params.TextDocument.Version).Msg("document opened")

	if _, err := s.manager.Open(ctx, path, params.TextDocument.Text, params.TextDocument.Version); err != nil {
		return errors.Errorf("opening %s: %w", path, err)
	}
	return nil
}

func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	if err := s.ready(); err != nil {
		return err
	}
	path := params.TextDocument.URI.Path()
	if !razor.IsRazorPath(path) {
		return nil
	}

	changes := make([]project.Change, 0, len(params.ContentChanges))
	for _, c := range params.ContentChanges {
		change := project.Change{Text: c.Text}
		if c.Range != nil {
			r := position.NewRangeFromLSP(*c.Range)
			change.Range = &r
		}
		changes = append(changes, change)
	}

	if _, err := s.manager.Change(ctx, path, params.TextDocument.Version, changes); err != nil {
		return errors.Errorf("changing %s: %w", path, err)
	}
	return nil
}

func (s *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	path := params.TextDocument.URI.Path()
	if !razor.IsRazorPath(path) {
		return nil
	}
	zerolog.Ctx(ctx).Debug().Str("uri", string(params.TextDocument.URI)).Msg("document closed")
	return s.manager.CloseDocument(ctx, path)
}

func (s *Server) Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return s.hoverAt(ctx, doc, params.Position)
}

func (s *Server) hoverAt(ctx context.Context, doc *razor.CodeDocument, pos protocol.Position) (*protocol.Hover, error) {
	index, ok := doc.Source.AbsoluteIndex(position.Place{Line: pos.Line, Character: pos.Character})
	if !ok {
		return nil, nil
	}
	return s.services().hover.GetHover(ctx, doc, index)
}

func (s *Server) SemanticTokensRange(ctx context.Context, params *protocol.SemanticTokensRangeParams) (*protocol.SemanticTokens, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return s.services().tokens.GetSemanticTokens(ctx, doc, position.NewRangeFromLSP(params.Range), s.config().ColorBackground)
}

func (s *Server) CodeAction(ctx context.Context, params *protocol.CodeActionParams) ([]protocol.CodeAction, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return []protocol.CodeAction{}, nil
	}
	return s.services().actions.Provide(ctx, doc, position.NewRangeFromLSP(params.Range), params.Context)
}

func (s *Server) ResolveCodeAction(ctx context.Context, params *protocol.CodeAction) (*protocol.CodeAction, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.resolve(ctx, *params)
}

// resolve finds the document an action was provided for and asks for its edits. Actions this
// server did not hand out come back as they are.
func (s *Server) resolve(ctx context.Context, action protocol.CodeAction) (*protocol.CodeAction, error) {
	data, _, err := codeaction.DecodeData(action)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("not resolving code action")
		return &action, nil
	}
	doc, _ := s.document(data.URI)
	return s.services().actions.Resolve(ctx, doc, action)
}
