package lsp

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/position"
)

func (s *Server) ProvideSemanticTokensRange(ctx context.Context, params *protocol.ProvideSemanticTokensRangeParams) (*protocol.ProvideSemanticTokensResponse, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	doc, ok := s.documentAt(ctx, params.TextDocument.URI, params.RequiredHostDocumentVersion)
	if !ok {
		return nil, nil
	}

	tokens, err := s.services().tokens.GetSemanticTokens(ctx, doc, position.NewRangeFromLSP(params.Range), params.ColorBackground)
	if err != nil {
		return nil, errors.Errorf("classifying %s: %w", params.TextDocument.URI, err)
	}
	if tokens == nil {
		return nil, nil
	}
	return &protocol.ProvideSemanticTokensResponse{
		Tokens:                  protocol.NonNilSlice(tokens.Data),
		HostDocumentSyncVersion: doc.Version,
	}, nil
}

func (s *Server) RazorHover(ctx context.Context, params *protocol.RazorHoverParams) (*protocol.Hover, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	doc, ok := s.documentAt(ctx, params.TextDocument.URI, params.HostDocumentVersion)
	if !ok {
		return nil, nil
	}
	return s.hoverAt(ctx, doc, params.Position)
}

func (s *Server) ProvideCodeActions(ctx context.Context, params *protocol.RazorCodeActionParams) ([]protocol.CodeAction, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	doc, ok := s.documentAt(ctx, params.TextDocument.URI, params.HostDocumentVersion)
	if !ok {
		return []protocol.CodeAction{}, nil
	}
	return s.services().actions.Provide(ctx, doc, position.NewRangeFromLSP(params.Range), params.Context)
}

func (s *Server) ResolveRazorCodeAction(ctx context.Context, params *protocol.RazorResolveCodeActionParams) (*protocol.CodeAction, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.resolve(ctx, params.CodeAction)
}

// MapToDocumentRanges maps ranges of a projected document onto the Razor document. Ranges that do
// not map come back undefined, in place.
func (s *Server) MapToDocumentRanges(ctx context.Context, params *protocol.MapToDocumentRangesParams) (*protocol.MapToDocumentRangesResponse, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ranges := make([]position.Range, len(params.ProjectedRanges))
	for i, r := range params.ProjectedRanges {
		ranges[i] = position.NewRangeFromLSP(r)
	}

	resp := &protocol.MapToDocumentRangesResponse{Ranges: make([]protocol.Range, len(ranges))}
	doc, ok := s.document(params.RazorDocumentURI)
	if !ok {
		for i := range resp.Ranges {
			resp.Ranges[i] = position.UndefinedRange.ToLSP()
		}
		return resp, nil
	}

	for i, r := range s.mapping.MapToHostDocumentRanges(doc, params.Kind, ranges) {
		resp.Ranges[i] = r.ToLSP()
	}
	resp.HostDocumentVersion = doc.Version
	return resp, nil
}

// MapToDocumentEdits maps edits to a projected document onto the Razor document. C# edits go
// through the edit remapper, so added and removed usings become @using directives.
func (s *Server) MapToDocumentEdits(ctx context.Context, params *protocol.MapToDocumentEditsParams) (*protocol.MapToDocumentEditsResponse, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	resp := &protocol.MapToDocumentEditsResponse{Edits: []protocol.TextEdit{}}
	doc, ok := s.document(params.RazorDocumentURI)
	if !ok {
		return resp, nil
	}
	resp.HostDocumentVersion = doc.Version

	switch params.Kind {
	case protocol.LanguageKindCSharp:
		edits, err := s.services().remapper.Remap(ctx, doc, params.ProjectedEdits)
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("edits not remapped")
			return resp, nil
		}
		resp.Edits = protocol.NonNilSlice(edits)
	case protocol.LanguageKindHTML:
		resp.Edits = s.mapping.RemapEdits(doc, params.Kind, params.ProjectedEdits)
	}
	return resp, nil
}

// GeneratedDocument returns the projections of a Razor document, for tooling and debugging.
func (s *Server) GeneratedDocument(ctx context.Context, params *protocol.GeneratedDocumentParams) (*protocol.GeneratedDocumentResponse, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, errors.Errorf("unknown document %s", params.TextDocument.URI)
	}

	resp := &protocol.GeneratedDocumentResponse{
		HostDocumentVersion: doc.Version,
		CSharp:              csharpText(doc),
		HTML:                htmlText(doc),
		Mappings:            []protocol.SourceMappingDTO{},
		Diagnostics:         []protocol.Diagnostic{},
	}
	if table := doc.Mappings(); table != nil {
		for _, m := range table.Mappings() {
			resp.Mappings = append(resp.Mappings, protocol.SourceMappingDTO{
				OriginalStart:   m.OriginalSpan.AbsoluteIndex,
				OriginalLength:  m.OriginalSpan.Length,
				GeneratedStart:  m.GeneratedSpan.AbsoluteIndex,
				GeneratedLength: m.GeneratedSpan.Length,
			})
		}
	}
	for _, d := range doc.Diagnostics {
		resp.Diagnostics = append(resp.Diagnostics, d.ToLSP(doc.Source))
	}
	return resp, nil
}
