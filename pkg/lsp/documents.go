package lsp

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/razor"
)

// document returns the current CodeDocument for uri.
func (s *Server) document(uri protocol.DocumentURI) (*razor.CodeDocument, bool) {
	return s.manager.Document(uri.Path())
}

// documentAt returns the CodeDocument for uri only when it is at version. The client asks again
// after it catches up, so a mismatch is not an error.
func (s *Server) documentAt(ctx context.Context, uri protocol.DocumentURI, version int32) (*razor.CodeDocument, bool) {
	doc, ok := s.document(uri)
	if !ok {
		zerolog.Ctx(ctx).Debug().Str("uri", string(uri)).Msg("unknown document")
		return nil, false
	}
	if doc.Version != version {
		zerolog.Ctx(ctx).Debug().
			Str("uri", string(uri)).
			Int32("have", doc.Version).
			Int32("want", version).
			Msg("document version mismatch")
		return nil, false
	}
	return doc, true
}
