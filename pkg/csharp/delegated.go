package csharp

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor"
)

// Delegated forwards every request to the C# language service hosted by the editor.
type Delegated struct {
	client protocol.Client
}

var _ Service = (*Delegated)(nil)

func NewDelegated(client protocol.Client) *Delegated {
	return &Delegated{client: client}
}

func (d *Delegated) SemanticTokens(ctx context.Context, doc *razor.CodeDocument, ranges []position.Range) ([]uint32, error) {
	resp, err := d.client.CSharpSemanticTokens(ctx, &protocol.DelegatedSemanticTokensParams{
		HostDocumentURI:     HostURI(doc),
		HostDocumentVersion: doc.Version,
		Ranges:              toLSPRanges(ranges),
	})
	if err != nil {
		return nil, errors.Errorf("delegating semantic tokens: %w", err)
	}
	if resp == nil {
		zerolog.Ctx(ctx).Debug().Str("path", doc.Source.FilePath).Msg("csharp service returned no semantic tokens")
		return nil, nil
	}
	if !synced(ctx, doc, resp.HostDocumentSyncVersion, "semantic tokens") {
		return nil, nil
	}
	return resp.Tokens, nil
}

func (d *Delegated) Hover(ctx context.Context, doc *razor.CodeDocument, generated position.Place) (*protocol.Hover, error) {
	resp, err := d.client.CSharpHover(ctx, &protocol.DelegatedPositionParams{
		HostDocumentURI:     HostURI(doc),
		HostDocumentVersion: doc.Version,
		ProjectedPosition:   protocol.Position{Line: generated.Line, Character: generated.Character},
	})
	if err != nil {
		return nil, errors.Errorf("delegating hover: %w", err)
	}
	if resp == nil || !synced(ctx, doc, resp.HostDocumentSyncVersion, "hover") {
		return nil, nil
	}
	return &resp.Hover, nil
}

func (d *Delegated) CodeActions(ctx context.Context, doc *razor.CodeDocument, generated position.Range, actx protocol.CodeActionContext) ([]protocol.CodeAction, error) {
	actions, err := d.client.CSharpCodeActions(ctx, &protocol.DelegatedCodeActionParams{
		HostDocumentURI:     HostURI(doc),
		HostDocumentVersion: doc.Version,
		ProjectedRange:      generated.ToLSP(),
		Context:             actx,
	})
	if err != nil {
		return nil, errors.Errorf("delegating code actions: %w", err)
	}
	return actions, nil
}

func (d *Delegated) ResolveCodeAction(ctx context.Context, doc *razor.CodeDocument, action protocol.CodeAction) (*protocol.CodeAction, error) {
	resp, err := d.client.CSharpResolveCodeAction(ctx, &protocol.DelegatedResolveParams{
		HostDocumentURI:     HostURI(doc),
		HostDocumentVersion: doc.Version,
		CodeAction:          action,
	})
	if err != nil {
		return nil, errors.Errorf("delegating code action resolve: %w", err)
	}
	if resp == nil || !synced(ctx, doc, resp.HostDocumentSyncVersion, "code action resolve") {
		return nil, nil
	}
	return &resp.CodeAction, nil
}

// synced reports whether the editor answered from the C# buffer of doc's version. Older answers
// would be read through doc's mappings and land in the wrong places.
func synced(ctx context.Context, doc *razor.CodeDocument, version int32, what string) bool {
	if version == doc.Version {
		return true
	}
	zerolog.Ctx(ctx).Debug().
		Str("path", doc.Source.FilePath).
		Int32("version", doc.Version).
		Int32("csharp_version", version).
		Msgf("dropping %s from a stale csharp buffer", what)
	return false
}
