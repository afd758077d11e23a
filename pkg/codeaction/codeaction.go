// Package codeaction offers the C# service's code actions on Razor documents. Actions are handed
// out without edits and tagged with the document they belong to; resolving one asks the C#
// service for its edits and remaps them onto the Razor source.
package codeaction

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gorazor/pkg/csharp"
	"github.com/walteh/gorazor/pkg/editremap"
	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/mapping"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor"
)

type Service struct {
	mapping  *mapping.Service
	csharp   csharp.Service
	remapper *editremap.Remapper
}

func NewService(mappingService *mapping.Service, csharpService csharp.Service, remapper *editremap.Remapper) *Service {
	return &Service{mapping: mappingService, csharp: csharpService, remapper: remapper}
}

// Provide returns the C# actions available for hostRange. Ranges outside C# give no actions.
func (s *Service) Provide(ctx context.Context, doc *razor.CodeDocument, hostRange position.Range, actx protocol.CodeActionContext) ([]protocol.CodeAction, error) {
	logger := zerolog.Ctx(ctx)
	if doc == nil || doc.Unsupported || s.csharp == nil {
		return []protocol.CodeAction{}, nil
	}

	generated, ok := s.mapping.TryMapToGeneratedRange(doc, hostRange)
	if !ok {
		logger.Trace().Str("range", hostRange.String()).Msg("code action range is not csharp")
		return []protocol.CodeAction{}, nil
	}

	gctx := protocol.CodeActionContext{Only: actx.Only}
	for _, diag := range actx.Diagnostics {
		if r, ok := s.mapping.TryMapToGeneratedRange(doc, position.NewRangeFromLSP(diag.Range)); ok {
			diag.Range = r.ToLSP()
			gctx.Diagnostics = append(gctx.Diagnostics, diag)
		}
	}

	actions, err := s.csharp.CodeActions(ctx, doc, generated, gctx)
	if err != nil {
		logger.Debug().Err(err).Msg("csharp code actions unavailable")
		return []protocol.CodeAction{}, nil
	}

	out := make([]protocol.CodeAction, 0, len(actions))
	for _, action := range actions {
		out = append(out, protocol.CodeAction{
			Title:       action.Title,
			Kind:        action.Kind,
			Diagnostics: s.hostDiagnostics(doc, action.Diagnostics),
			Data: protocol.RazorCodeActionData{
				URI:      csharp.HostURI(doc),
				Version:  doc.Version,
				Language: protocol.LanguageKindCSharp,
				Inner:    action,
			},
		})
	}
	logger.Debug().Int("actions", len(out)).Msg("provided code actions")
	return out, nil
}

func (s *Service) hostDiagnostics(doc *razor.CodeDocument, diags []protocol.Diagnostic) []protocol.Diagnostic {
	var out []protocol.Diagnostic
	for _, diag := range diags {
		if r, ok := s.mapping.TryMapToHostDocumentRange(doc, position.NewRangeFromLSP(diag.Range), mapping.Strict); ok {
			diag.Range = r.ToLSP()
			out = append(out, diag)
		}
	}
	return out
}

// DecodeData reads the data Provide attached to an action. Actions that crossed the wire carry it
// as plain JSON objects.
func DecodeData(action protocol.CodeAction) (*protocol.RazorCodeActionData, *protocol.CodeAction, error) {
	raw, err := json.Marshal(action.Data)
	if err != nil {
		return nil, nil, errors.Errorf("encoding code action data: %w", err)
	}
	var data struct {
		protocol.RazorCodeActionData
		Inner *protocol.CodeAction `json:"inner"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, nil, errors.Errorf("decoding code action data: %w", err)
	}
	if data.URI == "" || data.Inner == nil {
		return nil, nil, errors.Errorf("code action %q was not provided by this server", action.Title)
	}
	data.RazorCodeActionData.Inner = nil
	return &data.RazorCodeActionData, data.Inner, nil
}

// Resolve fills in the edit of an action returned by Provide. An action for an older version of
// the document comes back without an edit.
func (s *Service) Resolve(ctx context.Context, doc *razor.CodeDocument, action protocol.CodeAction) (*protocol.CodeAction, error) {
	logger := zerolog.Ctx(ctx)

	data, inner, err := DecodeData(action)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.Version != data.Version {
		logger.Debug().Int32("wanted", data.Version).Msg("code action is for a stale document")
		return &action, nil
	}
	if s.csharp == nil {
		return &action, nil
	}

	resolved, err := s.csharp.ResolveCodeAction(ctx, doc, *inner)
	if err != nil {
		logger.Debug().Err(err).Msg("csharp code action resolve unavailable")
		return &action, nil
	}
	if resolved == nil || resolved.Edit == nil {
		return &action, nil
	}

	edit, err := s.remapWorkspaceEdit(ctx, doc, resolved.Edit)
	if err != nil {
		return nil, errors.Errorf("remapping %q: %w", action.Title, err)
	}

	out := action
	out.Edit = edit
	out.Command = resolved.Command
	return &out, nil
}

// remapWorkspaceEdit moves edits aimed at the document's generated C# onto the Razor document.
// Edits for other documents pass through.
func (s *Service) remapWorkspaceEdit(ctx context.Context, doc *razor.CodeDocument, edit *protocol.WorkspaceEdit) (*protocol.WorkspaceEdit, error) {
	uri := csharp.HostURI(doc)

	var generated []protocol.TextEdit
	out := &protocol.WorkspaceEdit{}
	for target, edits := range edit.Changes {
		if target == uri {
			generated = append(generated, edits...)
			continue
		}
		if out.Changes == nil {
			out.Changes = map[protocol.DocumentURI][]protocol.TextEdit{}
		}
		out.Changes[target] = edits
	}
	for _, dc := range edit.DocumentChanges {
		if dc.TextDocument.URI == uri {
			generated = append(generated, dc.Edits...)
			continue
		}
		out.DocumentChanges = append(out.DocumentChanges, dc)
	}

	remapped, err := s.remapper.Remap(ctx, doc, generated)
	if err != nil {
		return nil, err
	}
	if len(remapped) > 0 {
		version := doc.Version
		out.DocumentChanges = append([]protocol.TextDocumentEdit{{
			TextDocument: protocol.OptionalVersionedTextDocumentIdentifier{
				TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
				Version:                &version,
			},
			Edits: remapped,
		}}, out.DocumentChanges...)
	}
	return out, nil
}
