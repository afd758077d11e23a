// Package csharp talks to the C# language service on behalf of Razor documents. Every request is
// made against the generated C# of a CodeDocument and every answer comes back in generated
// coordinates; mapping back to the Razor document is the caller's job.
package csharp

import (
	"context"

	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor"
	"github.com/walteh/gorazor/pkg/semtok"
)

type Service interface {
	semtok.CSharpTokenSource

	Hover(ctx context.Context, doc *razor.CodeDocument, generated position.Place) (*protocol.Hover, error)
	CodeActions(ctx context.Context, doc *razor.CodeDocument, generated position.Range, actx protocol.CodeActionContext) ([]protocol.CodeAction, error)
	ResolveCodeAction(ctx context.Context, doc *razor.CodeDocument, action protocol.CodeAction) (*protocol.CodeAction, error)
}

// HostURI is the uri the editor knows the Razor document by.
func HostURI(doc *razor.CodeDocument) protocol.DocumentURI {
	return protocol.DocumentURI("file://" + doc.Source.FilePath)
}

func toLSPRanges(ranges []position.Range) []protocol.Range {
	out := make([]protocol.Range, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, r.ToLSP())
	}
	return out
}
