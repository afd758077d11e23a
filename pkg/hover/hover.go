// Package hover answers hover requests on Razor documents. Tag helpers and directives are
// described from the syntax tree; C# is delegated to the C# service through the source mappings.
package hover

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/walteh/gorazor/pkg/csharp"
	"github.com/walteh/gorazor/pkg/debug"
	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/mapping"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor"
	"github.com/walteh/gorazor/pkg/razor/syntax"
)

// HoverInfo represents the information to be displayed in a hover tooltip
type HoverInfo struct {
	// Content is one markdown section per described item
	Content []string
	// Range is the range in the Razor document that this hover applies to
	Range position.Range
}

func (h *HoverInfo) ToLSP() *protocol.Hover {
	if h == nil {
		return nil
	}
	rng := h.Range.ToLSP()
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: strings.Join(h.Content, "\n\n---\n\n"),
		},
		Range: &rng,
	}
}

type Service struct {
	mapping *mapping.Service
	csharp  csharp.Service
}

func NewService(mappingService *mapping.Service, csharpService csharp.Service) *Service {
	return &Service{mapping: mappingService, csharp: csharpService}
}

// GetHover returns the hover at hostIndex of doc, or nil when there is nothing to say. A C#
// service that fails or returns nothing is not an error.
func (s *Service) GetHover(ctx context.Context, doc *razor.CodeDocument, hostIndex int) (*protocol.Hover, error) {
	if doc == nil || doc.Tree == nil {
		return nil, nil
	}
	logger := zerolog.Ctx(ctx)

	if info := BuildRazorHover(ctx, doc, hostIndex); info != nil {
		return info.ToLSP(), nil
	}

	kind := s.mapping.GetLanguageKind(doc, hostIndex, true)
	if kind != protocol.LanguageKindCSharp || s.csharp == nil {
		logger.Trace().Stringer("kind", kind).Int("index", hostIndex).Msg("no razor hover")
		return nil, nil
	}

	_, generated, ok := s.mapping.TryMapToGeneratedPosition(doc, hostIndex)
	if !ok {
		return nil, nil
	}

	hover, err := s.csharp.Hover(ctx, doc, generated)
	if err != nil {
		logger.Debug().Err(err).Msg("csharp hover unavailable")
		return nil, nil
	}
	if hover == nil {
		return nil, nil
	}

	if hover.Range != nil {
		host, ok := s.mapping.TryMapToHostDocumentRange(doc, position.NewRangeFromLSP(*hover.Range), mapping.Strict)
		if ok {
			rng := host.ToLSP()
			hover.Range = &rng
		} else {
			hover.Range = nil
		}
	}
	return hover, nil
}

// BuildRazorHover describes the tag helper element, tag helper attribute or directive keyword at
// index. The range covers exactly the hovered name.
func BuildRazorHover(ctx context.Context, doc *razor.CodeDocument, index int) *HoverInfo {
	n := doc.Tree.FindInnermostNode(index)
	debug.Assert(ctx, n != nil || doc.Source.Length() == 0, "no node at %d in %s", index, doc.Source.FilePath)
	if n == nil || !n.IsLeaf() || index < n.Start || index >= n.End() {
		return nil
	}
	src := doc.Source

	switch n.Kind {
	case syntax.KindMarkupTagName:
		el := n.Element()
		if el == nil || el.TagHelper == nil {
			return nil
		}
		return &HoverInfo{
			Content: FormatTagHelpers(el.TagHelper.Descriptors),
			Range:   src.RangeOf(n.Start, n.End()),
		}

	case syntax.KindMarkupAttributeName:
		attr := n.Parent
		el := n.Element()
		if attr == nil || attr.BoundAttribute == nil || el == nil {
			return nil
		}
		desc, bound, ok := el.TagHelper.BoundAttribute(attr.Name)
		if !ok {
			return nil
		}
		return &HoverInfo{
			Content: []string{FormatBoundAttribute(desc, bound)},
			Range:   src.RangeOf(n.Start, n.End()),
		}

	case syntax.KindRazorDirectiveKeyword, syntax.KindTransition:
		directive := n.Parent
		if directive == nil || directive.Kind != syntax.KindRazorDirective {
			return nil
		}
		d, ok := syntax.LookupDirective(directive.Name)
		if !ok {
			return nil
		}
		keyword := directive.Child(syntax.KindRazorDirectiveKeyword)
		if keyword == nil {
			return nil
		}
		return &HoverInfo{
			Content: []string{FormatDirective(d)},
			Range:   src.RangeOf(directive.Start, keyword.End()),
		}
	}
	return nil
}
