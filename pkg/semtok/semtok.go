/*
Package semtok classifies Razor documents for LSP semantic tokens.

Core Functions:
-------------

	   Razor range
	        |
	        +-----------------------------+
	        |                             |
	        v                             v
	+---------------+            +----------------+
	| Razor visitor |            | C# service     |
	| (syntax tree) |            | (generated C#) |
	+---------------+            +----------------+
	        |                             |
	        |                      map back (strict)
	        |                             |
	        +-------------+---------------+
	                      |
	               sort, tie-break
	                      |
	                      v
	               +-------------+
	               | LSP deltas  |
	               +-------------+
*/
package semtok

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/mapping"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor"
)

// CSharpTokenSource supplies semantic tokens for ranges of a document's generated C#, encoded against
// the same legend. A nil result with a nil error means the service had no answer.
type CSharpTokenSource interface {
	SemanticTokens(ctx context.Context, doc *razor.CodeDocument, ranges []position.Range) ([]uint32, error)
}

type Provider struct {
	legend  *Legend
	mapping *mapping.Service
	csharp  CSharpTokenSource
}

func NewProvider(legend *Legend, mappingService *mapping.Service, csharp CSharpTokenSource) *Provider {
	return &Provider{legend: legend, mapping: mappingService, csharp: csharp}
}

func (p *Provider) Legend() *Legend {
	return p.legend
}

// GetSemanticTokens classifies hostRange of doc. It returns nil without an error when the C#
// service gave no answer, so the client keeps its previous tokens and asks again later.
func (p *Provider) GetSemanticTokens(ctx context.Context, doc *razor.CodeDocument, hostRange position.Range, colorBackground bool) (*protocol.SemanticTokens, error) {
	if doc == nil {
		return nil, nil
	}
	span, ok := doc.Source.TextSpanOf(hostRange)
	if !ok {
		return nil, nil
	}

	ranges := getRanges()
	defer putRanges(ranges)

	if err := AddSemanticRanges(ctx, ranges, doc, span, p.legend, colorBackground); err != nil {
		return nil, err
	}

	if generated := p.mapping.GeneratedRangesFor(doc, span); len(generated) > 0 && p.csharp != nil {
		data, err := p.csharp.SemanticTokens(ctx, doc, generated)
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("path", doc.Source.FilePath).Msg("csharp semantic tokens unavailable")
			return nil, nil
		}
		if data == nil {
			return nil, nil
		}
		p.addCSharpRanges(ctx, ranges, doc, span, data, colorBackground)
	}

	return &protocol.SemanticTokens{
		ResultID: uuid.NewString(),
		Data:     Encode(*ranges),
	}, nil
}

// addCSharpRanges maps C# tokens back into the Razor document. Tokens that do not map, or that land
// outside span, are dropped.
func (p *Provider) addCSharpRanges(ctx context.Context, target *[]SemanticRange, doc *razor.CodeDocument, span position.TextSpan, data []uint32, colorBackground bool) {
	razorCode := 0
	if colorBackground {
		razorCode = p.legend.Modifier(ModifierRazorCode)
	}

	start := len(*target)
	dropped := 0
	for _, tok := range Decode(data) {
		if tok.Length <= 0 {
			dropped++
			continue
		}
		generated := position.Range{
			Start: position.Place{Line: tok.Line, Character: tok.Character},
			End:   position.Place{Line: tok.Line, Character: tok.Character + tok.Length},
		}
		host, ok := p.mapping.TryMapToHostDocumentRange(doc, generated, mapping.Strict)
		if !ok || host.Start.Line != host.End.Line {
			dropped++
			continue
		}
		hostSpan, ok := doc.Source.TextSpanOf(host)
		if !ok || !hostSpan.Intersects(span) {
			dropped++
			continue
		}
		*target = append(*target, SemanticRange{
			Kind:           tok.Type,
			StartLine:      host.Start.Line,
			StartCharacter: host.Start.Character,
			EndLine:        host.End.Line,
			EndCharacter:   host.End.Character,
			Modifier:       tok.Modifiers | razorCode,
		})
	}

	if dropped > 0 {
		zerolog.Ctx(ctx).Trace().Int("dropped", dropped).Msg("csharp tokens outside mapped code")
	}

	if colorBackground {
		*target = append(*target, p.whitespaceBetween(doc, (*target)[start:], razorCode)...)
	}
}

// whitespaceBetween fills the gap between two C# ranges on the same line when the Razor text in the
// gap is only spaces and tabs.
func (p *Provider) whitespaceBetween(doc *razor.CodeDocument, csharp []SemanticRange, razorCode int) []SemanticRange {
	sorted := append([]SemanticRange(nil), csharp...)
	Sort(sorted)

	kind := p.legend.Type(TypeMarkupTextLiteral)
	var out []SemanticRange
	for i := 1; i < len(sorted); i++ {
		prev, next := sorted[i-1], sorted[i]
		if prev.EndLine != next.StartLine || prev.EndCharacter >= next.StartCharacter {
			continue
		}
		from, ok := doc.Source.AbsoluteIndex(position.Place{Line: prev.EndLine, Character: prev.EndCharacter})
		if !ok {
			continue
		}
		to, ok := doc.Source.AbsoluteIndex(position.Place{Line: next.StartLine, Character: next.StartCharacter})
		if !ok || !onlyInlineSpace(doc.Source.Slice(position.NewTextSpanFromBounds(from, to))) {
			continue
		}
		out = append(out, SemanticRange{
			Kind:               kind,
			StartLine:          prev.EndLine,
			StartCharacter:     prev.EndCharacter,
			EndLine:            next.StartLine,
			EndCharacter:       next.StartCharacter,
			Modifier:           razorCode,
			IsCSharpWhitespace: true,
		})
	}
	return out
}

func onlyInlineSpace(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' && s[i] != '\t' {
			return false
		}
	}
	return true
}
