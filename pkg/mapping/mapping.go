// Package mapping translates positions, ranges and edits between a Razor document and the C# and
// HTML documents generated from it.
package mapping

import (
	"sort"

	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor"
	"github.com/walteh/gorazor/pkg/razor/sourcemap"
	"github.com/walteh/gorazor/pkg/razor/syntax"
)

// Behavior controls how a generated range that does not sit inside a single mapping is treated.
type Behavior int

const (
	// Strict requires the whole range to fall inside one mapping.
	Strict Behavior = iota
	// Inclusive clips the range to the mappings it overlaps.
	Inclusive
	// Inferred maps a range in unmapped generated code to the Razor text between the surrounding
	// mappings.
	Inferred
)

func (b Behavior) String() string {
	switch b {
	case Strict:
		return "strict"
	case Inclusive:
		return "inclusive"
	case Inferred:
		return "inferred"
	}
	return "unknown"
}

// Service is stateless; every answer comes from the CodeDocument it is given.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func usable(doc *razor.CodeDocument) bool {
	return doc != nil && !doc.Unsupported && doc.CSharp != nil
}

// innermostOriginal and innermostGenerated prefer mappings that contain the index strictly, so a
// position shared by the end of one mapping and the start of the next resolves to the next one.
func innermostOriginal(table *sourcemap.Table, hostIndex int) (sourcemap.Mapping, bool) {
	if m, ok := sourcemap.Innermost(table.ContainingOriginal(hostIndex, false)); ok {
		return m, true
	}
	return sourcemap.Innermost(table.ContainingOriginal(hostIndex, true))
}

func innermostGenerated(table *sourcemap.Table, generatedIndex int) (sourcemap.Mapping, bool) {
	if m, ok := sourcemap.Innermost(table.ContainingGenerated(generatedIndex, false)); ok {
		return m, true
	}
	return sourcemap.Innermost(table.ContainingGenerated(generatedIndex, true))
}

// TryMapToGeneratedSpan returns the generated span of the innermost mapping whose original span
// contains hostIndex.
func (s *Service) TryMapToGeneratedSpan(doc *razor.CodeDocument, hostIndex int) (position.SourceSpan, bool) {
	if !usable(doc) {
		return position.SourceSpan{}, false
	}
	m, ok := innermostOriginal(doc.Mappings(), hostIndex)
	if !ok {
		return position.SourceSpan{}, false
	}
	return m.GeneratedSpan, true
}

// TryMapToGeneratedPosition maps a Razor index to the matching index of the generated C#.
func (s *Service) TryMapToGeneratedPosition(doc *razor.CodeDocument, hostIndex int) (int, position.Place, bool) {
	if !usable(doc) {
		return 0, position.Place{}, false
	}
	m, ok := innermostOriginal(doc.Mappings(), hostIndex)
	if !ok {
		return 0, position.Place{}, false
	}
	generated := m.GeneratedSpan.AbsoluteIndex + (hostIndex - m.OriginalSpan.AbsoluteIndex)
	return generated, doc.CSharp.Location(generated), true
}

// TryMapToHostDocumentPosition maps a generated C# index back to the Razor document.
func (s *Service) TryMapToHostDocumentPosition(doc *razor.CodeDocument, generatedIndex int) (int, position.Place, bool) {
	if !usable(doc) {
		return 0, position.Place{}, false
	}
	m, ok := innermostGenerated(doc.Mappings(), generatedIndex)
	if !ok {
		return 0, position.Place{}, false
	}
	host := m.OriginalSpan.AbsoluteIndex + (generatedIndex - m.GeneratedSpan.AbsoluteIndex)
	return host, doc.Source.Location(host), true
}

// TryMapToGeneratedRange maps both ends of a Razor range into the generated C#.
func (s *Service) TryMapToGeneratedRange(doc *razor.CodeDocument, hostRange position.Range) (position.Range, bool) {
	if !usable(doc) {
		return position.UndefinedRange, false
	}
	span, ok := doc.Source.TextSpanOf(hostRange)
	if !ok {
		return position.UndefinedRange, false
	}
	start, startPlace, ok := s.TryMapToGeneratedPosition(doc, span.Start)
	if !ok {
		return position.UndefinedRange, false
	}
	end, endPlace, ok := s.TryMapToGeneratedPosition(doc, span.End())
	if !ok || end < start {
		return position.UndefinedRange, false
	}
	return position.Range{Start: startPlace, End: endPlace}, true
}

// TryMapToHostDocumentRange maps a range of the generated C# back to the Razor document.
func (s *Service) TryMapToHostDocumentRange(doc *razor.CodeDocument, generatedRange position.Range, behavior Behavior) (position.Range, bool) {
	if !usable(doc) {
		return position.UndefinedRange, false
	}
	span, ok := doc.CSharp.TextSpanOf(generatedRange)
	if !ok {
		return position.UndefinedRange, false
	}
	host, ok := s.TryMapToHostDocumentSpan(doc, span, behavior)
	if !ok {
		return position.UndefinedRange, false
	}
	return doc.Source.RangeOf(host.Start, host.End()), true
}

// TryMapToHostDocumentSpan is TryMapToHostDocumentRange over absolute spans.
func (s *Service) TryMapToHostDocumentSpan(doc *razor.CodeDocument, generated position.TextSpan, behavior Behavior) (position.TextSpan, bool) {
	if !usable(doc) {
		return position.TextSpan{}, false
	}
	table := doc.Mappings()

	if m, ok := enclosing(table, generated); ok {
		start := m.OriginalSpan.AbsoluteIndex + (generated.Start - m.GeneratedSpan.AbsoluteIndex)
		return position.TextSpan{Start: start, Length: generated.Length}, true
	}

	switch behavior {
	case Inclusive:
		return inclusive(table, generated)
	case Inferred:
		return inferred(doc, table, generated)
	}
	return position.TextSpan{}, false
}

// enclosing finds the smallest mapping whose generated span holds all of span.
func enclosing(table *sourcemap.Table, span position.TextSpan) (sourcemap.Mapping, bool) {
	var candidates []sourcemap.Mapping
	for _, m := range table.ContainingGenerated(span.Start, true) {
		if m.GeneratedSpan.TextSpan().ContainsSpan(span) {
			candidates = append(candidates, m)
		}
	}
	return sourcemap.Innermost(candidates)
}

func inclusive(table *sourcemap.Table, span position.TextSpan) (position.TextSpan, bool) {
	start, end := -1, -1
	for _, m := range table.Mappings() {
		gen := m.GeneratedSpan.TextSpan()
		clipped, ok := gen.Intersection(span)
		if !ok || (clipped.IsEmpty() && !span.IsEmpty()) {
			continue
		}
		s := m.OriginalSpan.AbsoluteIndex + (clipped.Start - gen.Start)
		e := m.OriginalSpan.AbsoluteIndex + (clipped.End() - gen.Start)
		if start < 0 || s < start {
			start = s
		}
		if e > end {
			end = e
		}
	}
	if start < 0 || end < start {
		return position.TextSpan{}, false
	}
	return position.NewTextSpanFromBounds(start, end), true
}

func inferred(doc *razor.CodeDocument, table *sourcemap.Table, span position.TextSpan) (position.TextSpan, bool) {
	mappings := table.Mappings()
	for _, m := range mappings {
		if m.GeneratedSpan.TextSpan().Intersects(span) {
			// partially mapped ranges are not guessed at
			return position.TextSpan{}, false
		}
	}

	// first mapping starting at or after the end of span
	next := sort.Search(len(mappings), func(i int) bool {
		return mappings[i].GeneratedSpan.AbsoluteIndex >= span.End()
	})

	start, end := 0, doc.Source.Length()
	for _, m := range mappings[:next] {
		if m.GeneratedSpan.End() <= span.Start {
			start = max(start, m.OriginalSpan.End())
		}
	}
	if next < len(mappings) {
		end = mappings[next].OriginalSpan.AbsoluteIndex
	}
	if end < start {
		return position.TextSpan{}, false
	}
	return position.NewTextSpanFromBounds(start, end), true
}

// GeneratedRangesFor returns the generated ranges of every mapping whose original span touches
// hostSpan, in generated order.
func (s *Service) GeneratedRangesFor(doc *razor.CodeDocument, hostSpan position.TextSpan) []position.Range {
	if !usable(doc) {
		return nil
	}
	var out []position.Range
	for _, m := range doc.Mappings().Mappings() {
		if m.OriginalSpan.TextSpan().OverlapsOrTouches(hostSpan) {
			out = append(out, doc.CSharp.RangeOf(m.GeneratedSpan.AbsoluteIndex, m.GeneratedSpan.End()))
		}
	}
	return out
}

// GetLanguageKind reports which language owns hostIndex. With rightAssociative unset, an index on
// the boundary between two nodes belongs to the one ending there.
func (s *Service) GetLanguageKind(doc *razor.CodeDocument, hostIndex int, rightAssociative bool) protocol.RazorLanguageKind {
	if doc == nil || doc.Tree == nil {
		return protocol.LanguageKindHTML
	}
	if !rightAssociative && hostIndex > 0 {
		hostIndex--
	}
	n := doc.Tree.FindInnermostNode(hostIndex)
	if n == nil {
		return protocol.LanguageKindHTML
	}
	return languageOf(n)
}

func languageOf(n *syntax.Node) protocol.RazorLanguageKind {
	for c := n; c != nil; c = c.Parent {
		switch c.Kind {
		case syntax.KindCSharpCode, syntax.KindDirectiveToken:
			return protocol.LanguageKindCSharp
		case syntax.KindTransition, syntax.KindMetaCode, syntax.KindRazorComment, syntax.KindRazorDirectiveKeyword,
			syntax.KindMarkupTransition:
			return protocol.LanguageKindRazor
		case syntax.KindMarkupBlock, syntax.KindMarkupElement, syntax.KindMarkupText, syntax.KindMarkupStartTag,
			syntax.KindMarkupEndTag, syntax.KindMarkupComment, syntax.KindMarkupEscapedTransition:
			return protocol.LanguageKindHTML
		case syntax.KindCSharpExplicitExpression, syntax.KindCSharpImplicitExpression, syntax.KindCSharpStatement,
			syntax.KindCSharpCodeBlock:
			return protocol.LanguageKindCSharp
		case syntax.KindRazorDirective:
			return protocol.LanguageKindRazor
		}
	}
	return protocol.LanguageKindHTML
}

// MapToHostDocumentRanges maps ranges of a projected document back to the Razor document.
// Ranges that cannot be mapped come back as position.UndefinedRange.
func (s *Service) MapToHostDocumentRanges(doc *razor.CodeDocument, kind protocol.RazorLanguageKind, ranges []position.Range) []position.Range {
	out := make([]position.Range, len(ranges))
	for i, r := range ranges {
		out[i] = position.UndefinedRange
		switch kind {
		case protocol.LanguageKindCSharp:
			if mapped, ok := s.TryMapToHostDocumentRange(doc, r, Strict); ok {
				out[i] = mapped
			}
		default:
			// the HTML projection keeps every line and column of the Razor document
			if doc != nil && !doc.Unsupported {
				if span, ok := doc.Source.TextSpanOf(r); ok {
					out[i] = doc.Source.RangeOf(span.Start, span.End())
				}
			}
		}
	}
	return out
}

// RemapEdits maps edits to a projected document onto the Razor document, dropping any edit that
// does not map.
func (s *Service) RemapEdits(doc *razor.CodeDocument, kind protocol.RazorLanguageKind, edits []protocol.TextEdit) []protocol.TextEdit {
	out := []protocol.TextEdit{}
	for _, e := range edits {
		mapped := s.MapToHostDocumentRanges(doc, kind, []position.Range{position.NewRangeFromLSP(e.Range)})[0]
		if mapped.IsUndefined() {
			continue
		}
		out = append(out, protocol.TextEdit{Range: mapped.ToLSP(), NewText: e.NewText})
	}
	return out
}
