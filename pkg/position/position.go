package position

import (
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/walteh/gorazor/pkg/lsp/protocol"
)

// Place is a zero-based line/character location. Characters are counted in UTF-16 code units,
// the unit LSP clients use by default.
type Place struct {
	Line      int
	Character int
}

func (p Place) Before(o Place) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Character < o.Character
}

func (p Place) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

type Range struct {
	Start Place
	End   Place
}

// UndefinedRange is returned over the wire when a range could not be mapped.
var UndefinedRange = Range{Start: Place{Line: -1, Character: -1}, End: Place{Line: -1, Character: -1}}

func (r Range) IsUndefined() bool {
	return r == UndefinedRange
}

// Overlaps reports whether the two ranges share at least one character. Touching ranges do not overlap.
func (r Range) Overlaps(o Range) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// OverlapsOrTouches is like Overlaps but also accepts ranges that only share a boundary.
func (r Range) OverlapsOrTouches(o Range) bool {
	return !r.End.Before(o.Start) && !o.End.Before(r.Start)
}

func (r Range) String() string {
	return fmt.Sprintf("[%s-%s]", r.Start, r.End)
}

func (r Range) ToLSP() protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: r.Start.Line, Character: r.Start.Character},
		End:   protocol.Position{Line: r.End.Line, Character: r.End.Character},
	}
}

func NewRangeFromLSP(r protocol.Range) Range {
	return Range{
		Start: Place{Line: r.Start.Line, Character: r.Start.Character},
		End:   Place{Line: r.End.Line, Character: r.End.Character},
	}
}

// Document is an immutable piece of source text with a precomputed line index. It is used for
// both the Razor input and the generated C# output.
type Document struct {
	FilePath string

	text       string
	lineStarts []int
}

func NewDocument(filePath string, text string) *Document {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Document{FilePath: filePath, text: text, lineStarts: starts}
}

func (d *Document) Text() string {
	return d.text
}

func (d *Document) Length() int {
	return len(d.text)
}

func (d *Document) LineCount() int {
	return len(d.lineStarts)
}

func (d *Document) LineStart(line int) int {
	return d.lineStarts[line]
}

// LineEnd returns the index just past the last character of the line, excluding the line break.
func (d *Document) LineEnd(line int) int {
	end := len(d.text)
	if line+1 < len(d.lineStarts) {
		end = d.lineStarts[line+1] - 1
	}
	if end > d.lineStarts[line] && d.text[end-1] == '\r' {
		end--
	}
	return end
}

func (d *Document) Line(line int) string {
	return d.text[d.lineStarts[line]:d.LineEnd(line)]
}

// lineOf returns the zero-based line containing absoluteIndex.
func (d *Document) lineOf(absoluteIndex int) int {
	lo, hi := 0, len(d.lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if d.lineStarts[mid] <= absoluteIndex {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// Location converts an absolute byte index into a line/character place. Indexes past the end of
// the text are clamped to the end.
func (d *Document) Location(absoluteIndex int) Place {
	if absoluteIndex < 0 {
		absoluteIndex = 0
	}
	if absoluteIndex > len(d.text) {
		absoluteIndex = len(d.text)
	}
	line := d.lineOf(absoluteIndex)
	return Place{Line: line, Character: utf16Len(d.text[d.lineStarts[line]:absoluteIndex])}
}

// AbsoluteIndex converts a line/character place back into a byte index. ok is false when the line
// does not exist; characters past the end of the line clamp to the line end.
func (d *Document) AbsoluteIndex(p Place) (int, bool) {
	if p.Line < 0 || p.Line >= len(d.lineStarts) || p.Character < 0 {
		return 0, false
	}
	start := d.lineStarts[p.Line]
	end := d.LineEnd(p.Line)
	units := 0
	for i, r := range d.text[start:end] {
		if units >= p.Character {
			return start + i, true
		}
		units += utf16.RuneLen(r)
	}
	return end, true
}

func (d *Document) RangeOf(start int, end int) Range {
	return Range{Start: d.Location(start), End: d.Location(end)}
}

// Span builds a SourceSpan for [start, start+length) with the derived line information filled in.
func (d *Document) Span(start int, length int) SourceSpan {
	s := d.Location(start)
	e := d.Location(start + length)
	return SourceSpan{
		FilePath:          d.FilePath,
		AbsoluteIndex:     start,
		LineIndex:         s.Line,
		CharacterIndex:    s.Character,
		Length:            length,
		LineCount:         e.Line - s.Line + 1,
		EndCharacterIndex: e.Character,
	}
}

// TextSpanOf converts an LSP style range into an absolute span.
func (d *Document) TextSpanOf(r Range) (TextSpan, bool) {
	start, ok := d.AbsoluteIndex(r.Start)
	if !ok {
		return TextSpan{}, false
	}
	end, ok := d.AbsoluteIndex(r.End)
	if !ok || end < start {
		return TextSpan{}, false
	}
	return TextSpan{Start: start, Length: end - start}, true
}

// Slice returns the text covered by span, clamped to the document.
func (d *Document) Slice(span TextSpan) string {
	start := min(max(span.Start, 0), len(d.text))
	end := min(max(span.End(), start), len(d.text))
	return d.text[start:end]
}

// ApplyEdits applies non-overlapping edits expressed in absolute spans and returns the new text.
func ApplyEdits(text string, edits []TextChange) string {
	if len(edits) == 0 {
		return text
	}
	sorted := SortChanges(edits)
	var sb strings.Builder
	last := 0
	for _, e := range sorted {
		if e.Span.Start < last {
			continue
		}
		sb.WriteString(text[last:e.Span.Start])
		sb.WriteString(e.NewText)
		last = e.Span.End()
	}
	sb.WriteString(text[last:])
	return sb.String()
}

func utf16Len(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		n += utf16.RuneLen(r)
		s = s[size:]
	}
	return n
}
