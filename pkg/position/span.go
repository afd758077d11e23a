package position

import (
	"fmt"
	"sort"
)

// SourceSpan identifies a contiguous region of one document. LineCount and EndCharacterIndex are
// derived values and do not take part in equality.
type SourceSpan struct {
	FilePath          string
	AbsoluteIndex     int
	LineIndex         int
	CharacterIndex    int
	Length            int
	LineCount         int
	EndCharacterIndex int
}

func (s SourceSpan) Equals(o SourceSpan) bool {
	return s.FilePath == o.FilePath &&
		s.AbsoluteIndex == o.AbsoluteIndex &&
		s.LineIndex == o.LineIndex &&
		s.CharacterIndex == o.CharacterIndex &&
		s.Length == o.Length
}

func (s SourceSpan) End() int {
	return s.AbsoluteIndex + s.Length
}

func (s SourceSpan) TextSpan() TextSpan {
	return TextSpan{Start: s.AbsoluteIndex, Length: s.Length}
}

func (s SourceSpan) String() string {
	return fmt.Sprintf("(%d:%d,%d [%d] %s)", s.LineIndex, s.CharacterIndex, s.AbsoluteIndex, s.Length, s.FilePath)
}

// TextSpan is a half-open byte range [Start, Start+Length).
type TextSpan struct {
	Start  int
	Length int
}

func NewTextSpanFromBounds(start int, end int) TextSpan {
	return TextSpan{Start: start, Length: end - start}
}

func (s TextSpan) End() int {
	return s.Start + s.Length
}

func (s TextSpan) IsEmpty() bool {
	return s.Length == 0
}

// Contains reports whether index falls inside the half-open span.
func (s TextSpan) Contains(index int) bool {
	return s.Start <= index && index < s.End()
}

// ContainsInclusive also accepts the end boundary.
func (s TextSpan) ContainsInclusive(index int) bool {
	return s.Start <= index && index <= s.End()
}

func (s TextSpan) ContainsSpan(o TextSpan) bool {
	return s.Start <= o.Start && o.End() <= s.End()
}

// Intersects reports whether the spans share at least one byte. Spans that only touch do not.
func (s TextSpan) Intersects(o TextSpan) bool {
	return s.Start < o.End() && o.Start < s.End()
}

// OverlapsOrTouches is Intersects extended to boundary contact, so that empty spans at an edge count.
func (s TextSpan) OverlapsOrTouches(o TextSpan) bool {
	return s.Start <= o.End() && o.Start <= s.End()
}

func (s TextSpan) Intersection(o TextSpan) (TextSpan, bool) {
	start := max(s.Start, o.Start)
	end := min(s.End(), o.End())
	if end < start {
		return TextSpan{}, false
	}
	return NewTextSpanFromBounds(start, end), true
}

func (s TextSpan) String() string {
	return fmt.Sprintf("[%d..%d)", s.Start, s.End())
}

// TextChange replaces Span with NewText.
type TextChange struct {
	Span    TextSpan
	NewText string
}

// SortChanges returns a copy of changes ordered by start then end.
func SortChanges(changes []TextChange) []TextChange {
	sorted := append([]TextChange(nil), changes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Span.Start != sorted[j].Span.Start {
			return sorted[i].Span.Start < sorted[j].Span.Start
		}
		return sorted[i].Span.End() < sorted[j].Span.End()
	})
	return sorted
}
