package sourcemap

import (
	"fmt"
	"sort"

	"github.com/walteh/gorazor/pkg/position"
)

// Mapping binds a span of the Razor document to the span of generated C# standing in for it.
type Mapping struct {
	OriginalSpan  position.SourceSpan
	GeneratedSpan position.SourceSpan
}

func (m Mapping) String() string {
	return fmt.Sprintf("%s -> %s", m.OriginalSpan, m.GeneratedSpan)
}

// Table is the ordered set of mappings for one generated document, ascending by generated index.
// It is never modified after Freeze.
type Table struct {
	mappings []Mapping
	frozen   bool
}

func NewTable(mappings ...Mapping) *Table {
	t := &Table{}
	for _, m := range mappings {
		t.Add(m)
	}
	return t.Freeze()
}

// Add appends a mapping. Generators emit mappings in generated order, so Add keeps the table
// sorted without a final pass unless a caller appends out of order.
func (t *Table) Add(m Mapping) {
	if t.frozen {
		panic("sourcemap: Add on frozen table")
	}
	t.mappings = append(t.mappings, m)
}

func (t *Table) Freeze() *Table {
	if t.frozen {
		return t
	}
	if !sort.SliceIsSorted(t.mappings, t.less) {
		sort.SliceStable(t.mappings, t.less)
	}
	t.frozen = true
	return t
}

func (t *Table) less(i, j int) bool {
	return t.mappings[i].GeneratedSpan.AbsoluteIndex < t.mappings[j].GeneratedSpan.AbsoluteIndex
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.mappings)
}

// Mappings returns the mappings in generated order. The slice must not be modified.
func (t *Table) Mappings() []Mapping {
	if t == nil {
		return nil
	}
	return t.mappings
}

// ContainingGenerated returns every mapping whose generated span contains index, with the end
// boundary included when inclusiveEnd is set.
func (t *Table) ContainingGenerated(index int, inclusiveEnd bool) []Mapping {
	if t == nil {
		return nil
	}
	// mappings starting after index can be skipped.
	upper := sort.Search(len(t.mappings), func(i int) bool {
		return t.mappings[i].GeneratedSpan.AbsoluteIndex > index
	})
	var out []Mapping
	for _, m := range t.mappings[:upper] {
		if contains(m.GeneratedSpan, index, inclusiveEnd) {
			out = append(out, m)
		}
	}
	return out
}

// ContainingOriginal returns every mapping whose original span contains index.
func (t *Table) ContainingOriginal(index int, inclusiveEnd bool) []Mapping {
	if t == nil {
		return nil
	}
	var out []Mapping
	for _, m := range t.mappings {
		if contains(m.OriginalSpan, index, inclusiveEnd) {
			out = append(out, m)
		}
	}
	return out
}

func contains(s position.SourceSpan, index int, inclusiveEnd bool) bool {
	if inclusiveEnd {
		return s.TextSpan().ContainsInclusive(index)
	}
	return s.TextSpan().Contains(index)
}

// Innermost picks the mapping with the smallest generated span. Ties keep the earliest mapping.
func Innermost(mappings []Mapping) (Mapping, bool) {
	if len(mappings) == 0 {
		return Mapping{}, false
	}
	best := mappings[0]
	for _, m := range mappings[1:] {
		if m.GeneratedSpan.Length < best.GeneratedSpan.Length {
			best = m
		}
	}
	return best, true
}
