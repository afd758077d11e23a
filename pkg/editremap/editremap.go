/*
Package editremap turns edits made against a document's generated C# into edits against the
Razor document it came from.

	C# edits
	   |
	   +-- inside a mapping ----------> mapped strictly, kept whole
	   |
	   +-- using directive shape -----> applied to the C# text, using lists diffed,
	   |                                @using lines added or removed
	   |
	   +-- anything else -------------> discarded

An edit is either carried over completely or not at all.
*/
package editremap

import (
	"context"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gorazor/pkg/csharp"
	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/mapping"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor"
)

// GroupPolicy picks the block of consecutive @using lines new directives are added to when the
// document has more than one.
type GroupPolicy int

const (
	FirstGroup GroupPolicy = iota
	LastGroup
)

func (p GroupPolicy) String() string {
	if p == LastGroup {
		return "last"
	}
	return "first"
}

func ParseGroupPolicy(s string) (GroupPolicy, error) {
	switch strings.ToLower(s) {
	case "", "first":
		return FirstGroup, nil
	case "last":
		return LastGroup, nil
	}
	return FirstGroup, errors.Errorf("unknown using group policy %q", s)
}

type Remapper struct {
	mapping *mapping.Service
	groups  GroupPolicy
}

func New(mappingService *mapping.Service, groups GroupPolicy) *Remapper {
	return &Remapper{mapping: mappingService, groups: groups}
}

// Remap converts edits against the generated C# of doc into edits against doc's Razor source,
// ordered by position.
func (r *Remapper) Remap(ctx context.Context, doc *razor.CodeDocument, edits []protocol.TextEdit) ([]protocol.TextEdit, error) {
	if doc == nil || doc.CSharp == nil || doc.Unsupported {
		return nil, errors.Errorf("remapping edits: document has no usable generated code")
	}
	logger := zerolog.Ctx(ctx)

	var out []protocol.TextEdit
	var usingChanges []position.TextChange
	discarded := 0

	for _, edit := range edits {
		generated := position.NewRangeFromLSP(edit.Range)
		if host, ok := r.mapping.TryMapToHostDocumentRange(doc, generated, mapping.Strict); ok {
			if span, ok := doc.Source.TextSpanOf(host); ok && doc.Source.Slice(span) == edit.NewText {
				continue
			}
			out = append(out, protocol.TextEdit{Range: host.ToLSP(), NewText: edit.NewText})
			continue
		}

		span, ok := doc.CSharp.TextSpanOf(generated)
		if ok && isUsingEdit(doc.CSharp.Slice(span), edit.NewText) {
			usingChanges = append(usingChanges, position.TextChange{Span: span, NewText: edit.NewText})
			continue
		}
		discarded++
		logger.Debug().Str("range", generated.String()).Msg("discarding unmappable csharp edit")
	}

	if len(usingChanges) > 0 {
		out = append(out, r.reconcileUsings(ctx, doc, usingChanges)...)
	}

	if discarded > 0 {
		logger.Debug().Int("discarded", discarded).Int("kept", len(out)).Msg("remapped csharp edits")
	}

	slices.SortStableFunc(out, func(a, b protocol.TextEdit) int {
		if a.Range.Start.Line != b.Range.Start.Line {
			return a.Range.Start.Line - b.Range.Start.Line
		}
		return a.Range.Start.Character - b.Range.Start.Character
	})
	return out, nil
}

// isUsingEdit reports whether both the replaced text and the new text are made of nothing but
// using directives, line pragmas and whitespace, with at least one directive between them.
func isUsingEdit(replaced string, newText string) bool {
	found := false
	for _, text := range []string{replaced, newText} {
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#line") {
				continue
			}
			if _, err := csharp.ParseUsing(line); err != nil || !strings.HasSuffix(line, ";") {
				return false
			}
			found = true
		}
	}
	return found
}

func (r *Remapper) reconcileUsings(ctx context.Context, doc *razor.CodeDocument, changes []position.TextChange) []protocol.TextEdit {
	before := usingKeys(csharp.FindUsings(doc.CSharp.Text()))
	after := usingKeys(csharp.FindUsings(position.ApplyEdits(doc.CSharp.Text(), changes)))

	added, removed := diffUsings(before, after)
	zerolog.Ctx(ctx).Debug().Strs("added", added).Strs("removed", removed).Msg("reconciling using directives")

	directives := razorUsings(doc)
	var out []protocol.TextEdit

	gone := map[int]bool{}
	for _, key := range removed {
		i := slices.IndexFunc(directives, func(d razorUsing) bool { return d.key == key && !gone[d.line] })
		if i < 0 {
			continue
		}
		gone[directives[i].line] = true
		out = append(out, r.removeLine(doc, directives[i].line))
	}

	var additions []string
	for _, key := range added {
		if !slices.ContainsFunc(directives, func(d razorUsing) bool { return d.key == key }) {
			additions = append(additions, key)
		}
	}
	if len(additions) > 0 {
		out = append(out, r.insertUsings(doc, directives, additions)...)
	}
	return out
}

func usingKeys(usings []csharp.Using) []string {
	keys := make([]string, 0, len(usings))
	for _, u := range usings {
		keys = append(keys, u.Key())
	}
	return keys
}

// diffUsings compares two using lists. Keys are counted, so a key that only moved is neither
// added nor removed.
func diffUsings(before []string, after []string) (added []string, removed []string) {
	delta := map[string]int{}
	for _, k := range before {
		delta[k]--
	}
	for _, k := range after {
		delta[k]++
	}

	matcher := difflib.NewMatcher(before, after)
	for _, op := range matcher.GetOpCodes() {
		if op.Tag == 'd' || op.Tag == 'r' {
			for _, k := range before[op.I1:op.I2] {
				if delta[k] < 0 {
					removed = append(removed, k)
					delta[k]++
				}
			}
		}
		if op.Tag == 'i' || op.Tag == 'r' {
			for _, k := range after[op.J1:op.J2] {
				if delta[k] > 0 {
					added = append(added, k)
					delta[k]--
				}
			}
		}
	}
	return added, removed
}
