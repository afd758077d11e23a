package editremap

import (
	"strings"

	"github.com/walteh/gorazor/pkg/csharp"
	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor"
	"github.com/walteh/gorazor/pkg/razor/syntax"
)

type razorUsing struct {
	key    string
	line   int
	system bool
}

func razorUsings(doc *razor.CodeDocument) []razorUsing {
	var out []razorUsing
	for _, d := range doc.Tree.Directives("using") {
		tokens := syntax.DirectiveTokens(d)
		if len(tokens) == 0 {
			continue
		}
		text := strings.TrimSpace(tokens[0].Text)
		u, err := csharp.ParseUsing("using " + text)
		if err != nil {
			u = csharp.Using{Namespace: text}
		}
		out = append(out, razorUsing{
			key:    u.Key(),
			line:   doc.Source.Location(d.Start).Line,
			system: u.IsSystem(),
		})
	}
	return out
}

// groups splits usings into runs on consecutive lines.
func groups(usings []razorUsing) [][]razorUsing {
	var out [][]razorUsing
	for i, u := range usings {
		if i == 0 || u.line != usings[i-1].line+1 {
			out = append(out, nil)
		}
		out[len(out)-1] = append(out[len(out)-1], u)
	}
	return out
}

// insertUsings adds one @using line per key. Keys go into the group chosen by the policy, System
// namespaces after the group's last System using and the rest after its last using. Without any
// usings they go after @page, or to the top of the document.
func (r *Remapper) insertUsings(doc *razor.CodeDocument, existing []razorUsing, keys []string) []protocol.TextEdit {
	src := doc.Source
	newline := lineEnding(src.Text())

	afterLine := -1
	systemAfterLine := -1
	if g := groups(existing); len(g) > 0 {
		group := g[0]
		if r.groups == LastGroup {
			group = g[len(g)-1]
		}
		afterLine = group[len(group)-1].line
		systemAfterLine = group[0].line - 1
		for _, u := range group {
			if u.system {
				systemAfterLine = u.line
			}
		}
	} else if pages := doc.Tree.Directives("page"); len(pages) > 0 {
		afterLine = src.Location(pages[0].Start).Line
		systemAfterLine = afterLine
	}

	var system, other []string
	for _, key := range keys {
		if (csharp.Using{Namespace: strings.TrimPrefix(key, "static ")}).IsSystem() {
			system = append(system, key)
		} else {
			other = append(other, key)
		}
	}

	var out []protocol.TextEdit
	if len(system) > 0 {
		out = append(out, insertAfterLine(src, systemAfterLine, system, newline))
	}
	if len(other) > 0 {
		out = append(out, insertAfterLine(src, afterLine, other, newline))
	}
	if len(out) == 2 && out[0].Range == out[1].Range {
		out[0].NewText += out[1].NewText
		out = out[:1]
	}
	return out
}

// insertAfterLine builds an edit adding "@using key" lines after line, or before the first line
// when line is negative.
func insertAfterLine(src *position.Document, line int, keys []string, newline string) protocol.TextEdit {
	var sb strings.Builder
	if line < 0 {
		for _, key := range keys {
			sb.WriteString("@using " + key + newline)
		}
		return protocol.TextEdit{NewText: sb.String()}
	}

	if line+1 < src.LineCount() {
		for _, key := range keys {
			sb.WriteString("@using " + key + newline)
		}
		at := protocol.Position{Line: line + 1}
		return protocol.TextEdit{Range: protocol.Range{Start: at, End: at}, NewText: sb.String()}
	}

	// last line without a line break
	for _, key := range keys {
		sb.WriteString(newline + "@using " + key)
	}
	end := src.Location(src.LineEnd(line))
	at := protocol.Position{Line: end.Line, Character: end.Character}
	return protocol.TextEdit{Range: protocol.Range{Start: at, End: at}, NewText: sb.String()}
}

// removeLine deletes line together with its line break.
func (r *Remapper) removeLine(doc *razor.CodeDocument, line int) protocol.TextEdit {
	src := doc.Source
	start := protocol.Position{Line: line}
	if line+1 < src.LineCount() {
		return protocol.TextEdit{Range: protocol.Range{Start: start, End: protocol.Position{Line: line + 1}}}
	}
	end := src.Location(src.LineEnd(line))
	if line > 0 {
		// the last line takes the previous line break with it
		prev := src.Location(src.LineEnd(line - 1))
		start = protocol.Position{Line: prev.Line, Character: prev.Character}
	}
	return protocol.TextEdit{Range: protocol.Range{Start: start, End: protocol.Position{Line: end.Line, Character: end.Character}}}
}

func lineEnding(text string) string {
	if strings.Contains(text, "\r\n") {
		return "\r\n"
	}
	return "\n"
}
