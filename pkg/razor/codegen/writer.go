package codegen

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor/sourcemap"
)

type pendingMapping struct {
	source position.SourceSpan
	start  int
	length int
}

// CodeWriter builds generated C# and records the mappings of the content it writes verbatim.
type CodeWriter struct {
	sb          strings.Builder
	indentSize  int
	useTabs     bool
	indent      int
	lineStart   int
	atLineStart bool
	mappings    []pendingMapping
}

func NewCodeWriter(indentSize int, useTabs bool) *CodeWriter {
	if indentSize <= 0 {
		indentSize = 4
	}
	return &CodeWriter{indentSize: indentSize, useTabs: useTabs, atLineStart: true}
}

func (w *CodeWriter) Length() int {
	return w.sb.Len()
}

func (w *CodeWriter) Indent() {
	w.indent++
}

func (w *CodeWriter) Dedent() {
	if w.indent > 0 {
		w.indent--
	}
}

func (w *CodeWriter) writeIndent() {
	if !w.atLineStart || w.indent == 0 {
		return
	}
	if w.useTabs {
		w.sb.WriteString(strings.Repeat("\t", w.indent))
	} else {
		w.sb.WriteString(strings.Repeat(" ", w.indent*w.indentSize))
	}
	w.atLineStart = false
}

// Write appends s. Indentation is added when s starts a line; line breaks inside s are written
// as they are.
func (w *CodeWriter) Write(s string) *CodeWriter {
	if s == "" {
		return w
	}
	if s[0] != '\n' && s[0] != '\r' {
		w.writeIndent()
	}
	w.sb.WriteString(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		w.lineStart = w.sb.Len() - (len(s) - i - 1)
		w.atLineStart = i == len(s)-1
	} else {
		w.atLineStart = false
	}
	return w
}

func (w *CodeWriter) Writef(format string, args ...any) *CodeWriter {
	return w.Write(fmt.Sprintf(format, args...))
}

func (w *CodeWriter) WriteLine(s string) *CodeWriter {
	w.Write(s)
	w.sb.WriteByte('\n')
	w.lineStart = w.sb.Len()
	w.atLineStart = true
	return w
}

// EnsureNewLine ends the current line unless it is already empty.
func (w *CodeWriter) EnsureNewLine() *CodeWriter {
	if !w.atLineStart {
		w.WriteLine("")
	}
	return w
}

// WriteMapped writes content verbatim and records a mapping from source to it.
func (w *CodeWriter) WriteMapped(content string, source position.SourceSpan) *CodeWriter {
	if content == "" {
		w.writeIndent()
	}
	w.Write(content)
	start := w.sb.Len() - len(content)
	w.mappings = append(w.mappings, pendingMapping{source: source, start: start, length: len(content)})
	return w
}

// column is the current position on the line in UTF-16 units.
func (w *CodeWriter) column() int {
	n := 0
	for _, r := range w.sb.String()[w.lineStart:] {
		n += utf16.RuneLen(r)
	}
	return n
}

// WritePadding lines up mapped content with its original column, accounting for a prefix that will
// be written between the padding and the content. Indentation is replaced by the padding.
func (w *CodeWriter) WritePadding(prefix string, source position.SourceSpan) *CodeWriter {
	w.atLineStart = false
	pad := source.CharacterIndex - w.column() - len(prefix)
	if pad > 0 {
		w.sb.WriteString(strings.Repeat(" ", pad))
	}
	return w
}

func (w *CodeWriter) WriteStringLiteral(s string) *CodeWriter {
	return w.Write(QuoteString(s))
}

// QuoteString renders s as a regular C# string literal.
func QuoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case 0:
			sb.WriteString(`\0`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// Block writes header followed by a braced, indented body.
func (w *CodeWriter) Block(header string, body func()) {
	if header != "" {
		w.WriteLine(header)
	}
	w.WriteLine("{")
	w.Indent()
	body()
	w.Dedent()
	w.EnsureNewLine()
	w.WriteLine("}")
}

// Finish returns the generated document and its mapping table.
func (w *CodeWriter) Finish(filePath string) (*position.Document, *sourcemap.Table) {
	doc := position.NewDocument(filePath, w.sb.String())
	table := &sourcemap.Table{}
	for _, m := range w.mappings {
		table.Add(sourcemap.Mapping{
			OriginalSpan:  m.source,
			GeneratedSpan: doc.Span(m.start, m.length),
		})
	}
	return doc, table.Freeze()
}
