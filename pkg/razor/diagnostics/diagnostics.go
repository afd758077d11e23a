package diagnostics

import (
	"fmt"
	"sort"

	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/position"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Descriptor is the fixed part of a diagnostic. IDs are stable across releases.
type Descriptor struct {
	ID       string
	Severity Severity
	Format   string
}

var (
	UnterminatedCodeBlock = Descriptor{
		ID:       "RZ1006",
		Severity: SeverityError,
		Format:   "The %s block is missing a closing \"}\" character. Make sure you have a matching \"}\" character for all the \"{\" characters within this block.",
	}
	DuplicateNamespace = Descriptor{
		ID:       "RZ1014",
		Severity: SeverityError,
		Format:   "The 'namespace' directive may only occur once per document, it was already declared as '%s'.",
	}
	MalformedDirective = Descriptor{
		ID:       "RZ1016",
		Severity: SeverityError,
		Format:   "The '%s' directive expects %s.",
	}
	UnclosedElement = Descriptor{
		ID:       "RZ1025",
		Severity: SeverityError,
		Format:   "The \"%s\" element was not closed. All elements must be either self-closing or have a matching end tag.",
	}
	UnterminatedExplicitExpression = Descriptor{
		ID:       "RZ1027",
		Severity: SeverityError,
		Format:   "The explicit expression block is missing a closing \")\" character.",
	}
	UnterminatedComment = Descriptor{
		ID:       "RZ1028",
		Severity: SeverityError,
		Format:   "End of file was reached before the end of the block comment. All comments that start with the \"@*\" sequence must be terminated with a matching \"*@\" sequence.",
	}
	DuplicateDirective = Descriptor{
		ID:       "RZ2001",
		Severity: SeverityError,
		Format:   "The '%s' directive may only occur once per document.",
	}
	UnknownTagHelperAttribute = Descriptor{
		ID:       "RZ2008",
		Severity: SeverityWarning,
		Format:   "Attribute '%s' on tag helper element '%s' requires a value.",
	}
	PageDirectiveNotFirst = Descriptor{
		ID:       "RZ3906",
		Severity: SeverityError,
		Format:   "The '@page' directive must precede all other elements defined in a Razor file.",
	}
)

// All lists every descriptor the compiler can produce.
var All = []Descriptor{
	UnterminatedCodeBlock,
	DuplicateNamespace,
	MalformedDirective,
	UnclosedElement,
	UnterminatedExplicitExpression,
	UnterminatedComment,
	DuplicateDirective,
	UnknownTagHelperAttribute,
	PageDirectiveNotFirst,
}

type Diagnostic struct {
	Descriptor Descriptor
	Span       position.SourceSpan
	Args       []any
}

func New(d Descriptor, span position.SourceSpan, args ...any) Diagnostic {
	return Diagnostic{Descriptor: d, Span: span, Args: args}
}

func (d Diagnostic) ID() string {
	return d.Descriptor.ID
}

func (d Diagnostic) Message() string {
	if len(d.Args) == 0 {
		return d.Descriptor.Format
	}
	return fmt.Sprintf(d.Descriptor.Format, d.Args...)
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s: %s", d.Span, d.Descriptor.ID, d.Message())
}

func (d Diagnostic) ToLSP(doc *position.Document) protocol.Diagnostic {
	sev := protocol.SeverityError
	if d.Descriptor.Severity == SeverityWarning {
		sev = protocol.SeverityWarning
	}
	return protocol.Diagnostic{
		Range:    doc.RangeOf(d.Span.AbsoluteIndex, d.Span.End()).ToLSP(),
		Severity: sev,
		Code:     d.Descriptor.ID,
		Source:   "razor",
		Message:  d.Message(),
	}
}

// Sort orders diagnostics by position, then id.
func Sort(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Span.AbsoluteIndex != diags[j].Span.AbsoluteIndex {
			return diags[i].Span.AbsoluteIndex < diags[j].Span.AbsoluteIndex
		}
		return diags[i].Descriptor.ID < diags[j].Descriptor.ID
	})
}
