package csharp

import (
	"context"
	"strings"
	"unicode"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor"
	"github.com/walteh/gorazor/pkg/semtok"
)

var (
	csharpLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `//[^\n]*|/\*(?:[^*]|\*+[^*/])*\*+/`},
		{Name: "Preprocessor", Pattern: `#[a-z]+[^\n]*`},
		{Name: "String", Pattern: `@"(?:""|[^"])*"|\$?"(?:\\.|[^"\\\n])*"`},
		{Name: "Char", Pattern: `'(?:\\.|[^'\\\n])'`},
		{Name: "Number", Pattern: `\d+(?:\.\d+)?[fFdDmMlLuU]*`},
		{Name: "Ident", Pattern: `@?[A-Za-z_][A-Za-z0-9_]*`},
		{Name: "Operator", Pattern: `=>|==|!=|<=|>=|&&|\|\||\?\?|\+\+|--|::|[-+*/%=<>!&|^~?:]`},
		{Name: "Punct", Pattern: `[{}()\[\];,.]`},
		{Name: "whitespace", Pattern: `\s+`},
		{Name: "Other", Pattern: `.`},
	})

	symbolNames = func() map[lexer.TokenType]string {
		out := map[lexer.TokenType]string{}
		for name, tt := range csharpLexer.Symbols() {
			out[tt] = name
		}
		return out
	}()
)

var keywords = map[string]bool{}

func init() {
	for _, k := range strings.Fields(`abstract as async await base bool break byte case catch char checked class const
		continue decimal default delegate do double dynamic else enum event explicit extern false finally fixed
		float for foreach get global goto if implicit in init int interface internal is lock long nameof
		namespace new null object operator out override params partial private protected public readonly ref
		return sbyte sealed set short sizeof stackalloc static string struct switch this throw true try typeof
		uint ulong unchecked unsafe ushort using var virtual void volatile when where while yield`) {
		keywords[k] = true
	}
}

// Classify tokenizes doc as C# and returns one token per classified lexeme. Lexemes that span
// lines are left out.
func Classify(doc *position.Document, legend *semtok.Legend) ([]semtok.Token, error) {
	lex, err := csharpLexer.LexString(doc.FilePath, doc.Text())
	if err != nil {
		return nil, errors.Errorf("lexing %s: %w", doc.FilePath, err)
	}
	all, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, errors.Errorf("lexing %s: %w", doc.FilePath, err)
	}

	significant := all[:0:0]
	for _, tok := range all {
		if tok.EOF() || symbolNames[tok.Type] == "whitespace" {
			continue
		}
		significant = append(significant, tok)
	}

	var out []semtok.Token
	for i, tok := range significant {
		tokenType := classify(significant, i)
		if tokenType == "" {
			continue
		}
		kind, ok := legend.Index(tokenType)
		if !ok {
			continue
		}
		start := doc.Location(tok.Pos.Offset)
		end := doc.Location(tok.Pos.Offset + len(tok.Value))
		if start.Line != end.Line || end.Character <= start.Character {
			continue
		}
		out = append(out, semtok.Token{Line: start.Line, Character: start.Character, Length: end.Character - start.Character, Type: kind})
	}
	return out, nil
}

func classify(toks []lexer.Token, i int) string {
	tok := toks[i]
	switch symbolNames[tok.Type] {
	case "Comment":
		return semtok.TypeComment
	case "Preprocessor":
		return semtok.TypeMacro
	case "String", "Char":
		return semtok.TypeString
	case "Number":
		return semtok.TypeNumber
	case "Operator":
		return semtok.TypeOperator
	case "Ident":
	default:
		return ""
	}

	if keywords[tok.Value] {
		return semtok.TypeKeyword
	}
	prev, next := "", ""
	if i > 0 {
		prev = toks[i-1].Value
	}
	if i+1 < len(toks) {
		next = toks[i+1].Value
	}
	name := strings.TrimPrefix(tok.Value, "@")
	switch {
	case next == "(":
		return semtok.TypeMethod
	case prev == "." || prev == "::":
		return semtok.TypeProperty
	case unicode.IsUpper(rune(name[0])) && i+1 < len(toks) && (symbolNames[toks[i+1].Type] == "Ident" || next == "<"):
		return semtok.TypeClass
	case prev == "namespace":
		return semtok.TypeNamespace
	default:
		return semtok.TypeVariable
	}
}

// Lexical answers from the generated C# text alone. It is used when no editor hosted C# service
// is available, such as from the command line.
type Lexical struct {
	legend *semtok.Legend

	// KnownTypes maps simple type names to the namespace that declares them. Missing type
	// diagnostics for these names get an add using action.
	KnownTypes map[string]string
}

var _ Service = (*Lexical)(nil)

func NewLexical(legend *semtok.Legend) *Lexical {
	return &Lexical{legend: legend, KnownTypes: map[string]string{}}
}

func (l *Lexical) SemanticTokens(ctx context.Context, doc *razor.CodeDocument, ranges []position.Range) ([]uint32, error) {
	if doc == nil || doc.CSharp == nil {
		return nil, nil
	}
	tokens, err := Classify(doc.CSharp.Document, l.legend)
	if err != nil {
		return nil, err
	}

	kept := tokens[:0]
	for _, tok := range tokens {
		r := position.Range{
			Start: position.Place{Line: tok.Line, Character: tok.Character},
			End:   position.Place{Line: tok.Line, Character: tok.Character + tok.Length},
		}
		for _, want := range ranges {
			if r.Overlaps(want) {
				kept = append(kept, tok)
				break
			}
		}
	}
	zerolog.Ctx(ctx).Trace().Int("tokens", len(kept)).Msg("lexical csharp classification")
	return semtok.EncodeTokens(kept), nil
}

func (l *Lexical) Hover(ctx context.Context, doc *razor.CodeDocument, generated position.Place) (*protocol.Hover, error) {
	return nil, nil
}

// MissingTypeCode is the compiler diagnostic for an unknown type or namespace name.
const MissingTypeCode = "CS0246"

func (l *Lexical) CodeActions(ctx context.Context, doc *razor.CodeDocument, generated position.Range, actx protocol.CodeActionContext) ([]protocol.CodeAction, error) {
	if doc == nil || doc.CSharp == nil {
		return nil, nil
	}
	var actions []protocol.CodeAction
	for _, diag := range actx.Diagnostics {
		if diag.Code != MissingTypeCode {
			continue
		}
		span, ok := doc.CSharp.TextSpanOf(position.NewRangeFromLSP(diag.Range))
		if !ok {
			continue
		}
		ns, ok := l.KnownTypes[doc.CSharp.Slice(span)]
		if !ok {
			continue
		}
		actions = append(actions, protocol.CodeAction{
			Title:       "using " + ns + ";",
			Kind:        "quickfix",
			Diagnostics: []protocol.Diagnostic{diag},
			Edit: &protocol.WorkspaceEdit{Changes: map[protocol.DocumentURI][]protocol.TextEdit{
				HostURI(doc): {{NewText: "using " + ns + ";\n"}},
			}},
		})
	}
	return actions, nil
}

// ResolveCodeAction returns action unchanged; lexical actions carry their edit from the start.
func (l *Lexical) ResolveCodeAction(ctx context.Context, doc *razor.CodeDocument, action protocol.CodeAction) (*protocol.CodeAction, error) {
	return &action, nil
}
