package csharp

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gorazor/pkg/position"
)

var (
	usingLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Ident", Pattern: `@?[A-Za-z_][A-Za-z0-9_]*`},
		{Name: "Punct", Pattern: `::|[.=;<>,]`},
		{Name: "whitespace", Pattern: `\s+`},
	})

	usingParser = participle.MustBuild[UsingDirective](
		participle.Lexer(usingLexer),
		participle.Elide("whitespace"),
		participle.UseLookahead(2),
	)
)

// UsingDirective is the grammar of a single C# using directive.
type UsingDirective struct {
	Global bool        `parser:"@'global'?"`
	Using  bool        `parser:"@'using'"`
	Static bool        `parser:"@'static'?"`
	Alias  string      `parser:"( @Ident '=' )?"`
	Name   []string    `parser:"@Ident ( @( '.' | '::' ) @Ident )*"`
	Args   []*TypeName `parser:"( '<' @@ ( ',' @@ )* '>' )?"`
	Semi   bool        `parser:"@';'?"`
}

type TypeName struct {
	Name []string    `parser:"@Ident ( @( '.' | '::' ) @Ident )*"`
	Args []*TypeName `parser:"( '<' @@ ( ',' @@ )* '>' )?"`
}

func (t *TypeName) String() string {
	return strings.Join(t.Name, "") + typeArgs(t.Args)
}

func typeArgs(args []*TypeName) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, a.String())
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

// Using is a using directive found in C# text.
type Using struct {
	Namespace string
	Alias     string
	Static    bool
	Global    bool

	// Span covers the directive from its first keyword through the semicolon.
	Span position.TextSpan
}

// Key identifies the directive independent of its position or spacing.
func (u Using) Key() string {
	switch {
	case u.Alias != "":
		return u.Alias + " = " + u.Namespace
	case u.Static:
		return "static " + u.Namespace
	default:
		return u.Namespace
	}
}

// IsSystem reports whether the directive imports System or one of its children.
func (u Using) IsSystem() bool {
	ns := strings.TrimPrefix(u.Namespace, "global::")
	return u.Alias == "" && (ns == "System" || strings.HasPrefix(ns, "System."))
}

// RazorText is the directive as written in a Razor document.
func (u Using) RazorText() string {
	return "@using " + u.Key()
}

// ParseUsing parses a single using directive such as "using static System.Math;". The trailing
// semicolon is optional so Razor directive content parses too.
func ParseUsing(text string) (Using, error) {
	d, err := usingParser.ParseString("", text)
	if err != nil {
		return Using{}, errors.Errorf("parsing using directive %q: %w", text, err)
	}
	return Using{
		Namespace: strings.Join(d.Name, "") + typeArgs(d.Args),
		Alias:     d.Alias,
		Static:    d.Static,
		Global:    d.Global,
	}, nil
}

// FindUsings returns the using directives that start a line of text, in order. Using statements
// and anything that does not parse are skipped.
func FindUsings(text string) []Using {
	var out []Using
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		lineStart := offset
		offset += len(line)

		trimmed := strings.TrimSpace(line)
		if !strings.HasSuffix(trimmed, ";") {
			continue
		}
		if !strings.HasPrefix(trimmed, "using ") && !strings.HasPrefix(trimmed, "global using ") {
			continue
		}
		u, err := ParseUsing(trimmed)
		if err != nil {
			continue
		}
		start := lineStart + strings.Index(line, trimmed)
		u.Span = position.TextSpan{Start: start, Length: len(trimmed)}
		out = append(out, u)
	}
	return out
}
