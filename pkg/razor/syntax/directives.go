package syntax

import "strings"

type DirectiveKind int

const (
	DirectiveSingleLine DirectiveKind = iota
	// DirectiveCodeBlock is followed by a braced block of C# class members.
	DirectiveCodeBlock
	// DirectiveRazorBlock is followed by a braced block of markup.
	DirectiveRazorBlock
)

type DirectiveToken struct {
	Kind        TokenKind
	Optional    bool
	Description string
}

// DirectiveDescriptor defines the shape of one directive.
type DirectiveDescriptor struct {
	Name        string
	Kind        DirectiveKind
	Tokens      []DirectiveToken
	SingleUse   bool
	Description string

	// LegacyOnly and ComponentOnly restrict the directive to one file kind.
	LegacyOnly    bool
	ComponentOnly bool
}

func (d *DirectiveDescriptor) AppliesTo(kind FileKind) bool {
	switch kind {
	case FileKindComponent:
		return !d.LegacyOnly
	default:
		return !d.ComponentOnly
	}
}

var (
	tokType      = DirectiveToken{Kind: TokenType, Description: "a type name"}
	tokMember    = DirectiveToken{Kind: TokenMember, Description: "an identifier"}
	tokNamespace = DirectiveToken{Kind: TokenNamespace, Description: "a namespace name"}
)

// Directives is the set of directives recognized by the parser.
var Directives = map[string]*DirectiveDescriptor{
	"using": {
		Name: "using", Tokens: []DirectiveToken{tokNamespace},
		Description: "Adds the C# using directive to the generated view.",
	},
	"model": {
		Name: "model", Tokens: []DirectiveToken{tokType}, SingleUse: true, LegacyOnly: true,
		Description: "Specify the view or page model for the page.",
	},
	"inherits": {
		Name: "inherits", Tokens: []DirectiveToken{tokType}, SingleUse: true,
		Description: "Specify the base class for the current document.",
	},
	"inject": {
		Name: "inject", Tokens: []DirectiveToken{tokType, tokMember},
		Description: "Inject a service from the application's service container into a property.",
	},
	"page": {
		Name: "page", Tokens: []DirectiveToken{{Kind: TokenString, Optional: true, Description: "a string literal route template"}}, SingleUse: true,
		Description: "Mark the page as a Razor Page with an optional route template.",
	},
	"attribute": {
		Name: "attribute", Tokens: []DirectiveToken{{Kind: TokenAttribute, Description: "a C# attribute"}},
		Description: "Specifies the C# attribute that will be applied to the current class.",
	},
	"namespace": {
		Name: "namespace", Tokens: []DirectiveToken{tokNamespace},
		Description: "Specify the base namespace for the document.",
	},
	"implements": {
		Name: "implements", Tokens: []DirectiveToken{tokType},
		Description: "Declares an interface implementation for the current document.",
	},
	"layout": {
		Name: "layout", Tokens: []DirectiveToken{tokType}, SingleUse: true, ComponentOnly: true,
		Description: "Declares a layout type for the current document.",
	},
	"typeparam": {
		Name: "typeparam", Tokens: []DirectiveToken{tokMember}, ComponentOnly: true,
		Description: "Declares a generic type parameter for the generated component class.",
	},
	"functions": {
		Name: "functions", Kind: DirectiveCodeBlock,
		Description: "Specify a C# code block.",
	},
	"code": {
		Name: "code", Kind: DirectiveCodeBlock, ComponentOnly: true,
		Description: "Specify a C# code block.",
	},
	"section": {
		Name: "section", Kind: DirectiveRazorBlock, Tokens: []DirectiveToken{tokMember}, LegacyOnly: true,
		Description: "Define a section to be rendered in the configured layout page.",
	},
}

func LookupDirective(name string) (*DirectiveDescriptor, bool) {
	d, ok := Directives[name]
	return d, ok
}

// keywords that start a C# statement when they follow a transition.
var statementKeywords = map[string]bool{
	"if":      true,
	"for":     true,
	"foreach": true,
	"while":   true,
	"do":      true,
	"switch":  true,
	"lock":    true,
	"using":   true,
	"try":     true,
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true, "img": true,
	"input": true, "link": true, "meta": true, "param": true, "source": true, "track": true, "wbr": true,
	"!doctype": true,
}

func isVoidElement(name string) bool {
	return voidElements[strings.ToLower(name)]
}
