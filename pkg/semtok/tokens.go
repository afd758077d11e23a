package semtok

import (
	"github.com/walteh/gorazor/pkg/lsp/protocol"
)

// Token types written by the C# service.
const (
	TypeNamespace     = "namespace"
	TypeType          = "type"
	TypeClass         = "class"
	TypeEnum          = "enum"
	TypeInterface     = "interface"
	TypeStruct        = "struct"
	TypeTypeParameter = "typeParameter"
	TypeParameter     = "parameter"
	TypeVariable      = "variable"
	TypeProperty      = "property"
	TypeEnumMember    = "enumMember"
	TypeEvent         = "event"
	TypeFunction      = "function"
	TypeMethod        = "method"
	TypeMacro         = "macro"
	TypeKeyword       = "keyword"
	TypeModifier      = "modifier"
	TypeComment       = "comment"
	TypeString        = "string"
	TypeNumber        = "number"
	TypeRegexp        = "regexp"
	TypeOperator      = "operator"
)

// Token types the Razor tree classifies itself.
const (
	TypeRazorTagHelperElement    = "razorTagHelperElement"
	TypeRazorTagHelperAttribute  = "razorTagHelperAttribute"
	TypeRazorTransition          = "razorTransition"
	TypeRazorDirectiveAttribute  = "razorDirectiveAttribute"
	TypeRazorDirectiveColon      = "razorDirectiveColon"
	TypeRazorDirective           = "razorDirective"
	TypeRazorComment             = "razorComment"
	TypeRazorCommentTransition   = "razorCommentTransition"
	TypeRazorCommentStar         = "razorCommentStar"
	TypeMarkupTagDelimiter       = "markupTagDelimiter"
	TypeMarkupOperator           = "markupOperator"
	TypeMarkupElement            = "markupElement"
	TypeMarkupAttribute          = "markupAttribute"
	TypeMarkupAttributeQuote     = "markupAttributeQuote"
	TypeMarkupAttributeValue     = "markupAttributeValue"
	TypeMarkupComment            = "markupComment"
	TypeMarkupCommentPunctuation = "markupCommentPunctuation"
	TypeMarkupTextLiteral        = "markupTextLiteral"
)

const (
	ModifierDeclaration    = "declaration"
	ModifierDefinition     = "definition"
	ModifierReadonly       = "readonly"
	ModifierStatic         = "static"
	ModifierDeprecated     = "deprecated"
	ModifierAbstract       = "abstract"
	ModifierAsync          = "async"
	ModifierModification   = "modification"
	ModifierDocumentation  = "documentation"
	ModifierDefaultLibrary = "defaultLibrary"
	// ModifierRazorCode marks C# ranges when the client paints a background behind code.
	ModifierRazorCode = "razorCode"
)

var defaultTypes = []string{
	TypeNamespace, TypeType, TypeClass, TypeEnum, TypeInterface, TypeStruct, TypeTypeParameter,
	TypeParameter, TypeVariable, TypeProperty, TypeEnumMember, TypeEvent, TypeFunction, TypeMethod,
	TypeMacro, TypeKeyword, TypeModifier, TypeComment, TypeString, TypeNumber, TypeRegexp, TypeOperator,

	TypeRazorTagHelperElement, TypeRazorTagHelperAttribute, TypeRazorTransition, TypeRazorDirectiveAttribute,
	TypeRazorDirectiveColon, TypeRazorDirective, TypeRazorComment, TypeRazorCommentTransition,
	TypeRazorCommentStar, TypeMarkupTagDelimiter, TypeMarkupOperator, TypeMarkupElement, TypeMarkupAttribute,
	TypeMarkupAttributeQuote, TypeMarkupAttributeValue, TypeMarkupComment, TypeMarkupCommentPunctuation,
	TypeMarkupTextLiteral,
}

var defaultModifiers = []string{
	ModifierDeclaration, ModifierDefinition, ModifierReadonly, ModifierStatic, ModifierDeprecated,
	ModifierAbstract, ModifierAsync, ModifierModification, ModifierDocumentation, ModifierDefaultLibrary,
	ModifierRazorCode,
}

// Legend is the set of token types and modifiers the server advertises. The C# service encodes its
// tokens against the same legend.
type Legend struct {
	types     []string
	modifiers []string
	typeIndex map[string]int
	modIndex  map[string]int
}

func NewLegend(types []string, modifiers []string) *Legend {
	l := &Legend{
		types:     append([]string(nil), types...),
		modifiers: append([]string(nil), modifiers...),
		typeIndex: make(map[string]int, len(types)),
		modIndex:  make(map[string]int, len(modifiers)),
	}
	for i, t := range l.types {
		l.typeIndex[t] = i
	}
	for i, m := range l.modifiers {
		l.modIndex[m] = i
	}
	return l
}

func DefaultLegend() *Legend {
	return NewLegend(defaultTypes, defaultModifiers)
}

// Index returns the position of tokenType in the legend.
func (l *Legend) Index(tokenType string) (int, bool) {
	i, ok := l.typeIndex[tokenType]
	return i, ok
}

// Type is Index for token types the legend is known to hold.
func (l *Legend) Type(tokenType string) int {
	i, ok := l.typeIndex[tokenType]
	if !ok {
		panic("semtok: token type not in legend: " + tokenType)
	}
	return i
}

func (l *Legend) TypeName(index int) string {
	if index < 0 || index >= len(l.types) {
		return ""
	}
	return l.types[index]
}

// Modifier returns the bit for modifier, or 0 when the legend does not carry it.
func (l *Legend) Modifier(modifier string) int {
	i, ok := l.modIndex[modifier]
	if !ok {
		return 0
	}
	return 1 << i
}

func (l *Legend) ToLSP() protocol.SemanticTokensLegend {
	return protocol.SemanticTokensLegend{
		TokenTypes:     append([]string(nil), l.types...),
		TokenModifiers: append([]string(nil), l.modifiers...),
	}
}

// ModifierNames lists the modifiers set in bits, in legend order.
func (l *Legend) ModifierNames(bits int) []string {
	var names []string
	for i, m := range l.modifiers {
		if bits&(1<<i) != 0 {
			names = append(names, m)
		}
	}
	return names
}
