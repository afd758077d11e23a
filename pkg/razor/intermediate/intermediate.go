package intermediate

import (
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor/syntax"
	"github.com/walteh/gorazor/pkg/razor/taghelper"
)

// Token is a piece of C# or HTML content. Tokens with a Source are written with a source mapping.
type Token struct {
	Content string
	Source  *position.SourceSpan
}

func Synthetic(content string) Token {
	return Token{Content: content}
}

func (t Token) IsMapped() bool {
	return t.Source != nil
}

type Kind int

const (
	KindHTML Kind = iota
	KindCSharpExpression
	KindCSharpCode
	KindSection
	KindTagHelper
	KindTagHelperProperty
	KindTagHelperHTMLAttribute
)

func (k Kind) String() string {
	switch k {
	case KindHTML:
		return "HTML"
	case KindCSharpExpression:
		return "CSharpExpression"
	case KindCSharpCode:
		return "CSharpCode"
	case KindSection:
		return "Section"
	case KindTagHelper:
		return "TagHelper"
	case KindTagHelperProperty:
		return "TagHelperProperty"
	case KindTagHelperHTMLAttribute:
		return "TagHelperHTMLAttribute"
	}
	return "Unknown"
}

// Node is one statement-level item of a generated method body.
type Node struct {
	Kind Kind

	// Token holds the content of HTML, expression and code nodes, and the C# value of non-string
	// tag helper properties.
	Token Token

	// Name is the section name, the tag name of a tag helper or the attribute name of a tag helper
	// property or attribute.
	Name string

	// Children holds section content, tag helper properties and attributes, or the parts of an
	// attribute value that mixes literal text and expressions.
	Children []*Node

	// Body is the content of a tag helper element.
	Body []*Node

	TagHelper      *taghelper.Binding
	BoundAttribute *taghelper.BoundAttributeDescriptor
	Descriptor     *taghelper.TagHelperDescriptor
}

// DirectiveHelper is a directive token that design-time output maps inside
// __RazorDirectiveTokenHelpers__ rather than at its point of use.
type DirectiveHelper struct {
	Directive string
	Kind      syntax.TokenKind
	Token     Token
}

type Inject struct {
	Type   Token
	Member Token
}

// Document is the lowered form of one Razor document.
type Document struct {
	FilePath   string
	FileKind   syntax.FileKind
	DesignTime bool

	Namespace      Token
	Usings         []Token
	ClassName      string
	BaseType       []Token
	Interfaces     []Token
	TypeParameters []Token
	Attributes     []Token
	PageRoute      *Token
	Layout         *Token
	Injects        []Inject

	DirectiveHelpers []DirectiveHelper

	// Members are C# class members from @functions and @code blocks.
	Members []*Node
	Body    []*Node

	// TagHelpers lists every descriptor used in the body, in order of first use.
	TagHelpers []*taghelper.TagHelperDescriptor
}
