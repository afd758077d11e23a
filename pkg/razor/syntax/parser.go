package syntax

import (
	"path/filepath"
	"strings"

	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor/diagnostics"
	"github.com/walteh/gorazor/pkg/razor/taghelper"
)

type FileKind int

const (
	// FileKindLegacy is an MVC view or Razor page (.cshtml).
	FileKindLegacy FileKind = iota
	// FileKindComponent is a Razor component (.razor).
	FileKindComponent
)

func FileKindFromPath(path string) FileKind {
	if strings.EqualFold(filepath.Ext(path), ".razor") {
		return FileKindComponent
	}
	return FileKindLegacy
}

func (k FileKind) String() string {
	if k == FileKindComponent {
		return "component"
	}
	return "legacy"
}

type Options struct {
	FileKind FileKind
	Binder   *taghelper.Binder
}

type markupMode int

const (
	markupContent markupMode = iota
	// markupLine ends after the next line break (`@:` lines).
	markupLine
	// markupSection ends at an unmatched '}'.
	markupSection
)

type parser struct {
	src  string
	doc  *position.Document
	opts Options
	pos  int

	diags []diagnostics.Diagnostic

	// open elements, innermost last
	elements []string

	codeDepth  int
	seen       map[string]bool
	namespace  string
	sawContent bool
}

// Parse builds the syntax tree of a Razor document. It never fails: malformed input produces
// nodes covering the offending text plus diagnostics.
func Parse(source *position.Document, opts Options) *Tree {
	p := &parser{
		src:  source.Text(),
		doc:  source,
		opts: opts,
		seen: map[string]bool{},
	}

	var children []*Node
	for !p.eof() {
		before := p.pos
		children = append(children, p.parseMarkup(markupContent)...)
		if p.pos == before {
			children = append(children, p.take(KindMarkupText, 1))
		}
	}

	root := newComposite(KindDocument, 0, children...)
	root.Start = 0
	root.Width = len(p.src)

	diagnostics.Sort(p.diags)

	return &Tree{
		Source:      source,
		Root:        root,
		Diagnostics: p.diags,
		Options:     opts,
	}
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek(off int) byte {
	if p.pos+off < len(p.src) && p.pos+off >= 0 {
		return p.src[p.pos+off]
	}
	return 0
}

func (p *parser) hasPrefix(s string) bool {
	return strings.HasPrefix(p.src[p.pos:], s)
}

func (p *parser) leaf(kind Kind, start int, end int) *Node {
	return newLeaf(kind, p.src, start, end)
}

// take returns a leaf covering the next n bytes and advances past them.
func (p *parser) take(kind Kind, n int) *Node {
	l := p.leaf(kind, p.pos, p.pos+n)
	p.pos += n
	return l
}

func (p *parser) report(d diagnostics.Descriptor, start int, length int, args ...any) {
	p.diags = append(p.diags, diagnostics.New(d, p.doc.Span(start, length), args...))
}

func (p *parser) inlineWhitespace() *Node {
	start := p.pos
	for !p.eof() && isInlineSpace(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return nil
	}
	return p.leaf(KindWhitespace, start, p.pos)
}

func (p *parser) anyWhitespace() *Node {
	start := p.pos
	for !p.eof() && isSpace(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return nil
	}
	return p.leaf(KindWhitespace, start, p.pos)
}

// lineRemainder consumes trailing spaces and the line break when nothing else is left on the line.
func (p *parser) lineRemainder() *Node {
	i := p.pos
	for i < len(p.src) && isInlineSpace(p.src[i]) {
		i++
	}
	switch {
	case i >= len(p.src):
	case p.src[i] == '\n':
		i++
	case p.src[i] == '\r' && i+1 < len(p.src) && p.src[i+1] == '\n':
		i += 2
	default:
		return nil
	}
	if i == p.pos {
		return nil
	}
	start := p.pos
	p.pos = i
	return p.leaf(KindWhitespace, start, i)
}

// ---- markup ----

func (p *parser) parseMarkup(mode markupMode) []*Node {
	var out []*Node
	textStart := p.pos
	flush := func() {
		if p.pos > textStart {
			t := p.leaf(KindMarkupText, textStart, p.pos)
			if !isBlank(t.Text) {
				p.sawContent = true
			}
			out = append(out, t)
		}
		textStart = p.pos
	}
	add := func(n *Node) {
		out = append(out, n)
		textStart = p.pos
	}

	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == '\n' && mode == markupLine:
			p.pos++
			flush()
			return out

		case c == '}' && mode == markupSection:
			flush()
			return out

		case c == '<' && mode != markupLine:
			switch {
			case p.hasPrefix("<!--"):
				flush()
				add(p.parseMarkupComment())
			case p.peek(1) == '/' && isTagNameStart(p.peek(2)):
				name := p.peekEndTagName()
				if p.isOpen(name) {
					flush()
					return out
				}
				flush()
				add(p.parseEndTag())
			case isTagNameStart(p.peek(1)):
				flush()
				p.sawContent = true
				add(p.parseElement())
			default:
				p.pos++
			}

		case c == '@':
			if p.isEmailAt() {
				p.pos++
				continue
			}
			allowDirectives := mode == markupContent && p.codeDepth == 0
			flush()
			if n := p.parseTransition(allowDirectives); n != nil {
				add(n)
				continue
			}
			p.pos++

		default:
			p.pos++
		}
	}
	flush()
	return out
}

func isTagNameStart(c byte) bool {
	return isLetter(c) || c == '!'
}

func (p *parser) isEmailAt() bool {
	return p.pos > 0 && isAlnum(p.src[p.pos-1]) && isAlnum(p.peek(1))
}

func (p *parser) isOpen(name string) bool {
	for _, e := range p.elements {
		if strings.EqualFold(e, name) {
			return true
		}
	}
	return false
}

func (p *parser) peekEndTagName() string {
	i := p.pos + 2
	for i < len(p.src) && isTagNameChar(p.src[i]) {
		i++
	}
	return p.src[p.pos+2 : i]
}

func (p *parser) parseMarkupComment() *Node {
	start := p.pos
	end := strings.Index(p.src[p.pos+4:], "-->")
	if end < 0 {
		p.pos = len(p.src)
	} else {
		p.pos += 4 + end + 3
	}
	return p.leaf(KindMarkupComment, start, p.pos)
}

func (p *parser) parseElement() *Node {
	el := &Node{Kind: KindMarkupElement}
	start, closed := p.parseStartTag()
	el.Name = start.Name
	el.IsSelfClosing = start.IsSelfClosing
	el.IsTextTag = p.codeDepth > 0 && start.Name == "text"
	start.IsTextTag = el.IsTextTag
	p.bind(el, start)

	children := []*Node{start}
	if !closed {
		p.report(diagnostics.UnclosedElement, start.Start+1, len(el.Name), el.Name)
		el.setChildren(children)
		return el
	}
	if el.IsSelfClosing || isVoidElement(el.Name) {
		el.setChildren(children)
		return el
	}

	p.elements = append(p.elements, el.Name)
	children = append(children, p.parseMarkup(markupContent)...)
	p.elements = p.elements[:len(p.elements)-1]

	if !p.eof() && p.hasPrefix("</") && strings.EqualFold(p.peekEndTagName(), el.Name) {
		end := p.parseEndTag()
		end.IsTextTag = el.IsTextTag
		children = append(children, end)
	} else if p.eof() || el.TagHelper != nil || p.codeDepth > 0 {
		p.report(diagnostics.UnclosedElement, start.Start+1, len(el.Name), el.Name)
	}

	el.setChildren(children)
	return el
}

// parseStartTag reports whether the tag was terminated by '>' or '/>'.
func (p *parser) parseStartTag() (*Node, bool) {
	tag := &Node{Kind: KindMarkupStartTag}
	children := []*Node{p.take(KindMarkupTagDelimiter, 1)}

	nameStart := p.pos
	if p.peek(0) == '!' {
		p.pos++
	}
	for !p.eof() && isTagNameChar(p.src[p.pos]) {
		p.pos++
	}
	name := p.leaf(KindMarkupTagName, nameStart, p.pos)
	tag.Name = name.Text
	children = append(children, name)

	closed := false
	for !p.eof() {
		wsStart := p.pos
		ws := p.anyWhitespace()
		if p.eof() {
			children = append(children, ws)
			break
		}
		if p.hasPrefix("/>") {
			children = append(children, ws, p.take(KindMarkupTagDelimiter, 2))
			tag.IsSelfClosing = true
			closed = true
			break
		}
		if p.src[p.pos] == '>' {
			children = append(children, ws, p.take(KindMarkupTagDelimiter, 1))
			closed = true
			break
		}
		if p.src[p.pos] == '<' {
			children = append(children, ws)
			break
		}
		children = append(children, p.parseAttribute(ws, wsStart))
	}

	tag.setChildren(children)
	return tag, closed
}

func (p *parser) parseAttribute(ws *Node, start int) *Node {
	attr := &Node{Kind: KindMarkupMinimizedAttribute, Start: start}

	nameStart := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if isSpace(c) || c == '=' || c == '>' || c == '<' || (c == '/' && p.peek(1) == '>') {
			break
		}
		p.pos++
	}
	if p.pos == nameStart {
		p.pos++
	}
	name := p.leaf(KindMarkupAttributeName, nameStart, p.pos)
	attr.Name = name.Text
	children := []*Node{ws, name}

	save := p.pos
	preEq := p.inlineWhitespace()
	if p.peek(0) != '=' {
		p.pos = save
		attr.setChildren(children)
		return attr
	}

	attr.Kind = KindMarkupAttribute
	children = append(children, preEq, p.take(KindMarkupAttributeOperator, 1), p.inlineWhitespace())

	switch q := p.peek(0); q {
	case '"', '\'':
		children = append(children, p.take(KindMarkupAttributeQuote, 1))
		children = append(children, p.parseAttributeValue(q))
		if p.peek(0) == q {
			children = append(children, p.take(KindMarkupAttributeQuote, 1))
		}
	default:
		children = append(children, p.parseAttributeValue(0))
	}

	attr.setChildren(children)
	return attr
}

// parseAttributeValue reads up to the closing quote, or to whitespace or '>' when quote is 0.
func (p *parser) parseAttributeValue(quote byte) *Node {
	valueStart := p.pos
	var parts []*Node
	textStart := p.pos
	flush := func() {
		if p.pos > textStart {
			parts = append(parts, p.leaf(KindMarkupText, textStart, p.pos))
		}
		textStart = p.pos
	}
	for !p.eof() {
		c := p.src[p.pos]
		if quote != 0 && c == quote {
			break
		}
		if quote == 0 && (isSpace(c) || c == '>' || (c == '/' && p.peek(1) == '>')) {
			break
		}
		if c == '@' && !p.isEmailAt() {
			flush()
			if n := p.parseTransition(false); n != nil {
				parts = append(parts, n)
				textStart = p.pos
				continue
			}
		}
		p.pos++
	}
	flush()
	return newComposite(KindMarkupAttributeValue, valueStart, parts...)
}

func (p *parser) parseEndTag() *Node {
	tag := &Node{Kind: KindMarkupEndTag}
	children := []*Node{p.take(KindMarkupTagDelimiter, 1), p.take(KindMarkupTagDelimiter, 1)}
	nameStart := p.pos
	for !p.eof() && isTagNameChar(p.src[p.pos]) {
		p.pos++
	}
	name := p.leaf(KindMarkupTagName, nameStart, p.pos)
	tag.Name = name.Text
	children = append(children, name, p.anyWhitespace())
	if p.peek(0) == '>' {
		children = append(children, p.take(KindMarkupTagDelimiter, 1))
	}
	tag.setChildren(children)
	return tag
}

// bind attaches tag helpers to an element once its start tag is known. Attribute values bound to
// non-string properties are reinterpreted as C#.
func (p *parser) bind(el *Node, start *Node) {
	if p.opts.Binder == nil || el.IsTextTag {
		return
	}

	attrs := append(start.ChildrenOf(KindMarkupAttribute), start.ChildrenOf(KindMarkupMinimizedAttribute)...)
	names := make([]string, 0, len(attrs))
	for _, a := range attrs {
		names = append(names, a.Name)
	}
	parent := ""
	if len(p.elements) > 0 {
		parent = p.elements[len(p.elements)-1]
	}

	binding := p.opts.Binder.Bind(el.Name, names, parent)
	if binding == nil {
		return
	}
	el.TagHelper = binding
	start.TagHelper = binding

	for _, a := range attrs {
		_, bound, ok := binding.BoundAttribute(a.Name)
		if !ok {
			continue
		}
		a.BoundAttribute = bound
		if bound.IsStringProperty() {
			continue
		}
		if a.Kind == KindMarkupMinimizedAttribute {
			n := a.Child(KindMarkupAttributeName)
			p.report(diagnostics.UnknownTagHelperAttribute, n.Start, n.Width, a.Name, el.Name)
			continue
		}
		value := a.Child(KindMarkupAttributeValue)
		if value == nil || value.Width == 0 {
			continue
		}
		s, e := value.Start, value.End()
		var parts []*Node
		if p.src[s] == '@' {
			parts = append(parts, p.leaf(KindTransition, s, s+1))
			s++
		}
		if e > s {
			parts = append(parts, p.leaf(KindCSharpCode, s, e))
		}
		value.setChildren(parts)
	}
}

// ---- transitions ----

// parseTransition parses the construct introduced by the '@' at the current position. It returns
// nil without consuming anything when the '@' is literal text.
func (p *parser) parseTransition(allowDirectives bool) *Node {
	next := p.peek(1)
	switch {
	case next == '@':
		return p.take(KindMarkupEscapedTransition, 2)
	case next == '*':
		return p.parseRazorComment()
	case next == '{':
		p.sawContent = true
		return p.parseCodeBlock()
	case next == '(':
		p.sawContent = true
		return p.parseExplicitExpression()
	case isIdentStart(next):
		end := readIdentifier(p.src, p.pos+1)
		word := p.src[p.pos+1 : end]
		if d, ok := LookupDirective(word); ok && allowDirectives && d.AppliesTo(p.opts.FileKind) && !p.isUsingStatement(word, end) {
			n := p.parseDirective(d)
			p.sawContent = true
			return n
		}
		p.sawContent = true
		if statementKeywords[word] && (word != "using" || p.isUsingStatement(word, end)) {
			return p.parseStatement(word)
		}
		return p.parseImplicitExpression()
	}
	return nil
}

func (p *parser) isUsingStatement(word string, end int) bool {
	if word != "using" {
		return false
	}
	i := end
	for i < len(p.src) && isInlineSpace(p.src[i]) {
		i++
	}
	return i < len(p.src) && p.src[i] == '('
}

func (p *parser) parseRazorComment() *Node {
	start := p.pos
	children := []*Node{p.take(KindRazorCommentTransition, 1), p.take(KindRazorCommentStar, 1)}
	end := strings.Index(p.src[p.pos:], "*@")
	if end < 0 {
		children = append(children, p.leaf(KindRazorCommentLiteral, p.pos, len(p.src)))
		p.pos = len(p.src)
		p.report(diagnostics.UnterminatedComment, start, 2)
		return newComposite(KindRazorComment, start, children...)
	}
	children = append(children, p.leaf(KindRazorCommentLiteral, p.pos, p.pos+end))
	p.pos += end
	children = append(children, p.take(KindRazorCommentStar, 1), p.take(KindRazorCommentTransition, 1))
	return newComposite(KindRazorComment, start, children...)
}

func (p *parser) parseExplicitExpression() *Node {
	start := p.pos
	children := []*Node{p.take(KindTransition, 1), p.take(KindMetaCode, 1)}
	end, ok := scanBalanced(p.src, p.pos, '(', ')')
	if end > p.pos {
		children = append(children, p.leaf(KindCSharpCode, p.pos, end))
	}
	p.pos = end
	if !ok {
		p.report(diagnostics.UnterminatedExplicitExpression, start, 2)
	} else {
		children = append(children, p.take(KindMetaCode, 1))
	}
	return newComposite(KindCSharpExplicitExpression, start, children...)
}

func (p *parser) parseImplicitExpression() *Node {
	start := p.pos
	transition := p.take(KindTransition, 1)
	codeStart := p.pos

	if hasWordAt(p.src, p.pos, "await") {
		i := p.pos + len("await")
		for i < len(p.src) && isInlineSpace(p.src[i]) {
			i++
		}
		if i < len(p.src) && isIdentStart(p.src[i]) && i > p.pos+len("await") {
			p.pos = i
		}
	}
	p.pos = readIdentifier(p.src, p.pos)

	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == '.' && isIdentStart(p.peek(1)):
			p.pos = readIdentifier(p.src, p.pos+1)
		case c == '?' && p.peek(1) == '.' && isIdentStart(p.peek(2)):
			p.pos = readIdentifier(p.src, p.pos+2)
		case c == '(' || c == '[':
			closer := byte(')')
			if c == '[' {
				closer = ']'
			}
			end, ok := scanBalanced(p.src, p.pos+1, c, closer)
			if !ok {
				return newComposite(KindCSharpImplicitExpression, start, transition, p.leaf(KindCSharpCode, codeStart, p.pos))
			}
			p.pos = end + 1
		default:
			return newComposite(KindCSharpImplicitExpression, start, transition, p.leaf(KindCSharpCode, codeStart, p.pos))
		}
	}
	return newComposite(KindCSharpImplicitExpression, start, transition, p.leaf(KindCSharpCode, codeStart, p.pos))
}

// ---- code ----

// codeBuilder accumulates C# text between nested markup and comment nodes.
type codeBuilder struct {
	p     *parser
	start int
	nodes []*Node
}

func (p *parser) newCodeBuilder() *codeBuilder {
	return &codeBuilder{p: p, start: p.pos}
}

func (b *codeBuilder) flush() {
	if b.p.pos > b.start {
		b.nodes = append(b.nodes, b.p.leaf(KindCSharpCode, b.start, b.p.pos))
	}
	b.start = b.p.pos
}

// add appends a node parsed from the current position. The caller flushes first.
func (b *codeBuilder) add(n *Node) {
	b.nodes = append(b.nodes, n)
	b.start = b.p.pos
}

// enterCode isolates nested markup from the surrounding element stack.
func (p *parser) enterCode() func() {
	saved := p.elements
	p.elements = nil
	p.codeDepth++
	return func() {
		p.codeDepth--
		p.elements = saved
	}
}

func (p *parser) parseCodeBlock() *Node {
	start := p.pos
	children := []*Node{p.take(KindTransition, 1), p.take(KindMetaCode, 1)}

	leave := p.enterCode()
	b := p.newCodeBuilder()
	closed := p.parseCodeBody(b)
	b.flush()
	leave()

	children = append(children, b.nodes...)
	if closed {
		children = append(children, p.take(KindMetaCode, 1))
	} else {
		p.report(diagnostics.UnterminatedCodeBlock, start, 2, "code")
	}
	return newComposite(KindCSharpCodeBlock, start, children...)
}

func markupAllowedAfter(c byte) bool {
	switch c {
	case '{', '}', ';', ':':
		return true
	}
	return false
}

// parseCodeBody scans C# up to the '}' closing the current block, which is left unconsumed.
// Markup found at statement positions is parsed into MarkupBlock nodes.
func (p *parser) parseCodeBody(b *codeBuilder) bool {
	depth := 0
	prev := byte('{')
	for !p.eof() {
		if j := skipCSharpTrivia(p.src, p.pos); j != p.pos {
			p.pos = j
			prev = '"'
			continue
		}
		c := p.src[p.pos]
		switch {
		case c == '@' && p.peek(1) == '*':
			b.flush()
			b.add(p.parseRazorComment())
		case c == '@' && p.peek(1) == ':' && markupAllowedAfter(prev):
			b.flush()
			b.add(p.parseLineMarkup())
			prev = ';'
		case c == '<' && markupAllowedAfter(prev) && (isLetter(p.peek(1)) || (p.peek(1) == '!' && isLetter(p.peek(2)))):
			b.flush()
			start := p.pos
			b.add(newComposite(KindMarkupBlock, start, p.parseElement()))
			prev = '}'
		case c == '{':
			depth++
			p.pos++
			prev = c
		case c == '}':
			if depth == 0 {
				return true
			}
			depth--
			p.pos++
			prev = c
		case isSpace(c):
			p.pos++
		case isIdentStart(c) || (c == '@' && isIdentStart(p.peek(1))):
			p.pos = readIdentifier(p.src, p.pos)
			prev = 'a'
		default:
			p.pos++
			prev = c
		}
	}
	return false
}

func (p *parser) parseLineMarkup() *Node {
	start := p.pos
	children := []*Node{p.take(KindMarkupTransition, 2)}
	children = append(children, p.parseMarkup(markupLine)...)
	return newComposite(KindMarkupBlock, start, children...)
}

var statementContinuations = map[string][]string{
	"if":    {"else"},
	"try":   {"catch", "finally"},
	"catch": {"catch", "finally"},
	"do":    {"while"},
}

func (p *parser) parseStatement(keyword string) *Node {
	start := p.pos
	transition := p.take(KindTransition, 1)

	leave := p.enterCode()
	defer leave()

	b := p.newCodeBuilder()
	p.pos += len(keyword)
	p.parseStatementBody(b, keyword)
	b.flush()

	return newComposite(KindCSharpStatement, start, append([]*Node{transition}, b.nodes...)...)
}

func (p *parser) skipCodeSpace() {
	for !p.eof() && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *parser) parseStatementBody(b *codeBuilder, keyword string) {
	afterDo := false
	for {
		p.skipCodeSpace()
		if p.peek(0) == '(' {
			end, ok := scanBalanced(p.src, p.pos+1, '(', ')')
			p.pos = end
			if !ok {
				p.report(diagnostics.UnterminatedExplicitExpression, p.pos, 0)
				return
			}
			p.pos++
			p.skipCodeSpace()
		}
		if keyword == "catch" && hasWordAt(p.src, p.pos, "when") {
			p.pos += len("when")
			p.skipCodeSpace()
			if p.peek(0) == '(' {
				end, _ := scanBalanced(p.src, p.pos+1, '(', ')')
				p.pos = min(end+1, len(p.src))
			}
			p.skipCodeSpace()
		}
		if afterDo {
			if p.peek(0) == ';' {
				p.pos++
			}
			return
		}
		if p.peek(0) != '{' {
			return
		}
		blockStart := p.pos
		p.pos++
		if !p.parseCodeBody(b) {
			p.report(diagnostics.UnterminatedCodeBlock, blockStart, 1, keyword)
			return
		}
		p.pos++

		next := p.continuation(keyword)
		if next == "" {
			return
		}
		afterDo = keyword == "do"
		keyword = next
		if keyword == "else" {
			save := p.pos
			p.skipCodeSpace()
			if hasWordAt(p.src, p.pos, "if") {
				p.pos += len("if")
				keyword = "if"
			} else {
				p.pos = save
			}
		}
	}
}

// continuation consumes the keyword continuing a statement after its block, if any.
func (p *parser) continuation(keyword string) string {
	i := p.pos
	for i < len(p.src) && isSpace(p.src[i]) {
		i++
	}
	for _, word := range statementContinuations[keyword] {
		if i < len(p.src) && hasWordAt(p.src, i, word) {
			p.pos = i + len(word)
			return word
		}
	}
	return ""
}

// ---- directives ----

func (p *parser) parseDirective(d *DirectiveDescriptor) *Node {
	start := p.pos
	children := []*Node{p.take(KindTransition, 1), p.take(KindRazorDirectiveKeyword, len(d.Name))}
	node := &Node{Kind: KindRazorDirective, Name: d.Name}
	keywordLength := p.pos - start

	if d.Name == "page" && p.sawContent {
		p.report(diagnostics.PageDirectiveNotFirst, start, keywordLength)
	}
	if d.SingleUse && p.seen[d.Name] {
		p.report(diagnostics.DuplicateDirective, start, keywordLength, d.Name)
	}
	p.seen[d.Name] = true

	malformed := false
	for _, tok := range d.Tokens {
		save := p.pos
		ws := p.inlineWhitespace()
		var tn *Node
		if ws != nil {
			tn = p.parseDirectiveToken(tok.Kind)
		}
		if tn == nil {
			p.pos = save
			if tok.Optional && p.restOfLineBlank() {
				break
			}
			p.report(diagnostics.MalformedDirective, start, keywordLength, d.Name, tok.Description)
			malformed = true
			break
		}
		tn.TokenKind = tok.Kind
		children = append(children, ws, tn)

		if d.Name == "namespace" {
			if p.namespace != "" {
				p.report(diagnostics.DuplicateNamespace, tn.Start, tn.Width, p.namespace)
			} else {
				p.namespace = tn.Text
			}
		}
		if tok.Kind == TokenNamespace && p.peek(0) == ';' {
			children = append(children, p.take(KindMetaCode, 1))
		}
	}

	if !malformed && d.Kind != DirectiveSingleLine {
		children = append(children, p.parseDirectiveBlock(d, start, keywordLength)...)
	}
	children = append(children, p.lineRemainder())

	node.setChildren(children)
	return node
}

func (p *parser) restOfLineBlank() bool {
	i := p.pos
	for i < len(p.src) && isInlineSpace(p.src[i]) {
		i++
	}
	return i >= len(p.src) || p.src[i] == '\n' || p.src[i] == '\r'
}

func (p *parser) parseDirectiveBlock(d *DirectiveDescriptor, start int, keywordLength int) []*Node {
	save := p.pos
	ws := p.anyWhitespace()
	if p.peek(0) != '{' {
		p.pos = save
		p.report(diagnostics.MalformedDirective, start, keywordLength, d.Name, "a '{' character")
		return nil
	}
	children := []*Node{ws, p.take(KindMetaCode, 1)}

	closed := false
	if d.Kind == DirectiveCodeBlock {
		leave := p.enterCode()
		b := p.newCodeBuilder()
		closed = p.parseCodeBody(b)
		b.flush()
		leave()
		children = append(children, b.nodes...)
	} else {
		saved := p.elements
		p.elements = nil
		bodyStart := p.pos
		body := p.parseMarkup(markupSection)
		children = append(children, newComposite(KindMarkupBlock, bodyStart, body...))
		p.elements = saved
		closed = p.peek(0) == '}'
	}

	if closed {
		children = append(children, p.take(KindMetaCode, 1))
	} else {
		p.report(diagnostics.UnterminatedCodeBlock, start, keywordLength, d.Name)
	}
	return children
}

func (p *parser) parseDirectiveToken(kind TokenKind) *Node {
	start := p.pos
	n := len(p.src)
	switch kind {
	case TokenMember:
		if p.eof() || !isIdentStart(p.src[p.pos]) {
			return nil
		}
		p.pos = readIdentifier(p.src, p.pos)

	case TokenNamespace:
		if p.eof() || !isIdentStart(p.src[p.pos]) {
			return nil
		}
		end := p.pos
		for end < n && p.src[end] != '\n' && p.src[end] != '\r' && p.src[end] != ';' {
			end++
		}
		for end > p.pos && isInlineSpace(p.src[end-1]) {
			end--
		}
		p.pos = end

	case TokenType:
		if p.eof() || !(isIdentStart(p.src[p.pos]) || p.src[p.pos] == '(') {
			return nil
		}
		depth := 0
		for !p.eof() {
			c := p.src[p.pos]
			if c == '<' || c == '(' || c == '[' {
				depth++
			} else if c == '>' || c == ')' || c == ']' {
				if depth == 0 {
					break
				}
				depth--
			} else if c == '\n' || c == '\r' || (depth == 0 && isInlineSpace(c)) {
				break
			} else if !isIdentPart(c) && c != '.' && c != '?' && c != ',' && c != ':' && !isInlineSpace(c) {
				break
			}
			p.pos++
		}

	case TokenString:
		if p.peek(0) != '"' {
			return nil
		}
		end := skipQuoted(p.src, p.pos, '"')
		if end > n || p.src[end-1] != '"' || end == p.pos+1 {
			return nil
		}
		p.pos = end

	case TokenAttribute:
		if p.peek(0) != '[' {
			return nil
		}
		end, ok := scanBalanced(p.src, p.pos+1, '[', ']')
		if !ok {
			return nil
		}
		p.pos = end + 1
	}

	if p.pos == start {
		return nil
	}
	return p.leaf(KindDirectiveToken, start, p.pos)
}
