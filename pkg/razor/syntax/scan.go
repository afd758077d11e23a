package syntax

import "strings"

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAlnum(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9')
}

func isInlineSpace(c byte) bool {
	return c == ' ' || c == '\t'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f'
}

func isTagNameChar(c byte) bool {
	return !isSpace(c) && c != '>' && c != '/' && c != '<' && c != '"' && c != '\'' && c != '=' && c != '@'
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// skipCSharpTrivia returns the index after a string, char literal or comment starting at i, or i
// when nothing of that shape starts there.
func skipCSharpTrivia(src string, i int) int {
	n := len(src)
	if i >= n {
		return i
	}
	c := src[i]
	next := byte(0)
	if i+1 < n {
		next = src[i+1]
	}
	switch {
	case c == '/' && next == '/':
		end := strings.IndexByte(src[i:], '\n')
		if end < 0 {
			return n
		}
		return i + end
	case c == '/' && next == '*':
		end := strings.Index(src[i+2:], "*/")
		if end < 0 {
			return n
		}
		return i + 2 + end + 2
	case (c == '@' && next == '"') || (c == '$' && next == '@' && i+2 < n && src[i+2] == '"'):
		j := strings.IndexByte(src[i:], '"') + i + 1
		for j < n {
			if src[j] == '"' {
				if j+1 < n && src[j+1] == '"' {
					j += 2
					continue
				}
				return j + 1
			}
			j++
		}
		return n
	case c == '$' && next == '"':
		return skipQuoted(src, i+1, '"')
	case c == '"' || c == '\'':
		return skipQuoted(src, i, c)
	}
	return i
}

// skipQuoted skips a backslash-escaped literal. Literals stop at a line break so that a stray quote
// does not swallow the rest of the document.
func skipQuoted(src string, i int, quote byte) int {
	j := i + 1
	for j < len(src) {
		switch src[j] {
		case '\\':
			j += 2
			continue
		case '\n':
			return j
		case quote:
			return j + 1
		}
		j++
	}
	return len(src)
}

// scanBalanced finds the closer matching an opener that sits just before from. Strings and
// comments are skipped. ok is false when the document ends first.
func scanBalanced(src string, from int, open byte, close byte) (int, bool) {
	depth := 0
	i := from
	for i < len(src) {
		if j := skipCSharpTrivia(src, i); j != i {
			i = j
			continue
		}
		switch src[i] {
		case open:
			depth++
		case close:
			if depth == 0 {
				return i, true
			}
			depth--
		}
		i++
	}
	return len(src), false
}

func readIdentifier(src string, i int) int {
	if i < len(src) && src[i] == '@' {
		i++
	}
	for i < len(src) && isIdentPart(src[i]) {
		i++
	}
	return i
}

// hasWordAt reports whether word starts at i and is not followed by an identifier character.
func hasWordAt(src string, i int, word string) bool {
	if !strings.HasPrefix(src[i:], word) {
		return false
	}
	end := i + len(word)
	return end >= len(src) || !isIdentPart(src[end])
}
