/*
Semantic Ranges:
---------------
A SemanticRange is one classified run of text on a single line of the Razor document.

	+-----------+     +----------------------+
	| Kind      | --> | index into Legend    |
	| Modifier  | --> | bitset of modifiers  |
	| FromRazor | --> | wins ties            |
	+-----------+     +----------------------+

Ranges produced by walking the Razor tree carry FromRazor=true. Ranges the C# service produced
and that were mapped back carry FromRazor=false. When both start at the same place the Razor
range sorts first, so the encoder keeps it and drops the C# one.
*/
package semtok

import (
	"cmp"
	"fmt"
)

type SemanticRange struct {
	Kind           int
	StartLine      int
	StartCharacter int
	EndLine        int
	EndCharacter   int
	Modifier       int

	FromRazor          bool
	IsCSharpWhitespace bool
}

func (r SemanticRange) String() string {
	src := "csharp"
	if r.FromRazor {
		src = "razor"
	}
	return fmt.Sprintf("%d:%d-%d:%d kind=%d mod=%d %s", r.StartLine, r.StartCharacter, r.EndLine, r.EndCharacter, r.Kind, r.Modifier, src)
}

// Compare orders ranges by start position, Razor ranges first on equal starts. Nothing else takes
// part in the ordering.
func Compare(a, b SemanticRange) int {
	switch {
	case a.StartLine != b.StartLine:
		return cmp.Compare(a.StartLine, b.StartLine)
	case a.StartCharacter != b.StartCharacter:
		return cmp.Compare(a.StartCharacter, b.StartCharacter)
	case a.FromRazor == b.FromRazor:
		return 0
	case a.FromRazor:
		return -1
	default:
		return 1
	}
}

// Token is a decoded LSP semantic token in absolute coordinates.
type Token struct {
	Line      int
	Character int
	Length    int
	Type      int
	Modifiers int
}
