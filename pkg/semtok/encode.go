package semtok

import (
	"slices"
)

// Sort orders ranges with Compare, keeping the emission order of equal ranges.
func Sort(ranges []SemanticRange) {
	slices.SortStableFunc(ranges, Compare)
}

// Encode sorts ranges and writes them in the LSP relative format, five integers per token. Ranges
// that are empty or that start where the previous token started are left out.
func Encode(ranges []SemanticRange) []uint32 {
	Sort(ranges)

	data := make([]uint32, 0, len(ranges)*5)
	prevLine, prevChar := 0, 0
	first := true
	for _, r := range ranges {
		length := r.EndCharacter - r.StartCharacter
		if r.EndLine != r.StartLine || length <= 0 {
			continue
		}

		deltaLine := r.StartLine - prevLine
		deltaStart := r.StartCharacter
		if deltaLine == 0 {
			deltaStart = r.StartCharacter - prevChar
			if !first && deltaStart == 0 {
				continue
			}
		}

		data = append(data, uint32(deltaLine), uint32(deltaStart), uint32(length), uint32(r.Kind), uint32(r.Modifier))
		prevLine, prevChar = r.StartLine, r.StartCharacter
		first = false
	}
	return data
}

// Decode expands relative LSP token data into absolute tokens. A trailing partial quintuple is
// ignored.
func Decode(data []uint32) []Token {
	tokens := make([]Token, 0, len(data)/5)
	line, char := 0, 0
	for i := 0; i+5 <= len(data); i += 5 {
		deltaLine, deltaStart := int(data[i]), int(data[i+1])
		if deltaLine > 0 {
			line += deltaLine
			char = deltaStart
		} else {
			char += deltaStart
		}
		tokens = append(tokens, Token{
			Line:      line,
			Character: char,
			Length:    int(data[i+2]),
			Type:      int(data[i+3]),
			Modifiers: int(data[i+4]),
		})
	}
	return tokens
}

// EncodeTokens is Encode for tokens that are already absolute and sorted.
func EncodeTokens(tokens []Token) []uint32 {
	ranges := make([]SemanticRange, 0, len(tokens))
	for _, t := range tokens {
		ranges = append(ranges, SemanticRange{
			Kind:           t.Type,
			StartLine:      t.Line,
			StartCharacter: t.Character,
			EndLine:        t.Line,
			EndCharacter:   t.Character + t.Length,
			Modifier:       t.Modifiers,
		})
	}
	return Encode(ranges)
}
