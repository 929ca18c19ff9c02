package tokenizer

import (
	"fmt"
	"strings"
	"unicode"
)

// Display converts raw token text to a rendering-safe label. Invisible
// characters become visible glyphs so a UI can show whitespace and control
// tokens as chips:
//
//	" "        -> ␠        "\n" -> ⏎\n     "\t" -> ⇥\t     "\r" -> ␍\r
//	"   "      -> ␠×3 (whitespace-only runs collapse to a count)
//	U+0007     -> ⟦U+0007⟧ (other control characters)
//
// Printable text passes through untouched, leading spaces replaced
// per-character. The result is presentation-only; concatenation always uses
// the raw text.
func Display(raw string) string {
	if raw == "" {
		return raw
	}

	if isAllWhitespace(raw) {
		runes := []rune(raw)
		spaces := strings.Count(raw, " ")
		if spaces == len(runes) {
			if spaces == 1 {
				return "␠"
			}
			return fmt.Sprintf("␠×%d", spaces)
		}
		return fmt.Sprintf("␠×%d", len(runes))
	}

	var b strings.Builder
	for _, r := range raw {
		switch {
		case r == '\n':
			b.WriteString("⏎\\n")
		case r == '\t':
			b.WriteString("⇥\\t")
		case r == '\r':
			b.WriteString("␍\\r")
		case unicode.IsControl(r):
			fmt.Fprintf(&b, "⟦U+%04X⟧", r)
		case r == ' ':
			b.WriteRune('␠')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAllWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
