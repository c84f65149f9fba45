package interpreter

import (
	"strings"
	"unicode"
)

// Tokenize splits an expression into raw tokens.
//
// Whitespace separates tokens outside quotes. Quoted spans ('...', "..." or
// `...`) are kept verbatim with their delimiters. Parentheses and braces are
// tokens of their own. A '[' starts an index or array literal that runs to
// its matching ']' and is kept whole, nested brackets included.
func Tokenize(expr string) []string {
	var (
		tokens []string
		buf    strings.Builder
	)
	flush := func() {
		if buf.Len() > 0 {
			tokens = append(tokens, buf.String())
			buf.Reset()
		}
	}

	runes := []rune(expr)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case isQuote(r):
			end := closingQuote(runes, i)
			buf.WriteString(string(runes[i : end+1]))
			i = end
		case r == '[':
			flush()
			end := closingBracket(runes, i)
			tokens = append(tokens, string(runes[i:end+1]))
			i = end
		case r == '(' || r == ')' || r == '{' || r == '}':
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsSpace(r):
			flush()
		default:
			buf.WriteRune(r)
		}
	}
	flush()

	return tokens
}

func isQuote(r rune) bool {
	return r == '\'' || r == '"' || r == '`'
}

// closingQuote returns the index of the quote closing the one at start,
// or the last index when it is unterminated.
func closingQuote(runes []rune, start int) int {
	for j := start + 1; j < len(runes); j++ {
		if runes[j] == runes[start] {
			return j
		}
	}
	return len(runes) - 1
}

func closingBracket(runes []rune, start int) int {
	depth := 0
	for j := start; j < len(runes); j++ {
		switch r := runes[j]; {
		case isQuote(r):
			j = closingQuote(runes, j)
		case r == '[':
			depth++
		case r == ']':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return len(runes) - 1
}
