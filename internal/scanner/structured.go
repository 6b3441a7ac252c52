package scanner

import (
	"strings"
	"unicode"
)

// match is one derive attribute located by the structured tier.
type match struct {
	line    int
	derives []string
}

// scanStructured walks source text with full awareness of comments, string
// literals, and attribute brackets, and returns every derive attribute
// attached to a struct, enum, or union declaration. The walk is single-pass
// and never recurses, so input shape cannot overflow the stack.
func scanStructured(src string) []match {
	var (
		matches []match
		pending []match // derive attrs awaiting their item keyword
		line    = 1
		i       = 0
	)

	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++

		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			var nl int
			i, nl = skipBlockComment(src, i)
			line += nl

		case c == '"':
			var nl int
			i, nl = skipString(src, i)
			line += nl

		case c == '\'':
			var nl int
			i, nl = skipCharOrLifetime(src, i)
			line += nl

		case c == '#':
			j := i + 1
			inner := false
			if j < len(src) && src[j] == '!' {
				inner = true
				j++
			}
			if j < len(src) && src[j] == '[' {
				attrLine := line
				body, next, nl := captureBracketed(src, j+1)
				line += nl
				i = next
				// Inner attributes cannot carry derives.
				if !inner {
					if derives := parseDeriveArgs(body); len(derives) > 0 {
						pending = append(pending, match{line: attrLine, derives: derives})
					}
				}
				continue
			}
			i++

		case isIdentStart(c):
			word, next := readWord(src, i)

			// Raw and byte string literals start with an identifier-like
			// prefix and must be skipped as opaque text.
			if (word == "r" || word == "br") && next < len(src) && (src[next] == '"' || src[next] == '#') {
				if end, nl, ok := skipRawString(src, next); ok {
					line += nl
					i = end
					continue
				}
			}
			if word == "b" && next < len(src) && src[next] == '"' {
				var nl int
				next, nl = skipString(src, next)
				line += nl
				i = next
				continue
			}

			i = next
			switch word {
			case "struct", "enum", "union":
				matches = append(matches, pending...)
				pending = pending[:0]
			case "pub", "crate", "super", "self", "in":
				// Visibility modifiers sit between attributes and the
				// item keyword; pending derives stay attached.
			default:
				pending = pending[:0]
			}

		case c == ';' || c == '{' || c == '}':
			pending = pending[:0]
			i++

		default:
			i++
		}
	}

	return matches
}

// captureBracketed consumes an attribute body starting just past the opening
// bracket, balancing nested brackets and treating string literals as opaque.
// Returns the body text, the position past the closing bracket, and the
// number of newlines consumed.
func captureBracketed(src string, start int) (body string, next int, newlines int) {
	depth := 1
	i := start
	for i < len(src) {
		switch src[i] {
		case '[':
			depth++
			i++
		case ']':
			depth--
			if depth == 0 {
				return src[start:i], i + 1, newlines
			}
			i++
		case '"':
			var nl int
			i, nl = skipString(src, i)
			newlines += nl
		case '\n':
			newlines++
			i++
		default:
			i++
		}
	}
	return src[start:i], i, newlines
}

// parseDeriveArgs extracts the identifier list from an attribute body of the
// form "derive(...)". Tokens with characters outside alphanumerics,
// underscore, and path separators are dropped.
func parseDeriveArgs(body string) []string {
	rest, ok := strings.CutPrefix(strings.TrimSpace(body), "derive")
	if !ok {
		return nil
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return nil
	}

	return splitDeriveList(rest[1:len(rest)-1], true)
}

// splitDeriveList splits an argument list on commas, trims each token, and
// drops empties. With filter set, tokens containing characters outside the
// identifier-path charset are dropped as well.
func splitDeriveList(args string, filter bool) []string {
	var derives []string
	for _, raw := range strings.Split(args, ",") {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}
		if filter && !isDeriveToken(token) {
			continue
		}
		derives = append(derives, token)
	}
	return derives
}

func isDeriveToken(token string) bool {
	for _, r := range token {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != ':' {
			return false
		}
	}
	return true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func readWord(src string, i int) (word string, next int) {
	start := i
	for i < len(src) && isIdentByte(src[i]) {
		i++
	}
	return src[start:i], i
}

// skipString consumes a double-quoted literal starting at the opening quote,
// honoring backslash escapes.
func skipString(src string, i int) (next int, newlines int) {
	i++
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
			continue
		case '\n':
			newlines++
		case '"':
			return i + 1, newlines
		}
		i++
	}
	return i, newlines
}

// skipRawString consumes a raw string literal given the position of its hash
// or quote delimiter. Reports ok=false when the text is a raw identifier
// rather than a raw string.
func skipRawString(src string, i int) (next int, newlines int, ok bool) {
	hashes := 0
	for i < len(src) && src[i] == '#' {
		hashes++
		i++
	}
	if i >= len(src) || src[i] != '"' {
		return 0, 0, false
	}
	i++

	terminator := `"` + strings.Repeat("#", hashes)
	end := strings.Index(src[i:], terminator)
	if end < 0 {
		return len(src), strings.Count(src[i:], "\n"), true
	}
	consumed := src[i : i+end]
	return i + end + len(terminator), strings.Count(consumed, "\n"), true
}

// skipBlockComment consumes a possibly nested block comment.
func skipBlockComment(src string, i int) (next int, newlines int) {
	depth := 1
	i += 2
	for i < len(src) && depth > 0 {
		switch {
		case src[i] == '/' && i+1 < len(src) && src[i+1] == '*':
			depth++
			i += 2
		case src[i] == '*' && i+1 < len(src) && src[i+1] == '/':
			depth--
			i += 2
		default:
			if src[i] == '\n' {
				newlines++
			}
			i++
		}
	}
	return i, newlines
}

// skipCharOrLifetime distinguishes character literals from lifetime markers
// at a single quote. Lifetimes consume only the quote; their identifier text
// flows back into the normal scan.
func skipCharOrLifetime(src string, i int) (next int, newlines int) {
	if i+1 >= len(src) {
		return i + 1, 0
	}

	if src[i+1] == '\\' {
		j := i + 2
		nl := 0
		for j < len(src) && src[j] != '\'' {
			if src[j] == '\n' {
				nl++
			}
			j++
		}
		return j + 1, nl
	}

	if i+2 < len(src) && src[i+2] == '\'' && src[i+1] != '\'' {
		nl := 0
		if src[i+1] == '\n' {
			nl++
		}
		return i + 3, nl
	}

	return i + 1, 0
}
