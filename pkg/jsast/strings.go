package jsast

import (
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// stringValue decodes a string literal node into its runtime value.
func stringValue(tsNode sitter.Node, source []byte) string {
	var buf strings.Builder

	for idx := range tsNode.NamedChildCount() {
		child := tsNode.NamedChild(idx)

		switch child.Type() {
		case tsStringFragment:
			buf.WriteString(child.Content(source))
		case tsEscapeSequence:
			buf.WriteString(decodeEscape(child.Content(source)))
		}
	}

	return buf.String()
}

// decodeEscape decodes a single JavaScript escape sequence such as \n, \x41 or
// \u{1F600}. Unknown escapes decode to the escaped character.
func decodeEscape(seq string) string {
	if len(seq) < 2 || seq[0] != '\\' {
		return seq
	}

	body := seq[1:]

	switch body[0] {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case 'b':
		return "\b"
	case 'f':
		return "\f"
	case 'v':
		return "\v"
	case '0':
		if len(body) == 1 {
			return "\x00"
		}
	case '\n', '\r', 0xe2:
		// Line continuation.
		return ""
	case 'x':
		return decodeCodePoint(body[1:], seq)
	case 'u':
		digits := strings.TrimSuffix(strings.TrimPrefix(body[1:], "{"), "}")

		return decodeCodePoint(digits, seq)
	}

	return body
}

func decodeCodePoint(hexDigits, fallback string) string {
	value, err := strconv.ParseUint(hexDigits, 16, 32)
	if err != nil || !utf8.ValidRune(rune(value)) {
		return fallback
	}

	return string(rune(value))
}
