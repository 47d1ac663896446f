package telegram

import (
	"strings"
	"unicode/utf8"
)

// markdownV2Specials holds every character Telegram MarkdownV2 requires
// a backslash escape for.
const markdownV2Specials = "_*[]()~`>#+-=|{}.!"

// EscapeMarkdownV2 escapes all special characters for Telegram MarkdownV2.
// Special chars: _ * [ ] ( ) ~ ` > # + - = | { } . !
func EscapeMarkdownV2(text string) string {
	var out strings.Builder
	out.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(markdownV2Specials, r) {
			out.WriteByte('\\')
		}
		out.WriteRune(r)
	}
	return out.String()
}

// FormatMarkdownV2 converts standard markdown, the dialect the agent
// writes, to Telegram MarkdownV2. It preserves **bold**, `code`, and
// ```code blocks```, and escapes everything else.
func FormatMarkdownV2(text string) string {
	lines := strings.Split(text, "\n")
	fenced := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			fenced = !fenced
			continue
		}
		if !fenced {
			lines[i] = formatLine(line)
		}
	}
	return strings.Join(lines, "\n")
}

// formatLine converts a single line outside any code fence. Delimiters
// are ASCII, so byte indexing is safe; only the escape step needs to
// decode runes.
func formatLine(line string) string {
	var out strings.Builder
	i := 0
	for i < len(line) {
		switch {
		// Inline code passes through unescaped, backticks included.
		case line[i] == '`':
			if off := strings.IndexByte(line[i+1:], '`'); off >= 0 {
				out.WriteString(line[i : i+off+2])
				i += off + 2
				continue
			}

		// **text** becomes *text*; Telegram bolds with single asterisks.
		case strings.HasPrefix(line[i:], "**"):
			if off := strings.Index(line[i+2:], "**"); off >= 0 {
				out.WriteByte('*')
				out.WriteString(EscapeMarkdownV2(line[i+2 : i+2+off]))
				out.WriteByte('*')
				i += off + 4
				continue
			}

		// __text__ stays double underscore (Telegram underline).
		case strings.HasPrefix(line[i:], "__"):
			if off := strings.Index(line[i+2:], "__"); off >= 0 {
				out.WriteString("__")
				out.WriteString(EscapeMarkdownV2(line[i+2 : i+2+off]))
				out.WriteString("__")
				i += off + 4
				continue
			}
		}

		// Unclosed delimiters land here and are escaped as literals.
		_, size := utf8.DecodeRuneInString(line[i:])
		out.WriteString(EscapeMarkdownV2(line[i : i+size]))
		i += size
	}
	return out.String()
}
