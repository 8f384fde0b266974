package extract

import "strings"

// DecodeContentText pulls readable text out of a PDF content stream by
// collecting the literal strings fed to the text-showing operators
// (Tj/TJ/'/"). Positioning operators that start a new line (Td/TD/T*)
// become newlines so downstream heuristics can reason about lines.
func DecodeContentText(content []byte) string {
	var (
		b       strings.Builder
		i       = 0
		n       = len(content)
		lastOp  string
		pending strings.Builder
	)

	flush := func() {
		if pending.Len() == 0 {
			return
		}
		b.WriteString(pending.String())
		pending.Reset()
	}

	for i < n {
		c := content[i]
		switch c {
		case '(':
			str, next := readLiteralString(content, i)
			pending.WriteString(str)
			i = next
			continue
		case 'T':
			if i+1 < n {
				lastOp = string(content[i : i+2])
				switch lastOp {
				case "Tj", "TJ":
					flush()
					b.WriteByte(' ')
				case "Td", "TD", "T*":
					flush()
					b.WriteByte('\n')
				}
				i += 2
				continue
			}
		case '\'', '"':
			flush()
			b.WriteByte('\n')
		}
		i++
	}
	flush()

	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, " ")
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// readLiteralString consumes a PDF literal string starting at the opening
// parenthesis, honoring escapes and balanced nested parentheses, and
// returns the decoded text plus the index after the closing parenthesis.
func readLiteralString(content []byte, start int) (string, int) {
	var (
		b     strings.Builder
		depth = 0
		i     = start
	)
	for i < len(content) {
		c := content[i]
		switch c {
		case '\\':
			if i+1 < len(content) {
				b.WriteString(unescape(content[i+1]))
				i += 2
				continue
			}
		case '(':
			depth++
			if depth > 1 {
				b.WriteByte(c)
			}
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
		i++
	}
	return b.String(), i
}

func unescape(c byte) string {
	switch c {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r', 'b', 'f':
		return ""
	case '(', ')', '\\':
		return string(c)
	default:
		return string(c)
	}
}
