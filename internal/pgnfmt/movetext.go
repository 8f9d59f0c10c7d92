package pgnfmt

import (
	"regexp"
	"strings"
)

var moveNumber = regexp.MustCompile(`^\d+\.+`)

var resultTokens = map[string]bool{"1-0": true, "0-1": true, "1/2-1/2": true, "*": true}

// SplitMoveText extracts the mainline SAN moves and the result token from a
// PGN document. Tag pairs, comments, variations, NAGs, move numbers and
// !/? annotations are dropped.
func SplitMoveText(pgn string) (san []string, result string) {
	var body strings.Builder
	for _, line := range strings.Split(pgn, "\n") {
		if headerLine.MatchString(line) || strings.HasPrefix(strings.TrimSpace(line), "%") {
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}

	var (
		tok   strings.Builder
		depth int
	)
	flush := func() {
		t := moveNumber.ReplaceAllString(tok.String(), "")
		tok.Reset()
		t = strings.TrimRight(t, "!?")
		switch {
		case t == "", t[0] == '$':
		case resultTokens[t]:
			result = t
		default:
			san = append(san, t)
		}
	}

	text := body.String()
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '{':
			flush()
			if end := strings.IndexByte(text[i:], '}'); end >= 0 {
				i += end
			} else {
				i = len(text)
			}
		case c == ';':
			flush()
			if end := strings.IndexByte(text[i:], '\n'); end >= 0 {
				i += end
			} else {
				i = len(text)
			}
		case c == '(':
			flush()
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
			tok.Reset()
		case depth > 0:
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
		default:
			tok.WriteByte(c)
		}
	}
	flush()
	return san, result
}
