// Package pgnfmt assembles and inspects PGN documents.
package pgnfmt

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Player is one side of a game.
type Player struct {
	Username string `json:"username"`
	Rating   *int   `json:"rating,omitempty"`
}

// DateLayout is the PGN Date tag layout.
const DateLayout = "2006.01.02"

// fixed seven-tag-roster prefix, minus Round which the importers never know
var fixedOrder = []string{"Event", "Site", "Date", "White", "Black", "Result"}

var headerLine = regexp.MustCompile(`^\s*\[(\w+)\s+"((?:[^"\\]|\\.)*)"\]\s*$`)

// Assembler renders PGN documents. Now supplies the Date fallback.
type Assembler struct {
	Now func() time.Time
}

// Assemble renders a PGN document with the package default clock.
func Assemble(headers map[string]string, san []string, white, black *Player) string {
	return Assembler{}.Assemble(headers, san, white, black)
}

// Assemble renders headers in the fixed order Event, Site, Date, White, Black,
// Result, then WhiteElo/BlackElo when a rating is known, then every other
// header sorted by key, followed by the move text and result token.
func (a Assembler) Assemble(headers map[string]string, san []string, white, black *Player) string {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}

	values := map[string]string{
		"Event":  or(headers["Event"], "?"),
		"Site":   or(headers["Site"], "?"),
		"Date":   or(headers["Date"], now().Format(DateLayout)),
		"White":  or(playerName(white), headers["White"], "?"),
		"Black":  or(playerName(black), headers["Black"], "?"),
		"Result": or(headers["Result"], "*"),
	}

	var sb strings.Builder
	for _, k := range fixedOrder {
		writeHeader(&sb, k, values[k])
	}
	if r := rating(white, headers["WhiteElo"]); r != "" {
		writeHeader(&sb, "WhiteElo", r)
	}
	if r := rating(black, headers["BlackElo"]); r != "" {
		writeHeader(&sb, "BlackElo", r)
	}

	extra := make([]string, 0, len(headers))
	for k := range headers {
		if isReserved(k) {
			continue
		}
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, k := range extra {
		writeHeader(&sb, k, headers[k])
	}

	sb.WriteByte('\n')
	sb.WriteString(MoveText(san, values["Result"]))
	sb.WriteByte('\n')
	return sb.String()
}

// MoveText pairs SAN moves as "1. e4 e5 2. Nf3" and appends result when non-empty.
func MoveText(san []string, result string) string {
	parts := make([]string, 0, len(san)+len(san)/2+2)
	for i, mv := range san {
		if i%2 == 0 {
			parts = append(parts, strconv.Itoa(i/2+1)+".")
		}
		parts = append(parts, mv)
	}
	if result != "" {
		parts = append(parts, result)
	}
	return strings.Join(parts, " ")
}

// ParseHeaders extracts [Key "Value"] tag pairs, one per line. Later duplicates win.
func ParseHeaders(pgn string) map[string]string {
	headers := make(map[string]string)
	for _, line := range strings.Split(pgn, "\n") {
		m := headerLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		headers[m[1]] = unescape(m[2])
	}
	return headers
}

// ParseRating parses an Elo tag value. Empty, "?" and "-" mean unknown.
func ParseRating(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" || s == "?" || s == "-" {
		return nil
	}
	r, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &r
}

func isReserved(k string) bool {
	switch k {
	case "Event", "Site", "Date", "White", "Black", "Result", "WhiteElo", "BlackElo":
		return true
	}
	return false
}

func rating(p *Player, header string) string {
	if p != nil && p.Rating != nil {
		return strconv.Itoa(*p.Rating)
	}
	if r := ParseRating(header); r != nil {
		return strconv.Itoa(*r)
	}
	return ""
}

func playerName(p *Player) string {
	if p == nil {
		return ""
	}
	return p.Username
}

func writeHeader(sb *strings.Builder, key, value string) {
	sb.WriteByte('[')
	sb.WriteString(key)
	sb.WriteString(` "`)
	sb.WriteString(escape(value))
	sb.WriteString("\"]\n")
}

func escape(s string) string {
	if !strings.ContainsAny(s, `"\`) {
		return s
	}
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return strings.NewReplacer(`\\`, `\`, `\"`, `"`).Replace(s)
}

func or(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
