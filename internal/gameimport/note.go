package gameimport

import (
	"strings"

	"github.com/freeeve/chessnotes/internal/pgnfmt"
)

var titleReplacer = strings.NewReplacer(
	"/", "-", `\`, "-", ":", "-", "*", "-", "?", "", `"`, "", "<", "", ">", "", "|", "-",
	"[", "(", "]", ")", "#", "",
)

// NoteTitle names the note an imported game is saved to, e.g.
// "alice vs bob 2025.07.04". Characters unsafe in file names or wiki-links
// are replaced.
func NoteTitle(rec *GameRecord) string {
	white := orUnknown(rec.White.Username)
	black := orUnknown(rec.Black.Username)
	title := white + " vs " + black
	if d := strings.TrimSpace(rec.Date); d != "" && !strings.Contains(d, "?") {
		title += " " + d
	}
	return strings.TrimSpace(titleReplacer.Replace(title))
}

// RecordFromPGN builds a GameRecord from a PGN document's headers. URL is
// taken from the Site header when it is a web address.
func RecordFromPGN(pgn string) *GameRecord {
	headers := pgnfmt.ParseHeaders(pgn)
	rec := &GameRecord{
		PGN:    pgn,
		White:  pgnfmt.Player{Username: headers["White"], Rating: pgnfmt.ParseRating(headers["WhiteElo"])},
		Black:  pgnfmt.Player{Username: headers["Black"], Rating: pgnfmt.ParseRating(headers["BlackElo"])},
		Date:   headers["Date"],
		Result: headers["Result"],
		Played: playedAt(headers),
	}
	if site := headers["Site"]; strings.HasPrefix(site, "http://") || strings.HasPrefix(site, "https://") {
		rec.URL = site
	}
	return rec
}

// NoteBody renders a note holding the game in a pgn code block.
func NoteBody(rec *GameRecord) string {
	var sb strings.Builder
	sb.WriteString("# " + NoteTitle(rec) + "\n\n")
	if rec.URL != "" {
		sb.WriteString("Source: " + rec.URL + "\n\n")
	}
	sb.WriteString("```pgn\n")
	sb.WriteString(strings.TrimRight(rec.PGN, "\n"))
	sb.WriteString("\n```\n")
	return sb.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
