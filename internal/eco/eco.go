// Package eco classifies openings against an ECO (Encyclopedia of Chess Openings) table.
package eco

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/freeeve/pgn/v3"
)

// Opening represents an ECO opening classification.
type Opening struct {
	ECO  string `json:"eco"`
	Name string `json:"name"`
	Ply  int    `json:"ply"`
}

// Database holds ECO opening data indexed by position.
type Database struct {
	byPosition map[pgn.PackedPosition]Opening
	maxPly     int
}

// NewDatabase creates an empty ECO database.
func NewDatabase() *Database {
	return &Database{
		byPosition: make(map[pgn.PackedPosition]Opening),
	}
}

// moveNumberRegex matches move numbers like "1." or "12..."
var moveNumberRegex = regexp.MustCompile(`\d+\.+\s*`)

// LoadDir loads all .tsv files from a directory.
func (db *Database) LoadDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.tsv"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .tsv files found in %s", dir)
	}

	for _, file := range files {
		if err := db.LoadFile(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// LoadFile loads a single TSV file of eco\tname\tpgn rows.
func (db *Database) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if lineNum == 1 && strings.HasPrefix(line, "eco\t") {
			continue
		}

		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		db.Add(parts[0], parts[1], SplitMoves(parts[2]))
	}
	return scanner.Err()
}

// Add registers an opening reached by the SAN sequence. Sequences that do not
// replay are ignored. Returns true when the opening was stored.
func (db *Database) Add(code, name string, san []string) bool {
	pos := pgn.NewStartingPosition()
	if err := applyMoves(pos, san); err != nil {
		return false
	}
	db.byPosition[pos.Pack()] = Opening{ECO: code, Name: name, Ply: len(san)}
	if len(san) > db.maxPly {
		db.maxPly = len(san)
	}
	return true
}

// SplitMoves turns "1. e4 e5 2. Nf3" into SAN tokens, dropping annotations.
func SplitMoves(moveText string) []string {
	cleaned := moveNumberRegex.ReplaceAllString(moveText, "")
	var out []string
	for _, san := range strings.Fields(cleaned) {
		if san[0] == '$' || san[0] == '{' {
			continue
		}
		out = append(out, san)
	}
	return out
}

func applyMoves(pos *pgn.GameState, san []string) error {
	for _, s := range san {
		s = strings.TrimRight(s, "+#!?")
		mv, err := pgn.ParseSAN(pos, s)
		if err != nil {
			return fmt.Errorf("parse %q: %w", s, err)
		}
		if err := pgn.ApplyMove(pos, mv); err != nil {
			return fmt.Errorf("apply %q: %w", s, err)
		}
	}
	return nil
}

// Lookup returns the ECO opening for a position, or nil if not found.
func (db *Database) Lookup(pos pgn.PackedPosition) *Opening {
	if o, ok := db.byPosition[pos]; ok {
		return &o
	}
	return nil
}

// LookupGameState returns the ECO opening for a GameState.
func (db *Database) LookupGameState(gs *pgn.GameState) *Opening {
	return db.Lookup(gs.Pack())
}

// Classify replays a game's SAN moves and returns the opening of the deepest
// classified position along the way. Positions are matched regardless of move
// order, so transpositions classify too. Returns nil when nothing matches.
func (db *Database) Classify(san []string) *Opening {
	if db == nil || len(db.byPosition) == 0 {
		return nil
	}
	pos := pgn.NewStartingPosition()
	var best *Opening
	for i, s := range san {
		// No table entry is deeper than maxPly; stop replaying past it.
		if i >= db.maxPly {
			break
		}
		mv, err := pgn.ParseSAN(pos, strings.TrimRight(s, "+#!?"))
		if err != nil {
			break
		}
		if err := pgn.ApplyMove(pos, mv); err != nil {
			break
		}
		if o := db.LookupGameState(pos); o != nil {
			best = o
		}
	}
	return best
}

// Count returns the number of openings loaded.
func (db *Database) Count() int {
	return len(db.byPosition)
}
