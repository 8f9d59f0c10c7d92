// Package replay validates move lists against a rules-aware board and renders SAN.
//
// Replay stops at the first move that does not parse or is not legal in the
// current position; the legal prefix is returned and the rest is dropped.
package replay

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"

	"github.com/freeeve/chessnotes/internal/chessmove"
)

// Chess.com encodes castling as the king capturing its own rook.
var rookCastles = map[string]string{
	"e1h1": "e1g1",
	"e1a1": "e1c1",
	"e8h8": "e8g8",
	"e8a8": "e8c8",
}

// Ply is one replayed half-move.
type Ply struct {
	UCI string // as played, after castling translation
	SAN string
	FEN string // position after the move
}

// StartPosition parses fen, or returns the standard starting position when fen is empty.
func StartPosition(fen string) (*chess.Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return chess.StartingPosition(), nil
	}
	pos := &chess.Position{}
	if err := pos.UnmarshalText([]byte(fen)); err != nil {
		return nil, fmt.Errorf("replay: invalid FEN %q: %w", fen, err)
	}
	return pos, nil
}

// TranslateCastling rewrites king-takes-own-rook castling to the king's destination
// square. Moves by any piece other than a king on the e-file home square are unchanged.
func TranslateCastling(pos *chess.Position, uci string) string {
	std, ok := rookCastles[uci]
	if !ok || pos == nil {
		return uci
	}
	sq, err := chessmove.ParseSquare(uci[:2])
	if err != nil {
		return uci
	}
	if pos.Board().Piece(chess.Square(sq)).Type() != chess.King {
		return uci
	}
	return std
}

// UCI replays coordinate moves from startFEN and returns the SAN of the legal prefix.
func UCI(startFEN string, moves []string) ([]string, error) {
	plies, err := UCIPlies(startFEN, moves)
	if err != nil {
		return nil, err
	}
	return sans(plies), nil
}

// UCIPlies is UCI with the translated move and resulting FEN for every ply.
func UCIPlies(startFEN string, moves []string) ([]Ply, error) {
	pos, err := StartPosition(startFEN)
	if err != nil {
		return nil, err
	}
	plies := make([]Ply, 0, len(moves))
	for _, raw := range moves {
		uci := TranslateCastling(pos, strings.ToLower(strings.TrimSpace(raw)))
		if _, err := chessmove.FromUCI(uci); err != nil {
			break
		}
		mv := findLegal(pos, uci)
		if mv == nil {
			break
		}
		san := chess.AlgebraicNotation{}.Encode(pos, mv)
		pos = pos.Update(mv)
		plies = append(plies, Ply{UCI: uci, SAN: san, FEN: pos.String()})
	}
	return plies, nil
}

// SAN replays algebraic moves from startFEN and returns them in canonical SAN.
func SAN(startFEN string, moves []string) ([]string, error) {
	plies, err := SANPlies(startFEN, moves)
	if err != nil {
		return nil, err
	}
	return sans(plies), nil
}

// SANPlies is SAN with the coordinate move and resulting FEN for every ply.
func SANPlies(startFEN string, moves []string) ([]Ply, error) {
	pos, err := StartPosition(startFEN)
	if err != nil {
		return nil, err
	}
	plies := make([]Ply, 0, len(moves))
	for _, raw := range moves {
		s := strings.TrimSpace(raw)
		if s == "" {
			break
		}
		decoded, err := chess.AlgebraicNotation{}.Decode(pos, s)
		if err != nil {
			break
		}
		mv := findLegal(pos, decoded.String())
		if mv == nil {
			break
		}
		san := chess.AlgebraicNotation{}.Encode(pos, mv)
		uci := mv.String()
		pos = pos.Update(mv)
		plies = append(plies, Ply{UCI: uci, SAN: san, FEN: pos.String()})
	}
	return plies, nil
}

func findLegal(pos *chess.Position, uci string) *chess.Move {
	for _, mv := range pos.ValidMoves() {
		if mv.String() == uci {
			return mv
		}
	}
	return nil
}

func sans(plies []Ply) []string {
	out := make([]string, len(plies))
	for i, p := range plies {
		out[i] = p.SAN
	}
	return out
}
