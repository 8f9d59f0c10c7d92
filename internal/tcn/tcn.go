// Package tcn decodes Chess.com's two-character move notation into UCI moves.
//
// Every move is a pair of symbols. The first symbol is a board index and the
// second is either a board index or, for promotions, an index in the 64-95
// band that carries the destination file and the promoted piece.
package tcn

import (
	"fmt"
	"strings"

	"github.com/freeeve/chessnotes/internal/chessmove"
)

const (
	boardSymbols = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!?"
	promoSymbols = "{~}(^)[_]@#$,./&-*+=<>:;%|'\"\\`"

	// Alphabet is the full symbol table; a symbol's position is its index.
	Alphabet = boardSymbols + promoSymbols

	promoBase = 64
	tierWidth = 8
)

// promotion tiers in band order
var tiers = [4]byte{chessmove.PromoQueen, chessmove.PromoKnight, chessmove.PromoBishop, chessmove.PromoRook}

var symbolIndex = func() [256]int16 {
	var idx [256]int16
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		idx[Alphabet[i]] = int16(i)
	}
	return idx
}()

func indexOf(c byte) (int, bool) {
	i := symbolIndex[c]
	return int(i), i >= 0
}

// IndexToSquare maps a board index to a square (a1=0 numbering).
// Index 0 is a8 and 63 is h1: file = i%8, rank = 8 - i/8.
func IndexToSquare(i int) int {
	return chessmove.Square(i%8, 8-i/8)
}

// SquareToIndex is the inverse of IndexToSquare.
func SquareToIndex(sq int) int {
	return (8-chessmove.Rank(sq))*8 + chessmove.File(sq)
}

// Decode converts a TCN string into UCI moves. Pairs containing an
// unrecognized symbol are skipped; a trailing odd symbol is ignored.
func Decode(tcn string) []string {
	moves := make([]string, 0, len(tcn)/2)
	for i := 0; i+1 < len(tcn); i += 2 {
		a, ok := indexOf(tcn[i])
		if !ok {
			continue
		}
		b, ok := indexOf(tcn[i+1])
		if !ok {
			continue
		}
		m, ok := decodePair(a, b)
		if !ok {
			continue
		}
		moves = append(moves, m.UCI())
	}
	return moves
}

func decodePair(a, b int) (chessmove.Move, bool) {
	if a < 0 || a >= promoBase || b < 0 {
		return 0, false
	}
	from := IndexToSquare(a)
	if b < promoBase {
		return chessmove.Encode(from, IndexToSquare(b), chessmove.PromoNone), true
	}

	off := b - promoBase
	tier := off / tierWidth
	if tier >= len(tiers) {
		return 0, false
	}
	// Only the 7th->8th and 2nd->1st pushes promote, so the source rank picks the target rank.
	rank := 1
	if chessmove.Rank(from) == 7 {
		rank = 8
	}
	to := chessmove.Square(off%tierWidth, rank)
	return chessmove.Encode(from, to, tiers[tier]), true
}

// Encode is the inverse of Decode for moves the notation can express.
func Encode(uciMoves []string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(uciMoves) * 2)
	for _, s := range uciMoves {
		m, err := chessmove.FromUCI(s)
		if err != nil {
			return "", err
		}
		sb.WriteByte(Alphabet[SquareToIndex(m.From())])

		promo := m.Promotion()
		if promo == chessmove.PromoNone {
			sb.WriteByte(Alphabet[SquareToIndex(m.To())])
			continue
		}

		wantRank := 1
		if chessmove.Rank(m.From()) == 7 {
			wantRank = 8
		}
		if chessmove.Rank(m.To()) != wantRank {
			return "", fmt.Errorf("tcn: promotion %s does not land on rank %d", s, wantRank)
		}
		tier := -1
		for i, p := range tiers {
			if p == promo {
				tier = i
			}
		}
		idx := promoBase + tier*tierWidth + chessmove.File(m.To())
		if tier < 0 || idx >= len(Alphabet) {
			return "", fmt.Errorf("tcn: no symbol for promotion %s", s)
		}
		sb.WriteByte(Alphabet[idx])
	}
	return sb.String(), nil
}
