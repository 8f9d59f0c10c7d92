// Package chessmove packs coordinate moves and converts them to and from UCI text.
package chessmove

import "fmt"

// Move encoding (uint32):
//   bits 0-5:   from square (0-63)
//   bits 6-11:  to square (0-63)
//   bits 12-14: promotion piece (0=none, 1=Q, 2=R, 3=B, 4=N)
//   bits 15-31: reserved

const (
	moveFromMask   = 0x3F   // bits 0-5
	moveToMask     = 0xFC0  // bits 6-11
	movePromoMask  = 0x7000 // bits 12-14
	movePromoShift = 12
	moveToShift    = 6
)

// Promotion piece types
const (
	PromoNone   = 0
	PromoQueen  = 1
	PromoRook   = 2
	PromoBishop = 3
	PromoKnight = 4
)

// Move is a packed from/to/promotion triple. Squares use a1=0, b1=1, ..., h8=63.
type Move uint32

// Encode creates a Move from square indices and optional promotion.
// Out-of-range squares yield the zero Move.
func Encode(from, to int, promo byte) Move {
	if from < 0 || from > 63 || to < 0 || to > 63 || promo > PromoKnight {
		return 0
	}
	return Move(uint32(from) | (uint32(to) << moveToShift) | (uint32(promo) << movePromoShift))
}

// From returns the source square index (0-63).
func (m Move) From() int {
	return int(m & moveFromMask)
}

// To returns the destination square index (0-63).
func (m Move) To() int {
	return int((m & moveToMask) >> moveToShift)
}

// Promotion returns the promotion piece (0=none, 1=Q, 2=R, 3=B, 4=N).
func (m Move) Promotion() byte {
	return byte((m & movePromoMask) >> movePromoShift)
}

var promoChars = []byte{'q', 'r', 'b', 'n'}

// PromoChar returns the lowercase UCI letter for a promotion piece, or 0.
func PromoChar(promo byte) byte {
	if promo == PromoNone || promo > PromoKnight {
		return 0
	}
	return promoChars[promo-1]
}

// PromoFromChar maps a UCI promotion letter to a promotion piece.
func PromoFromChar(c byte) (byte, bool) {
	switch c {
	case 'q', 'Q':
		return PromoQueen, true
	case 'r', 'R':
		return PromoRook, true
	case 'b', 'B':
		return PromoBishop, true
	case 'n', 'N':
		return PromoKnight, true
	}
	return PromoNone, false
}

// UCI converts a Move to UCI notation (e.g., "e2e4", "e7e8q").
func (m Move) UCI() string {
	uci := SquareName(m.From()) + SquareName(m.To())
	if c := PromoChar(m.Promotion()); c != 0 {
		uci += string(c)
	}
	return uci
}

func (m Move) String() string { return m.UCI() }

// FromUCI parses a UCI move string into a Move.
// Examples: "e2e4", "e7e8q", "a1h8"
func FromUCI(uci string) (Move, error) {
	if len(uci) != 4 && len(uci) != 5 {
		return 0, fmt.Errorf("UCI move must be 4 or 5 characters: %q", uci)
	}
	from, err := ParseSquare(uci[0:2])
	if err != nil {
		return 0, fmt.Errorf("invalid from square in UCI %q: %w", uci, err)
	}
	to, err := ParseSquare(uci[2:4])
	if err != nil {
		return 0, fmt.Errorf("invalid to square in UCI %q: %w", uci, err)
	}

	var promo byte = PromoNone
	if len(uci) == 5 {
		p, ok := PromoFromChar(uci[4])
		if !ok {
			return 0, fmt.Errorf("invalid promotion piece: %c", uci[4])
		}
		promo = p
	}
	return Encode(from, to, promo), nil
}
