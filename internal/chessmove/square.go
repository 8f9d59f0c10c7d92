package chessmove

import "fmt"

// Square returns the a1=0 index for a zero-based file (a=0) and one-based rank.
func Square(file, rank int) int {
	return (rank-1)*8 + file
}

// File returns the zero-based file of a square (a=0).
func File(sq int) int { return sq % 8 }

// Rank returns the one-based rank of a square.
func Rank(sq int) int { return sq/8 + 1 }

// SquareName renders a square index as "e4". Invalid indices render as "-".
func SquareName(sq int) string {
	if sq < 0 || sq > 63 {
		return "-"
	}
	return string([]byte{byte('a' + File(sq)), byte('1' + sq/8)})
}

// ParseSquare parses "e4" into a square index.
func ParseSquare(name string) (int, error) {
	if len(name) != 2 {
		return 0, fmt.Errorf("square %q: want 2 characters", name)
	}
	file := int(name[0]) - 'a'
	rank := int(name[1]) - '1'
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return 0, fmt.Errorf("square %q out of range", name)
	}
	return rank*8 + file, nil
}
