package replay

import (
	"strings"
	"testing"

	"github.com/notnil/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var italianPrelude = []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1c4", "f8c5"}

func TestUCIChessComCastling(t *testing.T) {
	tests := []struct {
		name  string
		moves []string
		want  string
	}{
		{"white kingside", append(append([]string{}, italianPrelude...), "e1h1"), "O-O"},
		{"white kingside standard", append(append([]string{}, italianPrelude...), "e1g1"), "O-O"},
		{"black kingside", append(append([]string{}, italianPrelude...), "e1h1", "g8f6", "d2d3", "e8h8"), "O-O"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			san, err := UCI("", tt.moves)
			require.NoError(t, err)
			require.Len(t, san, len(tt.moves))
			assert.Equal(t, tt.want, san[len(san)-1])
		})
	}
}

func TestUCIQueensideCastling(t *testing.T) {
	fen := "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1"
	san, err := UCI(fen, []string{"e1a1", "e8h8"})
	require.NoError(t, err)
	assert.Equal(t, []string{"O-O-O", "O-O"}, san)

	san, err = UCI("r3k2r/8/8/8/8/8/8/R3K2R b KQkq - 0 1", []string{"e8a8"})
	require.NoError(t, err)
	assert.Equal(t, []string{"O-O-O"}, san)
}

func TestTranslateCastlingOnlyForKings(t *testing.T) {
	// A queen on e1 taking on h1 must not be rewritten.
	pos, err := StartPosition("3k4/8/8/8/8/8/8/K3Q2r w - - 0 1")
	require.NoError(t, err)
	assert.Equal(t, "e1h1", TranslateCastling(pos, "e1h1"))

	san, err := UCI("3k4/8/8/8/8/8/8/K3Q2r w - - 0 1", []string{"e1h1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Qxh1"}, san)
}

func TestUCIHaltsOnIllegalMove(t *testing.T) {
	tests := []struct {
		name  string
		moves []string
		want  []string
	}{
		{"empty square", []string{"e2e4", "e7e5", "e3e4", "g1f3"}, []string{"e4", "e5"}},
		{"malformed", []string{"e2e4", "zz", "e7e5"}, []string{"e4"}},
		{"wrong side", []string{"e2e4", "d2d4"}, []string{"e4"}},
		{"illegal first", []string{"e2e5"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			san, err := UCI("", tt.moves)
			require.NoError(t, err)
			assert.Equal(t, tt.want, san)
		})
	}
}

func TestUCIPromotionAndMate(t *testing.T) {
	san, err := UCI("", []string{"e2e4", "e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7"})
	require.NoError(t, err)
	assert.Equal(t, "Qxf7#", san[len(san)-1])

	san, err = UCI("8/P6k/8/8/8/8/8/K7 w - - 0 1", []string{"a7a8n"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a8=N"}, san)
}

func TestUCIBadFEN(t *testing.T) {
	_, err := UCI("not a fen", []string{"e2e4"})
	assert.Error(t, err)
}

func TestUCIPliesCarryFEN(t *testing.T) {
	plies, err := UCIPlies("", []string{"e2e4"})
	require.NoError(t, err)
	require.Len(t, plies, 1)
	assert.Equal(t, "e2e4", plies[0].UCI)
	assert.True(t, strings.HasPrefix(plies[0].FEN, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq"), plies[0].FEN)
}

func TestSAN(t *testing.T) {
	san, err := SAN("", []string{"e4", "e5", "Nf3", "Nc6", "Bb5", "a6", "Bxc6", "dxc6", "O-O", "Qxh7"})
	require.NoError(t, err)
	assert.Equal(t, []string{"e4", "e5", "Nf3", "Nc6", "Bb5", "a6", "Bxc6", "dxc6", "O-O"}, san)

	plies, err := SANPlies("", []string{"e4", "e5", "Nf3"})
	require.NoError(t, err)
	assert.Equal(t, "g1f3", plies[2].UCI)
}

func TestStartPosition(t *testing.T) {
	pos, err := StartPosition("  ")
	require.NoError(t, err)
	assert.Equal(t, chess.White, pos.Turn())
}
