package tcn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlphabetIsUnique(t *testing.T) {
	seen := map[rune]bool{}
	for _, r := range Alphabet {
		require.False(t, seen[r], "duplicate symbol %q", r)
		seen[r] = true
	}
	assert.Len(t, boardSymbols, 64)
}

func TestIndexToSquare(t *testing.T) {
	tests := []struct {
		idx  int
		want string
	}{
		{0, "a8"},
		{7, "h8"},
		{8, "a7"},
		{52, "e2"},
		{56, "a1"},
		{63, "h1"},
	}
	for _, tt := range tests {
		sq := IndexToSquare(tt.idx)
		assert.Equal(t, tt.want, squareName(sq), "index %d", tt.idx)
		assert.Equal(t, tt.idx, SquareToIndex(sq))
	}
}

func TestDecodeOpening(t *testing.T) {
	got := Decode("0KmC!Tbs")
	assert.Equal(t, []string{"e2e4", "e7e5", "g1f3", "b8c6"}, got)
}

func TestDecodeSkipsUnrecognizedPairs(t *testing.T) {
	// " K" has an unknown first symbol, "m\x00" an unknown second one.
	got := Decode("0K K" + "m\x00" + "mC" + "!")
	assert.Equal(t, []string{"e2e4", "e7e5"}, got)
}

func TestDecodeEmpty(t *testing.T) {
	assert.Empty(t, Decode(""))
	assert.Empty(t, Decode("a"))
}

func TestPromotionTiers(t *testing.T) {
	a7 := 8 // a7 in board-index numbering
	tests := []struct {
		offset int
		want   string
	}{
		{0, "a7a8q"},
		{7, "a7h8q"},
		{8, "a7a8n"},
		{15, "a7h8n"},
		{16, "a7a8b"},
		{24, "a7a8r"},
		{31, "a7h8r"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			m, ok := decodePair(a7, promoBase+tt.offset)
			require.True(t, ok)
			assert.Equal(t, tt.want, m.UCI())
		})
	}

	_, ok := decodePair(a7, promoBase+32)
	assert.False(t, ok, "offsets past the rook tier are not promotions")
}

func TestPromotionRankInference(t *testing.T) {
	b2 := 49
	m, ok := decodePair(b2, promoBase+16+1)
	require.True(t, ok)
	assert.Equal(t, "b2b1b", m.UCI())

	// A source outside rank 7 always lands on rank 1.
	e4 := 36
	m, ok = decodePair(e4, promoBase+4)
	require.True(t, ok)
	assert.Equal(t, "e4e1q", m.UCI())
}

func TestPromotionSymbols(t *testing.T) {
	got := Decode("i{" + "p&" + "X*")
	assert.Equal(t, []string{"a7a8q", "h7h8n", "b2b1b"}, got)
}

func TestEncodeRoundTrip(t *testing.T) {
	game := []string{
		"e2e4", "d7d5", "e4d5", "g8f6", "d2d4", "f6d5",
		"c2c4", "d5b6", "g1f3", "c8g4", "a7a8q", "h2h1n", "c7c8b", "f2f1r",
	}
	enc, err := Encode(game)
	require.NoError(t, err)
	assert.Len(t, enc, len(game)*2)
	assert.Equal(t, game, Decode(enc))
}

func TestEncodeErrors(t *testing.T) {
	_, err := Encode([]string{"e2e4x"})
	assert.Error(t, err)

	_, err = Encode([]string{"e5e6q"})
	assert.Error(t, err, "promotion to a non-terminal rank")

	// Rook promotions on the g and h files fall outside the symbol table.
	_, err = Encode([]string{"g7g8r"})
	assert.Error(t, err)
}

func squareName(sq int) string {
	return string([]byte{byte('a' + sq%8), byte('1' + sq/8)})
}
