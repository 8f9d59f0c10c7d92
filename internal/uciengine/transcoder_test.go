package uciengine

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInfo(t *testing.T) {
	mate := func(n int) *int { return &n }
	tests := []struct {
		name   string
		line   string
		wantOK bool
		want   Info
	}{
		{
			name:   "cp with multipv",
			line:   "info depth 10 seldepth 14 multipv 2 score cp 35 nodes 12000 nps 600000 time 20 pv e2e4 e7e5",
			wantOK: true,
			want: Info{Depth: 10, SelDepth: 14, MultiPV: 2, Score: 35, HasScore: true,
				Nodes: 12000, NPS: 600000, TimeMS: 20, PV: []string{"e2e4", "e7e5"}},
		},
		{
			name:   "negative cp defaults multipv",
			line:   "info depth 3 score cp -120 pv g8f6",
			wantOK: true,
			want:   Info{Depth: 3, MultiPV: 1, Score: -120, HasScore: true, PV: []string{"g8f6"}},
		},
		{
			name:   "mate for",
			line:   "info depth 22 score mate 4 pv h5f7",
			wantOK: true,
			want:   Info{Depth: 22, MultiPV: 1, Score: MateScore, Mate: mate(4), HasScore: true, PV: []string{"h5f7"}},
		},
		{
			name:   "mate against",
			line:   "info depth 22 score mate -2 pv a2a3",
			wantOK: true,
			want:   Info{Depth: 22, MultiPV: 1, Score: -MateScore, Mate: mate(-2), HasScore: true, PV: []string{"a2a3"}},
		},
		{
			name:   "bound",
			line:   "info depth 9 score cp 50 lowerbound pv d2d4",
			wantOK: true,
			want:   Info{Depth: 9, MultiPV: 1, Score: 50, HasScore: true, Bound: "lowerbound", PV: []string{"d2d4"}},
		},
		{
			name:   "no pv",
			line:   "info depth 5 currmove e2e4 currmovenumber 1",
			wantOK: true,
			want:   Info{Depth: 5, MultiPV: 1},
		},
		{name: "info string", line: "info string NNUE evaluation enabled"},
		{name: "bestmove", line: "bestmove e2e4"},
		{name: "currmove only", line: "info currmove e2e4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseInfo(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseBestMove(t *testing.T) {
	m, ok := ParseBestMove("bestmove e2e4 ponder e7e5")
	assert.True(t, ok)
	assert.Equal(t, "e2e4", m)

	m, ok = ParseBestMove("bestmove (none)")
	assert.True(t, ok)
	assert.Empty(t, m)

	_, ok = ParseBestMove("info depth 1")
	assert.False(t, ok)
}

func TestClampMultiPV(t *testing.T) {
	for in, want := range map[int]int{-1: 1, 0: 1, 1: 1, 3: 3, 5: 5, 6: 5, 100: 5} {
		assert.Equal(t, want, ClampMultiPV(in), "in=%d", in)
	}
}

func TestWhitePOV(t *testing.T) {
	m := -3
	a := Analysis{
		FEN:   "8/8/8/8/8/8/8/K6k b - - 0 1",
		Score: -250,
		Mate:  &m,
		Lines: []Line{{MultiPV: 1, Score: -250, Mate: &m}, {MultiPV: 2, Score: 40}},
	}
	w := a.WhitePOV()
	assert.Equal(t, 250, w.Score)
	require.NotNil(t, w.Mate)
	assert.Equal(t, 3, *w.Mate)
	assert.Equal(t, 250, w.Lines[0].Score)
	assert.Equal(t, -40, w.Lines[1].Score)
	assert.Equal(t, -3, *a.Mate, "original untouched")

	a.FEN = startFEN
	assert.Equal(t, -250, a.WhitePOV().Score)
}

func TestAccumulatorSkipsMissingLines(t *testing.T) {
	acc := newAccumulator(1, startFEN, 3)
	acc.apply(Info{Depth: 4, MultiPV: 3, Score: 5, PV: []string{"a2a3"}})
	acc.apply(Info{Depth: 4, MultiPV: 1, Score: 9, PV: []string{"e2e4"}})
	acc.apply(Info{Depth: 5, MultiPV: 1})
	a := acc.finish("e2e4")
	require.Len(t, a.Lines, 2)
	assert.Equal(t, 1, a.Lines[0].MultiPV)
	assert.Equal(t, 3, a.Lines[1].MultiPV)
	assert.Equal(t, 5, a.Depth, "depth follows every info line")
	assert.Equal(t, 9, a.Score)
}

func TestExecLauncherRoundTrip(t *testing.T) {
	path, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not available")
	}
	p, err := ExecLauncher{Path: path}.Launch()
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Send("uciok"))
	select {
	case line := <-p.Lines():
		assert.Equal(t, "uciok", line)
	case <-time.After(5 * time.Second):
		t.Fatal("no echo from process")
	}

	_, err = ExecLauncher{}.Launch()
	assert.Error(t, err)
}
