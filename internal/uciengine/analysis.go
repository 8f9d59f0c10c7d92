package uciengine

import "strings"

// Line is one MultiPV variation.
type Line struct {
	MultiPV int      `json:"multipv"`
	Score   int      `json:"score"`
	Mate    *int     `json:"mate"`
	PV      []string `json:"pv"`
}

// Analysis is the result of one search. Scores are from the side to move
// until WhitePOV is applied.
type Analysis struct {
	ID       uint64   `json:"id"`
	FEN      string   `json:"fen"`
	Score    int      `json:"score"`
	Mate     *int     `json:"mate"`
	BestMove string   `json:"bestMove"`
	PV       []string `json:"pv"`
	Depth    int      `json:"depth"`
	Lines    []Line   `json:"lines"`
}

// WhitePOV returns a copy with scores from White's perspective.
func (a Analysis) WhitePOV() Analysis {
	out := a.clone()
	if WhiteToMove(a.FEN) {
		return out
	}
	out.Score = -out.Score
	out.Mate = negate(out.Mate)
	for i := range out.Lines {
		out.Lines[i].Score = -out.Lines[i].Score
		out.Lines[i].Mate = negate(out.Lines[i].Mate)
	}
	return out
}

// WhiteToMove reads the side-to-move field of a FEN. Unparseable input counts as White.
func WhiteToMove(fen string) bool {
	f := strings.Fields(fen)
	return len(f) < 2 || f[1] != "b"
}

func (a Analysis) clone() Analysis {
	out := a
	out.Mate = copyInt(a.Mate)
	out.PV = append([]string(nil), a.PV...)
	out.Lines = make([]Line, len(a.Lines))
	for i, l := range a.Lines {
		l.Mate = copyInt(l.Mate)
		l.PV = append([]string(nil), l.PV...)
		out.Lines[i] = l
	}
	return out
}

func negate(p *int) *int {
	if p == nil {
		return nil
	}
	v := -*p
	return &v
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// accumulator collects one search's output until bestmove.
type accumulator struct {
	multiPV int
	top     Analysis
	lines   map[int]Line
}

func newAccumulator(id uint64, fen string, multiPV int) *accumulator {
	return &accumulator{
		multiPV: multiPV,
		top:     Analysis{ID: id, FEN: fen},
		lines:   make(map[int]Line, multiPV),
	}
}

// apply folds an info line in and reports whether a variation was stored.
// Depth tracks every info line; lines without a PV are not stored.
func (acc *accumulator) apply(info Info) bool {
	acc.top.Depth = info.Depth
	if len(info.PV) == 0 {
		return false
	}
	l := Line{MultiPV: info.MultiPV, Score: info.Score, Mate: info.Mate, PV: info.PV}
	acc.lines[info.MultiPV] = l
	if info.MultiPV == 1 {
		acc.top.Score = l.Score
		acc.top.Mate = l.Mate
		acc.top.PV = l.PV
	}
	return true
}

// snapshot returns the current state with lines 1..multiPV in order.
func (acc *accumulator) snapshot() Analysis {
	a := acc.top
	a.Lines = make([]Line, 0, acc.multiPV)
	for i := 1; i <= acc.multiPV; i++ {
		if l, ok := acc.lines[i]; ok {
			a.Lines = append(a.Lines, l)
		}
	}
	return a.clone()
}

func (acc *accumulator) finish(bestMove string) Analysis {
	acc.top.BestMove = bestMove
	return acc.snapshot()
}
