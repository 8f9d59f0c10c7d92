package review

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedEvaluator returns scores in call order.
type scriptedEvaluator struct {
	scores []Eval
	fens   []string
	depths []int
	failAt int
}

func (s *scriptedEvaluator) Evaluate(_ context.Context, fen string, depth int) (Eval, error) {
	i := len(s.fens)
	s.fens = append(s.fens, fen)
	s.depths = append(s.depths, depth)
	if s.failAt > 0 && i == s.failAt {
		return Eval{}, errors.New("engine crashed")
	}
	return s.scores[i], nil
}

func cp(v int) Eval { return Eval{CP: v, Depth: 10} }

func TestReviewJudgements(t *testing.T) {
	ev := &scriptedEvaluator{scores: []Eval{
		cp(20),  // start
		cp(30),  // 1. e4
		cp(90),  // 1... f6 (black loses 60)
		cp(40),  // 2. d4 (white loses 50)
		cp(450), // 2... g5 (black loses 410)
		{CP: 10000, Mate: intp(1)},
	}}
	r := NewReviewer(Config{Evaluator: ev, Depth: 8, Logger: zerolog.Nop()})

	got, err := r.Review(context.Background(), "", []string{"e4", "f6", "d4", "g5", "Qh5#"})
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Len(t, ev.fens, 6)
	for _, d := range ev.depths {
		assert.Equal(t, 8, d)
	}

	assert.Equal(t, JudgementNone, got[0].Judgement)
	assert.Equal(t, JudgementInaccuracy, got[1].Judgement)
	assert.Equal(t, 60, got[1].Loss)
	assert.Equal(t, JudgementInaccuracy, got[2].Judgement)
	assert.Equal(t, JudgementBlunder, got[3].Judgement)
	assert.Equal(t, 410, got[3].Loss)
	assert.Equal(t, 0, got[4].Loss, "gains are not losses")
	assert.Equal(t, "Qh5#", got[4].SAN)
	assert.Equal(t, "d1h5", got[4].UCI)

	text := Annotate(got, "1-0")
	assert.Equal(t,
		"1. e4 {[%eval 0.30]} f6?! {[%eval 0.90]} 2. d4?! {[%eval 0.40]} g5?? {[%eval 4.50]} 3. Qh5# {[%eval #1]} 1-0",
		text)
}

func TestReviewStopsAtIllegalMove(t *testing.T) {
	ev := &scriptedEvaluator{scores: []Eval{cp(0), cp(10), cp(20)}}
	r := NewReviewer(Config{Evaluator: ev, Logger: zerolog.Nop()})
	got, err := r.Review(context.Background(), "", []string{"e4", "e5", "Ke3"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 14, ev.depths[0], "default depth")
}

func TestReviewPropagatesEngineErrors(t *testing.T) {
	ev := &scriptedEvaluator{scores: []Eval{cp(0), cp(10), cp(20)}, failAt: 2}
	r := NewReviewer(Config{Evaluator: ev, Logger: zerolog.Nop()})
	got, err := r.Review(context.Background(), "", []string{"e4", "e5"})
	assert.Error(t, err)
	assert.Len(t, got, 1, "completed plies are returned")
}

func TestAnnotateBlackToMoveStart(t *testing.T) {
	evals := []PlyEval{
		{SAN: "e5", FEN: "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2", Eval: cp(-15)},
		{SAN: "Nf3", FEN: "rnbqkbnr/pppp1ppp/8/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b KQkq - 1 2", Eval: cp(25)},
	}
	assert.Equal(t, "1... e5 {[%eval -0.15]} 2. Nf3 {[%eval 0.25]}", Annotate(evals, ""))
	assert.Equal(t, "*", Annotate(nil, "*"))
}

func TestFormatEval(t *testing.T) {
	assert.Equal(t, "0.00", FormatEval(cp(0)))
	assert.Equal(t, "-1.05", FormatEval(cp(-105)))
	assert.Equal(t, "#-2", FormatEval(Eval{Mate: intp(-2)}))
}

func TestMoverLossClamp(t *testing.T) {
	assert.Equal(t, 1000, moverLoss(10000, 0, true))
	assert.Equal(t, 2000, moverLoss(-1000, 1500, false))
}

func intp(v int) *int { return &v }
