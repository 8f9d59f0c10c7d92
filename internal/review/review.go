// Package review evaluates every position of a game and annotates its PGN
// move text with engine evaluations.
package review

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/chessnotes/internal/replay"
)

// Judgement thresholds, in centipawns lost by the mover.
const (
	InaccuracyCP = 50
	MistakeCP    = 100
	BlunderCP    = 300

	// evaluations are clamped here before computing loss so mates don't dominate
	lossCap = 1000
)

// Judgement classifies a move by how much evaluation it gave away.
type Judgement string

const (
	JudgementNone       Judgement = ""
	JudgementInaccuracy Judgement = "inaccuracy"
	JudgementMistake    Judgement = "mistake"
	JudgementBlunder    Judgement = "blunder"
)

// Suffix returns the PGN move suffix annotation.
func (j Judgement) Suffix() string {
	switch j {
	case JudgementInaccuracy:
		return "?!"
	case JudgementMistake:
		return "?"
	case JudgementBlunder:
		return "??"
	}
	return ""
}

// PlyEval is the evaluation after one half-move.
type PlyEval struct {
	Ply       int       `json:"ply"` // 1-based
	SAN       string    `json:"san"`
	UCI       string    `json:"uci"`
	FEN       string    `json:"fen"`
	Eval      Eval      `json:"eval"`
	Loss      int       `json:"loss"` // centipawns lost by the mover
	Judgement Judgement `json:"judgement,omitempty"`
}

// Config configures a Reviewer.
type Config struct {
	Evaluator Evaluator
	Depth     int
	Logger    zerolog.Logger
}

// Reviewer runs per-ply evaluations over a game.
type Reviewer struct {
	cfg Config
	log zerolog.Logger
}

// NewReviewer creates a Reviewer; Depth defaults to 14.
func NewReviewer(cfg Config) *Reviewer {
	if cfg.Depth <= 0 {
		cfg.Depth = 14
	}
	return &Reviewer{cfg: cfg, log: cfg.Logger.With().Str("component", "review").Logger()}
}

// Review replays san from startFEN (empty for the standard start) and
// evaluates the start position and the position after every legal ply.
func (r *Reviewer) Review(ctx context.Context, startFEN string, san []string) ([]PlyEval, error) {
	plies, err := replay.SANPlies(startFEN, san)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	pos, err := replay.StartPosition(startFEN)
	if err != nil {
		return nil, err
	}
	prevFEN := pos.String()
	prev, err := r.cfg.Evaluator.Evaluate(ctx, prevFEN, r.cfg.Depth)
	if err != nil {
		return nil, fmt.Errorf("evaluate start: %w", err)
	}

	out := make([]PlyEval, 0, len(plies))
	for i, p := range plies {
		ev, err := r.cfg.Evaluator.Evaluate(ctx, p.FEN, r.cfg.Depth)
		if err != nil {
			return out, fmt.Errorf("evaluate ply %d: %w", i+1, err)
		}
		whiteMoved := strings.Contains(prevFEN, " w ")
		loss := moverLoss(prev.CP, ev.CP, whiteMoved)
		out = append(out, PlyEval{
			Ply:       i + 1,
			SAN:       p.SAN,
			UCI:       p.UCI,
			FEN:       p.FEN,
			Eval:      ev,
			Loss:      loss,
			Judgement: judge(loss),
		})
		prev, prevFEN = ev, p.FEN
	}

	r.log.Info().
		Int("plies", len(out)).
		Int("depth", r.cfg.Depth).
		Dur("elapsed", time.Since(start)).
		Msg("game reviewed")
	return out, nil
}

func moverLoss(before, after int, whiteMoved bool) int {
	before, after = clamp(before), clamp(after)
	loss := before - after
	if !whiteMoved {
		loss = -loss
	}
	if loss < 0 {
		return 0
	}
	return loss
}

func clamp(cp int) int {
	if cp > lossCap {
		return lossCap
	}
	if cp < -lossCap {
		return -lossCap
	}
	return cp
}

func judge(loss int) Judgement {
	switch {
	case loss >= BlunderCP:
		return JudgementBlunder
	case loss >= MistakeCP:
		return JudgementMistake
	case loss >= InaccuracyCP:
		return JudgementInaccuracy
	}
	return JudgementNone
}

// FormatEval renders an evaluation the way %eval comments expect:
// pawns with two decimals, or #N for mates.
func FormatEval(e Eval) string {
	if e.Mate != nil {
		return "#" + strconv.Itoa(*e.Mate)
	}
	return strconv.FormatFloat(float64(e.CP)/100, 'f', 2, 64)
}

// Annotate renders move text with a {[%eval x]} comment after every move
// and judgement suffixes on inaccuracies, mistakes and blunders. The result
// token is appended when non-empty.
func Annotate(evals []PlyEval, result string) string {
	var sb strings.Builder
	// After a first move by Black it is White's turn.
	blackFirst := len(evals) > 0 && strings.Contains(evals[0].FEN, " w ")
	for i, pe := range evals {
		idx := i
		if blackFirst {
			idx++
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		switch {
		case idx%2 == 0:
			sb.WriteString(strconv.Itoa(idx/2+1) + ". ")
		case i == 0:
			sb.WriteString(strconv.Itoa(idx/2+1) + "... ")
		}
		sb.WriteString(pe.SAN)
		sb.WriteString(pe.Judgement.Suffix())
		sb.WriteString(" {[%eval ")
		sb.WriteString(FormatEval(pe.Eval))
		sb.WriteString("]}")
	}
	if result != "" {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(result)
	}
	return sb.String()
}
