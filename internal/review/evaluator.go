package review

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/freeeve/uci"
	"github.com/rs/zerolog"

	"github.com/freeeve/chessnotes/internal/uciengine"
)

// Eval is a position evaluation from White's perspective.
type Eval struct {
	CP       int    `json:"cp"`
	Mate     *int   `json:"mate,omitempty"`
	Depth    int    `json:"depth"`
	BestMove string `json:"bestMove,omitempty"`
}

// Evaluator scores positions.
type Evaluator interface {
	Evaluate(ctx context.Context, fen string, depth int) (Eval, error)
}

// EngineConfig configures an EngineEvaluator.
type EngineConfig struct {
	Path    string
	HashMB  int
	Threads int
	Logger  zerolog.Logger
}

// EngineEvaluator runs fixed-depth searches on a dedicated engine process.
// Calls are serialized.
type EngineEvaluator struct {
	mu     sync.Mutex
	engine *uci.Engine
	log    zerolog.Logger
}

// NewEngineEvaluator starts the engine and applies options.
func NewEngineEvaluator(cfg EngineConfig) (*EngineEvaluator, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("engine path required")
	}
	if cfg.HashMB == 0 {
		cfg.HashMB = 128
	}
	if cfg.Threads == 0 {
		cfg.Threads = 1
	}

	engine, err := uci.NewEngine(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	opts := uci.Options{
		Hash:    cfg.HashMB,
		Threads: cfg.Threads,
		MultiPV: 1,
		Ponder:  false,
		OwnBook: false,
	}
	if err := engine.SetOptions(opts); err != nil {
		engine.Close()
		return nil, fmt.Errorf("set options: %w", err)
	}
	return &EngineEvaluator{
		engine: engine,
		log:    cfg.Logger.With().Str("component", "review").Logger(),
	}, nil
}

// Evaluate searches fen to depth. ctx is checked before the search starts;
// a running fixed-depth search is not interruptible.
func (e *EngineEvaluator) Evaluate(ctx context.Context, fen string, depth int) (Eval, error) {
	if err := ctx.Err(); err != nil {
		return Eval{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.engine.SetFEN(fen); err != nil {
		return Eval{}, fmt.Errorf("set FEN: %w", err)
	}
	results, err := e.engine.GoDepth(depth, uci.HighestDepthOnly)
	if err != nil {
		return Eval{}, fmt.Errorf("engine eval: %w", err)
	}
	if len(results.Results) == 0 {
		return Eval{}, fmt.Errorf("no results from engine")
	}

	best := results.Results[0]
	for _, r := range results.Results {
		if r.Depth > best.Depth {
			best = r
		}
	}

	// Normalize to white's perspective
	score := best.Score
	if strings.Contains(fen, " b ") {
		score = -score
	}
	ev := Eval{Depth: best.Depth, BestMove: results.BestMove}
	if best.Mate {
		m := score
		ev.Mate = &m
		ev.CP = mateCP(score)
	} else {
		ev.CP = score
	}
	e.log.Debug().Str("fen", fen).Int("depth", best.Depth).Int("score", score).Bool("mate", best.Mate).Msg("evaluated")
	return ev, nil
}

// Close shuts the engine down.
func (e *EngineEvaluator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.engine.Close()
	return nil
}

// SessionEvaluator evaluates through a shared interactive engine session.
// Reviews and interactive analysis then take turns on one process.
type SessionEvaluator struct {
	Session *uciengine.Session
}

func (s SessionEvaluator) Evaluate(ctx context.Context, fen string, depth int) (Eval, error) {
	a, err := s.Session.Analyze(ctx, fen, depth, 1)
	if err != nil {
		return Eval{}, err
	}
	w := a.WhitePOV()
	return Eval{CP: w.Score, Mate: w.Mate, Depth: w.Depth, BestMove: w.BestMove}, nil
}

func mateCP(mate int) int {
	if mate > 0 {
		return uciengine.MateScore
	}
	return -uciengine.MateScore
}
