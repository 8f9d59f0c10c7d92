// Package uciengine drives a UCI chess engine subprocess.
//
// A Session owns one engine process and moves through the states
// Uninitialized → Initializing → Ready ⇄ Analyzing. Analyses are strictly
// sequential: starting a new one stops the current search first. Every
// search is tagged with an increasing id and engine output is attributed to
// the oldest outstanding search, so a slow-to-stop search can never resolve
// or pollute a newer one.
package uciengine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/notnil/chess"
	"github.com/rs/zerolog"
)

var (
	ErrInitTimeout  = errors.New("engine did not answer uciok within the init timeout")
	ErrReadyTimeout = errors.New("engine did not answer readyok within the ready timeout")
	ErrSuperseded   = errors.New("analysis superseded by a newer request")
	ErrEngineClosed = errors.New("engine closed")
	ErrInvalidFEN   = errors.New("invalid FEN")
)

const (
	DefaultDepth        = 20
	DefaultHashMB       = 64
	DefaultInitTimeout  = 10 * time.Second
	DefaultSettleDelay  = 100 * time.Millisecond
	MinMultiPV          = 1
	MaxMultiPV          = 5
	tokenUCIOK          = "uciok"
	tokenReadyOK        = "readyok"
	defaultReadyTimeout = DefaultInitTimeout
)

// State is the session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateAnalyzing
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateAnalyzing:
		return "analyzing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Update is a progress snapshot emitted after every stored variation.
type Update struct {
	ID       uint64
	Analysis Analysis
}

// Config configures a Session.
type Config struct {
	Launcher     Launcher
	HashMB       int
	Threads      int // 0 leaves the engine default
	InitTimeout  time.Duration
	ReadyTimeout time.Duration
	SettleDelay  time.Duration
	DefaultDepth int

	// OnUpdate, if set, is called from the reader goroutine; it must not block.
	OnUpdate func(Update)

	Logger zerolog.Logger
}

type initCall struct {
	done chan struct{}
	err  error
}

type outcome struct {
	analysis *Analysis
	err      error
}

type search struct {
	id         uint64
	acc        *accumulator
	superseded bool
	done       chan outcome // buffered; receives exactly once
}

func (sr *search) resolve(o outcome) {
	select {
	case sr.done <- o:
	default:
	}
}

// Session is an explicitly owned handle to one engine process.
type Session struct {
	cfg Config
	log zerolog.Logger

	startMu sync.Mutex // serializes the stop/settle/go sequence

	mu       sync.Mutex
	state    State
	proc     Process
	gen      uint64
	closed   chan struct{}
	init     *initCall
	waiters  map[string][]chan struct{}
	searches []*search // outstanding, oldest first

	nextID atomic.Uint64
}

// NewSession creates a session. The engine is launched lazily.
func NewSession(cfg Config) *Session {
	if cfg.HashMB <= 0 {
		cfg.HashMB = DefaultHashMB
	}
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = DefaultInitTimeout
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.DefaultDepth <= 0 {
		cfg.DefaultDepth = DefaultDepth
	}
	return &Session{
		cfg:     cfg,
		log:     cfg.Logger.With().Str("component", "uciengine").Logger(),
		waiters: make(map[string][]chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ClampMultiPV bounds n to [MinMultiPV, MaxMultiPV].
func ClampMultiPV(n int) int {
	if n < MinMultiPV {
		return MinMultiPV
	}
	if n > MaxMultiPV {
		return MaxMultiPV
	}
	return n
}

// Initialize launches the engine and completes the uci/isready handshake.
// Concurrent callers share one in-flight attempt. A failed attempt is
// forgotten so a later call retries.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateReady || s.state == StateAnalyzing {
		s.mu.Unlock()
		return nil
	}
	call := s.init
	if call == nil {
		call = &initCall{done: make(chan struct{})}
		s.init = call
		s.state = StateInitializing
		go s.runInit(call)
	}
	s.mu.Unlock()

	select {
	case <-call.done:
		return call.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) runInit(call *initCall) {
	start := time.Now()
	err := s.handshake(call)

	var failed Process
	s.mu.Lock()
	if s.init == call {
		s.init = nil
		if err != nil {
			failed = s.teardownLocked(err)
			s.state = StateUninitialized
		} else {
			s.state = StateReady
		}
	}
	s.mu.Unlock()
	if failed != nil {
		failed.Close()
	}

	if err != nil {
		s.log.Warn().Err(err).Msg("engine init failed")
	} else {
		s.log.Info().Dur("elapsed", time.Since(start)).Int("hash_mb", s.cfg.HashMB).Msg("engine ready")
	}
	call.err = err
	close(call.done)
}

func (s *Session) handshake(call *initCall) error {
	if s.cfg.Launcher == nil {
		return fmt.Errorf("no engine launcher configured")
	}
	proc, err := s.cfg.Launcher.Launch()
	if err != nil {
		return fmt.Errorf("launch engine: %w", err)
	}

	s.mu.Lock()
	if s.init != call {
		s.mu.Unlock()
		proc.Close()
		return ErrEngineClosed
	}
	s.gen++
	gen := s.gen
	s.proc = proc
	s.closed = make(chan struct{})
	closed := s.closed
	uciok := s.expectLocked(tokenUCIOK)
	s.mu.Unlock()

	go s.readLoop(proc, gen)

	if err := proc.Send("uci"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := awaitToken(uciok, closed, s.cfg.InitTimeout, ErrInitTimeout); err != nil {
		return err
	}

	s.mu.Lock()
	readyok := s.expectLocked(tokenReadyOK)
	s.mu.Unlock()

	cmds := []string{fmt.Sprintf("setoption name Hash value %d", s.cfg.HashMB)}
	if s.cfg.Threads > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Threads value %d", s.cfg.Threads))
	}
	cmds = append(cmds, "isready")
	for _, c := range cmds {
		if err := proc.Send(c); err != nil {
			return fmt.Errorf("send %q: %w", c, err)
		}
	}
	return awaitToken(readyok, closed, s.cfg.ReadyTimeout, ErrReadyTimeout)
}

// expectLocked registers a one-shot waiter for token before it is requested.
func (s *Session) expectLocked(token string) <-chan struct{} {
	ch := make(chan struct{})
	s.waiters[token] = append(s.waiters[token], ch)
	return ch
}

func awaitToken(ch <-chan struct{}, closed <-chan struct{}, timeout time.Duration, timeoutErr error) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
		return nil
	case <-closed:
		return ErrEngineClosed
	case <-t.C:
		return timeoutErr
	}
}

// Analyze searches fen to depth (DefaultDepth when <= 0) with multiPV
// variations clamped to [1,5]. A search already in flight is stopped first;
// its caller receives ErrSuperseded. Cancelling ctx stops this search.
func (s *Session) Analyze(ctx context.Context, fen string, depth, multiPV int) (*Analysis, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidFEN)
	}
	if _, err := chess.FEN(fen); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	if depth <= 0 {
		depth = s.cfg.DefaultDepth
	}
	multiPV = ClampMultiPV(multiPV)

	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}

	sr, err := s.start(ctx, fen, depth, multiPV)
	if err != nil {
		return nil, err
	}

	select {
	case out := <-sr.done:
		return out.analysis, out.err
	case <-ctx.Done():
		s.abandon(sr)
		return nil, ctx.Err()
	}
}

func (s *Session) start(ctx context.Context, fen string, depth, multiPV int) (*search, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	if s.state == StateAnalyzing {
		proc := s.supersedeLocked()
		s.mu.Unlock()

		s.log.Debug().Msg("stopping previous analysis")
		if err := proc.Send("stop"); err != nil {
			return nil, fmt.Errorf("send stop: %w", err)
		}
		t := time.NewTimer(s.cfg.SettleDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
		s.mu.Lock()
	}
	if s.proc == nil || (s.state != StateReady && s.state != StateAnalyzing) {
		s.mu.Unlock()
		return nil, ErrEngineClosed
	}

	id := s.nextID.Add(1)
	sr := &search{
		id:   id,
		acc:  newAccumulator(id, fen, multiPV),
		done: make(chan outcome, 1),
	}
	s.searches = append(s.searches, sr)
	s.state = StateAnalyzing
	proc := s.proc
	s.mu.Unlock()

	cmds := []string{
		fmt.Sprintf("setoption name MultiPV value %d", multiPV),
		"position fen " + fen,
		fmt.Sprintf("go depth %d", depth),
	}
	for _, c := range cmds {
		if err := proc.Send(c); err != nil {
			s.mu.Lock()
			s.dropLocked(sr)
			s.mu.Unlock()
			return nil, fmt.Errorf("send %q: %w", c, err)
		}
	}
	s.log.Debug().Uint64("id", id).Int("depth", depth).Int("multipv", multiPV).Str("fen", fen).Msg("analysis started")
	return sr, nil
}

// supersedeLocked marks every outstanding search stale and returns the process.
func (s *Session) supersedeLocked() Process {
	for _, sr := range s.searches {
		sr.superseded = true
	}
	return s.proc
}

func (s *Session) dropLocked(target *search) {
	for i, sr := range s.searches {
		if sr == target {
			s.searches = append(s.searches[:i], s.searches[i+1:]...)
			break
		}
	}
	if len(s.searches) == 0 && s.state == StateAnalyzing {
		s.state = StateReady
	}
}

// abandon marks sr stale and stops it; its bestmove is consumed silently.
func (s *Session) abandon(sr *search) {
	s.mu.Lock()
	var proc Process
	for _, o := range s.searches {
		if o == sr && !o.superseded {
			o.superseded = true
			proc = s.proc
		}
	}
	s.mu.Unlock()
	if proc != nil {
		_ = proc.Send("stop")
	}
}

// Stop asks the engine to finish the current search early. It does nothing
// unless analyzing; the pending Analyze still resolves via bestmove.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state != StateAnalyzing || s.proc == nil {
		s.mu.Unlock()
		return nil
	}
	proc := s.proc
	s.mu.Unlock()
	return proc.Send("stop")
}

// Destroy quits and kills the engine and resets to Uninitialized. Pending
// callers fail with ErrEngineClosed. The session may be initialized again.
func (s *Session) Destroy() error {
	s.mu.Lock()
	s.init = nil
	proc := s.teardownLocked(ErrEngineClosed)
	s.state = StateUninitialized
	s.mu.Unlock()

	if proc == nil {
		return nil
	}
	_ = proc.Send("quit")
	s.log.Info().Msg("engine destroyed")
	return proc.Close()
}

// teardownLocked detaches the process, fails outstanding work with err and
// returns the detached process for the caller to close.
func (s *Session) teardownLocked(err error) Process {
	s.gen++
	if s.closed != nil {
		close(s.closed)
		s.closed = nil
	}
	for _, sr := range s.searches {
		sr.resolve(outcome{err: err})
	}
	s.searches = nil
	s.waiters = make(map[string][]chan struct{})
	proc := s.proc
	s.proc = nil
	return proc
}

func (s *Session) readLoop(proc Process, gen uint64) {
	for line := range proc.Lines() {
		s.handleLine(gen, line)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.teardownLocked(ErrEngineClosed)
	if s.init == nil {
		s.state = StateUninitialized
	}
	s.mu.Unlock()

	s.log.Warn().Msg("engine process exited")
	proc.Close()
}

func (s *Session) handleLine(gen uint64, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	var update *Update
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	if ws, ok := s.waiters[line]; ok {
		for _, w := range ws {
			close(w)
		}
		delete(s.waiters, line)
		s.mu.Unlock()
		return
	}

	if info, ok := ParseInfo(line); ok {
		if len(s.searches) > 0 && !s.searches[0].superseded {
			head := s.searches[0]
			if head.acc.apply(info) && s.cfg.OnUpdate != nil {
				update = &Update{ID: head.id, Analysis: head.acc.snapshot()}
			}
		}
	} else if move, ok := ParseBestMove(line); ok && len(s.searches) > 0 {
		head := s.searches[0]
		s.searches = s.searches[1:]
		if len(s.searches) == 0 && s.state == StateAnalyzing {
			s.state = StateReady
		}
		if head.superseded {
			head.resolve(outcome{err: ErrSuperseded})
			s.log.Debug().Uint64("id", head.id).Msg("discarded stale bestmove")
		} else {
			a := head.acc.finish(move)
			head.resolve(outcome{analysis: &a})
			s.log.Debug().Uint64("id", head.id).Str("bestmove", move).Int("depth", a.Depth).Msg("analysis complete")
		}
	}
	s.mu.Unlock()

	if update != nil {
		s.cfg.OnUpdate(*update)
	}
}
