// Package layout runs a force-directed simulation for the note link graph.
//
// Physics state is private to the Engine. Each tick works on the live node
// slice and then commits a copy; Snapshot only ever returns committed state,
// so a renderer never observes a half-applied tick.
package layout

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Node is a positioned graph node. ID is the note title.
type Node struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Pinned bool    `json:"pinned"`
}

// Edge is a directed link. Duplicates add attraction.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Config holds the force model constants.
type Config struct {
	Width, Height float64

	Repulsion      float64 // inverse-square strength
	MinSeparation  float64 // repulsion doubles below this distance
	Attraction     float64 // spring constant
	SpringLength   float64 // springs only pull beyond this distance
	Gravity        float64 // pull toward the viewport center
	Damping        float64 // velocity multiplier per tick
	MaxVelocity    float64
	BoundaryMargin float64
	BoundaryForce  float64

	StopThreshold float64 // total movement per tick counted as still
	QuietTicks    int     // consecutive still ticks needed to halt
	WarmupTicks   int
	MaxTicks      int

	Logger zerolog.Logger
}

// DefaultConfig returns the standard force model for a viewport.
func DefaultConfig(width, height float64) Config {
	return Config{
		Width:          width,
		Height:         height,
		Repulsion:      2000,
		MinSeparation:  80,
		Attraction:     0.02,
		SpringLength:   100,
		Gravity:        0.02,
		Damping:        0.7,
		MaxVelocity:    20,
		BoundaryMargin: 60,
		BoundaryForce:  2,
		StopThreshold:  0.5,
		QuietTicks:     3,
		WarmupTicks:    30,
		MaxTicks:       500,
		Logger:         zerolog.Nop(),
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig(c.Width, c.Height)
	if c.Width <= 0 {
		c.Width = 800
	}
	if c.Height <= 0 {
		c.Height = 600
	}
	setIfZero(&c.Repulsion, d.Repulsion)
	setIfZero(&c.MinSeparation, d.MinSeparation)
	setIfZero(&c.Attraction, d.Attraction)
	setIfZero(&c.SpringLength, d.SpringLength)
	setIfZero(&c.Gravity, d.Gravity)
	setIfZero(&c.Damping, d.Damping)
	setIfZero(&c.MaxVelocity, d.MaxVelocity)
	setIfZero(&c.BoundaryMargin, d.BoundaryMargin)
	setIfZero(&c.BoundaryForce, d.BoundaryForce)
	setIfZero(&c.StopThreshold, d.StopThreshold)
	if c.QuietTicks <= 0 {
		c.QuietTicks = d.QuietTicks
	}
	if c.WarmupTicks <= 0 {
		c.WarmupTicks = d.WarmupTicks
	}
	if c.MaxTicks <= 0 {
		c.MaxTicks = d.MaxTicks
	}
}

func setIfZero(p *float64, v float64) {
	if *p == 0 {
		*p = v
	}
}

type runParams struct {
	ctx    context.Context
	frame  time.Duration
	render func([]Node)
}

// Engine is a force-directed layout simulation. Safe for concurrent use.
type Engine struct {
	mu  sync.Mutex
	cfg Config
	log zerolog.Logger

	nodes     []Node
	index     map[string]int
	edges     [][2]int
	committed []Node
	fx, fy    []float64

	tick    int
	quiet   int
	halted  bool
	dragged int

	running bool
	last    *runParams
}

// NewEngine creates an empty simulation.
func NewEngine(cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg:     cfg,
		log:     cfg.Logger.With().Str("component", "layout").Logger(),
		index:   make(map[string]int),
		dragged: -1,
		halted:  true,
	}
}

// SetGraph installs the node ids and edges. When the id set changes, nodes
// are rebuilt with existing positions preserved by id; new nodes are seeded
// around the center. Edges naming unknown ids are dropped. The simulation
// restarts from tick 0.
func (e *Engine) SetGraph(ids []string, edges []Edge) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.sameIDsLocked(ids) {
		old := e.index
		oldNodes := e.nodes
		e.nodes = make([]Node, 0, len(ids))
		e.index = make(map[string]int, len(ids))
		for _, id := range ids {
			if _, dup := e.index[id]; dup {
				continue
			}
			var n Node
			if i, ok := old[id]; ok {
				n = oldNodes[i]
			} else {
				n = e.seedLocked(id, len(e.nodes))
			}
			e.index[id] = len(e.nodes)
			e.nodes = append(e.nodes, n)
		}
		e.dragged = -1
		e.fx = make([]float64, len(e.nodes))
		e.fy = make([]float64, len(e.nodes))
	}

	e.edges = e.edges[:0]
	for _, ed := range edges {
		a, okA := e.index[ed.Source]
		b, okB := e.index[ed.Target]
		if !okA || !okB || a == b {
			continue
		}
		e.edges = append(e.edges, [2]int{a, b})
	}
	e.restartLocked()
	e.commitLocked()
}

func (e *Engine) sameIDsLocked(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := e.index[id]; !ok {
			return false
		}
		seen[id] = struct{}{}
	}
	return len(seen) == len(e.nodes)
}

// seedLocked places the k-th new node on a sunflower spiral around the center.
func (e *Engine) seedLocked(id string, k int) Node {
	const golden = 2.399963229728653 // radians
	r := 30 * math.Sqrt(float64(k)+1)
	a := float64(k) * golden
	return Node{
		ID: id,
		X:  e.cfg.Width/2 + r*math.Cos(a),
		Y:  e.cfg.Height/2 + r*math.Sin(a),
	}
}

// Resize changes the viewport, scaling positions proportionally instead of
// rebuilding nodes.
func (e *Engine) Resize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	sx, sy := width/e.cfg.Width, height/e.cfg.Height
	for i := range e.nodes {
		e.nodes[i].X *= sx
		e.nodes[i].Y *= sy
	}
	e.cfg.Width, e.cfg.Height = width, height
	e.restartLocked()
	e.commitLocked()
}

// SetPosition moves a node and zeroes its velocity.
func (e *Engine) SetPosition(id string, x, y float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	i, ok := e.index[id]
	if !ok {
		return false
	}
	e.nodes[i].X, e.nodes[i].Y = x, y
	e.nodes[i].VX, e.nodes[i].VY = 0, 0
	e.commitLocked()
	return true
}

// Pin fixes or releases a node. Pinned nodes still exert forces.
func (e *Engine) Pin(id string, pinned bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	i, ok := e.index[id]
	if !ok {
		return false
	}
	e.nodes[i].Pinned = pinned
	e.nodes[i].VX, e.nodes[i].VY = 0, 0
	e.restartLocked()
	e.commitLocked()
	return true
}

func (e *Engine) restartLocked() {
	e.tick = 0
	e.quiet = 0
	e.halted = len(e.nodes) == 0
}

func (e *Engine) commitLocked() {
	if cap(e.committed) < len(e.nodes) {
		e.committed = make([]Node, len(e.nodes))
	}
	e.committed = e.committed[:len(e.nodes)]
	copy(e.committed, e.nodes)
}

// Snapshot returns a copy of the last committed tick.
func (e *Engine) Snapshot() []Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Node, len(e.committed))
	copy(out, e.committed)
	return out
}

// Halted reports whether the simulation has converged or hit the tick ceiling.
func (e *Engine) Halted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halted
}

// Ticks returns the number of ticks since the last restart.
func (e *Engine) Ticks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Step runs one tick and returns the total movement and whether the
// simulation has halted. A halted simulation does not move.
func (e *Engine) Step() (movement float64, halted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.halted {
		return 0, true
	}
	movement = e.stepLocked()
	e.tick++
	if e.tick >= e.cfg.WarmupTicks && movement < e.cfg.StopThreshold {
		e.quiet++
	} else {
		e.quiet = 0
	}
	if e.quiet >= e.cfg.QuietTicks || e.tick >= e.cfg.MaxTicks {
		e.halted = true
		e.log.Debug().Int("ticks", e.tick).Float64("movement", movement).Bool("converged", e.tick < e.cfg.MaxTicks).Msg("layout halted")
	}
	e.commitLocked()
	return movement, e.halted
}

func (e *Engine) stepLocked() float64 {
	c := &e.cfg
	n := len(e.nodes)
	fx, fy := e.fx, e.fy
	for i := range fx {
		fx[i], fy[i] = 0, 0
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := e.nodes[j].X - e.nodes[i].X
			dy := e.nodes[j].Y - e.nodes[i].Y
			d2 := dx*dx + dy*dy
			if d2 < 0.01 {
				// coincident nodes: separate along a deterministic direction
				dx, dy = 0.1*float64(j-i), 0.1
				d2 = dx*dx + dy*dy
			}
			d := math.Sqrt(d2)
			f := c.Repulsion / d2
			if d < c.MinSeparation {
				f *= 2
			}
			ux, uy := dx/d*f, dy/d*f
			fx[i] -= ux
			fy[i] -= uy
			fx[j] += ux
			fy[j] += uy
		}
	}

	for _, ed := range e.edges {
		a, b := ed[0], ed[1]
		dx := e.nodes[b].X - e.nodes[a].X
		dy := e.nodes[b].Y - e.nodes[a].Y
		d := math.Hypot(dx, dy)
		if d <= c.SpringLength {
			continue
		}
		f := c.Attraction * (d - c.SpringLength)
		ux, uy := dx/d*f, dy/d*f
		fx[a] += ux
		fy[a] += uy
		fx[b] -= ux
		fy[b] -= uy
	}

	cx, cy := c.Width/2, c.Height/2
	var movement float64
	for i := range e.nodes {
		nd := &e.nodes[i]
		if nd.Pinned || i == e.dragged {
			nd.VX, nd.VY = 0, 0
			continue
		}
		fx[i] += c.Gravity * (cx - nd.X)
		fy[i] += c.Gravity * (cy - nd.Y)
		fx[i] += boundary(nd.X, c.Width, c.BoundaryMargin, c.BoundaryForce)
		fy[i] += boundary(nd.Y, c.Height, c.BoundaryMargin, c.BoundaryForce)

		nd.VX = (nd.VX + fx[i]) * c.Damping
		nd.VY = (nd.VY + fy[i]) * c.Damping
		if v := math.Hypot(nd.VX, nd.VY); v > c.MaxVelocity {
			nd.VX *= c.MaxVelocity / v
			nd.VY *= c.MaxVelocity / v
		}
		nd.X += nd.VX
		nd.Y += nd.VY
		movement += math.Hypot(nd.VX, nd.VY)
	}
	return movement
}

// boundary pushes inward, growing linearly across the margin.
func boundary(pos, size, margin, strength float64) float64 {
	switch {
	case pos < margin:
		return strength * (margin - pos) / margin
	case pos > size-margin:
		return -strength * (pos - (size - margin)) / margin
	}
	return 0
}

// Settle ticks until the simulation halts and reports the tick count and
// whether it converged before the ceiling.
func (e *Engine) Settle() (ticks int, converged bool) {
	for {
		if _, halted := e.Step(); halted {
			break
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log.Info().Int("nodes", len(e.nodes)).Int("edges", len(e.edges)).Int("ticks", e.tick).Msg("layout settled")
	return e.tick, e.quiet >= e.cfg.QuietTicks
}

// Start runs ticks every frame until the simulation halts or ctx ends,
// calling render with the committed state after each tick. It returns false
// without doing anything when a loop is already running.
func (e *Engine) Start(ctx context.Context, frame time.Duration, render func([]Node)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.last = &runParams{ctx: ctx, frame: frame, render: render}
	return e.startLocked()
}

func (e *Engine) startLocked() bool {
	if e.running || e.last == nil || e.last.ctx.Err() != nil {
		return false
	}
	e.running = true
	go e.loop(*e.last)
	return true
}

// Running reports whether a tick loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) loop(p runParams) {
	t := time.NewTicker(p.frame)
	defer t.Stop()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-t.C:
		}
		_, halted := e.Step()
		if p.render != nil {
			p.render(e.Snapshot())
		}
		if halted {
			return
		}
	}
}

// BeginDrag holds a node under the pointer. It stops receiving forces and
// its velocity is zeroed.
func (e *Engine) BeginDrag(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	i, ok := e.index[id]
	if !ok {
		return false
	}
	e.dragged = i
	e.nodes[i].VX, e.nodes[i].VY = 0, 0
	e.restartLocked()
	e.startLocked()
	return true
}

// DragTo moves the held node to graph coordinates (x, y).
func (e *Engine) DragTo(x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dragged < 0 {
		return
	}
	e.nodes[e.dragged].X, e.nodes[e.dragged].Y = x, y
	e.commitLocked()
}

// EndDrag releases the held node and restarts the simulation from tick 0,
// resuming the last tick loop if it had stopped.
func (e *Engine) EndDrag() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dragged < 0 {
		return
	}
	e.dragged = -1
	e.restartLocked()
	e.startLocked()
}
