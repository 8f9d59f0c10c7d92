package layout

import "math"

// Zoom limits for a Viewport.
const (
	MinZoom = 0.1
	MaxZoom = 5
)

// Viewport maps graph coordinates to screen coordinates:
// screen = graph*Zoom + Pan.
type Viewport struct {
	PanX float64 `json:"panX"`
	PanY float64 `json:"panY"`
	Zoom float64 `json:"zoom"`
}

// NewViewport returns the identity transform.
func NewViewport() Viewport {
	return Viewport{Zoom: 1}
}

func (v Viewport) zoom() float64 {
	if v.Zoom <= 0 {
		return 1
	}
	return v.Zoom
}

// GraphToScreen converts graph coordinates to screen coordinates.
func (v Viewport) GraphToScreen(x, y float64) (sx, sy float64) {
	z := v.zoom()
	return x*z + v.PanX, y*z + v.PanY
}

// ScreenToGraph converts screen coordinates to graph coordinates.
func (v Viewport) ScreenToGraph(sx, sy float64) (x, y float64) {
	z := v.zoom()
	return (sx - v.PanX) / z, (sy - v.PanY) / z
}

// PanBy shifts the view by a screen-space delta.
func (v *Viewport) PanBy(dx, dy float64) {
	v.PanX += dx
	v.PanY += dy
}

// ZoomAt scales by factor around the screen point (sx, sy), keeping the graph
// point under it fixed. Zoom is clamped to [MinZoom, MaxZoom].
func (v *Viewport) ZoomAt(sx, sy, factor float64) {
	if factor <= 0 {
		return
	}
	gx, gy := v.ScreenToGraph(sx, sy)
	v.Zoom = math.Max(MinZoom, math.Min(MaxZoom, v.zoom()*factor))
	v.PanX = sx - gx*v.Zoom
	v.PanY = sy - gy*v.Zoom
}

// HitTest returns the node nearest to the screen point within radius screen
// pixels, or false when none is close enough.
func (v Viewport) HitTest(nodes []Node, sx, sy, radius float64) (string, bool) {
	best, bestD := "", math.Inf(1)
	for _, n := range nodes {
		nx, ny := v.GraphToScreen(n.X, n.Y)
		d := math.Hypot(nx-sx, ny-sy)
		if d <= radius && d < bestD {
			best, bestD = n.ID, d
		}
	}
	return best, bestD <= radius
}
