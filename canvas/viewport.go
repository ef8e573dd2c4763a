package canvas

import (
	"canvas-studio/core"
	"math"
)

const (
	MinScale = 0.1
	MaxScale = 5.0

	// WheelZoomFactor is applied per wheel notch, ButtonZoomFactor per toolbar
	// click.
	WheelZoomFactor  = 1.1
	ButtonZoomFactor = 1.2
)

const (
	ZoomIn ZoomDirection = iota
	ZoomOut
)

// ZoomDirection selects whether a zoom step multiplies or divides the scale.
type ZoomDirection int

// Viewport maps between screen pixels and world units.
//
//	screen = world*Scale + Pan
//	world  = (screen - Pan) / Scale
type Viewport struct {
	Pan   core.Point `json:"pan"`
	Scale float64    `json:"scale"`
	Size  core.Size  `json:"size"`
}

// NewViewport returns an identity viewport of the given screen size.
func NewViewport(size core.Size) Viewport {
	v := Viewport{Scale: 1}
	v.Resize(size)
	return v
}

func clampScale(s float64) float64 {
	return math.Max(MinScale, math.Min(MaxScale, s))
}

func (v Viewport) ScreenToWorld(p core.Point) core.Point {
	return core.Point{
		X: (p.X - v.Pan.X) / v.Scale,
		Y: (p.Y - v.Pan.Y) / v.Scale,
	}
}

func (v Viewport) WorldToScreen(p core.Point) core.Point {
	return core.Point{
		X: p.X*v.Scale + v.Pan.X,
		Y: p.Y*v.Scale + v.Pan.Y,
	}
}

// WorldRectToScreen projects a world-space box into screen space.
func (v Viewport) WorldRectToScreen(r core.Rect) core.Rect {
	pos := v.WorldToScreen(r.Position())
	return core.Rect{X: pos.X, Y: pos.Y, Width: r.Width * v.Scale, Height: r.Height * v.Scale}
}

// ScreenCenter is the middle of the visible area in screen pixels.
func (v Viewport) ScreenCenter() core.Point { return v.Size.Half() }

// VisibleCenter is the world point currently shown at the middle of the
// viewport.
func (v Viewport) VisibleCenter() core.Point { return v.ScreenToWorld(v.ScreenCenter()) }

// ZoomPercent is the scale rounded to a whole percentage.
func (v Viewport) ZoomPercent() int { return int(math.Round(v.Scale * 100)) }

// ZoomAt rescales by factor (or its inverse for ZoomOut) and shifts the pan so
// the world point under anchor stays under anchor.
func (v *Viewport) ZoomAt(anchor core.Point, dir ZoomDirection, factor float64) {
	world := v.ScreenToWorld(anchor)

	next := v.Scale * factor
	if dir == ZoomOut {
		next = v.Scale / factor
	}
	v.Scale = clampScale(next)

	v.Pan = core.Point{
		X: anchor.X - world.X*v.Scale,
		Y: anchor.Y - world.Y*v.Scale,
	}
}

// ZoomAtCenter is the toolbar zoom: anchored at the viewport centre.
func (v *Viewport) ZoomAtCenter(dir ZoomDirection) {
	v.ZoomAt(v.ScreenCenter(), dir, ButtonZoomFactor)
}

// Wheel zooms around the pointer. A positive deltaY (scrolling down) zooms out.
func (v *Viewport) Wheel(pointer core.Point, deltaY float64) {
	dir := ZoomIn
	if deltaY > 0 {
		dir = ZoomOut
	}
	v.ZoomAt(pointer, dir, WheelZoomFactor)
}

// ResetZoom returns to 100% while keeping the world point at the viewport
// centre in place.
func (v *Viewport) ResetZoom() {
	center := v.ScreenCenter()
	world := v.ScreenToWorld(center)
	v.Scale = 1
	v.Pan = center.Sub(world)
}

// Resize updates the visible-area size. Pan and scale are untouched.
func (v *Viewport) Resize(size core.Size) {
	v.Size = core.Size{
		Width:  math.Max(0, size.Width),
		Height: math.Max(0, size.Height),
	}
}

// PanBy translates the view by a screen-space delta.
func (v *Viewport) PanBy(delta core.Point) {
	v.Pan = v.Pan.Add(delta)
}
