package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Zoom limits used when a ViewTransform carries no bounds of its own.
const (
	DefaultMinZoom  = 0.05
	DefaultMaxZoom  = 40.0
	DefaultZoomStep = 1.2
)

// ViewTransform maps plan space to the viewport. It is session state and is
// never persisted with a project.
//
//	view = plan * Zoom * PixelScale + Pan
type ViewTransform struct {
	Zoom       float64   `json:"zoom"`
	Pan        ViewPoint `json:"pan"`
	PixelScale float64   `json:"pixel_scale"`
	MinZoom    float64   `json:"min_zoom"`
	MaxZoom    float64   `json:"max_zoom"`
}

// NewViewTransform returns an identity transform with the given zoom bounds.
// Non-positive or inverted bounds fall back to the defaults.
func NewViewTransform(minZoom, maxZoom float64) ViewTransform {
	if minZoom <= 0 || maxZoom <= 0 || minZoom > maxZoom {
		minZoom, maxZoom = DefaultMinZoom, DefaultMaxZoom
	}
	t := ViewTransform{Zoom: 1, PixelScale: 1, MinZoom: minZoom, MaxZoom: maxZoom}
	t.Zoom = t.clamp(1)
	return t
}

func (t ViewTransform) bounds() (float64, float64) {
	lo, hi := t.MinZoom, t.MaxZoom
	if lo <= 0 || hi <= 0 || lo > hi {
		return DefaultMinZoom, DefaultMaxZoom
	}
	return lo, hi
}

func (t ViewTransform) clamp(z float64) float64 {
	lo, hi := t.bounds()
	return math.Max(lo, math.Min(hi, z))
}

// factor is the number of view units per plan unit.
func (t ViewTransform) factor() float64 {
	s := t.PixelScale
	if s <= 0 {
		s = 1
	}
	z := t.Zoom
	if z <= 0 {
		z = t.clamp(1)
	}
	return z * s
}

// FactorBounds returns the zoom factors that take t to its minimum and
// maximum zoom.
func (t ViewTransform) FactorBounds() (lo, hi float64) {
	z := t.factor() / pixelScale(t)
	minZoom, maxZoom := t.bounds()
	return minZoom / z, maxZoom / z
}

// PlanToView converts a plan point to view space.
func PlanToView(p PlanPoint, t ViewTransform) ViewPoint {
	v := r2.Add(r2.Scale(t.factor(), p.vec()), t.Pan.vec())
	return ViewPoint{X: v.X, Y: v.Y}
}

// ViewToPlan converts a view point to plan space. It is the exact inverse of
// PlanToView up to floating point rounding.
func ViewToPlan(p ViewPoint, t ViewTransform) PlanPoint {
	v := r2.Scale(1/t.factor(), r2.Sub(p.vec(), t.Pan.vec()))
	return PlanPoint{X: v.X, Y: v.Y}
}

// Zoom scales the view by factor while keeping focal anchored: the plan point
// under focal is the same before and after. The resulting zoom is silently
// clamped to the transform's bounds. Non-positive or non-finite factors leave
// the transform unchanged.
func Zoom(t ViewTransform, focal ViewPoint, factor float64) ViewTransform {
	if !(factor > 0) || math.IsInf(factor, 0) {
		return t
	}
	anchor := ViewToPlan(focal, t)

	next := t
	next.Zoom = t.clamp(t.factor() / pixelScale(t) * factor)

	// Solve focal = anchor * f + pan for the new pan.
	pan := r2.Sub(focal.vec(), r2.Scale(next.factor(), anchor.vec()))
	next.Pan = ViewPoint{X: pan.X, Y: pan.Y}
	return next
}

// Pan translates the view by delta. Panning is unbounded.
func Pan(t ViewTransform, delta ViewPoint) ViewTransform {
	pan := r2.Add(t.Pan.vec(), delta.vec())
	t.Pan = ViewPoint{X: pan.X, Y: pan.Y}
	return t
}

func pixelScale(t ViewTransform) float64 {
	if t.PixelScale <= 0 {
		return 1
	}
	return t.PixelScale
}
