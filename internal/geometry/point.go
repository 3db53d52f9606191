package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point2D is a bare coordinate pair with no space attached.
type Point2D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// PlanPoint is a position in floor-plan space.
type PlanPoint Point2D

// ViewPoint is a position in viewport space.
type ViewPoint Point2D

// PagePoint is a position in export page space.
type PagePoint Point2D

// Plan returns a plan-space point.
func Plan(x, y float64) PlanPoint { return PlanPoint{X: x, Y: y} }

// View returns a view-space point.
func View(x, y float64) ViewPoint { return ViewPoint{X: x, Y: y} }

// Page returns a page-space point.
func Page(x, y float64) PagePoint { return PagePoint{X: x, Y: y} }

func (p Point2D) vec() r2.Vec   { return r2.Vec{X: p.X, Y: p.Y} }
func (p PlanPoint) vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }
func (p ViewPoint) vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }
func (p PagePoint) vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

// IsFinite reports whether both coordinates are finite numbers.
func (p Point2D) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// IsFinite reports whether both coordinates are finite numbers.
func (p PlanPoint) IsFinite() bool { return Point2D(p).IsFinite() }

// Distance returns the euclidean distance between two plan points in plan units.
func (p PlanPoint) Distance(q PlanPoint) float64 {
	return r2.Norm(r2.Sub(p.vec(), q.vec()))
}

// Distance returns the euclidean distance between two view points.
func (p ViewPoint) Distance(q ViewPoint) float64 {
	return r2.Norm(r2.Sub(p.vec(), q.vec()))
}

// Distance returns the euclidean distance between two page points.
func (p PagePoint) Distance(q PagePoint) float64 {
	return r2.Norm(r2.Sub(p.vec(), q.vec()))
}

// Offset translates a page point by a fixed page-space delta.
func (p PagePoint) Offset(dx, dy float64) PagePoint {
	return PagePoint{X: p.X + dx, Y: p.Y + dy}
}
