package service

import (
	"context"
	"fmt"
	"math"

	"smokeplan/internal/domain"
	"smokeplan/internal/geometry"
)

// DefaultPickRadius is the hit-test tolerance in view units.
const DefaultPickRadius = 8.0

// View returns the current view transform
func (s *ProjectService) View() geometry.ViewTransform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// ZoomView zooms by zoomStep^steps anchored at focal. Negative steps zoom out.
// Step counts past the zoom bounds stop at the bound.
func (s *ProjectService) ZoomView(ctx context.Context, focal geometry.ViewPoint, steps float64) geometry.ViewTransform {
	s.mu.Lock()
	defer s.mu.Unlock()
	lo, hi := s.view.FactorBounds()
	factor := math.Max(lo, math.Min(hi, math.Pow(s.zoomStep, steps)))
	s.view = geometry.Zoom(s.view, focal, factor)
	s.eventBus.Publish(Event{Type: EventViewChanged, Payload: s.view})
	return s.view
}

// PanView translates the view by delta view units
func (s *ProjectService) PanView(ctx context.Context, delta geometry.ViewPoint) geometry.ViewTransform {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = geometry.Pan(s.view, delta)
	s.eventBus.Publish(Event{Type: EventViewChanged, Payload: s.view})
	return s.view
}

// ResetView returns to unit zoom with no pan, keeping the zoom bounds
func (s *ProjectService) ResetView(ctx context.Context) geometry.ViewTransform {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = geometry.NewViewTransform(s.view.MinZoom, s.view.MaxZoom)
	s.eventBus.Publish(Event{Type: EventViewChanged, Payload: s.view})
	return s.view
}

// Pick returns the detector nearest to a view point, if one lies within
// radius view units. A non-positive radius uses DefaultPickRadius. Ties go to
// the smaller ID.
func (s *ProjectService) Pick(at geometry.ViewPoint, radius float64) (domain.Detector, geometry.PlanPoint, error) {
	if radius <= 0 {
		radius = DefaultPickRadius
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	target := geometry.ViewToPlan(at, s.view)
	var (
		best     domain.Detector
		bestDist = math.Inf(1)
	)
	for _, d := range s.scene.Detectors() {
		dist := geometry.PlanToView(d.Position, s.view).Distance(at)
		if dist <= radius && dist < bestDist {
			best, bestDist = d, dist
		}
	}
	if math.IsInf(bestDist, 1) {
		return domain.Detector{}, target, fmt.Errorf("detector near (%g, %g) %w", target.X, target.Y, domain.ErrNotFound)
	}
	return best, target, nil
}
