package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"smokeplan/internal/domain"
	"smokeplan/internal/geometry"
)

func near(a, b geometry.PlanPoint) bool {
	return math.Abs(a.X-b.X) < 1e-6 && math.Abs(a.Y-b.Y) < 1e-6
}

func TestZoomViewKeepsFocalPoint(t *testing.T) {
	svc, events := newTestService(t, WithView(geometry.NewViewTransform(0.5, 4), 2))
	ctx := context.Background()
	focal := geometry.View(120, 80)

	for _, steps := range []float64{1, -1, 0.5, 3} {
		before := geometry.ViewToPlan(focal, svc.View())
		after := geometry.ViewToPlan(focal, svc.ZoomView(ctx, focal, steps))
		if !near(before, after) {
			t.Errorf("steps %g: focal moved from %+v to %+v", steps, before, after)
		}
	}
	if got := svc.View().Zoom; got != 4 {
		t.Errorf("zoom = %g, want clamp at 4", got)
	}
	if evs := drain(events); len(evs) != 4 || evs[0] != EventViewChanged {
		t.Errorf("events = %v", evs)
	}
}

func TestZoomViewExtremeSteps(t *testing.T) {
	svc, _ := newTestService(t, WithView(geometry.NewViewTransform(0.5, 4), 2))
	ctx := context.Background()
	focal := geometry.View(10, 10)

	tests := []struct {
		name  string
		steps float64
		want  float64
	}{
		{"overflow to max", 5000, 4},
		{"underflow to min", -5000, 0.5},
		{"back to max", 1e300, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := geometry.ViewToPlan(focal, svc.View())
			v := svc.ZoomView(ctx, focal, tt.steps)
			if v.Zoom != tt.want {
				t.Errorf("zoom = %g, want %g", v.Zoom, tt.want)
			}
			if !near(before, geometry.ViewToPlan(focal, v)) {
				t.Errorf("focal point moved")
			}
		})
	}
}

func TestPanAndResetView(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	svc.ZoomView(ctx, geometry.View(0, 0), 2)
	v := svc.PanView(ctx, geometry.View(30, -10))
	if v.Pan != geometry.View(30, -10) {
		t.Errorf("pan = %+v", v.Pan)
	}
	reset := svc.ResetView(ctx)
	if reset.Zoom != 1 || reset.Pan != (geometry.ViewPoint{}) {
		t.Errorf("reset view = %+v", reset)
	}
}

func TestPick(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := mustPlace(t, svc, 100, 50)
	mustPlace(t, svc, 104, 50)
	svc.ZoomView(ctx, geometry.View(0, 0), 3)
	svc.PanView(ctx, geometry.View(-40, 25))

	at := geometry.PlanToView(geometry.Plan(99, 50), svc.View())
	got, planAt, err := svc.Pick(at, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != a.ID {
		t.Errorf("picked %s, want %s", got.ID, a.ID)
	}
	if !near(planAt, geometry.Plan(99, 50)) {
		t.Errorf("plan point = %+v", planAt)
	}

	far := geometry.PlanToView(geometry.Plan(500, 500), svc.View())
	if _, _, err := svc.Pick(far, 5); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
