package geometry

import (
	"errors"
	"math"
	"testing"
)

const eps = 1e-6

func near(a, b float64) bool {
	return math.Abs(a-b) <= eps
}

func TestViewRoundTrip(t *testing.T) {
	transforms := []ViewTransform{
		NewViewTransform(0.1, 10),
		{Zoom: 2.5, Pan: View(-340, 17.25), PixelScale: 1, MinZoom: 0.1, MaxZoom: 10},
		{Zoom: 0.137, Pan: View(1e4, -3e3), PixelScale: 3.2, MinZoom: 0.05, MaxZoom: 40},
		{Zoom: 7, Pan: View(0.5, 0.5), PixelScale: 0.25, MinZoom: 0.05, MaxZoom: 40},
	}
	points := []ViewPoint{
		View(0, 0), View(1, 1), View(-250.5, 999.125), View(12345.678, -0.0001), View(3e5, 3e5),
	}

	for i, tr := range transforms {
		for _, p := range points {
			got := PlanToView(ViewToPlan(p, tr), tr)
			if !near(got.X, p.X) || !near(got.Y, p.Y) {
				t.Errorf("transform %d: round trip of %v gave %v", i, p, got)
			}
		}
	}
}

func TestPlanToView(t *testing.T) {
	tr := ViewTransform{Zoom: 2, Pan: View(10, 20), PixelScale: 1, MinZoom: 0.1, MaxZoom: 10}
	got := PlanToView(Plan(5, 5), tr)
	if got != View(20, 30) {
		t.Errorf("expected (20,30), got %v", got)
	}
}

func TestZoomKeepsFocalPoint(t *testing.T) {
	base := ViewTransform{Zoom: 1.5, Pan: View(40, -12), PixelScale: 1, MinZoom: 0.05, MaxZoom: 40}
	focal := View(320, 240)

	for _, factor := range []float64{1.2, 0.5, 3, 1 / 1.2} {
		before := ViewToPlan(focal, base)
		zoomed := Zoom(base, focal, factor)
		after := ViewToPlan(focal, zoomed)

		if !near(before.X, after.X) || !near(before.Y, after.Y) {
			t.Errorf("factor %g: focal moved from %v to %v", factor, before, after)
		}
		if !near(zoomed.Zoom, base.Zoom*factor) {
			t.Errorf("factor %g: expected zoom %g, got %g", factor, base.Zoom*factor, zoomed.Zoom)
		}
	}
}

func TestFactorBounds(t *testing.T) {
	tr := NewViewTransform(0.5, 4)
	if lo, hi := tr.FactorBounds(); lo != 0.5 || hi != 4 {
		t.Errorf("at zoom 1: expected 0.5, 4, got %g, %g", lo, hi)
	}
	tr = Zoom(tr, View(0, 0), 2)
	if lo, hi := tr.FactorBounds(); lo != 0.25 || hi != 2 {
		t.Errorf("at zoom 2: expected 0.25, 2, got %g, %g", lo, hi)
	}
	if got := Zoom(tr, View(0, 0), 2).Zoom; got != 4 {
		t.Errorf("expected upper factor to reach max zoom, got %g", got)
	}
}

func TestZoomClampsSilently(t *testing.T) {
	tr := NewViewTransform(0.5, 4)
	focal := View(100, 100)

	t.Run("upper bound", func(t *testing.T) {
		got := Zoom(tr, focal, 100)
		if got.Zoom != 4 {
			t.Errorf("expected zoom 4, got %g", got.Zoom)
		}
		before, after := ViewToPlan(focal, tr), ViewToPlan(focal, got)
		if !near(before.X, after.X) || !near(before.Y, after.Y) {
			t.Errorf("clamped zoom moved focal point from %v to %v", before, after)
		}
	})

	t.Run("lower bound", func(t *testing.T) {
		got := Zoom(tr, focal, 0.001)
		if got.Zoom != 0.5 {
			t.Errorf("expected zoom 0.5, got %g", got.Zoom)
		}
	})

	t.Run("invalid factor", func(t *testing.T) {
		for _, f := range []float64{0, -2, math.NaN(), math.Inf(1)} {
			if got := Zoom(tr, focal, f); got != tr {
				t.Errorf("factor %g changed transform to %+v", f, got)
			}
		}
	})
}

func TestPan(t *testing.T) {
	tr := NewViewTransform(0.1, 10)
	tr = Pan(tr, View(1e9, -1e9))
	tr = Pan(tr, View(5, 5))
	if tr.Pan != View(1e9+5, -1e9+5) {
		t.Errorf("unexpected pan %v", tr.Pan)
	}
}

func TestNewViewTransformBounds(t *testing.T) {
	tr := NewViewTransform(2, 1)
	if tr.MinZoom != DefaultMinZoom || tr.MaxZoom != DefaultMaxZoom {
		t.Errorf("expected default bounds, got [%g,%g]", tr.MinZoom, tr.MaxZoom)
	}
	tr = NewViewTransform(2, 8)
	if tr.Zoom != 2 {
		t.Errorf("expected initial zoom clamped to 2, got %g", tr.Zoom)
	}
}

func TestFitToPage(t *testing.T) {
	t.Run("scales and centres", func(t *testing.T) {
		tr, err := FitToPage(Rect{Width: 10, Height: 5}, Size{Width: 100, Height: 100}, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tr.Scale != 10 {
			t.Errorf("expected scale 10, got %g", tr.Scale)
		}
		top := tr.Apply(Plan(0, 0))
		bottom := tr.Apply(Plan(10, 5))
		if top != Page(0, 25) || bottom != Page(100, 75) {
			t.Errorf("expected content centred vertically, got %v..%v", top, bottom)
		}
	})

	t.Run("honours margins and offsets", func(t *testing.T) {
		box := Rect{X: -20, Y: 10, Width: 40, Height: 80}
		tr, err := FitToPage(box, Size{Width: 300, Height: 200}, 20)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !near(tr.Scale, 2) {
			t.Errorf("expected scale 2, got %g", tr.Scale)
		}
		minP := tr.Apply(Plan(box.X, box.Y))
		maxP := tr.Apply(Plan(box.X+box.Width, box.Y+box.Height))
		if !near(minP.Y, 20) || !near(maxP.Y, 180) {
			t.Errorf("expected vertical extent 20..180, got %g..%g", minP.Y, maxP.Y)
		}
		if !near((minP.X+maxP.X)/2, 150) {
			t.Errorf("expected horizontal centre 150, got %g", (minP.X+maxP.X)/2)
		}
	})

	t.Run("aspect ratio preserved", func(t *testing.T) {
		box := Rect{Width: 1234, Height: 567}
		tr, err := FitToPage(box, A4.Size(Landscape), 28)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		a, b := tr.Apply(Plan(0, 0)), tr.Apply(Plan(1234, 567))
		if !near((b.X-a.X)/(b.Y-a.Y), 1234.0/567.0) {
			t.Errorf("aspect ratio distorted")
		}
	})

	t.Run("degenerate bounds", func(t *testing.T) {
		for _, box := range []Rect{
			{Width: 0, Height: 5},
			{Width: 10, Height: 0},
			{},
			{Width: math.NaN(), Height: 1},
		} {
			_, err := FitToPage(box, Size{Width: 100, Height: 100}, 0)
			if !errors.Is(err, ErrDegenerateGeometry) {
				t.Errorf("box %+v: expected ErrDegenerateGeometry, got %v", box, err)
			}
		}
	})

	t.Run("margin consumes page", func(t *testing.T) {
		_, err := FitToPage(Rect{Width: 1, Height: 1}, Size{Width: 100, Height: 100}, 50)
		if !errors.Is(err, ErrDegenerateGeometry) {
			t.Errorf("expected ErrDegenerateGeometry, got %v", err)
		}
	})
}

func TestBoundsOf(t *testing.T) {
	r := BoundsOf(Point2D{X: 3, Y: -1}, Point2D{X: -2, Y: 4}, Point2D{X: 0, Y: 0})
	want := Rect{X: -2, Y: -1, Width: 5, Height: 5}
	if r != want {
		t.Errorf("expected %+v, got %+v", want, r)
	}
	if !r.Contains(Point2D{X: 0, Y: 0}) || r.Contains(Point2D{X: 10, Y: 0}) {
		t.Errorf("Contains gave unexpected results")
	}
	u := r.Union(Rect{X: 10, Y: 10, Width: 1, Height: 1})
	if u != (Rect{X: -2, Y: -1, Width: 13, Height: 12}) {
		t.Errorf("unexpected union %+v", u)
	}
}

func TestPaper(t *testing.T) {
	tests := []struct {
		name        string
		orientation Orientation
		want        Size
	}{
		{"a4", Landscape, Size{Width: 842, Height: 595}},
		{"A4", Portrait, Size{Width: 595, Height: 842}},
		{" a0 ", Portrait, Size{Width: 2384, Height: 3370}},
	}
	for _, tt := range tests {
		p, ok := LookupPaper(tt.name)
		if !ok {
			t.Fatalf("LookupPaper(%q) not found", tt.name)
		}
		if got := p.Size(tt.orientation); got != tt.want {
			t.Errorf("LookupPaper(%q).Size(%s) = %+v, want %+v", tt.name, tt.orientation, got, tt.want)
		}
	}
	if _, ok := LookupPaper("letter"); ok {
		t.Errorf("expected letter to be unsupported")
	}
}

func TestParseOrientation(t *testing.T) {
	tests := []struct {
		input string
		want  Orientation
	}{
		{"portrait", Portrait},
		{"Portrait", Portrait},
		{"landscape", Landscape},
		{"", Landscape},
		{"sideways", Landscape},
	}
	for _, tt := range tests {
		if got := ParseOrientation(tt.input); got != tt.want {
			t.Errorf("ParseOrientation(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestMillimetersToPoints(t *testing.T) {
	if got := MillimetersToPoints(25.4); !near(got, 72) {
		t.Errorf("expected 72, got %g", got)
	}
}
