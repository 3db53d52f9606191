package geometry

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrDegenerateGeometry is returned when plan bounds have no area or the page
// leaves no room for content.
var ErrDegenerateGeometry = errors.New("degenerate geometry")

// Size is a width and height in page points.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PageTransform maps plan space onto an export page with a uniform scale.
type PageTransform struct {
	Scale  float64   `json:"scale"`
	Offset PagePoint `json:"offset"`
}

// Apply converts a plan point into page space.
func (t PageTransform) Apply(p PlanPoint) PagePoint {
	return PagePoint{X: p.X*t.Scale + t.Offset.X, Y: p.Y*t.Scale + t.Offset.Y}
}

// Length converts a plan-space length into page space.
func (t PageTransform) Length(l float64) float64 {
	return l * t.Scale
}

// FitToPage computes the largest uniform scale that fits box plus margin on
// every side inside page, and centres the scaled box in the remaining space.
func FitToPage(box Rect, page Size, margin float64) (PageTransform, error) {
	if box.Degenerate() {
		return PageTransform{}, fmt.Errorf("%w: plan bounds %gx%g", ErrDegenerateGeometry, box.Width, box.Height)
	}
	if margin < 0 || math.IsNaN(margin) {
		margin = 0
	}

	availW := page.Width - 2*margin
	availH := page.Height - 2*margin
	if !(availW > 0) || !(availH > 0) {
		return PageTransform{}, fmt.Errorf("%w: page %gx%g with margin %g has no drawable area",
			ErrDegenerateGeometry, page.Width, page.Height, margin)
	}

	scale := math.Min(availW/box.Width, availH/box.Height)

	return PageTransform{
		Scale: scale,
		Offset: PagePoint{
			X: margin + (availW-box.Width*scale)/2 - box.X*scale,
			Y: margin + (availH-box.Height*scale)/2 - box.Y*scale,
		},
	}, nil
}

// Orientation selects how a paper size is turned.
type Orientation string

const (
	Landscape Orientation = "landscape"
	Portrait  Orientation = "portrait"
)

// ParseOrientation converts a string to Orientation, defaulting to Landscape.
func ParseOrientation(s string) Orientation {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "portrait":
		return Portrait
	default:
		return Landscape
	}
}

// Paper is an ISO paper size in portrait orientation, in PDF points.
type Paper struct {
	Name   string
	Width  float64
	Height float64
}

var papers = map[string]Paper{
	"A0": {Name: "A0", Width: 2384, Height: 3370},
	"A1": {Name: "A1", Width: 1684, Height: 2384},
	"A2": {Name: "A2", Width: 1191, Height: 1684},
	"A3": {Name: "A3", Width: 842, Height: 1191},
	"A4": {Name: "A4", Width: 595, Height: 842},
	"A5": {Name: "A5", Width: 420, Height: 595},
}

// A4 is the default export paper.
var A4 = papers["A4"]

// LookupPaper finds a paper size by name, case-insensitively.
func LookupPaper(name string) (Paper, bool) {
	p, ok := papers[strings.ToUpper(strings.TrimSpace(name))]
	return p, ok
}

// PaperNames lists the supported paper names in order.
func PaperNames() []string {
	names := make([]string, 0, len(papers))
	for name := range papers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size returns the paper dimensions turned to the given orientation.
func (p Paper) Size(o Orientation) Size {
	w, h := math.Min(p.Width, p.Height), math.Max(p.Width, p.Height)
	if o == Landscape {
		w, h = h, w
	}
	return Size{Width: w, Height: h}
}

// MillimetersToPoints converts millimetres to PDF points (1/72 inch).
func MillimetersToPoints(mm float64) float64 {
	return mm * 72.0 / 25.4
}
