// Package layout turns a scene snapshot into an ordered list of page-space
// draw operations.
//
// Render is deterministic: the same snapshot, page and options always give
// the same operations. It writes no documents itself; a backend such as
// internal/pdf consumes the result.
package layout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"smokeplan/internal/domain"
	"smokeplan/internal/geometry"
)

// Fixed page-space metrics, in points. None of these scale with the plan.
const (
	MarkerRadius   = 4.0
	LabelFontSize  = 8.0
	LabelOffsetX   = 12.0
	LabelOffsetY   = -12.0
	FooterFontSize = 8.0
	FooterLeading  = 10.0
	FooterBand     = 48.0
)

// DefaultMargin is the page margin used when a Page has none.
var DefaultMargin = geometry.MillimetersToPoints(10)

// Options controls what Render draws
type Options struct {
	ShowRangeCircles  bool                 `json:"show_range_circles" yaml:"show_range_circles"`
	ShowAddressLabels bool                 `json:"show_address_labels" yaml:"show_address_labels"`
	Orientation       geometry.Orientation `json:"orientation" yaml:"orientation"`
	MetadataFooter    string               `json:"metadata_footer,omitempty" yaml:"metadata_footer,omitempty"`
	IncludeSchedule   bool                 `json:"include_schedule" yaml:"include_schedule"`
	GeneratedAt       time.Time            `json:"generated_at" yaml:"-"`
}

// DefaultOptions draws everything on a landscape page.
func DefaultOptions() Options {
	return Options{
		ShowRangeCircles:  true,
		ShowAddressLabels: true,
		Orientation:       geometry.Landscape,
	}
}

// Page is the output paper and its margin in points
type Page struct {
	Paper  geometry.Paper
	Margin float64
}

// DefaultPage is A4 with a 1 cm margin.
func DefaultPage() Page {
	return Page{Paper: geometry.A4, Margin: DefaultMargin}
}

// Document is the result of Render
type Document struct {
	Title       string                 `json:"title"`
	Size        geometry.Size          `json:"size"`
	Bounds      geometry.Rect          `json:"bounds"`
	Transform   geometry.PageTransform `json:"transform"`
	Ops         []Op                   `json:"-"`
	Schedule    []BusSchedule          `json:"schedule,omitempty"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// MarshalJSON encodes the document with its operations tagged by kind.
func (d *Document) MarshalJSON() ([]byte, error) {
	ops, err := marshalOps(d.Ops)
	if err != nil {
		return nil, err
	}
	type plain Document
	return json.Marshal(struct {
		*plain
		Ops []json.RawMessage `json:"ops"`
	}{plain: (*plain)(d), Ops: ops})
}

// Render lays out snap on page. It fails with geometry.ErrDegenerateGeometry
// when the plan bounds have no area, and with ctx.Err() when cancelled.
func Render(ctx context.Context, snap *domain.Snapshot, page Page, opts Options) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	orientation := geometry.ParseOrientation(string(opts.Orientation))
	size := page.Paper.Size(orientation)
	margin := page.Margin
	if margin <= 0 {
		margin = DefaultMargin
	}

	bounds := planBounds(snap)
	content := geometry.Size{Width: size.Width, Height: size.Height - FooterBand}
	tr, err := geometry.FitToPage(bounds, content, margin)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Title:       title(snap),
		Size:        size,
		Bounds:      bounds,
		Transform:   tr,
		GeneratedAt: opts.GeneratedAt,
	}

	if extent, ok := snap.Plan.Extent(); ok {
		origin := tr.Apply(geometry.Plan(extent.X, extent.Y))
		doc.Ops = append(doc.Ops, ImageOp{
			Rect: geometry.Rect{
				X:      origin.X,
				Y:      origin.Y,
				Width:  tr.Length(extent.Width),
				Height: tr.Length(extent.Height),
			},
			Source: imageSource(snap.Plan),
			Plan:   snap.Plan,
		})
	}

	serials := snap.SerialCounts()
	centers := make(map[string]geometry.PagePoint, len(snap.Detectors))
	for _, d := range snap.Detectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		center := tr.Apply(d.Position)
		centers[d.ID] = center

		fill := Orange
		if d.Serial != "" && serials[d.Serial] == 1 {
			fill = Green
		}
		doc.Ops = append(doc.Ops, MarkerOp{
			DetectorID: d.ID,
			Type:       d.Type,
			Center:     center,
			Radius:     MarkerRadius,
			Fill:       fill,
		})

		if opts.ShowRangeCircles && d.Type.HasRange() && snap.Plan.Calibrated() {
			doc.Ops = append(doc.Ops, CircleOp{
				DetectorID: d.ID,
				Center:     center,
				Radius:     tr.Length(snap.Plan.MetersToPlan(d.RangeM)),
				Stroke:     RangeRed,
			})
		}

		if label := d.AddressLabel(); opts.ShowAddressLabels && label != "" {
			doc.Ops = append(doc.Ops, LabelOp{
				DetectorID: d.ID,
				At:         center.Offset(LabelOffsetX, LabelOffsetY),
				Text:       label,
				FontSize:   LabelFontSize,
			})
		}
	}

	for _, c := range snap.Connections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		from, okFrom := centers[c.FromID]
		to, okTo := centers[c.ToID]
		if !okFrom || !okTo {
			continue
		}
		doc.Ops = append(doc.Ops, LineOp{ConnectionID: c.ID, From: from, To: to, Stroke: Black})
	}

	doc.Ops = append(doc.Ops, FooterOp{
		At:         geometry.Page(margin, size.Height-FooterBand+FooterLeading),
		Lines:      footerLines(snap, opts),
		FontSize:   FooterFontSize,
		LineHeight: FooterLeading,
	})

	if opts.IncludeSchedule {
		doc.Schedule = BuildSchedule(snap)
	}

	return doc, nil
}

// planBounds is the union of the image extent and every detector position.
func planBounds(snap *domain.Snapshot) geometry.Rect {
	points := make([]geometry.Point2D, 0, len(snap.Detectors)+2)
	if extent, ok := snap.Plan.Extent(); ok {
		points = append(points,
			geometry.Point2D{X: extent.X, Y: extent.Y},
			geometry.Point2D{X: extent.X + extent.Width, Y: extent.Y + extent.Height})
	}
	for _, d := range snap.Detectors {
		points = append(points, geometry.Point2D(d.Position))
	}
	return geometry.BoundsOf(points...)
}

func title(snap *domain.Snapshot) string {
	if snap.Metadata.Name != "" {
		return snap.Metadata.Name
	}
	return "Untitled project"
}

func imageSource(p domain.FloorPlan) string {
	switch {
	case p.Path != "":
		return p.Path
	case len(p.Fingerprint) >= 12:
		return "embedded:" + p.Fingerprint[:12]
	default:
		return "embedded"
	}
}

func footerLines(snap *domain.Snapshot, opts Options) []string {
	lines := []string{title(snap)}
	if snap.Metadata.Notes != "" {
		lines = append(lines, snap.Metadata.Notes)
	}
	if opts.MetadataFooter != "" {
		lines = append(lines, opts.MetadataFooter)
	}
	lines = append(lines, fmt.Sprintf("Generated: %s | Scale: %s | Devices: %d | Connections: %d",
		opts.GeneratedAt.Format("2006-01-02 15:04"), scaleText(snap.Plan),
		len(snap.Detectors), len(snap.Connections)))
	return lines
}

func scaleText(p domain.FloorPlan) string {
	switch {
	case p.Calibrated():
		return fmt.Sprintf("%.2f px/m", p.PixelsPerMeter)
	case p.ScaleText != "":
		return p.ScaleText + " (uncalibrated)"
	default:
		return "uncalibrated"
	}
}
