package layout

import (
	"encoding/json"
	"fmt"

	"smokeplan/internal/domain"
	"smokeplan/internal/geometry"
)

// OpKind names a draw operation
type OpKind string

const (
	OpImage  OpKind = "image"
	OpMarker OpKind = "marker"
	OpCircle OpKind = "circle"
	OpLabel  OpKind = "label"
	OpLine   OpKind = "line"
	OpFooter OpKind = "footer"
)

// Op is one page-space drawing instruction. Backends switch on the concrete type.
type Op interface {
	Kind() OpKind
}

// Color is an RGB colour
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

var (
	// Green marks a detector whose serial is unique in the project.
	Green = Color{R: 0, G: 200, B: 0}
	// Orange marks a detector whose serial is missing or shared.
	Orange = Color{R: 255, G: 140, B: 0}
	// Black is used for wiring and text.
	Black = Color{}
	// RangeRed outlines coverage circles.
	RangeRed = Color{R: 220, G: 40, B: 40}
)

// ImageOp draws the floor-plan raster into Rect. Source names the image for
// display; backends read pixels from Plan.
type ImageOp struct {
	Rect   geometry.Rect    `json:"rect"`
	Source string           `json:"source"`
	Plan   domain.FloorPlan `json:"-"`
}

// MarkerOp draws a detector symbol centred on Center.
type MarkerOp struct {
	DetectorID string             `json:"detector_id"`
	Type       domain.DeviceType  `json:"type"`
	Center     geometry.PagePoint `json:"center"`
	Radius     float64            `json:"radius"`
	Fill       Color              `json:"fill"`
}

// CircleOp outlines a detector's coverage range.
type CircleOp struct {
	DetectorID string             `json:"detector_id"`
	Center     geometry.PagePoint `json:"center"`
	Radius     float64            `json:"radius"`
	Stroke     Color              `json:"stroke"`
}

// LabelOp writes a short text whose baseline starts at At.
type LabelOp struct {
	DetectorID string             `json:"detector_id"`
	At         geometry.PagePoint `json:"at"`
	Text       string             `json:"text"`
	FontSize   float64            `json:"font_size"`
}

// LineOp draws a wire between two detector markers.
type LineOp struct {
	ConnectionID string             `json:"connection_id"`
	From         geometry.PagePoint `json:"from"`
	To           geometry.PagePoint `json:"to"`
	Stroke       Color              `json:"stroke"`
}

// FooterOp writes the metadata block. Lines are stacked downwards from At.
type FooterOp struct {
	At         geometry.PagePoint `json:"at"`
	Lines      []string           `json:"lines"`
	FontSize   float64            `json:"font_size"`
	LineHeight float64            `json:"line_height"`
}

func (ImageOp) Kind() OpKind  { return OpImage }
func (MarkerOp) Kind() OpKind { return OpMarker }
func (CircleOp) Kind() OpKind { return OpCircle }
func (LabelOp) Kind() OpKind  { return OpLabel }
func (LineOp) Kind() OpKind   { return OpLine }
func (FooterOp) Kind() OpKind { return OpFooter }

// Filter returns the operations of one kind, in order.
func Filter(ops []Op, kind OpKind) []Op {
	var out []Op
	for _, op := range ops {
		if op.Kind() == kind {
			out = append(out, op)
		}
	}
	return out
}

// marshalOps encodes operations as JSON objects tagged with an "op" field.
func marshalOps(ops []Op) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(ops))
	for i, op := range ops {
		body, err := json.Marshal(op)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s op: %w", op.Kind(), err)
		}
		tagged := []byte(fmt.Sprintf(`{"op":%q`, op.Kind()))
		if len(body) > 2 {
			tagged = append(tagged, ',')
		}
		out[i] = append(tagged, body[1:]...)
	}
	return out, nil
}
