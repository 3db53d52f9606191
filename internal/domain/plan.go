package domain

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"smokeplan/internal/geometry"
)

// FloorPlan references the background image a scene is drawn on.
//
// Width and Height are image pixels. PixelsPerMeter is zero until the plan is
// calibrated; ScaleText keeps a drawing ratio such as "1:100" that was entered
// without calibration.
type FloorPlan struct {
	Path           string  `json:"path,omitempty" yaml:"path,omitempty"`
	Width          int     `json:"width" yaml:"width"`
	Height         int     `json:"height" yaml:"height"`
	PixelsPerMeter float64 `json:"pixels_per_meter,omitempty" yaml:"pixels_per_meter,omitempty"`
	ScaleText      string  `json:"scale_text,omitempty" yaml:"scale_text,omitempty"`
	PDFPage        int     `json:"pdf_page,omitempty" yaml:"pdf_page,omitempty"`
	Data           []byte  `json:"data,omitempty" yaml:"-"`
	Fingerprint    string  `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
}

// Calibrated reports whether physical distances can be derived from the plan.
func (p FloorPlan) Calibrated() bool {
	return p.PixelsPerMeter > 0
}

// Extent returns the image rectangle in plan space. ok is false when the
// pixel dimensions are unknown.
func (p FloorPlan) Extent() (r geometry.Rect, ok bool) {
	if p.Width <= 0 || p.Height <= 0 {
		return geometry.Rect{}, false
	}
	return geometry.Rect{Width: float64(p.Width), Height: float64(p.Height)}, true
}

// MetersToPlan converts a physical length to plan units. Uncalibrated plans
// return zero.
func (p FloorPlan) MetersToPlan(m float64) float64 {
	return m * p.PixelsPerMeter
}

// Calibrate sets the plan scale from two plan points a known distance apart.
func (p *FloorPlan) Calibrate(a, b geometry.PlanPoint, meters float64) error {
	if !a.IsFinite() || !b.IsFinite() {
		return invalid("calibration", "points must be finite")
	}
	if !(meters > 0) || math.IsInf(meters, 0) {
		return invalid("calibration", "distance must be a positive number of metres")
	}
	pixels := a.Distance(b)
	if pixels <= 0 {
		return invalid("calibration", "points must not coincide")
	}
	p.PixelsPerMeter = pixels / meters
	p.ScaleText = ""
	return nil
}

// SetImage embeds raw image bytes and records their fingerprint.
func (p *FloorPlan) SetImage(data []byte) {
	p.Data = append([]byte(nil), data...)
	p.Fingerprint = Fingerprint(data)
}

// VerifyImage checks embedded bytes against the stored fingerprint. Plans
// without embedded bytes or without a fingerprint always pass.
func (p FloorPlan) VerifyImage() error {
	if len(p.Data) == 0 || p.Fingerprint == "" {
		return nil
	}
	if got := Fingerprint(p.Data); got != p.Fingerprint {
		return invalid("plan.data", fmt.Sprintf("fingerprint mismatch: have %s, want %s", got, p.Fingerprint))
	}
	return nil
}

func (p FloorPlan) validate() *ValidationError {
	if p.Width < 0 || p.Height < 0 {
		return invalid("plan", "pixel dimensions must not be negative")
	}
	if p.PixelsPerMeter < 0 || math.IsNaN(p.PixelsPerMeter) || math.IsInf(p.PixelsPerMeter, 0) {
		return invalid("plan.pixels_per_meter", "must be a finite non-negative number")
	}
	if p.Fingerprint != "" && !validFingerprint(p.Fingerprint) {
		return invalid("plan.fingerprint", "must be 64 hex characters")
	}
	return nil
}

func validFingerprint(s string) bool {
	if len(s) != 2*blake2b.Size256 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func (p FloorPlan) clone() FloorPlan {
	if p.Data != nil {
		p.Data = append([]byte(nil), p.Data...)
	}
	return p
}

// Fingerprint returns the hex BLAKE2b-256 digest of data.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ParseScale interprets a scale entry. A plain number is metres per pixel and
// yields pixels-per-metre; a "1:N" drawing ratio is returned as text because
// it cannot be turned into pixels without calibration.
func ParseScale(text string) (pixelsPerMeter float64, ratio string, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, "", nil
	}
	if strings.HasPrefix(text, "1:") {
		n, perr := strconv.ParseFloat(strings.TrimSpace(text[2:]), 64)
		if perr != nil || !(n > 0) {
			return 0, "", invalid("scale", fmt.Sprintf("bad ratio %q", text))
		}
		return 0, text, nil
	}
	mpp, perr := strconv.ParseFloat(text, 64)
	if perr != nil || !(mpp > 0) || math.IsInf(mpp, 0) {
		return 0, "", invalid("scale", fmt.Sprintf("expected metres per pixel or 1:N, got %q", text))
	}
	return 1 / mpp, "", nil
}
