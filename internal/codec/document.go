package codec

import (
	"encoding/base64"
	"fmt"
	"time"

	"smokeplan/internal/domain"
)

const (
	// FormatName tags native project documents.
	FormatName = "smokeplan"
	// FormatVersion is the current document version.
	FormatVersion = 1
)

// document is the on-disk shape shared by the JSON and YAML codecs.
type document struct {
	Format      string              `json:"format" yaml:"format"`
	Version     int                 `json:"version" yaml:"version"`
	SavedAt     time.Time           `json:"saved_at,omitempty" yaml:"saved_at,omitempty"`
	Metadata    domain.Metadata     `json:"metadata" yaml:"metadata"`
	Plan        planDocument        `json:"plan" yaml:"plan"`
	Detectors   []domain.Detector   `json:"detectors" yaml:"detectors"`
	Connections []domain.Connection `json:"connections" yaml:"connections"`
}

type planDocument struct {
	Path           string  `json:"path,omitempty" yaml:"path,omitempty"`
	Width          int     `json:"width" yaml:"width"`
	Height         int     `json:"height" yaml:"height"`
	PixelsPerMeter float64 `json:"pixels_per_meter,omitempty" yaml:"pixels_per_meter,omitempty"`
	ScaleText      string  `json:"scale_text,omitempty" yaml:"scale_text,omitempty"`
	PDFPage        int     `json:"pdf_page,omitempty" yaml:"pdf_page,omitempty"`
	Image          string  `json:"image,omitempty" yaml:"image,omitempty"`
	Fingerprint    string  `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
}

func newDocument(snap *domain.Snapshot) document {
	p := snap.Plan
	doc := document{
		Format:   FormatName,
		Version:  FormatVersion,
		SavedAt:  snap.TakenAt,
		Metadata: snap.Metadata,
		Plan: planDocument{
			Path:           p.Path,
			Width:          p.Width,
			Height:         p.Height,
			PixelsPerMeter: p.PixelsPerMeter,
			ScaleText:      p.ScaleText,
			PDFPage:        p.PDFPage,
			Fingerprint:    p.Fingerprint,
		},
		Detectors:   snap.Detectors,
		Connections: snap.Connections,
	}
	if len(p.Data) > 0 {
		doc.Plan.Image = base64.StdEncoding.EncodeToString(p.Data)
		if doc.Plan.Fingerprint == "" {
			doc.Plan.Fingerprint = domain.Fingerprint(p.Data)
		}
	}
	if doc.Detectors == nil {
		doc.Detectors = []domain.Detector{}
	}
	if doc.Connections == nil {
		doc.Connections = []domain.Connection{}
	}
	return doc
}

// scene checks the version and image fingerprint, then restores the scene.
func (doc document) scene() (*domain.Scene, error) {
	if doc.Format != FormatName {
		return nil, fmt.Errorf("unexpected document format %q", doc.Format)
	}
	if doc.Version < 1 || doc.Version > FormatVersion {
		return nil, fmt.Errorf("unsupported document version %d", doc.Version)
	}

	plan := domain.FloorPlan{
		Path:           doc.Plan.Path,
		Width:          doc.Plan.Width,
		Height:         doc.Plan.Height,
		PixelsPerMeter: doc.Plan.PixelsPerMeter,
		ScaleText:      doc.Plan.ScaleText,
		PDFPage:        doc.Plan.PDFPage,
		Fingerprint:    doc.Plan.Fingerprint,
	}
	if doc.Plan.Image != "" {
		data, err := base64.StdEncoding.DecodeString(doc.Plan.Image)
		if err != nil {
			return nil, fmt.Errorf("failed to decode plan image: %w", err)
		}
		plan.Data = data
		if err := plan.VerifyImage(); err != nil {
			return nil, err
		}
		if plan.Fingerprint == "" {
			plan.Fingerprint = domain.Fingerprint(data)
		}
	}

	snap := domain.Snapshot{
		Metadata:    doc.Metadata,
		Plan:        plan,
		Detectors:   doc.Detectors,
		Connections: doc.Connections,
		TakenAt:     doc.SavedAt,
	}
	return snap.Restore()
}
