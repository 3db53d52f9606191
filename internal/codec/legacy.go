package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strconv"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"smokeplan/internal/domain"
	"smokeplan/internal/geometry"
)

// legacyProject is the project file written by the original desktop tool.
// Lines refer to detectors by list index.
type legacyProject struct {
	ProjectName   string           `json:"project_name"`
	FloorplanPath string           `json:"floorplan_path"`
	FloorplanBlob string           `json:"floorplan_blob"`
	PDFPage       *int             `json:"pdf_page"`
	Scale         json.RawMessage  `json:"scale"`
	Detectors     []legacyDetector `json:"detectors"`
	Lines         [][]json.Number  `json:"lines"`
}

type legacyDetector struct {
	X            float64     `json:"x"`
	Y            float64     `json:"y"`
	Model        string      `json:"model"`
	Range        looseString `json:"range"`
	BusNumber    looseString `json:"bus_number"`
	Group        looseString `json:"group"`
	Address      looseString `json:"address"`
	SerialNumber looseString `json:"serial_number"`
	RoomID       looseString `json:"room_id"`
	QRData       string      `json:"qr_data"`
	Brand        string      `json:"brand"`
	PairedSN     string      `json:"paired_sn"`
	DeviceType   string      `json:"device_type"`
}

// looseString accepts a JSON string, number or null.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*s = looseString(n.String())
	return nil
}

// ImportReport lists what a legacy import had to drop or repair
type ImportReport struct {
	Detectors    int      `json:"detectors"`
	Connections  int      `json:"connections"`
	SkippedLines int      `json:"skipped_lines"`
	Warnings     []string `json:"warnings,omitempty"`
}

func (r *ImportReport) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// IsLegacy reports whether data looks like a legacy project file: a JSON
// object without a format tag that carries one of the legacy keys.
func IsLegacy(data []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	if _, ok := probe["format"]; ok {
		return false
	}
	for _, key := range []string{"floorplan_blob", "floorplan_path", "lines", "project_name"} {
		if _, ok := probe[key]; ok {
			return true
		}
	}
	return false
}

// LegacyImporter converts legacy project files. Detectors get fresh IDs.
type LegacyImporter struct {
	newID func() string
}

// NewLegacyImporter creates an importer that assigns random IDs
func NewLegacyImporter() *LegacyImporter {
	return &LegacyImporter{}
}

// WithIDGenerator sets the ID source for imported detectors.
func (l *LegacyImporter) WithIDGenerator(fn func() string) *LegacyImporter {
	l.newID = fn
	return l
}

// Format returns the codec format identifier
func (l *LegacyImporter) Format() string {
	return "legacy"
}

// Decode imports a legacy project, discarding the report
func (l *LegacyImporter) Decode(r io.Reader) (*domain.Scene, error) {
	scene, _, err := l.Import(r)
	return scene, err
}

// Import converts a legacy project. Detector fields that fail validation are
// dropped with a warning; lines with bad indices are skipped and counted.
func (l *LegacyImporter) Import(r io.Reader) (*domain.Scene, *ImportReport, error) {
	var lp legacyProject
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	if err := decoder.Decode(&lp); err != nil {
		return nil, nil, fmt.Errorf("failed to parse legacy project: %w", err)
	}

	report := &ImportReport{}
	scene := domain.NewScene()
	if l.newID != nil {
		scene.SetIDGenerator(l.newID)
	}
	scene.Metadata.Name = lp.ProjectName

	plan, err := lp.plan(report)
	if err != nil {
		return nil, nil, err
	}
	if err := scene.SetPlan(plan); err != nil {
		return nil, nil, err
	}

	ids := make([]string, len(lp.Detectors))
	for i, ld := range lp.Detectors {
		d, err := scene.PlaceDetector(geometry.Plan(ld.X, ld.Y), domain.Defaults{
			Type: domain.ParseDeviceType(ld.DeviceType),
		})
		if err != nil {
			report.warn("detector %d: %v", i, err)
			continue
		}
		ids[i] = d.ID
		if err := applyLegacyFields(scene, d.ID, ld.update(), i, report); err != nil {
			return nil, nil, err
		}
		report.Detectors++
	}

	for i, line := range lp.Lines {
		a, okA := lineEnd(line, 0, ids)
		b, okB := lineEnd(line, 1, ids)
		if len(line) != 2 || !okA || !okB {
			report.SkippedLines++
			continue
		}
		if _, err := scene.Connect(a, b); err != nil {
			report.warn("line %d: %v", i, err)
			report.SkippedLines++
			continue
		}
		report.Connections++
	}

	return scene, report, nil
}

func (lp legacyProject) plan(report *ImportReport) (domain.FloorPlan, error) {
	plan := domain.FloorPlan{Path: lp.FloorplanPath}
	if lp.PDFPage != nil {
		plan.PDFPage = *lp.PDFPage
	}

	if lp.FloorplanBlob != "" {
		data, err := base64.StdEncoding.DecodeString(lp.FloorplanBlob)
		if err != nil {
			return plan, fmt.Errorf("failed to decode floorplan_blob: %w", err)
		}
		plan.SetImage(data)
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			plan.Width, plan.Height = cfg.Width, cfg.Height
		} else {
			report.warn("plan image dimensions unknown: %v", err)
		}
	}

	scale, err := legacyScale(lp.Scale)
	if err != nil {
		report.warn("scale ignored: %v", err)
		return plan, nil
	}
	ppm, ratio, err := domain.ParseScale(scale)
	if err != nil {
		report.warn("scale ignored: %v", err)
		return plan, nil
	}
	plan.PixelsPerMeter = ppm
	plan.ScaleText = ratio
	return plan, nil
}

// legacyScale accepts a JSON number, a string or null.
func legacyScale(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("unexpected scale %s", raw)
	}
	return n.String(), nil
}

func (ld legacyDetector) update() domain.DetectorUpdate {
	u := domain.DetectorUpdate{
		Model:        domain.StringPtr(ld.Model),
		Brand:        domain.StringPtr(ld.Brand),
		Bus:          domain.StringPtr(string(ld.BusNumber)),
		Group:        domain.StringPtr(string(ld.Group)),
		Address:      domain.StringPtr(string(ld.Address)),
		Serial:       domain.StringPtr(string(ld.SerialNumber)),
		PairedSerial: domain.StringPtr(ld.PairedSN),
		RoomID:       domain.StringPtr(string(ld.RoomID)),
		QRData:       domain.StringPtr(ld.QRData),
	}
	if r, err := strconv.ParseFloat(string(ld.Range), 64); err == nil && r > 0 {
		u.RangeM = domain.FloatPtr(r)
	}
	return u
}

// applyLegacyFields applies u, dropping each field that fails validation
// until the rest is accepted.
func applyLegacyFields(scene *domain.Scene, id string, u domain.DetectorUpdate, index int, report *ImportReport) error {
	for {
		_, err := scene.UpdateDetector(id, u)
		if err == nil {
			return nil
		}
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		report.warn("detector %d: dropped %s: %s", index, verr.Field, verr.Reason)
		switch verr.Field {
		case "range_m":
			u.RangeM = nil
		case "bus":
			u.Bus = nil
		case "group":
			u.Group = nil
		case "address":
			u.Address = nil
		default:
			return err
		}
	}
}

func lineEnd(line []json.Number, i int, ids []string) (string, bool) {
	if i >= len(line) {
		return "", false
	}
	n, err := strconv.Atoi(line[i].String())
	if err != nil || n < 0 || n >= len(ids) || ids[n] == "" {
		return "", false
	}
	return ids[n], true
}
