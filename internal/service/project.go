package service

import (
	"context"
	"fmt"
	"io"
	"sync"

	"smokeplan/internal/codec"
	"smokeplan/internal/domain"
	"smokeplan/internal/geometry"
	"smokeplan/internal/identity"
	"smokeplan/internal/logging"
	"smokeplan/internal/observability"
)

// ProjectService provides the mutation and query operations on one open scene
type ProjectService struct {
	mu    sync.Mutex
	scene *domain.Scene

	defaults domain.Defaults
	view     geometry.ViewTransform
	zoomStep float64
	parser   *identity.Parser

	eventBus *EventBus
	log      logging.Logger
	metrics  *observability.Collector
}

// ProjectOption configures a ProjectService
type ProjectOption func(*ProjectService)

// WithLogger sets the service logger
func WithLogger(l logging.Logger) ProjectOption {
	return func(s *ProjectService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records mutations and scene size on c
func WithMetrics(c *observability.Collector) ProjectOption {
	return func(s *ProjectService) { s.metrics = c }
}

// WithDefaults sets the values given to newly placed detectors
func WithDefaults(d domain.Defaults) ProjectOption {
	return func(s *ProjectService) { s.defaults = d }
}

// WithView sets the initial view transform and the factor applied per zoom step
func WithView(t geometry.ViewTransform, zoomStep float64) ProjectOption {
	return func(s *ProjectService) {
		s.view = t
		if zoomStep > 1 {
			s.zoomStep = zoomStep
		}
	}
}

// WithParser replaces the QR payload parser
func WithParser(p *identity.Parser) ProjectOption {
	return func(s *ProjectService) {
		if p != nil {
			s.parser = p
		}
	}
}

// NewProjectService wraps scene. A nil scene starts an empty project.
func NewProjectService(scene *domain.Scene, eventBus *EventBus, opts ...ProjectOption) *ProjectService {
	if scene == nil {
		scene = domain.NewScene()
	}
	s := &ProjectService{
		scene:    scene,
		view:     geometry.NewViewTransform(geometry.DefaultMinZoom, geometry.DefaultMaxZoom),
		zoomStep: geometry.DefaultZoomStep,
		parser:   identity.DefaultParser(),
		eventBus: eventBus,
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.view.PixelScale = 1
	s.updateGauges()
	return s
}

// publish records and announces a successful mutation. Callers hold s.mu.
func (s *ProjectService) publish(ctx context.Context, t EventType, payload interface{}) {
	s.metrics.ObserveMutation(string(t))
	s.updateGauges()
	s.log.Debug(ctx, "scene mutated", logging.String("event", string(t)), logging.Any("payload", payload))
	s.eventBus.Publish(Event{Type: t, Payload: payload})
}

func (s *ProjectService) updateGauges() {
	detectors, connections := s.scene.Len()
	s.metrics.SetSceneCounts(detectors, connections)
}

// Snapshot returns a detached copy of the scene for export or encoding
func (s *ProjectService) Snapshot() *domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.Snapshot()
}

// Metadata returns the project metadata
func (s *ProjectService) Metadata() domain.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.Metadata
}

// SetMetadata replaces the project name and notes
func (s *ProjectService) SetMetadata(ctx context.Context, m domain.Metadata) error {
	if len(m.Name) > 200 {
		return &domain.ValidationError{Field: "name", Reason: "must be at most 200 characters"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scene.Metadata = m
	s.publish(ctx, EventMetadataUpdated, m)
	return nil
}

// Plan returns the floor plan reference
func (s *ProjectService) Plan() domain.FloorPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.Plan
}

// SetPlan replaces the floor plan reference
func (s *ProjectService) SetPlan(ctx context.Context, p domain.FloorPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.scene.SetPlan(p); err != nil {
		return err
	}
	s.publish(ctx, EventPlanChanged, planSummary(s.scene.Plan))
	return nil
}

// Calibrate sets the plan scale from two points a known distance apart
func (s *ProjectService) Calibrate(ctx context.Context, a, b geometry.PlanPoint, meters float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.scene.Calibrate(a, b, meters); err != nil {
		return err
	}
	s.publish(ctx, EventPlanChanged, planSummary(s.scene.Plan))
	return nil
}

// PlaceDetector adds a detector at pos using the configured defaults
func (s *ProjectService) PlaceDetector(ctx context.Context, pos geometry.PlanPoint) (domain.Detector, error) {
	if !pos.IsFinite() {
		return domain.Detector{}, &domain.ValidationError{Field: "position", Reason: "coordinates must be finite"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.scene.PlaceDetector(pos, s.defaults)
	if err != nil {
		return domain.Detector{}, err
	}
	s.publish(ctx, EventDetectorPlaced, d)
	return d, nil
}

// MoveDetector changes the position of a detector
func (s *ProjectService) MoveDetector(ctx context.Context, id string, pos geometry.PlanPoint) (domain.Detector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.scene.MoveDetector(id, pos); err != nil {
		return domain.Detector{}, err
	}
	d, err := s.scene.Detector(id)
	if err != nil {
		return domain.Detector{}, err
	}
	s.publish(ctx, EventDetectorMoved, map[string]interface{}{"detector_id": id, "position": pos})
	return d, nil
}

// UpdateDetector applies a partial update atomically
func (s *ProjectService) UpdateDetector(ctx context.Context, id string, u domain.DetectorUpdate) (domain.Detector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.scene.UpdateDetector(id, u)
	if err != nil {
		return domain.Detector{}, err
	}
	if !u.Empty() {
		s.publish(ctx, EventDetectorUpdated, d)
	}
	return d, nil
}

// RemoveDetector deletes a detector and the connections touching it
func (s *ProjectService) RemoveDetector(ctx context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed, err := s.scene.RemoveDetector(id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventDetectorRemoved, map[string]interface{}{
		"detector_id":         id,
		"removed_connections": removed,
	})
	return removed, nil
}

// Detector returns one detector
func (s *ProjectService) Detector(id string) (domain.Detector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.Detector(id)
}

// Detectors returns all detectors sorted by ID
func (s *ProjectService) Detectors() []domain.Detector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.Detectors()
}

// PairedDetector resolves a detector's same-enclosure twin
func (s *ProjectService) PairedDetector(id string) (domain.Detector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.PairedDetector(id)
}

// Connect wires two detectors together
func (s *ProjectService) Connect(ctx context.Context, a, b string) (domain.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.scene.Connect(a, b)
	if err != nil {
		return domain.Connection{}, err
	}
	s.publish(ctx, EventConnectionCreated, c)
	return c, nil
}

// Disconnect removes a connection
func (s *ProjectService) Disconnect(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.scene.Disconnect(id); err != nil {
		return err
	}
	s.publish(ctx, EventConnectionRemoved, map[string]string{"connection_id": id})
	return nil
}

// Connections returns all connections sorted by ID
func (s *ProjectService) Connections() []domain.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.Connections()
}

// ConnectionsOf returns the connections touching one detector
func (s *ProjectService) ConnectionsOf(id string) ([]domain.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.ConnectionsOf(id)
}

// ParseQR previews the fields a payload would set. Nothing is changed.
func (s *ProjectService) ParseQR(payload string) (identity.Fields, error) {
	return s.parser.Parse(payload)
}

// ApplyQR parses payload and applies the result to a detector in one step.
// On any failure the detector is unchanged.
func (s *ProjectService) ApplyQR(ctx context.Context, id, payload string) (domain.Detector, identity.Fields, error) {
	fields, err := s.parser.Parse(payload)
	if err != nil {
		return domain.Detector{}, fields, err
	}
	d, err := s.UpdateDetector(ctx, id, fields.Update())
	if err != nil {
		return domain.Detector{}, fields, err
	}
	return d, fields, nil
}

// Find searches detectors by serial, address label or room
func (s *ProjectService) Find(query string) []domain.Detector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.FindDetectors(query)
}

// Validate checks the project for installation problems
func (s *ProjectService) Validate() domain.Report {
	return domain.Validate(s.Snapshot())
}

// Save encodes the current scene with enc
func (s *ProjectService) Save(w io.Writer, enc codec.Encoder) error {
	if err := enc.Encode(w, s.Snapshot()); err != nil {
		return fmt.Errorf("failed to encode project as %s: %w", enc.Format(), err)
	}
	return nil
}

// Load replaces the open scene with one decoded from r. The current scene is
// kept when decoding fails.
func (s *ProjectService) Load(ctx context.Context, r io.Reader, dec codec.Decoder) error {
	scene, err := dec.Decode(r)
	if err != nil {
		return fmt.Errorf("failed to decode %s project: %w", dec.Format(), err)
	}
	s.Replace(ctx, scene)
	return nil
}

// Replace swaps in a new scene
func (s *ProjectService) Replace(ctx context.Context, scene *domain.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scene = scene
	detectors, connections := scene.Len()
	s.log.Info(ctx, "project loaded",
		logging.String("name", scene.Metadata.Name),
		logging.Int("detectors", detectors),
		logging.Int("connections", connections),
	)
	s.publish(ctx, EventSceneLoaded, map[string]interface{}{
		"name":        scene.Metadata.Name,
		"detectors":   detectors,
		"connections": connections,
	})
}

func planSummary(p domain.FloorPlan) map[string]interface{} {
	return map[string]interface{}{
		"path":             p.Path,
		"width":            p.Width,
		"height":           p.Height,
		"pixels_per_meter": p.PixelsPerMeter,
		"scale_text":       p.ScaleText,
	}
}
