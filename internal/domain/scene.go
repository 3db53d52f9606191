package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"smokeplan/internal/geometry"
)

// Metadata describes the project a scene belongs to
type Metadata struct {
	Name  string `json:"name" yaml:"name"`
	Notes string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Defaults are applied to newly placed detectors
type Defaults struct {
	RangeM float64
	Type   DeviceType
}

// Scene is a floor plan with its detectors and connections.
//
// A Scene is not safe for concurrent use; callers that share one across
// goroutines must serialise access.
type Scene struct {
	Metadata Metadata
	Plan     FloorPlan

	detectors   map[string]*Detector
	connections map[string]*Connection
	pairs       map[pairKey]string

	newID func() string
}

// NewScene creates an empty scene
func NewScene() *Scene {
	return &Scene{
		detectors:   make(map[string]*Detector),
		connections: make(map[string]*Connection),
		pairs:       make(map[pairKey]string),
		newID:       uuid.NewString,
	}
}

// SetIDGenerator replaces the detector ID source. Used by tests and importers
// that need predictable IDs.
func (s *Scene) SetIDGenerator(fn func() string) {
	if fn == nil {
		fn = uuid.NewString
	}
	s.newID = fn
}

// SetPlan replaces the floor plan reference
func (s *Scene) SetPlan(p FloorPlan) error {
	if err := p.validate(); err != nil {
		return err
	}
	s.Plan = p.clone()
	return nil
}

// Calibrate sets the plan scale from two points a known distance apart
func (s *Scene) Calibrate(a, b geometry.PlanPoint, meters float64) error {
	plan := s.Plan
	if err := plan.Calibrate(a, b, meters); err != nil {
		return err
	}
	s.Plan = plan
	return nil
}

// PlaceDetector adds a detector at pos with the given defaults. Zero defaults
// fall back to a smoke detector with the standard range.
func (s *Scene) PlaceDetector(pos geometry.PlanPoint, defaults Defaults) (Detector, error) {
	d := Detector{
		Type:     defaults.Type,
		Position: pos,
		RangeM:   defaults.RangeM,
	}
	if d.Type == "" {
		d.Type = DeviceDetector
	}
	if d.RangeM == 0 {
		d.RangeM = DefaultRangeM
	}
	if err := d.validate(); err != nil {
		return Detector{}, err
	}

	d.ID = s.nextID()
	s.detectors[d.ID] = &d
	return d, nil
}

func (s *Scene) nextID() string {
	for {
		id := s.newID()
		if _, taken := s.detectors[id]; !taken && id != "" {
			return id
		}
	}
}

// MoveDetector changes the position of a detector
func (s *Scene) MoveDetector(id string, pos geometry.PlanPoint) error {
	d, ok := s.detectors[id]
	if !ok {
		return notFound("detector", id)
	}
	if !pos.IsFinite() {
		return invalid("position", "coordinates must be finite")
	}
	d.Position = pos
	return nil
}

// UpdateDetector applies a partial update. If any field is invalid the
// detector is left unchanged and a *ValidationError is returned.
func (s *Scene) UpdateDetector(id string, u DetectorUpdate) (Detector, error) {
	d, ok := s.detectors[id]
	if !ok {
		return Detector{}, notFound("detector", id)
	}
	next, err := u.apply(*d)
	if err != nil {
		return *d, err
	}
	*d = next
	return next, nil
}

// RemoveDetector deletes a detector and every connection touching it. The IDs
// of the removed connections are returned in sorted order.
func (s *Scene) RemoveDetector(id string) ([]string, error) {
	if _, ok := s.detectors[id]; !ok {
		return nil, notFound("detector", id)
	}

	var removed []string
	for cid, c := range s.connections {
		if c.Involves(id) {
			removed = append(removed, cid)
		}
	}
	sort.Strings(removed)
	for _, cid := range removed {
		s.dropConnection(cid)
	}
	delete(s.detectors, id)
	return removed, nil
}

// Connect wires two detectors together
func (s *Scene) Connect(a, b string) (Connection, error) {
	c := Connection{FromID: a, ToID: b}
	if err := s.checkConnection(&c); err != nil {
		return Connection{}, err
	}
	c.Normalize()
	c.ID = c.GenerateID()
	if _, taken := s.connections[c.ID]; taken {
		return Connection{}, duplicate(c.FromID, c.ToID, c.ID)
	}
	s.addConnection(c)
	return c, nil
}

// Disconnect removes a connection
func (s *Scene) Disconnect(id string) error {
	if _, ok := s.connections[id]; !ok {
		return notFound("connection", id)
	}
	s.dropConnection(id)
	return nil
}

func (s *Scene) checkConnection(c *Connection) error {
	if _, ok := s.detectors[c.FromID]; !ok {
		return notFound("detector", c.FromID)
	}
	if _, ok := s.detectors[c.ToID]; !ok {
		return notFound("detector", c.ToID)
	}
	if c.FromID == c.ToID {
		return ErrSelfConnection
	}
	if existing, ok := s.pairs[c.pairKey()]; ok {
		return duplicate(c.FromID, c.ToID, existing)
	}
	return nil
}

func (s *Scene) addConnection(c Connection) {
	s.connections[c.ID] = &c
	s.pairs[c.pairKey()] = c.ID
}

func (s *Scene) dropConnection(id string) {
	if c, ok := s.connections[id]; ok {
		delete(s.pairs, c.pairKey())
		delete(s.connections, id)
	}
}

// RestoreDetector inserts a detector with an existing ID, as read from storage
func (s *Scene) RestoreDetector(d Detector) error {
	if d.ID == "" {
		return invalid("id", "must not be empty")
	}
	if _, taken := s.detectors[d.ID]; taken {
		return invalid("id", "duplicate detector id "+d.ID)
	}
	if d.Type == "" {
		d.Type = DeviceDetector
	}
	if err := d.validate(); err != nil {
		return err
	}
	s.detectors[d.ID] = &d
	return nil
}

// RestoreConnection inserts a connection read from storage. The stored ID is
// kept; a missing ID is derived from the endpoints.
func (s *Scene) RestoreConnection(c Connection) error {
	if err := s.checkConnection(&c); err != nil {
		return err
	}
	c.Normalize()
	if c.ID == "" {
		c.ID = c.GenerateID()
	}
	if _, taken := s.connections[c.ID]; taken {
		return invalid("id", "duplicate connection id "+c.ID)
	}
	s.addConnection(c)
	return nil
}

// Detector returns a copy of the detector with the given ID
func (s *Scene) Detector(id string) (Detector, error) {
	d, ok := s.detectors[id]
	if !ok {
		return Detector{}, notFound("detector", id)
	}
	return *d, nil
}

// Detectors returns copies of all detectors sorted by ID
func (s *Scene) Detectors() []Detector {
	out := make([]Detector, 0, len(s.detectors))
	for _, d := range s.detectors {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Connection returns a copy of the connection with the given ID
func (s *Scene) Connection(id string) (Connection, error) {
	c, ok := s.connections[id]
	if !ok {
		return Connection{}, notFound("connection", id)
	}
	return *c, nil
}

// Connections returns copies of all connections sorted by ID
func (s *Scene) Connections() []Connection {
	out := make([]Connection, 0, len(s.connections))
	for _, c := range s.connections {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ConnectionsOf returns the connections touching a detector, sorted by ID
func (s *Scene) ConnectionsOf(id string) ([]Connection, error) {
	if _, ok := s.detectors[id]; !ok {
		return nil, notFound("detector", id)
	}
	var out []Connection
	for _, c := range s.connections {
		if c.Involves(id) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PairedDetector resolves the same-enclosure twin of a detector through its
// paired serial.
func (s *Scene) PairedDetector(id string) (Detector, error) {
	d, ok := s.detectors[id]
	if !ok {
		return Detector{}, notFound("detector", id)
	}
	if d.PairedSerial == "" {
		return Detector{}, notFound("paired detector for", id)
	}
	var match *Detector
	for _, other := range s.detectors {
		if other.ID == id || other.Serial != d.PairedSerial {
			continue
		}
		if match == nil || other.ID < match.ID {
			match = other
		}
	}
	if match == nil {
		return Detector{}, notFound("paired detector with serial", d.PairedSerial)
	}
	return *match, nil
}

// Len returns the number of detectors and connections
func (s *Scene) Len() (detectors, connections int) {
	return len(s.detectors), len(s.connections)
}

// Snapshot returns a detached copy of the scene
func (s *Scene) Snapshot() *Snapshot {
	return &Snapshot{
		Metadata:    s.Metadata,
		Plan:        s.Plan.clone(),
		Detectors:   s.Detectors(),
		Connections: s.Connections(),
		TakenAt:     time.Now().UTC(),
	}
}

func duplicate(a, b, existing string) error {
	return fmt.Errorf("%w: %s and %s (connection %s)", ErrDuplicateConnection, a, b, existing)
}
