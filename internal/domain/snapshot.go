package domain

import (
	"sort"
	"time"
)

// Snapshot is a read-only copy of a Scene taken at one moment. Detectors and
// connections are sorted by ID.
type Snapshot struct {
	Metadata    Metadata     `json:"metadata"`
	Plan        FloorPlan    `json:"plan"`
	Detectors   []Detector   `json:"detectors"`
	Connections []Connection `json:"connections"`
	TakenAt     time.Time    `json:"taken_at"`
}

// Lookup finds a detector by ID
func (s *Snapshot) Lookup(id string) (Detector, bool) {
	i := sort.Search(len(s.Detectors), func(i int) bool { return s.Detectors[i].ID >= id })
	if i < len(s.Detectors) && s.Detectors[i].ID == id {
		return s.Detectors[i], true
	}
	return Detector{}, false
}

// SerialCounts returns how many detectors carry each non-empty serial
func (s *Snapshot) SerialCounts() map[string]int {
	counts := make(map[string]int)
	for _, d := range s.Detectors {
		if d.Serial != "" {
			counts[d.Serial]++
		}
	}
	return counts
}

// Restore builds a live Scene from the snapshot, checking every invariant
func (s *Snapshot) Restore() (*Scene, error) {
	scene := NewScene()
	scene.Metadata = s.Metadata
	if err := scene.SetPlan(s.Plan); err != nil {
		return nil, err
	}
	for _, d := range s.Detectors {
		if err := scene.RestoreDetector(d); err != nil {
			return nil, err
		}
	}
	for _, c := range s.Connections {
		if err := scene.RestoreConnection(c); err != nil {
			return nil, err
		}
	}
	return scene, nil
}
