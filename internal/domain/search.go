package domain

import "strings"

// FindDetectors returns detectors whose serial or address label equals query,
// or whose serial, address label or room ID contains it ignoring case.
// Results are sorted by ID. An empty query matches nothing.
func (s *Scene) FindDetectors(query string) []Detector {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil
	}
	ql := strings.ToLower(q)

	var out []Detector
	for _, d := range s.Detectors() {
		label := d.AddressLabel()
		switch {
		case q == d.Serial || q == label:
			out = append(out, d)
		case strings.Contains(strings.ToLower(d.Serial), ql),
			strings.Contains(strings.ToLower(label), ql),
			strings.Contains(strings.ToLower(d.RoomID), ql):
			out = append(out, d)
		}
	}
	return out
}
