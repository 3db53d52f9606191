package domain

import (
	"testing"
)

func codes(issues []Issue) []string {
	var out []string
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

func hasCode(issues []Issue, code string) bool {
	for _, i := range issues {
		if i.Code == code {
			return true
		}
	}
	return false
}

func TestValidate(t *testing.T) {
	t.Run("clean project", func(t *testing.T) {
		s := newTestScene(t)
		s.Plan.PixelsPerMeter = 10
		a := mustPlace(t, s, 0, 0)
		b := mustPlace(t, s, 100, 0)
		s.UpdateDetector(a.ID, DetectorUpdate{Serial: StringPtr("1"), Bus: StringPtr("1"), Group: StringPtr("1"), Address: StringPtr("1")})
		s.UpdateDetector(b.ID, DetectorUpdate{Serial: StringPtr("2"), Bus: StringPtr("1"), Group: StringPtr("1"), Address: StringPtr("2")})

		r := Validate(s.Snapshot())
		if !r.OK() || len(r.Warnings) != 0 {
			t.Errorf("expected clean report, got errors %v warnings %v", codes(r.Errors), codes(r.Warnings))
		}
	})

	t.Run("duplicate address is an error", func(t *testing.T) {
		s := newTestScene(t)
		s.Plan.PixelsPerMeter = 10
		a := mustPlace(t, s, 0, 0)
		b := mustPlace(t, s, 100, 0)
		for _, id := range []string{a.ID, b.ID} {
			s.UpdateDetector(id, DetectorUpdate{Serial: StringPtr(id), Bus: StringPtr("1"), Group: StringPtr("2"), Address: StringPtr("3")})
		}
		r := Validate(s.Snapshot())
		if r.OK() || !hasCode(r.Errors, IssueDuplicateAddress) {
			t.Errorf("expected duplicate address error, got %v", codes(r.Errors))
		}
		if len(r.Errors[0].DetectorIDs) != 2 {
			t.Errorf("expected both detectors referenced, got %v", r.Errors[0].DetectorIDs)
		}
	})

	t.Run("spacing uses calibration", func(t *testing.T) {
		s := newTestScene(t)
		s.Plan.PixelsPerMeter = 100
		a := mustPlace(t, s, 0, 0)
		b := mustPlace(t, s, 30, 40) // 0.5 m exactly
		c := mustPlace(t, s, 10, 0)  // 0.1 m from a
		for _, id := range []string{a.ID, b.ID, c.ID} {
			s.UpdateDetector(id, DetectorUpdate{Serial: StringPtr(id)})
		}
		r := Validate(s.Snapshot())
		n := 0
		for _, e := range r.Errors {
			if e.Code == IssueTooClose {
				n++
			}
		}
		// a-c (0.1 m) and b-c (~0.45 m) are too close, a-b is exactly on the limit.
		if n != 2 {
			t.Errorf("expected 2 spacing errors, got %d: %v", n, r.Errors)
		}
	})

	t.Run("uncalibrated skips spacing", func(t *testing.T) {
		s := newTestScene(t)
		a := mustPlace(t, s, 0, 0)
		b := mustPlace(t, s, 0, 0)
		s.UpdateDetector(a.ID, DetectorUpdate{Serial: StringPtr("1")})
		s.UpdateDetector(b.ID, DetectorUpdate{Serial: StringPtr("2")})
		r := Validate(s.Snapshot())
		if !r.OK() {
			t.Errorf("expected no errors, got %v", codes(r.Errors))
		}
		if !hasCode(r.Warnings, IssueUncalibrated) {
			t.Errorf("expected uncalibrated warning, got %v", codes(r.Warnings))
		}
	})

	t.Run("serial warnings", func(t *testing.T) {
		s := newTestScene(t)
		s.Plan.PixelsPerMeter = 1
		a := mustPlace(t, s, 0, 0)
		b := mustPlace(t, s, 10, 0)
		c := mustPlace(t, s, 20, 0)
		s.UpdateDetector(a.ID, DetectorUpdate{Serial: StringPtr("S1")})
		s.UpdateDetector(b.ID, DetectorUpdate{Serial: StringPtr("S1")})

		r := Validate(s.Snapshot())
		if !hasCode(r.Warnings, IssueSharedSerial) {
			t.Errorf("expected shared serial warning, got %v", codes(r.Warnings))
		}
		if !hasCode(r.Warnings, IssueMissingSerial) {
			t.Errorf("expected missing serial warning for %s, got %v", c.ID, codes(r.Warnings))
		}
		if !r.OK() {
			t.Errorf("serial findings must not be errors: %v", codes(r.Errors))
		}
	})

	t.Run("recorded pairs may share a serial", func(t *testing.T) {
		s := newTestScene(t)
		s.Plan.PixelsPerMeter = 1
		a := mustPlace(t, s, 0, 0)
		b := mustPlace(t, s, 10, 0)
		for _, id := range []string{a.ID, b.ID} {
			s.UpdateDetector(id, DetectorUpdate{Serial: StringPtr("S1"), PairedSerial: StringPtr("S1")})
		}
		r := Validate(s.Snapshot())
		if hasCode(r.Warnings, IssueSharedSerial) {
			t.Errorf("paired detectors should not be flagged: %v", r.Warnings)
		}
	})
}
