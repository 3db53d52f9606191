package domain

import (
	"fmt"
	"sort"
	"strings"
)

// MinSpacingM is the smallest allowed distance between two detectors.
const MinSpacingM = 0.5

// Severity grades a validation issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue codes
const (
	IssueDuplicateAddress = "duplicate_address"
	IssueTooClose         = "too_close"
	IssueMissingSerial    = "missing_serial"
	IssueSharedSerial     = "shared_serial"
	IssueUncalibrated     = "uncalibrated"
)

// Issue is a single validation finding
type Issue struct {
	Severity    Severity `json:"severity"`
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	DetectorIDs []string `json:"detector_ids,omitempty"`
}

// Report holds the findings of Validate
type Report struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// OK reports whether the report contains no errors
func (r Report) OK() bool {
	return len(r.Errors) == 0
}

func (r *Report) add(sev Severity, code, msg string, ids ...string) {
	issue := Issue{Severity: sev, Code: code, Message: msg, DetectorIDs: ids}
	if sev == SeverityError {
		r.Errors = append(r.Errors, issue)
	} else {
		r.Warnings = append(r.Warnings, issue)
	}
}

// Validate checks a snapshot for installation problems. The snapshot is not
// modified and findings are returned in a stable order.
func Validate(s *Snapshot) Report {
	var r Report

	byLabel := make(map[string][]Detector)
	bySerial := make(map[string][]Detector)
	for _, d := range s.Detectors {
		if l := d.AddressLabel(); l != "" {
			byLabel[l] = append(byLabel[l], d)
		}
		if d.Serial == "" {
			r.add(SeverityWarning, IssueMissingSerial,
				fmt.Sprintf("detector %s has no serial number", describe(d)), d.ID)
			continue
		}
		bySerial[d.Serial] = append(bySerial[d.Serial], d)
	}

	for _, label := range sortedKeys(byLabel) {
		group := byLabel[label]
		if len(group) < 2 {
			continue
		}
		r.add(SeverityError, IssueDuplicateAddress,
			fmt.Sprintf("address %s is used by %d detectors at %s", label, len(group), positions(group)),
			ids(group)...)
	}

	for _, serial := range sortedKeys(bySerial) {
		group := bySerial[serial]
		if len(group) < 2 || pairedGroup(group) {
			continue
		}
		r.add(SeverityWarning, IssueSharedSerial,
			fmt.Sprintf("serial %s is shared by %s", serial, labels(group)), ids(group)...)
	}

	if !s.Plan.Calibrated() {
		r.add(SeverityWarning, IssueUncalibrated,
			"plan is not calibrated; spacing checks were skipped")
		return r
	}

	for i := 0; i < len(s.Detectors); i++ {
		for j := i + 1; j < len(s.Detectors); j++ {
			a, b := s.Detectors[i], s.Detectors[j]
			meters := a.Position.Distance(b.Position) / s.Plan.PixelsPerMeter
			if meters < MinSpacingM {
				r.add(SeverityError, IssueTooClose,
					fmt.Sprintf("detectors %s and %s are %.2f m apart (minimum %.1f m)",
						describe(a), describe(b), meters, MinSpacingM),
					a.ID, b.ID)
			}
		}
	}

	return r
}

// pairedGroup reports whether a set of detectors sharing a serial are all
// recorded as pairs of one another.
func pairedGroup(group []Detector) bool {
	if len(group) != 2 {
		return false
	}
	a, b := group[0], group[1]
	return a.PairedSerial == b.Serial && b.PairedSerial == a.Serial
}

func describe(d Detector) string {
	if l := d.AddressLabel(); l != "" {
		return l
	}
	return fmt.Sprintf("@%.0f,%.0f", d.Position.X, d.Position.Y)
}

func positions(group []Detector) string {
	parts := make([]string, len(group))
	for i, d := range group {
		parts[i] = fmt.Sprintf("@%.0f,%.0f", d.Position.X, d.Position.Y)
	}
	return strings.Join(parts, ", ")
}

func labels(group []Detector) string {
	parts := make([]string, len(group))
	for i, d := range group {
		parts[i] = describe(d)
	}
	return strings.Join(parts, ", ")
}

func ids(group []Detector) []string {
	out := make([]string, len(group))
	for i, d := range group {
		out[i] = d.ID
	}
	return out
}

func sortedKeys(m map[string][]Detector) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
