package domain

import (
	"math"
	"strings"
	"unicode"

	"smokeplan/internal/geometry"
)

// DeviceType identifies the kind of addressable device
type DeviceType string

const (
	DeviceDetector  DeviceType = "detector"
	DeviceIO        DeviceType = "io"
	DeviceCallPoint DeviceType = "call_point"
)

// ParseDeviceType converts a string to DeviceType, defaulting to DeviceDetector.
// The labels used by the desktop tool ("Detector", "IO", "CallPoint") are accepted.
func ParseDeviceType(s string) DeviceType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "io", "iobox", "io_box":
		return DeviceIO
	case "call_point", "callpoint", "mcp":
		return DeviceCallPoint
	default:
		return DeviceDetector
	}
}

// Valid reports whether t is a known device type.
func (t DeviceType) Valid() bool {
	switch t {
	case DeviceDetector, DeviceIO, DeviceCallPoint:
		return true
	}
	return false
}

// HasRange reports whether devices of this type have a coverage circle.
func (t DeviceType) HasRange() bool {
	return t == DeviceDetector
}

const (
	// DefaultRangeM is the coverage radius assigned to new detectors.
	DefaultRangeM = 6.2
	// MaxRangeM is the largest accepted coverage radius.
	MaxRangeM = 25.0

	maxTokenLen = 16
)

// Detector is a device placed on the floor plan
type Detector struct {
	ID           string             `json:"id" yaml:"id"`
	Type         DeviceType         `json:"type" yaml:"type"`
	Position     geometry.PlanPoint `json:"position" yaml:"position"`
	Model        string             `json:"model,omitempty" yaml:"model,omitempty"`
	Brand        string             `json:"brand,omitempty" yaml:"brand,omitempty"`
	RangeM       float64            `json:"range_m" yaml:"range_m"`
	Bus          string             `json:"bus,omitempty" yaml:"bus,omitempty"`
	Group        string             `json:"group,omitempty" yaml:"group,omitempty"`
	Address      string             `json:"address,omitempty" yaml:"address,omitempty"`
	Serial       string             `json:"serial,omitempty" yaml:"serial,omitempty"`
	PairedSerial string             `json:"paired_serial,omitempty" yaml:"paired_serial,omitempty"`
	RoomID       string             `json:"room_id,omitempty" yaml:"room_id,omitempty"`
	QRData       string             `json:"qr_data,omitempty" yaml:"qr_data,omitempty"`
}

// AddressLabel returns "{bus}-{group}{address}" when all three address
// components are set, otherwise an empty string.
func (d Detector) AddressLabel() string {
	if d.Bus == "" || d.Group == "" || d.Address == "" {
		return ""
	}
	return d.Bus + "-" + d.Group + d.Address
}

// validate checks every field invariant and returns the first violation.
func (d Detector) validate() *ValidationError {
	if !d.Position.IsFinite() {
		return invalid("position", "coordinates must be finite")
	}
	if !d.Type.Valid() {
		return invalid("type", "unknown device type "+string(d.Type))
	}
	if err := validateRange(d.RangeM); err != nil {
		return err
	}
	for _, f := range []struct{ name, value string }{
		{"bus", d.Bus}, {"group", d.Group}, {"address", d.Address},
	} {
		if err := validateToken(f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

func validateRange(r float64) *ValidationError {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return invalid("range_m", "must be a finite number")
	}
	if r <= 0 || r > MaxRangeM {
		return invalid("range_m", "must be greater than 0 and at most 25 m")
	}
	return nil
}

// ValidAddressToken reports whether v is a non-empty bus, group or address
// value that a detector update would accept.
func ValidAddressToken(v string) bool {
	return v != "" && validateToken("", v) == nil
}

// validateToken accepts empty values and short alphanumeric tokens. A leading
// minus sign is rejected so negative numbers never become addresses.
func validateToken(field, v string) *ValidationError {
	if v == "" {
		return nil
	}
	if len(v) > maxTokenLen {
		return invalid(field, "must be at most 16 characters")
	}
	for _, r := range v {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return invalid(field, "must be a non-negative number or alphanumeric token")
		}
	}
	return nil
}
