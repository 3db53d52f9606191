package domain

import "strings"

// DetectorUpdate is a partial set of field changes. Nil fields are left as
// they are. An update is applied as a whole or not at all.
type DetectorUpdate struct {
	Type         *DeviceType `json:"type,omitempty"`
	Model        *string     `json:"model,omitempty"`
	Brand        *string     `json:"brand,omitempty"`
	RangeM       *float64    `json:"range_m,omitempty"`
	Bus          *string     `json:"bus,omitempty"`
	Group        *string     `json:"group,omitempty"`
	Address      *string     `json:"address,omitempty"`
	Serial       *string     `json:"serial,omitempty"`
	PairedSerial *string     `json:"paired_serial,omitempty"`
	RoomID       *string     `json:"room_id,omitempty"`
	QRData       *string     `json:"qr_data,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u DetectorUpdate) Empty() bool {
	return u == DetectorUpdate{}
}

// StringPtr returns a pointer to s, for building updates.
func StringPtr(s string) *string { return &s }

// FloatPtr returns a pointer to f, for building updates.
func FloatPtr(f float64) *float64 { return &f }

// apply returns a copy of d with the update applied and validated. d itself
// is never modified.
func (u DetectorUpdate) apply(d Detector) (Detector, error) {
	next := d

	if u.Type != nil {
		next.Type = *u.Type
	}
	if u.RangeM != nil {
		next.RangeM = *u.RangeM
	}
	setTrimmed(&next.Model, u.Model)
	setTrimmed(&next.Brand, u.Brand)
	setTrimmed(&next.Bus, u.Bus)
	setTrimmed(&next.Group, u.Group)
	setTrimmed(&next.Address, u.Address)
	setTrimmed(&next.Serial, u.Serial)
	setTrimmed(&next.PairedSerial, u.PairedSerial)
	setTrimmed(&next.RoomID, u.RoomID)
	if u.QRData != nil {
		next.QRData = *u.QRData
	}

	if err := next.validate(); err != nil {
		return d, err
	}
	return next, nil
}

func setTrimmed(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
