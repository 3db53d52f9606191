package layout

import (
	"sort"
	"strconv"

	"smokeplan/internal/domain"
)

// UnassignedHeading titles the table of devices that have no bus set.
const UnassignedHeading = "Unassigned devices"

// ScheduleRow is one device in a bus table
type ScheduleRow struct {
	DetectorID   string `json:"detector_id"`
	Address      string `json:"address"`
	Serial       string `json:"serial"`
	RoomID       string `json:"room_id"`
	QRData       string `json:"qr_data"`
	PairedSerial string `json:"paired_serial"`
	Type         string `json:"type"`
}

// BusSchedule lists the devices on one bus. Bus is empty for devices with no
// bus set.
type BusSchedule struct {
	Bus  string        `json:"bus"`
	Rows []ScheduleRow `json:"rows"`
}

// Heading returns the table title.
func (b BusSchedule) Heading() string {
	if b.Bus == "" {
		return UnassignedHeading
	}
	return "Bus " + b.Bus
}

// ScheduleColumns are the table headings, in row field order.
var ScheduleColumns = []string{"Address", "Serial", "Room", "QR data", "Paired SN", "Type"}

// Cells returns the row values in ScheduleColumns order.
func (r ScheduleRow) Cells() []string {
	return []string{r.Address, r.Serial, r.RoomID, r.QRData, r.PairedSerial, r.Type}
}

// BuildSchedule groups devices by bus. Buses are ordered naturally with
// unassigned devices last; rows are ordered by group then address.
func BuildSchedule(snap *domain.Snapshot) []BusSchedule {
	type entry struct {
		d   domain.Detector
		row ScheduleRow
	}
	byBus := make(map[string][]entry)
	for _, d := range snap.Detectors {
		byBus[d.Bus] = append(byBus[d.Bus], entry{d: d, row: ScheduleRow{
			DetectorID:   d.ID,
			Address:      d.AddressLabel(),
			Serial:       d.Serial,
			RoomID:       d.RoomID,
			QRData:       d.QRData,
			PairedSerial: d.PairedSerial,
			Type:         string(d.Type),
		}})
	}

	buses := make([]string, 0, len(byBus))
	for bus := range byBus {
		buses = append(buses, bus)
	}
	sort.Slice(buses, func(i, j int) bool {
		return lessToken(buses[i], buses[j])
	})

	out := make([]BusSchedule, 0, len(buses))
	for _, bus := range buses {
		entries := byBus[bus]
		sort.SliceStable(entries, func(i, j int) bool {
			a, b := entries[i].d, entries[j].d
			if a.Group != b.Group {
				return lessToken(a.Group, b.Group)
			}
			if a.Address != b.Address {
				return lessToken(a.Address, b.Address)
			}
			return a.ID < b.ID
		})
		rows := make([]ScheduleRow, len(entries))
		for i, e := range entries {
			rows[i] = e.row
		}
		out = append(out, BusSchedule{Bus: bus, Rows: rows})
	}
	return out
}

// lessToken compares numerically when both tokens are integers, otherwise
// lexically. Empty tokens sort last.
func lessToken(a, b string) bool {
	if a == "" || b == "" {
		return a != "" && b == ""
	}
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case aerr == nil:
		return true
	case berr == nil:
		return false
	}
	return a < b
}
