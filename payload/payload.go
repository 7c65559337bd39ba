// Package payload validates the user-supplied trace document and turns it
// into the ping.Raw slice and trace-level settings
// the engine builds a Trace from.
package payload

import (
	"fmt"

	"github.com/delhivery/tracely/ping"
)

const (
	defaultVehicleType  = "car"
	defaultVehicleSpeed = 25.0
)

// PingInput is a single ping as supplied by the caller, before validation.
// PingID and ForceRetain are pointers so the validator can distinguish
// "absent" from "explicitly zero value".
type PingInput struct {
	PingID      *string
	Latitude    *float64
	Longitude   *float64
	Timestamp   int64
	ErrorRadius *float64
	EventType   *string
	ForceRetain *bool
	Metadata    map[string]any
}

// TracePayload is the in-process input document.
type TracePayload struct {
	Trace        []PingInput
	VehicleType  string
	VehicleSpeed float64 // 0 means "use default"
}

// ValidationError reports a single field/index violation.
// The validator fails fast on the first one encountered.
type ValidationError struct {
	Field  string
	Index  int
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("ping %d: field %q: %s", e.Index, e.Field, e.Reason)
}

// OrderError reports that original-input timestamps are not non-decreasing
// (timestamps must be non-decreasing in input order).
type OrderError struct {
	Index            int
	PrevTimestamp    int64
	CurrentTimestamp int64
}

func (e OrderError) Error() string {
	return fmt.Sprintf(
		"ping %d: timestamp %d precedes previous timestamp %d",
		e.Index, e.CurrentTimestamp, e.PrevTimestamp,
	)
}

// Result is the validated, defaulted output of Validate.
type Result struct {
	Pings        []ping.Raw
	VehicleType  string
	VehicleSpeed float64
}

// Validate checks every ping's fields for validity, synthesizes ping_ids if
// none were supplied (rejecting mixed presence), and applies vehicle_type /
// vehicle_speed defaults. It returns the first violation found. Checks run
// in this order: vehicle_speed and mixed ping_id presence first, then each
// ping's ranges (ValidationError) and timestamp order (OrderError) in input
// order, then ping_id uniqueness (ValidationError).
func Validate(p TracePayload) (Result, error) {
	vehicleType := p.VehicleType
	if vehicleType == "" {
		vehicleType = defaultVehicleType
	}

	vehicleSpeed := p.VehicleSpeed
	if vehicleSpeed == 0 {
		vehicleSpeed = defaultVehicleSpeed
	} else if vehicleSpeed < 0 {
		return Result{}, ValidationError{Field: "vehicle_speed", Index: -1, Reason: "must be positive"}
	}

	anyHasID, allHaveID, err := checkIDPresence(p.Trace)
	if err != nil {
		return Result{}, err
	}

	raws := make([]ping.Raw, len(p.Trace))
	var prevTimestamp int64
	havePrev := false

	for i, in := range p.Trace {
		if err := validateRanges(i, in); err != nil {
			return Result{}, err
		}

		if havePrev && in.Timestamp < prevTimestamp {
			return Result{}, OrderError{Index: i, PrevTimestamp: prevTimestamp, CurrentTimestamp: in.Timestamp}
		}
		prevTimestamp = in.Timestamp
		havePrev = true

		pingID := ""
		if anyHasID && allHaveID {
			pingID = *in.PingID
		} else {
			pingID = fmt.Sprintf("p%d", i)
		}

		forceRetain := false
		if in.ForceRetain != nil {
			forceRetain = *in.ForceRetain
		}

		metadata := in.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}

		raws[i] = ping.Raw{
			PingID:      pingID,
			Latitude:    in.Latitude,
			Longitude:   in.Longitude,
			Timestamp:   in.Timestamp,
			ErrorRadius: in.ErrorRadius,
			EventType:   in.EventType,
			ForceRetain: forceRetain,
			Metadata:    metadata,
		}
	}

	if err := checkUniqueIDs(raws); err != nil {
		return Result{}, err
	}

	return Result{Pings: raws, VehicleType: vehicleType, VehicleSpeed: vehicleSpeed}, nil
}

// checkIDPresence reports whether any/all pings carry an explicit ping_id,
// rejecting the mixed case: if the input provides ping_id on any ping, it
// must provide it on all of them.
func checkIDPresence(inputs []PingInput) (anyHas, allHave bool, err error) {
	allHave = true
	firstMissing := -1
	for i, in := range inputs {
		if in.PingID != nil {
			anyHas = true
		} else {
			allHave = false
			if firstMissing < 0 {
				firstMissing = i
			}
		}
	}
	if anyHas && !allHave {
		return false, false, ValidationError{
			Field: "ping_id", Index: firstMissing,
			Reason: "ping_id must be present on all pings or none",
		}
	}
	return anyHas, allHave, nil
}

func validateRanges(index int, in PingInput) error {
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		return ValidationError{Field: "latitude", Index: index, Reason: "must be within [-90, 90]"}
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		return ValidationError{Field: "longitude", Index: index, Reason: "must be within [-180, 180]"}
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return ValidationError{Field: "latitude/longitude", Index: index, Reason: "latitude and longitude must both be present or both absent"}
	}
	if in.ErrorRadius != nil && *in.ErrorRadius < 0 {
		return ValidationError{Field: "error_radius", Index: index, Reason: "must be non-negative"}
	}
	return nil
}

func checkUniqueIDs(raws []ping.Raw) error {
	seen := make(map[string]int, len(raws))
	for i, r := range raws {
		if prev, ok := seen[r.PingID]; ok {
			return ValidationError{
				Field: "ping_id", Index: i,
				Reason: fmt.Sprintf("duplicate of ping %d", prev),
			}
		}
		seen[r.PingID] = i
	}
	return nil
}
