// Package ping defines the raw and cleaned ping records the cleaning
// operators, enrichment pass and stop detector all read and mutate, plus
// the ordered Trace container that holds a journey's pings.
package ping

import (
	"github.com/delhivery/tracely/geo"
)

// UpdateStatus records what, if anything, happened to a ping's cleaned
// coordinates since it entered the trace.
type UpdateStatus string

const (
	StatusUnchanged    UpdateStatus = "unchanged"
	StatusDropped      UpdateStatus = "dropped"
	StatusUpdated      UpdateStatus = "updated"
	StatusInterpolated UpdateStatus = "interpolated"
)

// Raw is the immutable input ping, exactly as supplied by the caller (or
// synthesized: see payload.Validate for ping_id assignment). No cleaning
// operator is ever allowed to write to a Raw value.
type Raw struct {
	PingID      string
	Latitude    *float64
	Longitude   *float64
	Timestamp   int64 // ms since Unix epoch
	ErrorRadius *float64
	EventType   *string
	ForceRetain bool
	Metadata    map[string]any
}

// Ping is the mutable cleaned/enriched projection of a Raw ping. Operators
// read and write CleanedLatitude/CleanedLongitude, UpdateStatus and
// LastUpdatedBy; enrichment and stop detection own the remaining fields and
// recompute them wholesale rather than incrementally.
type Ping struct {
	Raw Raw

	CleanedLatitude  *float64
	CleanedLongitude *float64
	UpdateStatus     UpdateStatus
	LastUpdatedBy    *string
	IsInterpolated   bool

	// Enrichment, recomputed on every Output() call (see package enrich).
	DistanceFromPrevM   *float64
	TimeFromPrevMs      *int64
	CumulativeDistanceM float64
	CumulativeTimeMs    int64

	// Stop fields, populated only by package stop's DetectStops.
	StopEventStatus                   bool
	RepresentativeStopEventLatitude  *float64
	RepresentativeStopEventLongitude *float64
	StopEventSequenceNumber          int
	CumulativeStopEventTime          string
}

// NewFromRaw builds the initial cleaned ping for a raw input: the cleaned
// coordinate starts out equal to the raw one (both may be nil, meaning the
// ping arrived without a fix), and the ping is otherwise untouched.
func NewFromRaw(raw Raw) *Ping {
	return &Ping{
		Raw:              raw,
		CleanedLatitude:  copyFloat(raw.Latitude),
		CleanedLongitude: copyFloat(raw.Longitude),
		UpdateStatus:     StatusUnchanged,
	}
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// HasCoord reports whether the ping currently carries a non-null cleaned
// coordinate.
func (p *Ping) HasCoord() bool {
	return p.CleanedLatitude != nil && p.CleanedLongitude != nil
}

// Point returns the ping's current cleaned coordinate. The second return
// value is false if the ping has no coordinate (dropped, or never had one);
// callers must not invoke geo kernels on the zero Point in that case.
func (p *Ping) Point() (geo.Point, bool) {
	if !p.HasCoord() {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *p.CleanedLatitude, Lon: *p.CleanedLongitude}, true
}

// MarkDropped records that op dropped this ping: its cleaned coordinate is
// cleared and its status becomes "dropped". Callers must not call this on a
// force-retain ping or on an interpolated ping; both are the
// caller operator's responsibility to check before calling.
func (p *Ping) MarkDropped(op string) {
	p.CleanedLatitude = nil
	p.CleanedLongitude = nil
	p.UpdateStatus = StatusDropped
	p.LastUpdatedBy = &op
}

// MarkUpdated records that op replaced this ping's cleaned coordinate.
func (p *Ping) MarkUpdated(point geo.Point, op string) {
	lat, lon := point.Lat, point.Lon
	p.CleanedLatitude = &lat
	p.CleanedLongitude = &lon
	p.UpdateStatus = StatusUpdated
	p.LastUpdatedBy = &op
}

// NewInterpolated builds a synthetic ping inserted by the interpolate
// operator. Per I4, no other operator is ever allowed to touch a ping
// constructed this way.
func NewInterpolated(pingID string, point geo.Point, timestamp int64, op string) *Ping {
	lat, lon := point.Lat, point.Lon
	return &Ping{
		Raw: Raw{
			PingID:      pingID,
			Timestamp:   timestamp,
			ForceRetain: false,
		},
		CleanedLatitude:  &lat,
		CleanedLongitude: &lon,
		UpdateStatus:     StatusInterpolated,
		LastUpdatedBy:    &op,
		IsInterpolated:   true,
	}
}
