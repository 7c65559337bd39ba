// Package summary assembles the final output document from a trace that
// has already been through enrichment and stop detection.
package summary

import (
	"sort"

	"github.com/samber/lo"

	"github.com/delhivery/tracely/geo"
	"github.com/delhivery/tracely/ping"
	"github.com/delhivery/tracely/stop"
)

// Cleaning reports how many pings changed state between input and output.
type Cleaning struct {
	InputNonNullPings  int
	OutputNonNullPings int
	Dropped            int
	Updated            int
	Interpolated       int
}

// Distance reports the raw vs. cleaned path length and the reduction
// between them.
type Distance struct {
	RawDistanceM     float64
	CleanedDistanceM float64
	ReductionM       float64
	ReductionPct     float64
}

// Output is the full document returned to the caller.
type Output struct {
	CleanedTrace   []*ping.Ping
	Cleaning       Cleaning
	Distance       Distance
	StopEvents     []stop.Event
	VehicleType    string
	VehicleSpeedKm float64
	Warnings       []string
}

// Build computes every section of the output document for t. events is
// whatever package stop last returned for t (nil if DetectStops was never
// called).
func Build(t *ping.Trace, events []stop.Event) Output {
	sorted := make([]*ping.Ping, len(t.Pings))
	copy(sorted, t.Pings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Raw.Timestamp < sorted[j].Raw.Timestamp
	})

	return Output{
		CleanedTrace:   sorted,
		Cleaning:       buildCleaning(t),
		Distance:       buildDistance(t),
		StopEvents:     events,
		VehicleType:    t.VehicleType,
		VehicleSpeedKm: t.VehicleSpeed,
		Warnings:       t.Warnings,
	}
}

func buildCleaning(t *ping.Trace) Cleaning {
	var c Cleaning
	for _, p := range t.Pings {
		if p.Raw.Latitude != nil && p.Raw.Longitude != nil {
			c.InputNonNullPings++
		}
		if p.HasCoord() {
			c.OutputNonNullPings++
		}
		switch p.UpdateStatus {
		case ping.StatusDropped:
			c.Dropped++
		case ping.StatusUpdated:
			c.Updated++
		}
		if p.IsInterpolated {
			c.Interpolated++
		}
	}
	return c
}

func buildDistance(t *ping.Trace) Distance {
	rawPoints := lo.FilterMap(t.Pings, func(p *ping.Ping, _ int) (geo.Point, bool) {
		if p.Raw.Latitude == nil || p.Raw.Longitude == nil {
			return geo.Point{}, false
		}
		return geo.Point{Lat: *p.Raw.Latitude, Lon: *p.Raw.Longitude}, true
	})
	cleanedPoints := lo.FilterMap(t.Pings, func(p *ping.Ping, _ int) (geo.Point, bool) {
		return p.Point()
	})

	rawCum := geo.CumulativePathLength(rawPoints)
	cleanedCum := geo.CumulativePathLength(cleanedPoints)

	var rawTotal, cleanedTotal float64
	if len(rawCum) > 0 {
		rawTotal = rawCum[len(rawCum)-1]
	}
	if len(cleanedCum) > 0 {
		cleanedTotal = cleanedCum[len(cleanedCum)-1]
	}

	reduction := rawTotal - cleanedTotal
	var reductionPct float64
	if rawTotal > 0 {
		reductionPct = reduction / rawTotal * 100
	}

	return Distance{
		RawDistanceM:     rawTotal,
		CleanedDistanceM: cleanedTotal,
		ReductionM:       reduction,
		ReductionPct:     reductionPct,
	}
}
