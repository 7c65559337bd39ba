// Package enrich recomputes the per-ping time/distance gaps and cumulative
// metrics over a trace's current cleaned sequence. It owns
// none of the fields it writes between calls: Recompute always starts from
// scratch and is safe to call repeatedly, e.g. once after every operator or
// only once before Output().
package enrich

import (
	"github.com/delhivery/tracely/geo"
	"github.com/delhivery/tracely/ping"
)

// Recompute walks the cleaned sequence in order, ignoring dropped pings for
// the purposes of distance/time deltas: a dropped ping gets nil gap
// fields and inherits the running cumulative totals as of the moment it was
// skipped.
func Recompute(t *ping.Trace) {
	var cumDist float64
	var cumTime int64
	var lastPoint geo.Point
	var lastTimestamp int64
	haveLast := false

	for _, p := range t.Pings {
		if p.UpdateStatus == ping.StatusDropped {
			p.DistanceFromPrevM = nil
			p.TimeFromPrevMs = nil
			p.CumulativeDistanceM = cumDist
			p.CumulativeTimeMs = cumTime
			continue
		}

		pt, ok := p.Point()
		if !ok {
			// A non-dropped ping has no coordinate when it arrived without a
			// fix. Treat it like a dropped one rather than panicking on a nil deref.
			p.DistanceFromPrevM = nil
			p.TimeFromPrevMs = nil
			p.CumulativeDistanceM = cumDist
			p.CumulativeTimeMs = cumTime
			continue
		}

		if !haveLast {
			zeroDist, zeroTime := 0.0, int64(0)
			p.DistanceFromPrevM = &zeroDist
			p.TimeFromPrevMs = &zeroTime
		} else {
			dist := geo.Haversine(lastPoint, pt)
			timeDelta := p.Raw.Timestamp - lastTimestamp
			p.DistanceFromPrevM = &dist
			p.TimeFromPrevMs = &timeDelta
			cumDist += dist
			cumTime += timeDelta
		}

		p.CumulativeDistanceM = cumDist
		p.CumulativeTimeMs = cumTime

		lastPoint = pt
		lastTimestamp = p.Raw.Timestamp
		haveLast = true
	}
}
