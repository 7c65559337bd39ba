package clean

import (
	"github.com/samber/lo"

	"github.com/delhivery/tracely/geo"
	"github.com/delhivery/tracely/ping"
)

// mutable reports whether an operator is allowed to mutate this ping at
// all: never an interpolated ping, never one already dropped.
func mutable(p *ping.Ping) bool {
	return !p.IsInterpolated && p.UpdateStatus != ping.StatusDropped
}

// nearestNeighbor walks from idx in the given direction (-1 or +1) and
// returns the index of the nearest non-dropped, non-null ping, or (-1,
// false) if none exists before the sequence boundary. Interpolated pings
// are valid neighbors.
func nearestNeighbor(t *ping.Trace, idx, direction int) (int, bool) {
	for j := idx + direction; j >= 0 && j < len(t.Pings); j += direction {
		p := t.Pings[j]
		if p.UpdateStatus == ping.StatusDropped {
			continue
		}
		if !p.HasCoord() {
			continue
		}
		return j, true
	}
	return -1, false
}

// eligiblePoints collects the points and indices of pings the map_match and
// interpolate operators are allowed to act on: non-dropped, non-interpolated,
// non-null coordinate.
func eligiblePoints(t *ping.Trace) (points []geo.Point, indices []int) {
	indices = lo.FilterMap(lo.Range(len(t.Pings)), func(i int, _ int) (int, bool) {
		p := t.Pings[i]
		return i, mutable(p) && p.HasCoord()
	})
	points = lo.Map(indices, func(i int, _ int) geo.Point {
		pt, _ := t.Pings[i].Point()
		return pt
	})
	return points, indices
}
