package clean

import (
	"github.com/delhivery/tracely/geo"
	"github.com/delhivery/tracely/ping"
)

// ImputeByDistance replaces interior pings whose neighbor-to-neighbor
// detour ratio exceeds MaxDistRatio with the spherical midpoint of their
// nearest non-dropped, non-null neighbors. force_retain
// does not exempt a ping from imputation.
func ImputeByDistance(t *ping.Trace, params ImputeByDistanceParams) error {
	params = params.withDefaults()

	for i, p := range t.Pings {
		if !mutable(p) || !p.HasCoord() {
			continue
		}

		prevIdx, ok := nearestNeighbor(t, i, -1)
		if !ok {
			continue
		}
		nextIdx, ok := nearestNeighbor(t, i, 1)
		if !ok {
			continue
		}

		prevPt, _ := t.Pings[prevIdx].Point()
		curPt, _ := p.Point()
		nextPt, _ := t.Pings[nextIdx].Point()

		dPrevCur := geo.Haversine(prevPt, curPt)
		dCurNext := geo.Haversine(curPt, nextPt)
		dPrevNext := geo.Haversine(prevPt, nextPt)

		if dPrevNext <= 0 {
			continue
		}

		if (dPrevCur+dCurNext)/dPrevNext > params.MaxDistRatio {
			p.MarkUpdated(geo.SphericalMidpoint(prevPt, nextPt), OpImputeByDistance)
		}
	}

	return nil
}

// ImputeByAngle replaces interior pings whose turn angle at the current
// position exceeds MaxDeltaAngle with the spherical midpoint of their
// nearest non-dropped, non-null neighbors.
func ImputeByAngle(t *ping.Trace, params ImputeByAngleParams) error {
	params = params.withDefaults()

	for i, p := range t.Pings {
		if !mutable(p) || !p.HasCoord() {
			continue
		}

		prevIdx, ok := nearestNeighbor(t, i, -1)
		if !ok {
			continue
		}
		nextIdx, ok := nearestNeighbor(t, i, 1)
		if !ok {
			continue
		}

		prevPt, _ := t.Pings[prevIdx].Point()
		curPt, _ := p.Point()
		nextPt, _ := t.Pings[nextIdx].Point()

		if geo.AngularDelta(prevPt, curPt, nextPt) > params.MaxDeltaAngle {
			p.MarkUpdated(geo.SphericalMidpoint(prevPt, nextPt), OpImputeByAngle)
		}
	}

	return nil
}
