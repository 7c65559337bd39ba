package clean

import (
	"github.com/delhivery/tracely/geo"
	"github.com/delhivery/tracely/ping"
)

// RemoveNearby walks the cleaned sequence in order, maintaining a "last
// retained ping" anchor. Any candidate within MinDistBwConsecutivePings of
// the anchor is dropped; force_retain pings are always retained and become
// the new anchor. Re-running it with the same params on the same
// sequence drops exactly the same set of ping_ids, since a dropped ping
// never becomes an anchor and thus never changes the decisions made about
// pings after it.
func RemoveNearby(t *ping.Trace, params RemoveNearbyParams) error {
	params = params.withDefaults()

	anchorIdx := -1

	for i, p := range t.Pings {
		if !mutable(p) || !p.HasCoord() {
			continue
		}

		if anchorIdx < 0 {
			// First non-null ping is always the initial anchor.
			anchorIdx = i
			continue
		}

		if p.Raw.ForceRetain {
			anchorIdx = i
			continue
		}

		anchorPoint, _ := t.Pings[anchorIdx].Point()
		candidatePoint, _ := p.Point()

		if geo.Haversine(anchorPoint, candidatePoint) < params.MinDistBwConsecutivePings {
			p.MarkDropped(OpRemoveNearby)
			continue
		}

		anchorIdx = i
	}

	return nil
}
