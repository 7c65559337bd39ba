// Package tracely is the orchestrating handle a caller actually builds and
// calls: it validates a payload into a trace, exposes every cleaning
// operator and the stop detector as methods, and assembles the final
// output document on request.
package tracely

import (
	"context"

	"github.com/delhivery/tracely/clean"
	"github.com/delhivery/tracely/enrich"
	"github.com/delhivery/tracely/osrm"
	"github.com/delhivery/tracely/payload"
	"github.com/delhivery/tracely/ping"
	"github.com/delhivery/tracely/stop"
	"github.com/delhivery/tracely/summary"
)

// CleanTrace owns one trace end to end: validation, every cleaning
// operator, stop detection and the final output assembly. It is built once
// per trace and is not safe for concurrent use by multiple goroutines
// calling different operators at once (callers invoke operators serially).
type CleanTrace struct {
	trace      *ping.Trace
	osrm       *osrm.Client
	stopEvents []stop.Event
}

// NewCleanTrace validates payload and builds a CleanTrace from it. A
// validation or ordering violation is returned immediately and no
// CleanTrace is constructed (payload.ValidationError / payload.OrderError).
func NewCleanTrace(p payload.TracePayload, osrmClient *osrm.Client) (*CleanTrace, error) {
	result, err := payload.Validate(p)
	if err != nil {
		return nil, err
	}

	pings := make([]*ping.Ping, len(result.Pings))
	for i, raw := range result.Pings {
		pings[i] = ping.NewFromRaw(raw)
	}

	if osrmClient == nil {
		osrmClient = osrm.NewClient()
	}

	return &CleanTrace{
		trace: ping.NewTrace(pings, result.VehicleType, result.VehicleSpeed),
		osrm:  osrmClient,
	}, nil
}

// RemoveNearby runs the remove_nearby operator.
func (c *CleanTrace) RemoveNearby(params clean.RemoveNearbyParams) error {
	return clean.RemoveNearby(c.trace, params)
}

// ImputeByDistance runs the impute_by_distance operator.
func (c *CleanTrace) ImputeByDistance(params clean.ImputeByDistanceParams) error {
	return clean.ImputeByDistance(c.trace, params)
}

// ImputeByAngle runs the impute_by_angle operator.
func (c *CleanTrace) ImputeByAngle(params clean.ImputeByAngleParams) error {
	return clean.ImputeByAngle(c.trace, params)
}

// MapMatch runs the map_match operator against the configured OSRM client.
func (c *CleanTrace) MapMatch(ctx context.Context, params clean.MapMatchParams) error {
	return clean.MapMatch(ctx, c.trace, c.osrm, params)
}

// Interpolate runs the interpolate operator. It fails with
// clean.PreconditionError if MapMatch has not yet been called at least
// once.
func (c *CleanTrace) Interpolate(ctx context.Context, params clean.InterpolateParams) error {
	return clean.Interpolate(ctx, c.trace, c.osrm, params)
}

// DetectStops runs the two-stage stop detector over the trace's current
// cleaned sequence and remembers the result for Output. Callers normally
// invoke this last, after every cleaning operator they intend to run.
func (c *CleanTrace) DetectStops(params stop.Params) []stop.Event {
	c.stopEvents = stop.DetectStops(c.trace, params)
	return c.stopEvents
}

// Output recomputes per-ping enrichment metrics and assembles the final
// output document: cleaned trace, cleaning/distance/stop summaries and the
// trace-level vehicle fields.
func (c *CleanTrace) Output() summary.Output {
	enrich.Recompute(c.trace)
	return summary.Build(c.trace, c.stopEvents)
}

// Warnings returns every non-fatal OSRM batch warning accumulated across
// all operator calls so far.
func (c *CleanTrace) Warnings() []string {
	return c.trace.Warnings
}
