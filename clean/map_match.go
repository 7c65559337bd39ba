package clean

import (
	"context"
	"fmt"

	"github.com/alitto/pond"
	"github.com/samber/lo"

	"github.com/delhivery/tracely/geo"
	"github.com/delhivery/tracely/osrm"
	"github.com/delhivery/tracely/ping"
)

// batch is one chunk of eligible pings to be sent to OSRM together, plus
// enough context to apply the result back onto the trace in order.
type batch struct {
	indices []int // positions in t.Pings
	points  []geo.Point
}

// batchResult is what a single OSRM call produced for one batch, collected
// into a pre-sized slice so concurrent batches never race on the trace.
type batchResult struct {
	snapped []*geo.Point // nil slice means the whole batch failed
	err     error
}

// MapMatch partitions the eligible pings into PingBatchSize chunks and
// snaps each chunk to the road network via a single OSRM match request per
// chunk. Chunks may be sent concurrently (bounded by
// params.Concurrency, via a fixed worker pool); the results
// are always applied back onto the trace, in original chunk order, on the
// calling goroutine once every chunk has returned.
func MapMatch(ctx context.Context, t *ping.Trace, client *osrm.Client, params MapMatchParams) error {
	params = params.withDefaults()
	if params.PingBatchSize > 100 {
		t.AddWarning(fmt.Sprintf("map_match: ping batch size %d exceeds 100; the OSRM server may reject these requests", params.PingBatchSize))
	}

	points, indices := eligiblePoints(t)
	if len(points) == 0 {
		t.MapMatched = true
		return nil
	}

	pointChunks := lo.Chunk(points, params.PingBatchSize)
	indexChunks := lo.Chunk(indices, params.PingBatchSize)

	batches := make([]batch, len(pointChunks))
	for i := range pointChunks {
		batches[i] = batch{indices: indexChunks[i], points: pointChunks[i]}
	}

	results := make([]batchResult, len(batches))

	pool := pond.New(params.Concurrency, 0, pond.MinWorkers(params.Concurrency))
	for i, b := range batches {
		i, b := i, b
		pool.Submit(func() {
			timestamps := make([]int64, len(b.indices))
			for j, idx := range b.indices {
				timestamps[j] = t.Pings[idx].Raw.Timestamp
			}
			snapped, err := client.Match(ctx, b.points, timestamps)
			results[i] = batchResult{snapped: snapped, err: err}
		})
	}
	pool.StopAndWait()

	// Apply every batch's result in original order, sequentially, on this
	// goroutine: this is the only place the trace itself is mutated.
	for i, b := range batches {
		res := results[i]
		if res.err != nil {
			t.AddWarning(fmt.Sprintf("map_match batch %d: %s", i, res.err.Error()))
			continue
		}
		for j, idx := range b.indices {
			snapped := res.snapped[j]
			if snapped == nil {
				continue
			}
			current, _ := t.Pings[idx].Point()
			if *snapped != current {
				t.Pings[idx].MarkUpdated(*snapped, OpMapMatch)
			}
		}
	}

	t.MapMatched = true
	return nil
}
