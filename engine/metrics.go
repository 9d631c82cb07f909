package engine

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	MRequests = stats.Int64("dagforge/engine/requests", "Number of engine API calls", stats.UnitDimensionless)
	MLatency  = stats.Float64("dagforge/engine/latency", "Engine API call latency", stats.UnitMilliseconds)

	KeyOperation = tag.MustNewKey("operation")
	KeyOutcome   = tag.MustNewKey("outcome")

	RequestCountView = &view.View{
		Name:        "dagforge/engine/request_count",
		Description: "Engine API calls by operation and outcome",
		Measure:     MRequests,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{KeyOperation, KeyOutcome},
	}
	LatencyView = &view.View{
		Name:        "dagforge/engine/latency",
		Description: "Engine API call latency by operation",
		Measure:     MLatency,
		Aggregation: view.Distribution(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000),
		TagKeys:     []tag.Key{KeyOperation},
	}

	Views = []*view.View{RequestCountView, LatencyView}
)

func recordCall(ctx context.Context, op string, outcome string, start time.Time) {
	latency := float64(time.Since(start)) / float64(time.Millisecond)
	_ = stats.RecordWithTags(ctx,
		[]tag.Mutator{tag.Upsert(KeyOperation, op), tag.Upsert(KeyOutcome, outcome)},
		MRequests.M(1), MLatency.M(latency))
}
