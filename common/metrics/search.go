package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type SearchMetrics struct {
	indexOperations metric.Int64Counter
	indexDuration   metric.Float64Histogram
	queries         metric.Int64Counter
	queryDuration   metric.Float64Histogram
	listenerErrors  metric.Int64Counter
}

func NewSearchMetrics(meter metric.Meter) (*SearchMetrics, error) {
	sm := &SearchMetrics{}

	var err error

	sm.indexOperations, err = meter.Int64Counter(
		"search.index.operations",
		metric.WithDescription("Index upserts and removals"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	sm.indexDuration, err = meter.Float64Histogram(
		"search.index.duration",
		metric.WithDescription("Time spent writing to the search index"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0),
	)
	if err != nil {
		return nil, err
	}

	sm.queries, err = meter.Int64Counter(
		"search.queries",
		metric.WithDescription("Full text queries executed against the search index"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, err
	}

	sm.queryDuration, err = meter.Float64Histogram(
		"search.query.duration",
		metric.WithDescription("Search index query duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5),
	)
	if err != nil {
		return nil, err
	}

	sm.listenerErrors, err = meter.Int64Counter(
		"unitofwork.listener.errors",
		metric.WithDescription("Commit listeners that failed after the transaction committed"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordIndexOperation records an upsert or remove against table.
func (sm *SearchMetrics) RecordIndexOperation(ctx context.Context, operation, table string, duration time.Duration, err error) {
	if sm == nil || sm.indexOperations == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("table", table),
		attribute.Bool("error", err != nil),
	}
	sm.indexOperations.Add(ctx, 1, metric.WithAttributes(attrs...))
	sm.indexDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

func (sm *SearchMetrics) RecordQuery(ctx context.Context, table string, duration time.Duration, err error) {
	if sm == nil || sm.queries == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("table", table),
		attribute.Bool("error", err != nil),
	}
	sm.queries.Add(ctx, 1, metric.WithAttributes(attrs...))
	sm.queryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

func (sm *SearchMetrics) RecordListenerError(ctx context.Context, listener string) {
	if sm == nil || sm.listenerErrors == nil {
		return
	}
	sm.listenerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("listener", listener)))
}
