package metrics

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DatabaseMetrics covers query latency per table and the state of the connection pool.
type DatabaseMetrics struct {
	poolConnections metric.Int64ObservableGauge
	poolWaits       metric.Int64ObservableCounter
	queryDuration   metric.Float64Histogram
	queryErrors     metric.Int64Counter
}

func NewDatabaseMetrics(meter metric.Meter) (*DatabaseMetrics, error) {
	dm := &DatabaseMetrics{}

	var err error

	dm.poolConnections, err = meter.Int64ObservableGauge(
		"db.pool.connections",
		metric.WithDescription("Pool connections by state (open, idle, in_use, max_open)"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	dm.poolWaits, err = meter.Int64ObservableCounter(
		"db.pool.waits",
		metric.WithDescription("Times a query waited for a free pool connection"),
		metric.WithUnit("{wait}"),
	)
	if err != nil {
		return nil, err
	}

	// 1ms .. 10s
	dm.queryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, err
	}

	dm.queryErrors, err = meter.Int64Counter(
		"db.query.errors",
		metric.WithDescription("Failed database queries by error class"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return dm, nil
}

// RegisterDB observes the pool of db on every collection cycle.
func (dm *DatabaseMetrics) RegisterDB(db *sql.DB, meter metric.Meter) error {
	state := func(s string) metric.ObserveOption {
		return metric.WithAttributes(attribute.String("state", s))
	}

	_, err := meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			stats := db.Stats()
			o.ObserveInt64(dm.poolConnections, int64(stats.OpenConnections), state("open"))
			o.ObserveInt64(dm.poolConnections, int64(stats.Idle), state("idle"))
			o.ObserveInt64(dm.poolConnections, int64(stats.InUse), state("in_use"))
			o.ObserveInt64(dm.poolConnections, int64(stats.MaxOpenConnections), state("max_open"))
			o.ObserveInt64(dm.poolWaits, stats.WaitCount)
			return nil
		},
		dm.poolConnections,
		dm.poolWaits,
	)
	return err
}

func (dm *DatabaseMetrics) RecordQuery(ctx context.Context, operation string, table string, duration time.Duration, err error) {
	if dm == nil || dm.queryDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("table", table),
	}
	dm.queryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil {
		attrs = append(attrs, attribute.String("class", errorClass(err)))
		dm.queryErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// errorClass keeps the error attribute low-cardinality.
func errorClass(err error) string {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "no_rows"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, sql.ErrTxDone):
		return "connection"
	default:
		return "query"
	}
}
