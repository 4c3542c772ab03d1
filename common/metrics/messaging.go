package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MessagingMetrics is shared by the NATS and Kafka producers and consumers. destination is
// the NATS subject prefix or the Kafka topic.
type MessagingMetrics struct {
	messages metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

func NewMessagingMetrics(meter metric.Meter) (*MessagingMetrics, error) {
	mm := &MessagingMetrics{}

	var err error

	mm.messages, err = meter.Int64Counter(
		"messaging.messages",
		metric.WithDescription("Messages published or consumed"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	// 100µs .. 10s, covers both network-bound publishes and index writes on consume
	mm.duration, err = meter.Float64Histogram(
		"messaging.duration",
		metric.WithDescription("Time to publish a message or to process a consumed one"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 10.0),
	)
	if err != nil {
		return nil, err
	}

	mm.errors, err = meter.Int64Counter(
		"messaging.errors",
		metric.WithDescription("Failed publishes and rejected messages"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return mm, nil
}

func (mm *MessagingMetrics) RecordPublish(ctx context.Context, destination string, duration time.Duration, err error) {
	mm.record(ctx, "publish", destination, duration, err)
}

func (mm *MessagingMetrics) RecordConsume(ctx context.Context, destination string, processingDuration time.Duration, err error) {
	mm.record(ctx, "consume", destination, processingDuration, err)
}

func (mm *MessagingMetrics) record(ctx context.Context, direction, destination string, d time.Duration, err error) {
	if mm == nil || mm.messages == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("direction", direction),
		attribute.String("destination", destination),
	)
	mm.messages.Add(ctx, 1, attrs)
	mm.duration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		mm.errors.Add(ctx, 1, attrs)
	}
}
