package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HealthMetrics exports the outcome of the last readiness check per dependency.
type HealthMetrics struct {
	up          metric.Int64ObservableGauge
	checkTime   metric.Float64Histogram
	serviceInfo metric.Int64ObservableGauge

	mu     sync.RWMutex
	status map[string]bool
}

func NewHealthMetrics(meter metric.Meter) (*HealthMetrics, error) {
	hm := &HealthMetrics{status: make(map[string]bool)}

	var err error

	hm.up, err = meter.Int64ObservableGauge(
		"dependency.up",
		metric.WithDescription("1 when the last readiness check of the dependency passed"),
		metric.WithUnit("{status}"),
	)
	if err != nil {
		return nil, err
	}

	hm.checkTime, err = meter.Float64Histogram(
		"dependency.check.duration",
		metric.WithDescription("Readiness check duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0),
	)
	if err != nil {
		return nil, err
	}

	hm.serviceInfo, err = meter.Int64ObservableGauge(
		"service.info",
		metric.WithDescription("Constant 1 labelled with service metadata"),
		metric.WithUnit("{info}"),
	)
	if err != nil {
		return nil, err
	}

	return hm, nil
}

func (hm *HealthMetrics) RegisterServiceInfo(meter metric.Meter, serviceName, version, env string) error {
	attrs := metric.WithAttributes(
		attribute.String("service_name", serviceName),
		attribute.String("version", version),
		attribute.String("environment", env),
	)
	_, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(hm.serviceInfo, 1, attrs)
		return nil
	}, hm.serviceInfo)
	return err
}

// RegisterDependencies starts reporting dependency.up for names. Until a name is checked it
// reports 0.
func (hm *HealthMetrics) RegisterDependencies(meter metric.Meter, names []string) error {
	hm.mu.Lock()
	for _, name := range names {
		hm.status[name] = false
	}
	hm.mu.Unlock()

	_, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		hm.mu.RLock()
		defer hm.mu.RUnlock()

		for name, ok := range hm.status {
			var v int64
			if ok {
				v = 1
			}
			o.ObserveInt64(hm.up, v, metric.WithAttributes(attribute.String("dependency", name)))
		}
		return nil
	}, hm.up)
	return err
}

func (hm *HealthMetrics) RecordDependencyCheck(ctx context.Context, dependency string, duration time.Duration, err error) {
	if hm == nil {
		return
	}

	if hm.checkTime != nil {
		hm.checkTime.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.String("dependency", dependency)))
	}

	hm.mu.Lock()
	if _, ok := hm.status[dependency]; ok {
		hm.status[dependency] = err == nil
	}
	hm.mu.Unlock()
}
