package volumes

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the metrics instruments for volume lifecycle operations.
type Metrics struct {
	operationDuration metric.Float64Histogram
}

// newVolumeMetrics creates and registers all volume metrics.
func newVolumeMetrics(meter metric.Meter, m *manager) (*Metrics, error) {
	operationDuration, err := meter.Float64Histogram(
		"dobs_volumes_operation_duration_seconds",
		metric.WithDescription("Time to complete a volume lifecycle operation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	// Register observable gauges
	registeredTotal, err := meter.Int64ObservableGauge(
		"dobs_volumes_registered_total",
		metric.WithDescription("Number of volumes registered with the plugin"),
	)
	if err != nil {
		return nil, err
	}

	mountedTotal, err := meter.Int64ObservableGauge(
		"dobs_volumes_mounted_total",
		metric.WithDescription("Number of volumes mounted on this host"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			entries, err := m.registry.List(ctx)
			if err != nil {
				return nil
			}
			o.ObserveInt64(registeredTotal, int64(len(entries)))
			o.ObserveInt64(mountedTotal, int64(m.refs.mounted()))
			return nil
		},
		registeredTotal,
		mountedTotal,
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		operationDuration: operationDuration,
	}, nil
}

// recordOperation records the duration of a lifecycle operation.
func (m *manager) recordOperation(ctx context.Context, operation string, start time.Time, err error) {
	if m.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.metrics.operationDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		))
}
