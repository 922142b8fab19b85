package cloud

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the metrics instruments for cloud API calls.
type Metrics struct {
	apiDuration    metric.Float64Histogram
	apiErrorsTotal metric.Int64Counter
}

// NewMetrics creates cloud API metrics instruments.
// If meter is nil, returns nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		return nil, nil
	}

	apiDuration, err := meter.Float64Histogram(
		"dobs_cloud_api_duration_seconds",
		metric.WithDescription("DigitalOcean API call duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	apiErrorsTotal, err := meter.Int64Counter(
		"dobs_cloud_api_errors_total",
		metric.WithDescription("Total number of failed DigitalOcean API calls"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		apiDuration:    apiDuration,
		apiErrorsTotal: apiErrorsTotal,
	}, nil
}

// RecordAPICall records the duration and status of an API call.
func (m *Metrics) RecordAPICall(ctx context.Context, operation string, start time.Time, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
		m.apiErrorsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("operation", operation)))
	}

	m.apiDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		))
}
