package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics records crypto-shred operation metrics.
type BusinessMetrics interface {
	// RecordOperation counts an operation.
	// Operation examples: "log_event", "read_event", "shred", "rewrap"
	// Status examples: "success", "erased", "error"
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)

	// RecordRewrapped adds n to the count of wrapped DEKs moved to a new master key version.
	RecordRewrapped(ctx context.Context, n int64)
}

type businessMetrics struct {
	operationCounter metric.Int64Counter
	durationHisto    metric.Float64Histogram
	rewrappedCounter metric.Int64Counter
}

// NewBusinessMetrics creates BusinessMetrics on meterProvider. Metric names are prefixed
// with namespace (e.g., "cryptoshred_operations_total").
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)

	operationCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", namespace),
		metric.WithDescription("Total number of crypto-shred operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of crypto-shred operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	rewrappedCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_rewrapped_keys_total", namespace),
		metric.WithDescription("Total number of wrapped DEKs moved to a new master key version"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rewrapped counter: %w", err)
	}

	return &businessMetrics{
		operationCounter: operationCounter,
		durationHisto:    durationHisto,
		rewrappedCounter: rewrappedCounter,
	}, nil
}

func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operationCounter.Add(ctx, 1, metric.WithAttributes(attrs(domain, operation, status)...))
}

func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durationHisto.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs(domain, operation, status)...))
}

func (b *businessMetrics) RecordRewrapped(ctx context.Context, n int64) {
	if n > 0 {
		b.rewrappedCounter.Add(ctx, n)
	}
}

func attrs(domain, operation, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	}
}

// NoOpBusinessMetrics is used when metrics are disabled.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics creates a no-op BusinessMetrics implementation.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

func (n *NoOpBusinessMetrics) RecordOperation(context.Context, string, string, string) {}

func (n *NoOpBusinessMetrics) RecordDuration(context.Context, string, string, time.Duration, string) {}

func (n *NoOpBusinessMetrics) RecordRewrapped(context.Context, int64) {}
