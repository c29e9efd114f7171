package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CheckoutMetrics records the outcome of each checkout attempt.
type CheckoutMetrics struct {
	placed   metric.Int64Counter
	rejected metric.Int64Counter
	duration metric.Float64Histogram
}

func NewCheckoutMetrics() (*CheckoutMetrics, error) {
	meter := otel.Meter("storefront/checkout")

	placed, err := meter.Int64Counter("checkout.orders_placed",
		metric.WithDescription("Orders committed by checkout."))
	if err != nil {
		return nil, err
	}

	rejected, err := meter.Int64Counter("checkout.rejected",
		metric.WithDescription("Checkout attempts that did not produce an order."))
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("checkout.duration",
		metric.WithDescription("Checkout latency."),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500),
	)
	if err != nil {
		return nil, err
	}

	return &CheckoutMetrics{placed: placed, rejected: rejected, duration: duration}, nil
}

func (m *CheckoutMetrics) Placed(ctx context.Context, started time.Time) {
	if m == nil {
		return
	}
	m.placed.Add(ctx, 1)
	m.duration.Record(ctx, float64(time.Since(started).Milliseconds()))
}

func (m *CheckoutMetrics) Rejected(ctx context.Context, reason string, started time.Time) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("reason", reason))
	m.rejected.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)
}
