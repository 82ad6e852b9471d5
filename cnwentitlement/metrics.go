package cnwentitlement

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterName is the instrumentation scope used by the Manager.
const MeterName = "cnw-entitlement"

// entitlementMetrics holds the Manager's OpenTelemetry instruments.
type entitlementMetrics struct {
	validations     metric.Int64Counter
	validationFails metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
	events          metric.Int64Counter
}

func newEntitlementMetrics(meter metric.Meter) (*entitlementMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}
	m := &entitlementMetrics{}

	var err error
	m.validations, err = meter.Int64Counter(
		"entitlement_validations_total",
		metric.WithDescription("Total number of license validations"),
	)
	if err != nil {
		return nil, fmt.Errorf("create validations counter: %w", err)
	}

	m.validationFails, err = meter.Int64Counter(
		"entitlement_validation_failures_total",
		metric.WithDescription("Total number of license validations that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("create validation failures counter: %w", err)
	}

	m.cacheHits, err = meter.Int64Counter(
		"entitlement_prevention_cache_hits_total",
		metric.WithDescription("Prevention checks answered from the cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache hits counter: %w", err)
	}

	m.cacheMisses, err = meter.Int64Counter(
		"entitlement_prevention_cache_misses_total",
		metric.WithDescription("Prevention checks that ran the limit evaluator"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache misses counter: %w", err)
	}

	m.events, err = meter.Int64Counter(
		"entitlement_events_total",
		metric.WithDescription("Events published by the license manager"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events counter: %w", err)
	}

	return m, nil
}

func (m *entitlementMetrics) recordValidation(ctx context.Context, err error) {
	m.validations.Add(ctx, 1)
	if err != nil {
		m.validationFails.Add(ctx, 1)
	}
}

func (m *entitlementMetrics) recordCache(ctx context.Context, kind LimitKind, hit bool) {
	attrs := metric.WithAttributes(attribute.String("limit", string(kind)))
	if hit {
		m.cacheHits.Add(ctx, 1, attrs)
		return
	}
	m.cacheMisses.Add(ctx, 1, attrs)
}

func (m *entitlementMetrics) recordEvent(ctx context.Context, name EventName) {
	m.events.Add(ctx, 1, metric.WithAttributes(attribute.String("event", string(name))))
}
