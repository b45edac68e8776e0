package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics mirrors the engine counters onto OpenTelemetry instruments so
// they reach the collector alongside the traces
type OTelMetrics struct {
	transitions      metric.Int64Counter
	actionDuration   metric.Float64Histogram
	batchItems       metric.Int64Counter
	platformRequests metric.Int64Counter
	platformDuration metric.Float64Histogram
}

// NewOTelMetrics creates the instruments on meter, or on the global meter
// provider when meter is nil
func NewOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	if meter == nil {
		meter = otel.Meter("github.com/platinummonkey/clientops")
	}

	m := &OTelMetrics{}
	var err error

	if m.transitions, err = meter.Int64Counter(
		"clientops.transitions",
		metric.WithDescription("Transition attempts by entity, target and outcome"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create transitions counter: %w", err)
	}

	if m.actionDuration, err = meter.Float64Histogram(
		"clientops.action.duration",
		metric.WithDescription("Guarded action duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create action duration histogram: %w", err)
	}

	if m.batchItems, err = meter.Int64Counter(
		"clientops.batch.items",
		metric.WithDescription("Per-item outcomes of bulk actions"),
		metric.WithUnit("{item}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create batch items counter: %w", err)
	}

	if m.platformRequests, err = meter.Int64Counter(
		"clientops.platform.requests",
		metric.WithDescription("Requests to the CRM and billing service"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create platform requests counter: %w", err)
	}

	if m.platformDuration, err = meter.Float64Histogram(
		"clientops.platform.duration",
		metric.WithDescription("CRM and billing request duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create platform duration histogram: %w", err)
	}

	return m, nil
}

func (m *OTelMetrics) recordTransition(entity, target, outcome string) {
	m.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("target", target),
		attribute.String("outcome", outcome),
	))
}

func (m *OTelMetrics) observeAction(entity, action string, d time.Duration) {
	m.actionDuration.Record(context.Background(), d.Seconds(), metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("action", action),
	))
}

func (m *OTelMetrics) recordBatch(action string, succeeded, failed int) {
	ctx := context.Background()
	m.batchItems.Add(ctx, int64(succeeded), metric.WithAttributes(
		attribute.String("action", action), attribute.String("result", "succeeded")))
	m.batchItems.Add(ctx, int64(failed), metric.WithAttributes(
		attribute.String("action", action), attribute.String("result", "failed")))
}

func (m *OTelMetrics) recordPlatformRequest(operation string, status int, d time.Duration) {
	ctx := context.Background()
	m.platformRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", strconv.Itoa(status)),
	))
	m.platformDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("operation", operation)))
}
