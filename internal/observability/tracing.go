package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		}, attrs...)...),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// ExchangeMetrics holds the exchange engine's counters. A nil
// *ExchangeMetrics records nothing.
type ExchangeMetrics struct {
	exchanges      metric.Int64Counter
	pairAttempts   metric.Int64Counter
	toggles        metric.Int64Counter
	softDeleted    metric.Int64Counter
	hardDeleted    metric.Int64Counter
	purgeFailures  metric.Int64Counter
	skippedOneSide metric.Int64Counter
}

// NewExchangeMetrics creates exchange metrics instruments on the global
// meter provider
func NewExchangeMetrics() (*ExchangeMetrics, error) {
	meter := otel.Meter(instrumentationName)

	exchanges, err := meter.Int64Counter(
		"photoexchange.exchanges",
		metric.WithDescription("Exchange attempts by outcome"),
		metric.WithUnit("{exchanges}"),
	)
	if err != nil {
		return nil, err
	}

	pairAttempts, err := meter.Int64Counter(
		"photoexchange.pair_attempts",
		metric.WithDescription("Pairing transactions, including contended ones"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		return nil, err
	}

	toggles, err := meter.Int64Counter(
		"photoexchange.toggles",
		metric.WithDescription("Favourite and report toggles by status"),
		metric.WithUnit("{toggles}"),
	)
	if err != nil {
		return nil, err
	}

	softDeleted, err := meter.Int64Counter(
		"photoexchange.photos.soft_deleted",
		metric.WithDescription("Photos marked deleted"),
		metric.WithUnit("{photos}"),
	)
	if err != nil {
		return nil, err
	}

	hardDeleted, err := meter.Int64Counter(
		"photoexchange.photos.hard_deleted",
		metric.WithDescription("Photos permanently removed"),
		metric.WithUnit("{photos}"),
	)
	if err != nil {
		return nil, err
	}

	purgeFailures, err := meter.Int64Counter(
		"photoexchange.purge.failures",
		metric.WithDescription("File purges that failed after row deletion"),
		metric.WithUnit("{photos}"),
	)
	if err != nil {
		return nil, err
	}

	skippedOneSide, err := meter.Int64Counter(
		"photoexchange.lifecycle.inconsistent_links",
		metric.WithDescription("One-sided exchange links skipped by soft delete"),
		metric.WithUnit("{photos}"),
	)
	if err != nil {
		return nil, err
	}

	return &ExchangeMetrics{
		exchanges:      exchanges,
		pairAttempts:   pairAttempts,
		toggles:        toggles,
		softDeleted:    softDeleted,
		hardDeleted:    hardDeleted,
		purgeFailures:  purgeFailures,
		skippedOneSide: skippedOneSide,
	}, nil
}

// RecordExchange records the outcome of one TryDoExchange call
func (m *ExchangeMetrics) RecordExchange(ctx context.Context, outcome string, attempts int) {
	if m == nil {
		return
	}
	m.exchanges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.pairAttempts.Add(ctx, int64(attempts))
}

// RecordToggle records a favourite or report toggle
func (m *ExchangeMetrics) RecordToggle(ctx context.Context, kind, status string) {
	if m == nil {
		return
	}
	m.toggles.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordSoftDelete records photos marked deleted and links skipped
func (m *ExchangeMetrics) RecordSoftDelete(ctx context.Context, marked, skipped int) {
	if m == nil {
		return
	}
	m.softDeleted.Add(ctx, int64(marked))
	m.skippedOneSide.Add(ctx, int64(skipped))
}

// RecordHardDelete records photos removed and purges that failed
func (m *ExchangeMetrics) RecordHardDelete(ctx context.Context, removed, purgeFailures int) {
	if m == nil {
		return
	}
	m.hardDeleted.Add(ctx, int64(removed))
	m.purgeFailures.Add(ctx, int64(purgeFailures))
}
