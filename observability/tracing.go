package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/hume"

// Tracer provides OpenTelemetry tracing for humed.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartAcceptSpan starts a span covering validation and persistence of one payload.
func (t *Tracer) StartAcceptSpan(ctx context.Context, size int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "hume.accept",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.Int("hume.payload_size", size)),
	)
}

// StartDeliverySpan starts a new span for one transfer method attempt.
func (t *Tracer) StartDeliverySpan(ctx context.Context, recordID int64, humeID, sinkName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "hume.delivery",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.Int64("hume.record_id", recordID),
			attribute.String("hume.id", humeID),
			attribute.String("hume.sink", sinkName),
		),
	)
}

// EndSpan ends a span with its latency and outcome.
func (t *Tracer) EndSpan(span trace.Span, latencyMs int64, err error) {
	span.SetAttributes(attribute.Int64("hume.latency_ms", latencyMs))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
