package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "jan-server/whatsapp-relay"
)

// GetTracer returns the tracer for the relay service.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// WebhookAttributes returns common attributes for webhook spans.
func WebhookAttributes(event, instance string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("webhook.event", event),
		attribute.String("webhook.instance", instance),
	}
}

// StartWebhookSpan starts the root span for one webhook callback.
func StartWebhookSpan(ctx context.Context, event, instance string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "webhook.handle",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(WebhookAttributes(event, instance)...),
	)
}

// StartStageSpan starts a span for one pipeline stage.
func StartStageSpan(ctx context.Context, stage, eventID string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "pipeline."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("webhook_event.id", eventID)),
	)
}

// StartJobSpan starts a span for one background job.
func StartJobSpan(ctx context.Context, jobType, jobID string, attempt int) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "worker."+jobType,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("job.type", jobType),
			attribute.String("job.id", jobID),
			attribute.Int("job.attempt", attempt),
		),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error, category string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("error.category", category))
}

// AddOutcomeEvent adds a stage outcome event to a span.
func AddOutcomeEvent(span trace.Span, stage, outcome string) {
	span.AddEvent("stage.outcome",
		trace.WithAttributes(
			attribute.String("stage.name", stage),
			attribute.String("stage.outcome", outcome),
		),
	)
}
