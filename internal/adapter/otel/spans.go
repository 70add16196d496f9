package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "salesforge"

// StartChatSpan starts a span for one chat turn.
func StartChatSpan(ctx context.Context, tenantSlug, conversationID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "chat.turn",
		trace.WithAttributes(
			attribute.String("tenant.slug", tenantSlug),
			attribute.String("conversation.id", conversationID),
		),
	)
}

// StartProviderSpan starts a span for an LLM provider call.
func StartProviderSpan(ctx context.Context, model string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "provider.complete",
		trace.WithAttributes(
			attribute.String("provider.model", model),
		),
	)
}

// StartHandoffSpan starts a span for a human handoff.
func StartHandoffSpan(ctx context.Context, tenantSlug, conversationID, reason string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "handoff",
		trace.WithAttributes(
			attribute.String("tenant.slug", tenantSlug),
			attribute.String("conversation.id", conversationID),
			attribute.String("handoff.reason", reason),
		),
	)
}
