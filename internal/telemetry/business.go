package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartIngestionSpan opens a span around one source's portion of an
// ingestion run.
func StartIngestionSpan(ctx context.Context, orgID, source string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "ingestion.run_source",
		trace.WithAttributes(
			attribute.String("org_id", orgID),
			attribute.String("source", source),
		),
	)
}

// RecordIngestionStats attaches run counters to an ingestion span.
func RecordIngestionStats(span trace.Span, fetched, ingested, skipped int) {
	span.SetAttributes(
		attribute.Int("rows.fetched", fetched),
		attribute.Int("rows.ingested", ingested),
		attribute.Int("rows.skipped", skipped),
	)
}

// StartScoringSpan opens a span around scoring one signal against an
// organization's investors.
func StartScoringSpan(ctx context.Context, orgID, signalID string, investors int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "relevance.score_signal",
		trace.WithAttributes(
			attribute.String("org_id", orgID),
			attribute.String("signal_id", signalID),
			attribute.Int("investors", investors),
		),
	)
}

// RecordScoringStats attaches the rows/skipped partition to a scoring span.
func RecordScoringStats(span trace.Span, targets, skipped int) {
	span.SetAttributes(
		attribute.Int("targets", targets),
		attribute.Int("skipped", skipped),
	)
}

// EndSpanWithError closes a span, marking it failed when err is non-nil.
func EndSpanWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
