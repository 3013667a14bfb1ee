package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// traceArgs: trace_id/span_id активного спана в виде аргументов для slog.With.
func traceArgs(ctx context.Context) []any {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []any{
		"trace_id", sc.TraceID().String(),
		"span_id", sc.SpanID().String(),
	}
}
