package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/voicemcp"

// Tracer returns the voicemcp tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span on [Tracer]. The caller must end it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// TraceID returns the hex trace ID of the span in ctx, or "" without one.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

type toolKey struct{}

// WithTool tags ctx with the MCP tool being served. [Logger] adds it to
// every line logged under ctx, so capture, transcription and playback logs
// can be told apart when calls follow each other quickly.
func WithTool(ctx context.Context, tool string) context.Context {
	return context.WithValue(ctx, toolKey{}, tool)
}

// Tool returns the tool name set by [WithTool], or "".
func Tool(ctx context.Context) string {
	s, _ := ctx.Value(toolKey{}).(string)
	return s
}

// Logger returns the default logger with the tool name and the trace and
// span IDs found in ctx. Without any of them it is [slog.Default].
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if tool := Tool(ctx); tool != "" {
		l = l.With(slog.String("tool", tool))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
