package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// useTracer installs an in-memory tracer provider as the global one.
func useTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureLogs points the default logger at a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestTraceID(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID(background) = %q, want empty", got)
	}

	exp := useTracer(t)
	ctx, span := StartSpan(context.Background(), "app.Listen")
	id := TraceID(ctx)
	span.End()

	if len(id) != 32 {
		t.Errorf("TraceID length = %d, want 32", len(id))
	}
	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "app.Listen" {
		t.Fatalf("spans = %v, want one app.Listen span", spans)
	}
	if got := spans[0].SpanContext.TraceID().String(); got != id {
		t.Errorf("exported trace ID = %s, want %s", got, id)
	}
}

func TestWithTool(t *testing.T) {
	ctx := context.Background()
	if Tool(ctx) != "" {
		t.Fatal("Tool(background) should be empty")
	}
	ctx = WithTool(ctx, "listen")
	if got := Tool(ctx); got != "listen" {
		t.Errorf("Tool = %q, want listen", got)
	}
}

func TestLogger(t *testing.T) {
	useTracer(t)

	tests := []struct {
		name    string
		ctx     func() (context.Context, func())
		want    []string
		notWant []string
	}{
		{
			name:    "plain",
			ctx:     func() (context.Context, func()) { return context.Background(), func() {} },
			notWant: []string{"tool=", "trace_id="},
		},
		{
			name: "tool only",
			ctx: func() (context.Context, func()) {
				return WithTool(context.Background(), "speak"), func() {}
			},
			want:    []string{"tool=speak"},
			notWant: []string{"trace_id="},
		},
		{
			name: "tool and span",
			ctx: func() (context.Context, func()) {
				ctx, span := StartSpan(WithTool(context.Background(), "listen"), "op")
				return ctx, func() { span.End() }
			},
			want: []string{"tool=listen", "trace_id=", "span_id="},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)
			ctx, done := tt.ctx()
			defer done()

			Logger(ctx).Info("recording started")
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("log %q missing %q", out, w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("log %q should not contain %q", out, w)
				}
			}
		})
	}
}
