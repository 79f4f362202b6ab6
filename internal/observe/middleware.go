package observe

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// diagRoutes are the paths the diagnostics server serves. Anything else is
// labelled "other" so scanners cannot blow up metric cardinality.
var diagRoutes = map[string]bool{
	"/metrics": true,
	"/healthz": true,
	"/readyz":  true,
}

func routeLabel(path string) string {
	if diagRoutes[path] {
		return path
	}
	return "other"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments the diagnostics server. Each request gets a server
// span (continuing an incoming W3C traceparent if present), an X-Trace-ID
// response header, and a sample in [Metrics.HTTPRequestDuration] labelled
// by route and status.
//
// Completed requests are logged at debug level; scrapes and probes arrive
// every few seconds and the log ends up in the MCP client's stderr pane.
// 5xx responses are logged at warn.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := routeLabel(r.URL.Path)

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "diag "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			traceID := TraceID(ctx)
			if traceID != "" {
				w.Header().Set("X-Trace-ID", traceID)
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			elapsed := time.Since(start)
			span.SetAttributes(semconv.HTTPResponseStatusCode(rec.status))
			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(
					attribute.String("route", route),
					attribute.String("status", strconv.Itoa(rec.status)),
				),
			)

			level := slog.LevelDebug
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			Logger(ctx).LogAttrs(ctx, level, "diag request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("elapsed", elapsed),
			)
		})
	}
}
