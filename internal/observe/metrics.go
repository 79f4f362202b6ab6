// Package observe provides the observability plumbing of voicemcp:
// OpenTelemetry metrics and tracing, trace-aware slog loggers, and the
// middleware of the diagnostics HTTP server.
//
// Instruments are created from any [metric.MeterProvider]. [InitProvider]
// installs one backed by a Prometheus exporter for the /metrics endpoint;
// tests build [NewMetrics] on a private provider instead of the
// process-wide [DefaultMetrics].
package observe

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/voicemcp"

// Metrics holds the application's instruments. OTel instruments are safe for
// concurrent use.
type Metrics struct {
	// STTDuration is transcription latency in seconds.
	STTDuration metric.Float64Histogram

	// TTSDuration is synthesis plus playback time in seconds.
	TTSDuration metric.Float64Histogram

	// ToolExecutionDuration is MCP tool latency, labelled by tool.
	ToolExecutionDuration metric.Float64Histogram

	// RecordingDuration is captured audio length, labelled by mode and
	// outcome.
	RecordingDuration metric.Float64Histogram

	// HTTPRequestDuration is diagnostics server latency by route and status.
	HTTPRequestDuration metric.Float64Histogram

	Recordings       metric.Int64Counter // mode, outcome
	DetectorFrames   metric.Int64Counter // path, class
	ToolCalls        metric.Int64Counter // tool, status
	ProviderRequests metric.Int64Counter // provider, kind, status
	ProviderErrors   metric.Int64Counter // provider, kind

	// BreakerTransitions counts circuit breaker state changes by provider,
	// kind and target state.
	BreakerTransitions metric.Int64Counter

	// ActiveAudioSessions is 1 while the microphone or speaker is held.
	ActiveAudioSessions metric.Int64UpDownCounter
}

var (
	// latencyBuckets are in seconds.
	latencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

	// recordingBuckets span a single word up to the fixed-duration cap.
	recordingBuckets = []float64{0.5, 1, 2, 3, 5, 8, 13, 20, 30, 60, 120}
)

// instruments collects creation errors so NewMetrics can check once.
type instruments struct {
	meter metric.Meter
	errs  []error
}

func (in *instruments) histogram(name, desc string, buckets ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("s")}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := in.meter.Float64Histogram(name, opts...)
	in.errs = append(in.errs, err)
	return h
}

func (in *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc))
	in.errs = append(in.errs, err)
	return c
}

func (in *instruments) upDown(name, desc string) metric.Int64UpDownCounter {
	c, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	in.errs = append(in.errs, err)
	return c
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	in := &instruments{meter: mp.Meter(meterName)}
	m := &Metrics{
		STTDuration:           in.histogram("voicemcp.stt.duration", "Latency of speech-to-text transcription.", latencyBuckets...),
		TTSDuration:           in.histogram("voicemcp.tts.duration", "Time spent synthesising and playing speech.", latencyBuckets...),
		ToolExecutionDuration: in.histogram("voicemcp.tool_execution.duration", "Latency of MCP tool execution.", latencyBuckets...),
		RecordingDuration:     in.histogram("voicemcp.recording.duration", "Captured audio length per recording by mode and outcome.", recordingBuckets...),
		HTTPRequestDuration:   in.histogram("voicemcp.http.request.duration", "Diagnostics server request latency by route and status."),

		Recordings:         in.counter("voicemcp.recordings", "Finished recordings by mode and outcome."),
		DetectorFrames:     in.counter("voicemcp.detector.frames", "Classified frames by detector path and class."),
		ToolCalls:          in.counter("voicemcp.tool.calls", "Tool invocations by tool name and status."),
		ProviderRequests:   in.counter("voicemcp.provider.requests", "Provider requests by provider, kind and status."),
		ProviderErrors:     in.counter("voicemcp.provider.errors", "Provider errors by provider and kind."),
		BreakerTransitions: in.counter("voicemcp.breaker.transitions", "Circuit breaker state changes by provider, kind and state."),

		ActiveAudioSessions: in.upDown("voicemcp.active_audio_sessions", "Audio sessions currently holding the device."),
	}
	if err := errors.Join(in.errs...); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide [Metrics] on [otel.GetMeterProvider].
// Instruments created before [InitProvider] installs the real provider are
// forwarded to it by the OTel global delegate.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		if defaultMetrics, err = NewMetrics(otel.GetMeterProvider()); err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordProviderRequest counts one provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}

// RecordBreakerTransition counts a circuit breaker moving to state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, kind, state string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("state", state),
	))
}

// RecordToolCall counts a tool call and records its latency.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, d time.Duration) {
	m.ToolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	))
	m.ToolExecutionDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("tool", tool)))
}

func (m *Metrics) RecordRecording(ctx context.Context, mode, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("outcome", outcome),
	)
	m.Recordings.Add(ctx, 1, attrs)
	m.RecordingDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) RecordDetectorFrame(ctx context.Context, path, class string) {
	m.DetectorFrames.Add(ctx, 1, metric.WithAttributes(
		attribute.String("path", path),
		attribute.String("class", class),
	))
}
