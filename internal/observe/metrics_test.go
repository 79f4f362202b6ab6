package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns Metrics on a private provider and the reader that
// collects from it.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// labels renders key=value pairs as an attribute set for exact matching.
func labels(kv ...string) attribute.Set {
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, attribute.String(kv[i], kv[i+1]))
	}
	return attribute.NewSet(attrs...)
}

// sumAt returns the int64 sum of name at exactly the given labels.
func sumAt(t *testing.T, rm metricdata.ResourceMetrics, name string, set attribute.Set) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is %T, not a sum", name, met.Data)
	}
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&set) {
			return dp.Value
		}
	}
	t.Fatalf("metric %q has no point at %v", name, set.Encoded(attribute.DefaultEncoder()))
	return 0
}

func TestRecorders(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		record func(m *Metrics)
		metric string
		at     attribute.Set
		want   int64
	}{
		{
			name: "provider requests",
			record: func(m *Metrics) {
				m.RecordProviderRequest(ctx, "whisper-native", "stt", "ok")
				m.RecordProviderRequest(ctx, "whisper-native", "stt", "ok")
				m.RecordProviderRequest(ctx, "whisper-native", "stt", "error")
			},
			metric: "voicemcp.provider.requests",
			at:     labels("provider", "whisper-native", "kind", "stt", "status", "ok"),
			want:   2,
		},
		{
			name:   "provider errors",
			record: func(m *Metrics) { m.RecordProviderError(ctx, "openai", "tts") },
			metric: "voicemcp.provider.errors",
			at:     labels("provider", "openai", "kind", "tts"),
			want:   1,
		},
		{
			name: "breaker transitions",
			record: func(m *Metrics) {
				m.RecordBreakerTransition(ctx, "deepgram", "stt", "open")
				m.RecordBreakerTransition(ctx, "deepgram", "stt", "half-open")
				m.RecordBreakerTransition(ctx, "deepgram", "stt", "open")
			},
			metric: "voicemcp.breaker.transitions",
			at:     labels("provider", "deepgram", "kind", "stt", "state", "open"),
			want:   2,
		},
		{
			name: "tool calls",
			record: func(m *Metrics) {
				m.RecordToolCall(ctx, "listen", "ok", 2*time.Second)
				m.RecordToolCall(ctx, "listen", "error", time.Second)
			},
			metric: "voicemcp.tool.calls",
			at:     labels("tool", "listen", "status", "ok"),
			want:   1,
		},
		{
			name: "recordings",
			record: func(m *Metrics) {
				m.RecordRecording(ctx, "vad", "silence", 3*time.Second)
				m.RecordRecording(ctx, "vad", "silence", 4*time.Second)
				m.RecordRecording(ctx, "vad", "no_speech", 0)
			},
			metric: "voicemcp.recordings",
			at:     labels("mode", "vad", "outcome", "silence"),
			want:   2,
		},
		{
			name: "detector frames",
			record: func(m *Metrics) {
				m.RecordDetectorFrame(ctx, "primary", "speech")
				m.RecordDetectorFrame(ctx, "energy", "silence")
				m.RecordDetectorFrame(ctx, "energy", "silence")
			},
			metric: "voicemcp.detector.frames",
			at:     labels("path", "energy", "class", "silence"),
			want:   2,
		},
		{
			name: "active audio sessions",
			record: func(m *Metrics) {
				m.ActiveAudioSessions.Add(ctx, 1)
				m.ActiveAudioSessions.Add(ctx, -1)
				m.ActiveAudioSessions.Add(ctx, 1)
			},
			metric: "voicemcp.active_audio_sessions",
			at:     labels(),
			want:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, reader := newTestMetrics(t)
			tt.record(m)
			if got := sumAt(t, collect(t, reader), tt.metric, tt.at); got != tt.want {
				t.Errorf("%s = %d, want %d", tt.metric, got, tt.want)
			}
		})
	}
}

func TestHistograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.STTDuration.Record(ctx, 0.4)
	m.TTSDuration.Record(ctx, 1.2)
	m.RecordToolCall(ctx, "speak", "ok", 1500*time.Millisecond)
	m.RecordRecording(ctx, "fixed", "fixed", 5*time.Second)
	rm := collect(t, reader)

	for _, tc := range []struct {
		name string
		sum  float64
	}{
		{"voicemcp.stt.duration", 0.4},
		{"voicemcp.tts.duration", 1.2},
		{"voicemcp.tool_execution.duration", 1.5},
		{"voicemcp.recording.duration", 5},
	} {
		met := findMetric(rm, tc.name)
		if met == nil {
			t.Errorf("%s: not found", tc.name)
			continue
		}
		hist, ok := met.Data.(metricdata.Histogram[float64])
		if !ok || len(hist.DataPoints) != 1 {
			t.Errorf("%s: data = %+v", tc.name, met.Data)
			continue
		}
		if dp := hist.DataPoints[0]; dp.Count != 1 || dp.Sum != tc.sum {
			t.Errorf("%s: count=%d sum=%g, want 1 and %g", tc.name, dp.Count, dp.Sum, tc.sum)
		}
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
