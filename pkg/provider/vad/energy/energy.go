// Package energy provides a pure-Go VAD engine that gates on the RMS level of
// each frame. It has no internal failure modes and serves as the fallback
// when the primary detector cannot classify a frame.
package energy

import (
	"fmt"

	"github.com/MrWong99/voicemcp/pkg/audio"
	"github.com/MrWong99/voicemcp/pkg/provider/vad"
)

// Engine implements [vad.Engine].
type Engine struct{}

var _ vad.Engine = (*Engine)(nil)

// New returns an energy engine.
func New() *Engine { return &Engine{} }

// NewSession implements [vad.Engine]. Only SampleRate, FrameSizeMs and
// EnergyThreshold are used.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("energy: %w", err)
	}
	th := cfg.EnergyThreshold
	if th == 0 {
		th = vad.DefaultEnergyThreshold
	}
	return &Session{threshold: th, frameBytes: cfg.FrameBytes()}, nil
}

// Session classifies frames by energy. It is stateless and safe for
// concurrent use.
type Session struct {
	threshold  float64
	frameBytes int
}

var _ vad.SessionHandle = (*Session)(nil)

// NewSession returns a session that accepts frames of any length. It is used
// directly by callers that already validated the frame.
func NewSession(threshold float64) *Session {
	if threshold <= 0 {
		threshold = vad.DefaultEnergyThreshold
	}
	return &Session{threshold: threshold}
}

// Threshold returns the RMS level above which frames count as speech.
func (s *Session) Threshold() float64 { return s.threshold }

// ProcessFrame implements [vad.SessionHandle]. Speech is reported iff the
// normalised RMS strictly exceeds the threshold.
func (s *Session) ProcessFrame(frame []byte) (vad.Event, error) {
	if s.frameBytes > 0 && len(frame) != s.frameBytes {
		return vad.Event{}, fmt.Errorf("energy: got %d bytes, want %d: %w", len(frame), s.frameBytes, vad.ErrFrameSize)
	}
	return s.Classify(audio.BytesToInt16(frame)), nil
}

// Classify is ProcessFrame for samples that are already decoded.
func (s *Session) Classify(samples []int16) vad.Event {
	level := audio.RMS(samples)
	return vad.Event{Speech: level > s.threshold, Score: min(level, 1)}
}

// Close implements [vad.SessionHandle].
func (s *Session) Close() error { return nil }
