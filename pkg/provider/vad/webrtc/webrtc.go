// Package webrtc provides a VAD engine backed by the WebRTC voice activity
// detector (github.com/maxhawkins/go-webrtcvad).
//
// WebRTC VAD is a binary classifier over 10, 20 or 30 ms frames of 16-bit
// mono PCM at 8, 16, 32 or 48 kHz. Mode 3 is the most aggressive setting and
// the one used for dictation.
package webrtc

import (
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/MrWong99/voicemcp/pkg/provider/vad"
)

// DefaultMode is the aggressiveness used when the caller does not set one.
const DefaultMode = 3

// Engine implements [vad.Engine].
type Engine struct{}

var _ vad.Engine = (*Engine)(nil)

// New returns a WebRTC VAD engine.
func New() *Engine { return &Engine{} }

// NewSession implements [vad.Engine]. Each session owns its own detector
// instance.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("webrtc: %w", err)
	}
	frameBytes := cfg.FrameBytes()
	if !webrtcvad.ValidRateAndFrameLength(cfg.SampleRate, frameBytes) {
		return nil, fmt.Errorf("webrtc: unsupported rate %d Hz with %d ms frames", cfg.SampleRate, cfg.FrameSizeMs)
	}
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtc: create detector: %w", err)
	}
	if err := v.SetMode(cfg.Mode); err != nil {
		return nil, fmt.Errorf("webrtc: set mode %d: %w", cfg.Mode, err)
	}
	return &session{vad: v, sampleRate: cfg.SampleRate, frameBytes: frameBytes}, nil
}

// session wraps one detector instance. The underlying C state is not safe for
// concurrent use, so calls are serialised.
type session struct {
	mu         sync.Mutex
	vad        *webrtcvad.VAD
	sampleRate int
	frameBytes int
	closed     bool
}

// ProcessFrame implements [vad.SessionHandle].
func (s *session) ProcessFrame(frame []byte) (vad.Event, error) {
	if len(frame) != s.frameBytes {
		return vad.Event{}, fmt.Errorf("webrtc: got %d bytes, want %d: %w", len(frame), s.frameBytes, vad.ErrFrameSize)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return vad.Event{}, fmt.Errorf("webrtc: session closed")
	}
	active, err := s.vad.Process(s.sampleRate, frame)
	if err != nil {
		return vad.Event{}, fmt.Errorf("webrtc: process: %w", err)
	}
	if active {
		return vad.Event{Speech: true, Score: 1}, nil
	}
	return vad.Event{}, nil
}

// Close implements [vad.SessionHandle]. The detector memory is released by
// the library's finalizer.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
