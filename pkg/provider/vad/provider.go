// Package vad defines the Engine interface for Voice Activity Detection backends.
//
// A VAD engine wraps a frame-level speech detector (WebRTC VAD, an energy
// gate, or a test double) and surfaces it as a per-stream session. Sessions
// classify each frame independently: the result for a frame never depends on
// frames seen earlier.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle should not be shared across goroutines unless the
// implementation explicitly documents thread safety for that type.
package vad

import (
	"errors"
	"fmt"
)

// DefaultEnergyThreshold is the normalised RMS level above which the energy
// detector reports speech.
const DefaultEnergyThreshold = 0.03

// ErrFrameSize is returned by ProcessFrame when the frame length does not
// match the session's configured frame size. Frames are never resized.
var ErrFrameSize = errors.New("vad: frame size mismatch")

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the PCM
	// frames passed to ProcessFrame. WebRTC VAD accepts 8000, 16000, 32000 and
	// 48000.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds. WebRTC
	// VAD accepts 10, 20, or 30 ms. ProcessFrame returns [ErrFrameSize] if the
	// supplied frame does not match this size.
	FrameSizeMs int

	// Mode is the aggressiveness of engines that support it, from 0 (least
	// aggressive about filtering non-speech) to 3 (most aggressive).
	Mode int

	// EnergyThreshold is the normalised RMS level used by energy-based
	// engines. Zero selects [DefaultEnergyThreshold].
	EnergyThreshold float64
}

// FrameBytes returns the expected byte length of one 16-bit mono frame.
func (c Config) FrameBytes() int {
	return c.SampleRate * c.FrameSizeMs / 1000 * 2
}

// Validate reports obviously invalid configurations shared by all engines.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("vad: sample rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameSizeMs <= 0 {
		return fmt.Errorf("vad: frame size must be positive, got %d ms", c.FrameSizeMs)
	}
	if c.Mode < 0 || c.Mode > 3 {
		return fmt.Errorf("vad: mode must be in [0, 3], got %d", c.Mode)
	}
	if c.EnergyThreshold < 0 || c.EnergyThreshold > 1 {
		return fmt.Errorf("vad: energy threshold must be in [0, 1], got %g", c.EnergyThreshold)
	}
	return nil
}

// Event is the detection result for a single audio frame.
type Event struct {
	// Speech reports whether the frame contains voice activity.
	Speech bool

	// Score is the engine's confidence or level for the frame in [0, 1].
	// Binary engines report 0 or 1.
	Score float64
}

// SessionHandle represents an active VAD session for a single audio stream.
// It is an interface so that test code can supply mock implementations
// without a live engine.
type SessionHandle interface {
	// ProcessFrame classifies a single audio frame. The frame must be raw
	// little-endian 16-bit PCM at the SampleRate and FrameSizeMs configured
	// when the session was created. Returns [ErrFrameSize] if the frame size
	// is wrong, or another error if the engine encounters an internal failure.
	//
	// ProcessFrame is called synchronously in the capture loop; it must not
	// block.
	ProcessFrame(frame []byte) (Event, error)

	// Close releases all resources associated with the session. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions. It is the top-level interface
// implemented by each VAD backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may call
// NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a new VAD session with the given configuration. The
	// session is immediately ready to accept audio frames.
	//
	// Returns an error if the configuration is invalid for this engine.
	NewSession(cfg Config) (SessionHandle, error)
}
