// Package audio defines the frame type and the device-facing interfaces of
// the voice pipeline.
//
// The two device abstractions are:
//
//   - [Capturer] / [Source] — open the microphone and pull fixed-size frames
//     from it, one blocking call per frame.
//   - [Player] — play 16-bit PCM through the default output device,
//     returning only after playback has finished.
//
// Implementations live in adapter packages (e.g., audio/portaudio); the
// recorder and the app only depend on these interfaces so they can
// be exercised with the fakes in audio/mock.
package audio

import (
	"context"
	"time"
)

// CaptureConfig describes the stream a [Capturer] should open.
type CaptureConfig struct {
	// SampleRate in Hz. Must be a rate the device and the VAD both support.
	SampleRate int

	// FrameDuration is the length of each frame returned by ReadFrame.
	FrameDuration time.Duration
}

// SamplesPerFrame returns the number of samples in one frame of this config.
func (c CaptureConfig) SamplesPerFrame() int {
	return SamplesPerFrame(c.SampleRate, c.FrameDuration)
}

// Source delivers captured frames. It is owned by a single recording session
// and must not be shared between goroutines.
type Source interface {
	// ReadFrame blocks until the next frame is available and returns it.
	// End of stream is reported as io.EOF. Any other error means the capture
	// device failed; callers treat it as fatal for the session.
	ReadFrame(ctx context.Context) (Frame, error)

	// Close stops capture and releases the device. Calling Close more than
	// once is safe.
	Close() error
}

// Capturer opens a [Source] on the default input device.
type Capturer interface {
	// Open starts capture with the given configuration. The device is held
	// exclusively until the returned Source is closed.
	Open(ctx context.Context, cfg CaptureConfig) (Source, error)
}

// Player plays PCM audio synchronously.
type Player interface {
	// PlayStream plays little-endian 16-bit mono PCM chunks read from pcm at
	// sampleRate until the channel is closed, then waits for the device to
	// drain. It returns early with ctx.Err() when ctx is cancelled.
	PlayStream(ctx context.Context, pcm <-chan []byte, sampleRate int) error
}

// Play plays a complete buffer of samples through p and blocks until it has
// finished.
func Play(ctx context.Context, p Player, samples []int16, sampleRate int) error {
	ch := make(chan []byte, 1)
	ch <- Int16ToBytes(samples)
	close(ch)
	return p.PlayStream(ctx, ch, sampleRate)
}
