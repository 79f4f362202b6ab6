// Package mock provides in-memory implementations of the [audio.Capturer],
// [audio.Source], and [audio.Player] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	src := &mock.Source{Frames: frames, Err: io.EOF}
//	capt := &mock.Capturer{Source: src}
//	s, _ := capt.Open(ctx, cfg)
//	f, err := s.ReadFrame(ctx)
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/MrWong99/voicemcp/pkg/audio"
)

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a scripted [audio.Source]. ReadFrame returns Frames in order; once
// they are exhausted it returns Err, or io.EOF when Err is nil.
type Source struct {
	mu sync.Mutex

	// Frames are delivered in order by ReadFrame.
	Frames []audio.Frame

	// Err is returned after all Frames have been delivered. Defaults to io.EOF.
	Err error

	// CloseErr is returned by Close.
	CloseErr error

	// ReadCount records how many frames were successfully delivered.
	ReadCount int

	// CloseCount records how many times Close was called.
	CloseCount int
}

// ReadFrame implements [audio.Source].
func (s *Source) ReadFrame(ctx context.Context) (audio.Frame, error) {
	if err := ctx.Err(); err != nil {
		return audio.Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReadCount >= len(s.Frames) {
		if s.Err != nil {
			return audio.Frame{}, s.Err
		}
		return audio.Frame{}, io.EOF
	}
	f := s.Frames[s.ReadCount]
	s.ReadCount++
	return f, nil
}

// Close implements [audio.Source].
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCount++
	return s.CloseErr
}

// Reads returns the number of frames delivered so far. Thread-safe.
func (s *Source) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ReadCount
}

var _ audio.Source = (*Source)(nil)

// ─── Capturer ─────────────────────────────────────────────────────────────────

// Capturer is a mock [audio.Capturer].
type Capturer struct {
	mu sync.Mutex

	// Source is returned by Open. When nil, an empty Source is returned.
	Source audio.Source

	// OpenErr, if non-nil, is returned by Open.
	OpenErr error

	// OpenCalls records the configs passed to Open.
	OpenCalls []audio.CaptureConfig
}

// Open implements [audio.Capturer].
func (c *Capturer) Open(_ context.Context, cfg audio.CaptureConfig) (audio.Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.OpenCalls = append(c.OpenCalls, cfg)
	if c.OpenErr != nil {
		return nil, c.OpenErr
	}
	if c.Source == nil {
		return &Source{}, nil
	}
	return c.Source, nil
}

var _ audio.Capturer = (*Capturer)(nil)

// ─── Player ───────────────────────────────────────────────────────────────────

// PlayCall records a single completed PlayStream invocation.
type PlayCall struct {
	// PCM is the concatenation of every chunk received.
	PCM []byte

	// SampleRate is the rate passed to PlayStream.
	SampleRate int
}

// Player is a mock [audio.Player] that drains the PCM channel and records it.
type Player struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by PlayStream after the channel is
	// drained.
	PlayErr error

	// OnPlay, if set, is called once per PlayStream before returning. Tests use
	// it to observe side effects (e.g., stdout redirection) during playback.
	OnPlay func()

	// Calls records every PlayStream invocation in order.
	Calls []PlayCall
}

// PlayStream implements [audio.Player].
func (p *Player) PlayStream(ctx context.Context, pcm <-chan []byte, sampleRate int) error {
	var buf []byte
	for chunk := range pcm {
		buf = append(buf, chunk...)
	}
	if p.OnPlay != nil {
		p.OnPlay()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, PlayCall{PCM: buf, SampleRate: sampleRate})
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.PlayErr
}

// PlayCalls returns a copy of the recorded calls. Thread-safe.
func (p *Player) PlayCalls() []PlayCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PlayCall, len(p.Calls))
	copy(out, p.Calls)
	return out
}

var _ audio.Player = (*Player)(nil)
