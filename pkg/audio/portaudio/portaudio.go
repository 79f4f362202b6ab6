// Package portaudio implements [audio.Capturer] and [audio.Player] on top of
// the PortAudio C library (github.com/gordonklaus/portaudio).
//
// Capture uses PortAudio's blocking read API: each ReadFrame call fills one
// fixed-size buffer, which matches the pull-one-frame-at-a-time model of the
// recorder. Playback opens a short-lived output stream per call and returns
// after the last buffer has been written.
//
// The default input and output devices are used; device enumeration is left
// to the operating system's sound settings.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/voicemcp/pkg/audio"
)

// playbackFrames is the number of samples written per output buffer.
const playbackFrames = 1024

// Host owns the PortAudio library lifetime. Create one per process with
// [New] and call [Host.Close] on shutdown.
type Host struct {
	once sync.Once
}

var (
	_ audio.Capturer = (*Host)(nil)
	_ audio.Player   = (*Host)(nil)
)

// New initialises PortAudio.
func New() (*Host, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	return &Host{}, nil
}

// Close terminates PortAudio. Streams still open become invalid. Calling
// Close more than once is safe.
func (h *Host) Close() error {
	var err error
	h.once.Do(func() {
		err = pa.Terminate()
	})
	return err
}

// Open implements [audio.Capturer]. It opens the default input device as a
// mono 16-bit stream and starts it immediately.
func (h *Host) Open(ctx context.Context, cfg audio.CaptureConfig) (audio.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := cfg.SamplesPerFrame()
	if n <= 0 {
		return nil, fmt.Errorf("portaudio: invalid capture config %+v", cfg)
	}

	buf := make([]int16, n)
	stream, err := pa.OpenDefaultStream(1, 0, float64(cfg.SampleRate), len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("portaudio: start input stream: %w", err)
	}
	return &source{stream: stream, buf: buf, sampleRate: cfg.SampleRate}, nil
}

// source is a running PortAudio input stream.
type source struct {
	stream     *pa.Stream
	buf        []int16
	sampleRate int
	closeOnce  sync.Once
	closeErr   error
}

// ReadFrame implements [audio.Source]. Input overflows are logged and
// tolerated: the frame still contains the most recent samples.
func (s *source) ReadFrame(ctx context.Context) (audio.Frame, error) {
	if err := ctx.Err(); err != nil {
		return audio.Frame{}, err
	}
	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, pa.InputOverflowed) {
			return audio.Frame{}, fmt.Errorf("portaudio: read: %w", err)
		}
		slog.Debug("portaudio: input overflowed, frames were dropped")
	}
	samples := make([]int16, len(s.buf))
	copy(samples, s.buf)
	return audio.Frame{Samples: samples, SampleRate: s.sampleRate}, nil
}

// Close implements [audio.Source].
func (s *source) Close() error {
	s.closeOnce.Do(func() {
		if err := s.stream.Stop(); err != nil {
			s.closeErr = fmt.Errorf("portaudio: stop input stream: %w", err)
		}
		if err := s.stream.Close(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("portaudio: close input stream: %w", err)
		}
	})
	return s.closeErr
}

// PlayStream implements [audio.Player]. Chunks are re-blocked into fixed-size
// output buffers; the final partial buffer is zero-padded.
func (h *Host) PlayStream(ctx context.Context, pcm <-chan []byte, sampleRate int) (err error) {
	out := make([]int16, playbackFrames)
	stream, err := pa.OpenDefaultStream(0, 1, float64(sampleRate), len(out), out)
	if err != nil {
		audio.Drain(pcm)
		return fmt.Errorf("portaudio: open output stream: %w", err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("portaudio: close output stream: %w", cerr)
		}
	}()
	if err := stream.Start(); err != nil {
		audio.Drain(pcm)
		return fmt.Errorf("portaudio: start output stream: %w", err)
	}

	write := func() error {
		if werr := stream.Write(); werr != nil && !errors.Is(werr, pa.OutputUnderflowed) {
			return fmt.Errorf("portaudio: write: %w", werr)
		}
		return nil
	}

	n := 0
	var pending []byte
	for chunk := range pcm {
		if cerr := ctx.Err(); cerr != nil {
			audio.Drain(pcm)
			_ = stream.Abort()
			return cerr
		}
		// Keep an odd trailing byte for the next chunk.
		pending = append(pending, chunk...)
		samples := audio.BytesToInt16(pending)
		pending = pending[len(samples)*2:]
		for _, s := range samples {
			out[n] = s
			n++
			if n == len(out) {
				if err := write(); err != nil {
					audio.Drain(pcm)
					return err
				}
				n = 0
			}
		}
	}
	if n > 0 {
		clear(out[n:])
		if err := write(); err != nil {
			return err
		}
	}
	if err := stream.Stop(); err != nil {
		return fmt.Errorf("portaudio: stop output stream: %w", err)
	}
	return nil
}
