// Package listen turns a live microphone stream into a bounded utterance.
//
// A [Recorder] pulls fixed-size frames from an [audio.Source], classifies
// each one with a [Detector] (WebRTC VAD with an RMS energy fallback), and
// drives a [Machine] that trims leading silence, buffers the utterance, and
// stops after a run of trailing silence or a hard duration cap. A fixed
// duration mode skips detection and records a set window instead.
//
// Only capture-device failures are errors ([ErrDevice]). Running out of
// speech, hitting the cap, or reaching the end of the stream are reported as
// an [Outcome] on a successful [Result].
//
// A Recorder performs one recording at a time and has no internal locking;
// callers serialise access (see internal/app).
package listen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrWong99/voicemcp/internal/observe"
	"github.com/MrWong99/voicemcp/pkg/audio"
	"github.com/MrWong99/voicemcp/pkg/provider/vad"
)

// ErrDevice is wrapped around every capture-device failure. It is the only
// error kind that aborts a recording.
var ErrDevice = errors.New("listen: capture device error")

// Default timing parameters.
const (
	DefaultSilenceTimeout   = 1500 * time.Millisecond
	DefaultNoSpeechTimeout  = 15 * time.Second
	DefaultMaxDuration      = 60 * time.Second
	DefaultMaxFixedDuration = 120 * time.Second
)

// Config holds the capture and timing parameters of a [Recorder].
type Config struct {
	// SampleRate of the capture stream in Hz.
	SampleRate int

	// FrameDuration is the length of each captured frame.
	FrameDuration time.Duration

	// SilenceTimeout is the run of trailing non-speech that ends a VAD
	// recording.
	SilenceTimeout time.Duration

	// NoSpeechTimeout bounds the wait for speech to begin. Zero waits until
	// MaxDuration has passed without speech or the stream ends.
	NoSpeechTimeout time.Duration

	// MaxDuration caps the length of a VAD recording.
	MaxDuration time.Duration

	// MaxFixedDuration caps the target of a fixed-duration recording.
	MaxFixedDuration time.Duration

	// VADMode is the aggressiveness passed to the primary VAD engine.
	VADMode int

	// EnergyThreshold is the RMS level of the fallback detector. Zero
	// selects [vad.DefaultEnergyThreshold].
	EnergyThreshold float64
}

// DefaultConfig returns the configuration used when nothing is overridden:
// 16 kHz, 30 ms frames, WebRTC mode 3, a 1.5 s silence timeout.
func DefaultConfig() Config {
	return Config{
		SampleRate:       audio.DefaultSampleRate,
		FrameDuration:    audio.DefaultFrameDuration,
		SilenceTimeout:   DefaultSilenceTimeout,
		NoSpeechTimeout:  DefaultNoSpeechTimeout,
		MaxDuration:      DefaultMaxDuration,
		MaxFixedDuration: DefaultMaxFixedDuration,
		VADMode:          3,
		EnergyThreshold:  vad.DefaultEnergyThreshold,
	}
}

func (c Config) capture() audio.CaptureConfig {
	return audio.CaptureConfig{SampleRate: c.SampleRate, FrameDuration: c.FrameDuration}
}

func (c Config) limits() Limits {
	return Limits{
		FrameDuration:   c.FrameDuration,
		SilenceTimeout:  c.SilenceTimeout,
		NoSpeechTimeout: c.NoSpeechTimeout,
		MaxDuration:     c.MaxDuration,
	}
}

// Mode selects how a recording ends.
type Mode struct {
	fixed time.Duration
}

// VAD returns the record-until-silence mode.
func VAD() Mode { return Mode{} }

// FixedDuration returns a mode that records exactly d of audio, ignoring the
// detector.
func FixedDuration(d time.Duration) Mode { return Mode{fixed: d} }

// Fixed returns the target of a fixed-duration mode.
func (m Mode) Fixed() (time.Duration, bool) { return m.fixed, m.fixed > 0 }

// String returns "vad" or "fixed".
func (m Mode) String() string {
	if m.fixed > 0 {
		return "fixed"
	}
	return "vad"
}

// Option is a functional option for [New].
type Option func(*Recorder)

// WithMetrics overrides the metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// Recorder records utterances from a capture device.
type Recorder struct {
	capturer audio.Capturer
	engine   vad.Engine
	cfg      Config
	metrics  *observe.Metrics
}

// New returns a Recorder. engine may be nil, in which case only the energy
// detector is used.
func New(capturer audio.Capturer, engine vad.Engine, cfg Config, opts ...Option) (*Recorder, error) {
	if capturer == nil {
		return nil, errors.New("listen: capturer must not be nil")
	}
	if cfg.SampleRate <= 0 || cfg.FrameDuration <= 0 {
		return nil, fmt.Errorf("listen: invalid capture format %d Hz / %s", cfg.SampleRate, cfg.FrameDuration)
	}
	if cfg.capture().SamplesPerFrame() == 0 {
		return nil, fmt.Errorf("listen: frame duration %s too short for %d Hz", cfg.FrameDuration, cfg.SampleRate)
	}
	if cfg.SilenceTimeout <= 0 {
		return nil, errors.New("listen: silence timeout must be positive")
	}
	if cfg.MaxFixedDuration <= 0 {
		return nil, errors.New("listen: max fixed duration must be positive")
	}
	r := &Recorder{capturer: capturer, engine: engine, cfg: cfg}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r, nil
}

// Config returns the recorder's configuration.
func (r *Recorder) Config() Config { return r.cfg }

// Record captures one utterance in the given mode. The device is opened at
// the start and released before Record returns.
//
// Capture failures are returned wrapped in [ErrDevice]. Cancelling ctx stops
// the recording between frames and returns ctx.Err().
func (r *Recorder) Record(ctx context.Context, mode Mode) (Result, error) {
	ctx, span := observe.StartSpan(ctx, "listen.Record")
	defer span.End()

	if target, ok := mode.Fixed(); ok && target > r.cfg.MaxFixedDuration {
		observe.Logger(ctx).Warn("listen: fixed duration capped",
			"requested", target, "max", r.cfg.MaxFixedDuration)
		mode = FixedDuration(r.cfg.MaxFixedDuration)
	}

	src, err := r.capturer.Open(ctx, r.cfg.capture())
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("%w: open: %w", ErrDevice, err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			observe.Logger(ctx).Warn("listen: close capture source", "err", cerr)
		}
	}()

	start := time.Now()
	var (
		frames  []audio.Frame
		outcome Outcome
	)
	if target, ok := mode.Fixed(); ok {
		frames, outcome, err = r.recordFixed(ctx, src, target)
	} else {
		frames, outcome, err = r.recordVAD(ctx, src)
	}
	if err != nil {
		return Result{}, err
	}

	res := newResult(frames, outcome, mode, r.cfg.SampleRate, r.cfg.FrameDuration)
	r.metrics.RecordRecording(ctx, mode.String(), outcome.String(), res.Duration)
	observe.Logger(ctx).Info("listen: recording finished",
		"mode", mode.String(),
		"outcome", outcome.String(),
		"frames", len(frames),
		"audio", res.Duration,
		"elapsed", time.Since(start),
	)
	return res, nil
}

// recordVAD runs the record-until-silence loop.
func (r *Recorder) recordVAD(ctx context.Context, src audio.Source) ([]audio.Frame, Outcome, error) {
	var primary vad.SessionHandle
	if r.engine != nil {
		sess, err := r.engine.NewSession(vad.Config{
			SampleRate:      r.cfg.SampleRate,
			FrameSizeMs:     int(r.cfg.FrameDuration / time.Millisecond),
			Mode:            r.cfg.VADMode,
			EnergyThreshold: r.cfg.EnergyThreshold,
		})
		if err != nil {
			observe.Logger(ctx).Warn("listen: primary VAD unavailable, using energy detector", "err", err)
		} else {
			primary = sess
			defer sess.Close()
		}
	}
	det := NewDetector(primary, r.cfg.SampleRate, r.cfg.capture().SamplesPerFrame(), r.cfg.EnergyThreshold)

	m := NewMachine(r.cfg.limits())
	m.Start()
	for m.State() != Finalizing {
		f, err := r.next(ctx, src)
		if errors.Is(err, io.EOF) {
			m.EndOfStream()
			break
		}
		if err != nil {
			return nil, OutcomeNone, err
		}
		c, path := det.classify(f)
		r.metrics.RecordDetectorFrame(ctx, path, c.String())
		prev := m.State()
		if next := m.Step(f, c); next != prev {
			observe.Logger(ctx).Debug("listen: state change", "from", prev.String(), "to", next.String())
		}
	}
	frames, outcome := m.Take()
	return frames, outcome, nil
}

// next reads one frame, mapping failures to ctx.Err(), io.EOF or ErrDevice.
func (r *Recorder) next(ctx context.Context, src audio.Source) (audio.Frame, error) {
	if err := ctx.Err(); err != nil {
		return audio.Frame{}, err
	}
	f, err := src.ReadFrame(ctx)
	switch {
	case err == nil:
		return f, nil
	case errors.Is(err, io.EOF):
		return audio.Frame{}, io.EOF
	case ctx.Err() != nil:
		return audio.Frame{}, ctx.Err()
	default:
		return audio.Frame{}, fmt.Errorf("%w: %w", ErrDevice, err)
	}
}
