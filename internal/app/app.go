// Package app wires the recorder, the speech providers, and the audio devices
// into the three operations the MCP server exposes: listen, speak, and
// voices.
//
// The App owns every provider for the lifetime of the process. Providers are
// created and loaded once at startup (a local whisper model takes seconds to
// load) and closed in [App.Close].
//
// Only one audio session runs at a time. A listen or speak call that arrives
// while another is using the device fails immediately with [ErrBusy] instead
// of queueing behind it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/voicemcp/internal/config"
	"github.com/MrWong99/voicemcp/internal/listen"
	"github.com/MrWong99/voicemcp/internal/observe"
	"github.com/MrWong99/voicemcp/internal/stdio"
	"github.com/MrWong99/voicemcp/internal/transcript"
	"github.com/MrWong99/voicemcp/pkg/audio"
	"github.com/MrWong99/voicemcp/pkg/audio/cue"
	"github.com/MrWong99/voicemcp/pkg/audio/wavfile"
	"github.com/MrWong99/voicemcp/pkg/provider/stt"
	"github.com/MrWong99/voicemcp/pkg/provider/tts"
	"github.com/MrWong99/voicemcp/pkg/provider/vad"
)

var (
	// ErrBusy is returned when another listen or speak call holds the audio
	// device.
	ErrBusy = errors.New("app: another audio session is in progress")

	// ErrEmptyText is returned by Speak for blank text.
	ErrEmptyText = errors.New("app: nothing to speak")
)

// Providers holds the preloaded backends. STT, TTS, Capturer and Player are
// required; VAD may be nil, in which case only the energy detector runs.
type Providers struct {
	STT      stt.Provider
	TTS      tts.Provider
	VAD      vad.Engine
	Capturer audio.Capturer
	Player   audio.Player
}

// ListenResult is the outcome of one [App.Listen] call.
type ListenResult struct {
	// Text is the corrected transcription. Empty when NoSpeech is set.
	Text string

	// NoSpeech is set when nothing intelligible was captured.
	NoSpeech bool

	// Outcome is the reason the recording ended.
	Outcome listen.Outcome

	// Audio is the length of the captured utterance.
	Audio time.Duration

	// Corrections lists vocabulary substitutions applied to Text.
	Corrections []transcript.Correction

	// DumpPath is the WAV file written for this utterance, if any.
	DumpPath string
}

// SpeakRequest holds the arguments of [App.Speak]. Zero fields take the
// configured voice defaults.
type SpeakRequest struct {
	Text  string
	Voice string
	Speed float64
	Lang  string
}

// Option is a functional option for [New].
type Option func(*App)

// WithMetrics overrides the metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithStdout sets the stream silenced during playback. Defaults to
// &os.Stdout.
func WithStdout(target **os.File) Option {
	return func(a *App) { a.stdout = target }
}

// WithClosers registers resources released by [App.Close] after the
// providers, in order. Use it for backends wrapped in a fallback group.
func WithClosers(cs ...io.Closer) Option {
	return func(a *App) { a.closers = append(a.closers, cs...) }
}

// WithClock replaces time.Now, used to name utterance dumps.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// App owns all providers and serialises access to the audio devices.
type App struct {
	recorder *listen.Recorder
	stt      stt.Provider
	tts      tts.Provider
	player   audio.Player

	sem     *semaphore.Weighted
	metrics *observe.Metrics
	stdout  **os.File
	now     func() time.Time

	cues      bool
	cueVolume float64
	dumpDir   string

	// mu guards the hot-reloadable settings below.
	mu         sync.RWMutex
	voice      config.VoiceConfig
	language   string
	vocabulary []string
	corrector  *transcript.Corrector

	closers   []io.Closer
	closeOnce sync.Once
	closed    atomic.Bool
}

// New builds an App from cfg and already constructed providers.
func New(cfg *config.Config, p Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	switch {
	case p.STT == nil:
		return nil, errors.New("app: STT provider must not be nil")
	case p.TTS == nil:
		return nil, errors.New("app: TTS provider must not be nil")
	case p.Capturer == nil:
		return nil, errors.New("app: capturer must not be nil")
	case p.Player == nil:
		return nil, errors.New("app: player must not be nil")
	}

	a := &App{
		stt:       p.STT,
		tts:       p.TTS,
		player:    p.Player,
		sem:       semaphore.NewWeighted(1),
		metrics:   observe.DefaultMetrics(),
		stdout:    &os.Stdout,
		now:       time.Now,
		cues:      cfg.Audio.CuesEnabled(),
		cueVolume: cfg.Audio.CueVolume,
		dumpDir:   cfg.Recorder.DumpDir,
	}
	for _, o := range opts {
		o(a)
	}
	a.Reconfigure(cfg.Voice, cfg.Transcript)

	rec, err := listen.New(p.Capturer, p.VAD, listenConfig(cfg), listen.WithMetrics(a.metrics))
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.recorder = rec
	return a, nil
}

func listenConfig(cfg *config.Config) listen.Config {
	return listen.Config{
		SampleRate:       cfg.Audio.SampleRate,
		FrameDuration:    cfg.Audio.FrameDuration(),
		SilenceTimeout:   cfg.Recorder.SilenceTimeout,
		NoSpeechTimeout:  cfg.Recorder.NoSpeechTimeout,
		MaxDuration:      cfg.Recorder.MaxDuration,
		MaxFixedDuration: cfg.Recorder.MaxFixedDuration,
		VADMode:          cfg.VAD.ModeValue(),
		EnergyThreshold:  cfg.VAD.EnergyThreshold,
	}
}

// Reconfigure swaps the voice defaults and the transcript settings. It is
// safe to call while sessions are running; they keep the settings they
// started with.
func (a *App) Reconfigure(voice config.VoiceConfig, tc config.TranscriptConfig) {
	c := transcript.NewCorrector(tc.Vocabulary)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.voice = voice
	a.language = tc.Language
	a.vocabulary = c.Vocabulary()
	a.corrector = c
}

// acquire claims the audio device or fails with ErrBusy.
func (a *App) acquire(ctx context.Context) (release func(), err error) {
	if a.closed.Load() {
		return nil, errors.New("app: closed")
	}
	if !a.sem.TryAcquire(1) {
		return nil, ErrBusy
	}
	a.metrics.ActiveAudioSessions.Add(ctx, 1)
	return func() {
		a.metrics.ActiveAudioSessions.Add(ctx, -1)
		a.sem.Release(1)
	}, nil
}

// Listen records one utterance and transcribes it. A positive duration
// records exactly that long (capped by recorder.max_fixed_duration);
// otherwise recording stops after trailing silence.
//
// Only device, provider, and busy failures are errors. A recording without
// speech returns a result with NoSpeech set.
func (a *App) Listen(ctx context.Context, duration time.Duration) (ListenResult, error) {
	release, err := a.acquire(ctx)
	if err != nil {
		return ListenResult{}, err
	}
	defer release()

	ctx, span := observe.StartSpan(ctx, "app.Listen")
	defer span.End()
	log := observe.Logger(ctx)

	mode := listen.VAD()
	if duration > 0 {
		mode = listen.FixedDuration(duration)
	}

	a.playCue(ctx, true)
	res, err := a.recorder.Record(ctx, mode)
	if ctx.Err() == nil {
		a.playCue(ctx, false)
	}
	if err != nil {
		return ListenResult{}, err
	}

	out := ListenResult{Outcome: res.Outcome, Audio: res.Duration}
	if res.Empty() {
		out.NoSpeech = true
		return out, nil
	}

	samples := res.Samples()
	if a.dumpDir != "" {
		path, derr := wavfile.Dump(a.dumpDir, samples, res.SampleRate, a.now())
		if derr != nil {
			log.Warn("app: utterance dump failed", "err", derr)
		} else {
			out.DumpPath = path
			log.Debug("app: utterance dumped", "path", path)
		}
	}

	a.mu.RLock()
	language, vocabulary, corrector := a.language, a.vocabulary, a.corrector
	a.mu.RUnlock()

	start := time.Now()
	tr, err := a.stt.Transcribe(ctx, stt.Utterance{
		Samples:    samples,
		SampleRate: res.SampleRate,
		Language:   language,
		Keywords:   vocabulary,
	})
	a.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if errors.Is(err, stt.ErrEmptyUtterance) {
		out.NoSpeech = true
		return out, nil
	}
	if err != nil {
		return ListenResult{}, fmt.Errorf("app: transcribe: %w", err)
	}

	text := strings.TrimSpace(tr.Text)
	if text == "" {
		out.NoSpeech = true
		return out, nil
	}
	corrected := corrector.Correct(ctx, text)
	out.Text = corrected.Text
	out.Corrections = corrected.Corrections

	log.Info("app: transcribed",
		"audio", res.Duration,
		"chars", len(out.Text),
		"corrections", len(out.Corrections),
		"stt_elapsed", time.Since(start),
	)
	return out, nil
}

// playCue plays the start or stop tone. Failures are logged and never fail
// the recording.
func (a *App) playCue(ctx context.Context, rising bool) {
	if !a.cues {
		return
	}
	p := cue.Falling()
	if rising {
		p = cue.Rising()
	}
	p.Volume = a.cueVolume
	if err := audio.Play(ctx, a.player, cue.Synthesize(p), p.SampleRate); err != nil {
		observe.Logger(ctx).Warn("app: cue playback failed", "rising", rising, "err", err)
	}
}

// Speak synthesises req.Text and plays it, returning after playback has
// finished. Standard output is redirected to the null device while audio
// plays.
func (a *App) Speak(ctx context.Context, req SpeakRequest) error {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return ErrEmptyText
	}

	release, err := a.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	ctx, span := observe.StartSpan(ctx, "app.Speak")
	defer span.End()

	voice := a.voiceFor(req)
	start := time.Now()
	defer func() {
		a.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithCancel(ctx)
	pcm, err := a.tts.SynthesizeStream(ctx, tts.Text(text), voice)
	if err != nil {
		cancel()
		return fmt.Errorf("app: synthesize: %w", err)
	}
	defer func() {
		cancel()
		audio.Drain(pcm)
	}()

	err = stdio.Do(a.stdout, func() error {
		return a.player.PlayStream(ctx, pcm, a.tts.SampleRate())
	})
	if err != nil {
		return fmt.Errorf("app: play: %w", err)
	}

	observe.Logger(ctx).Info("app: spoke",
		"chars", len(text),
		"voice", voice.ID,
		"elapsed", time.Since(start),
	)
	return nil
}

// voiceFor merges req with the configured defaults.
func (a *App) voiceFor(req SpeakRequest) tts.VoiceProfile {
	a.mu.RLock()
	def := a.voice
	a.mu.RUnlock()

	v := tts.VoiceProfile{ID: req.Voice, Speed: req.Speed, Language: req.Lang}
	if v.ID == "" {
		v.ID = def.Voice
	}
	if v.Speed <= 0 {
		v.Speed = def.Speed
	}
	if v.Language == "" {
		v.Language = def.Lang
	}
	return v
}

// Voices returns the voice catalogue of the TTS provider.
func (a *App) Voices(ctx context.Context) ([]tts.VoiceProfile, error) {
	voices, err := a.tts.ListVoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: list voices: %w", err)
	}
	return voices, nil
}

// Busy reports whether an audio session is in progress.
func (a *App) Busy() bool {
	if !a.sem.TryAcquire(1) {
		return true
	}
	a.sem.Release(1)
	return false
}

// Close releases every provider that holds resources. It waits for a
// running session to finish first.
func (a *App) Close(ctx context.Context) error {
	var err error
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		if aerr := a.sem.Acquire(ctx, 1); aerr != nil {
			err = fmt.Errorf("app: wait for session: %w", aerr)
			return
		}
		defer a.sem.Release(1)

		var errs []error
		var closers []io.Closer
		for _, c := range []any{a.stt, a.tts} {
			if cl, ok := c.(io.Closer); ok {
				closers = append(closers, cl)
			}
		}
		closers = append(closers, a.closers...)
		for _, cl := range closers {
			if cerr := cl.Close(); cerr != nil {
				errs = append(errs, cerr)
			}
		}
		err = errors.Join(errs...)
	})
	return err
}
