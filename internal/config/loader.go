package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Built-in defaults applied by [ApplyDefaults].
const (
	DefaultSampleRate       = 16000
	DefaultFrameMs          = 30
	DefaultCueVolume        = 0.3
	DefaultVAD              = "webrtc"
	DefaultEnergyThreshold  = 0.03
	DefaultSilenceTimeout   = 1500 * time.Millisecond
	DefaultNoSpeechTimeout  = 15 * time.Second
	DefaultMaxDuration      = 60 * time.Second
	DefaultMaxFixedDuration = 120 * time.Second

	DefaultSTT        = "whisper-native"
	DefaultWhisperBin = "models/ggml-base.bin"
	DefaultTTS        = "openai"
	DefaultTTSBaseURL = "http://localhost:8880/v1"
	DefaultTTSModel   = "kokoro"

	DefaultVoice = "af_heart"
	DefaultSpeed = 1.0
	DefaultLang  = "a"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper-native", "whisper", "openai", "deepgram"},
	"tts": {"openai", "elevenlabs"},
	"vad": {"webrtc", "energy"},
}

// apiKeyEnv maps provider names to the environment variable consulted when
// an entry carries no api_key.
var apiKeyEnv = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"deepgram":   "DEEPGRAM_API_KEY",
	"elevenlabs": "ELEVENLABS_API_KEY",
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. An empty document yields [Default].
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field of cfg with its built-in default.
// Explicitly set values are never overwritten.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}
	if cfg.Audio.FrameMs == 0 {
		cfg.Audio.FrameMs = DefaultFrameMs
	}
	if cfg.Audio.CueVolume == 0 {
		cfg.Audio.CueVolume = DefaultCueVolume
	}

	if cfg.VAD.Name == "" {
		cfg.VAD.Name = DefaultVAD
	}
	if cfg.VAD.EnergyThreshold == 0 {
		cfg.VAD.EnergyThreshold = DefaultEnergyThreshold
	}

	rc := &cfg.Recorder
	if rc.SilenceTimeout == 0 {
		rc.SilenceTimeout = DefaultSilenceTimeout
	}
	if rc.NoSpeechTimeout == 0 {
		rc.NoSpeechTimeout = DefaultNoSpeechTimeout
	}
	if rc.MaxDuration == 0 {
		rc.MaxDuration = DefaultMaxDuration
	}
	if rc.MaxFixedDuration == 0 {
		rc.MaxFixedDuration = DefaultMaxFixedDuration
	}

	p := &cfg.Providers
	if p.STT.Name == "" {
		p.STT.Name = DefaultSTT
		if p.STT.Model == "" {
			p.STT.Model = DefaultWhisperBin
		}
	}
	if p.TTS.Name == "" {
		p.TTS.Name = DefaultTTS
		if p.TTS.BaseURL == "" {
			p.TTS.BaseURL = DefaultTTSBaseURL
		}
		if p.TTS.Model == "" {
			p.TTS.Model = DefaultTTSModel
		}
	}
	applyAPIKey(&p.STT)
	applyAPIKey(&p.TTS)
	for i := range p.STTFallbacks {
		applyAPIKey(&p.STTFallbacks[i])
	}
	for i := range p.TTSFallbacks {
		applyAPIKey(&p.TTSFallbacks[i])
	}

	if cfg.Voice.Voice == "" {
		cfg.Voice.Voice = DefaultVoice
	}
	if cfg.Voice.Speed == 0 {
		cfg.Voice.Speed = DefaultSpeed
	}
	if cfg.Voice.Lang == "" {
		cfg.Voice.Lang = DefaultLang
	}
}

func applyAPIKey(e *ProviderEntry) {
	if e.APIKey != "" {
		return
	}
	if env, ok := apiKeyEnv[e.Name]; ok {
		e.APIKey = os.Getenv(env)
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Call it after [ApplyDefaults]; zero values are treated as invalid.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	switch cfg.Audio.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is invalid; valid values: 8000, 16000, 32000, 48000", cfg.Audio.SampleRate))
	}
	switch cfg.Audio.FrameMs {
	case 10, 20, 30:
	default:
		errs = append(errs, fmt.Errorf("audio.frame_ms %d is invalid; valid values: 10, 20, 30", cfg.Audio.FrameMs))
	}
	if cfg.Audio.CueVolume < 0 || cfg.Audio.CueVolume > 1 {
		errs = append(errs, fmt.Errorf("audio.cue_volume %.2f is out of range [0, 1]", cfg.Audio.CueVolume))
	}

	// VAD
	if m := cfg.VAD.ModeValue(); m < 0 || m > 3 {
		errs = append(errs, fmt.Errorf("vad.mode %d is out of range [0, 3]", m))
	}
	if cfg.VAD.EnergyThreshold < 0 || cfg.VAD.EnergyThreshold > 1 {
		errs = append(errs, fmt.Errorf("vad.energy_threshold %.3f is out of range [0, 1]", cfg.VAD.EnergyThreshold))
	}
	validateProviderName("vad", cfg.VAD.Name)

	// Recorder
	rc := cfg.Recorder
	if rc.SilenceTimeout < cfg.Audio.FrameDuration() {
		errs = append(errs, fmt.Errorf("recorder.silence_timeout %s is shorter than one frame", rc.SilenceTimeout))
	}
	if rc.NoSpeechTimeout < 0 {
		errs = append(errs, fmt.Errorf("recorder.no_speech_timeout %s must not be negative", rc.NoSpeechTimeout))
	}
	if rc.MaxDuration <= 0 {
		errs = append(errs, fmt.Errorf("recorder.max_duration %s must be positive", rc.MaxDuration))
	}
	if rc.MaxFixedDuration <= 0 {
		errs = append(errs, fmt.Errorf("recorder.max_fixed_duration %s must be positive", rc.MaxFixedDuration))
	}

	// Providers
	errs = append(errs, validateEntry("providers.stt", "stt", cfg.Providers.STT)...)
	for i, e := range cfg.Providers.STTFallbacks {
		errs = append(errs, validateEntry(fmt.Sprintf("providers.stt_fallbacks[%d]", i), "stt", e)...)
	}
	errs = append(errs, validateEntry("providers.tts", "tts", cfg.Providers.TTS)...)
	for i, e := range cfg.Providers.TTSFallbacks {
		errs = append(errs, validateEntry(fmt.Sprintf("providers.tts_fallbacks[%d]", i), "tts", e)...)
	}

	// Voice
	if cfg.Voice.Speed < 0.5 || cfg.Voice.Speed > 2.0 {
		errs = append(errs, fmt.Errorf("voice.speed %.2f is out of range [0.5, 2.0]", cfg.Voice.Speed))
	}

	return errors.Join(errs...)
}

func validateEntry(prefix, kind string, e ProviderEntry) []error {
	if e.Name == "" {
		return []error{fmt.Errorf("%s.name is required", prefix)}
	}
	validateProviderName(kind, e.Name)
	var errs []error
	if e.Name == "whisper-native" && e.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model must be the path of a ggml model file", prefix))
	}
	if e.Name == "whisper" && e.BaseURL == "" {
		errs = append(errs, fmt.Errorf("%s.base_url is required for whisper-server", prefix))
	}
	if (e.Name == "deepgram" || e.Name == "elevenlabs") && e.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s.api_key is required for %s", prefix, e.Name))
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
