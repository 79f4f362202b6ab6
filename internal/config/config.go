// Package config provides the configuration schema, loader, and provider
// registry for the voicemcp server.
//
// An MCP client usually launches the server without arguments, so every field
// has a built-in default (see [Default]). A YAML file only needs to name what
// differs.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Audio      AudioConfig      `yaml:"audio"`
	VAD        VADConfig        `yaml:"vad"`
	Recorder   RecorderConfig   `yaml:"recorder"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Voice      VoiceConfig      `yaml:"voice"`
	Transcript TranscriptConfig `yaml:"transcript"`
}

// ServerConfig holds logging and diagnostics settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Logs always go to stderr.
	LogLevel LogLevel `yaml:"log_level"`

	// DiagAddr is the TCP address of the diagnostics HTTP server serving
	// /metrics, /healthz and /readyz (e.g., "127.0.0.1:9464"). Empty
	// disables it.
	DiagAddr string `yaml:"diag_addr"`
}

// AudioConfig describes the capture format and the listening cues.
type AudioConfig struct {
	// SampleRate of the microphone stream in Hz. Must be a rate WebRTC VAD
	// accepts: 8000, 16000, 32000 or 48000.
	SampleRate int `yaml:"sample_rate"`

	// FrameMs is the frame length in milliseconds: 10, 20 or 30.
	FrameMs int `yaml:"frame_ms"`

	// Cues enables the rising and falling tones around a recording.
	// Nil means enabled.
	Cues *bool `yaml:"cues"`

	// CueVolume is the peak amplitude of the cues in [0, 1].
	CueVolume float64 `yaml:"cue_volume"`
}

// CuesEnabled reports whether listening cues should be played.
func (a AudioConfig) CuesEnabled() bool {
	return a.Cues == nil || *a.Cues
}

// FrameDuration returns FrameMs as a duration.
func (a AudioConfig) FrameDuration() time.Duration {
	return time.Duration(a.FrameMs) * time.Millisecond
}

// VADConfig selects the primary voice activity detector.
type VADConfig struct {
	// Name selects the registered engine ("webrtc" or "energy").
	Name string `yaml:"name"`

	// Mode is the WebRTC aggressiveness, 0 to 3. Nil means 3.
	Mode *int `yaml:"mode"`

	// EnergyThreshold is the normalised RMS level of the fallback detector.
	EnergyThreshold float64 `yaml:"energy_threshold"`
}

// ModeValue returns the configured mode, defaulting to 3.
func (v VADConfig) ModeValue() int {
	if v.Mode == nil {
		return 3
	}
	return *v.Mode
}

// RecorderConfig bounds a recording.
type RecorderConfig struct {
	// SilenceTimeout is the trailing silence that ends a VAD recording.
	SilenceTimeout time.Duration `yaml:"silence_timeout"`

	// NoSpeechTimeout bounds the wait for speech to begin. Zero selects
	// the default; the wait can not be disabled, and MaxDuration bounds it
	// in any case.
	NoSpeechTimeout time.Duration `yaml:"no_speech_timeout"`

	// MaxDuration caps a VAD recording.
	MaxDuration time.Duration `yaml:"max_duration"`

	// MaxFixedDuration caps the duration argument of a fixed recording.
	MaxFixedDuration time.Duration `yaml:"max_fixed_duration"`

	// DumpDir, when set, receives a WAV file of every captured utterance.
	DumpDir string `yaml:"dump_dir"`
}

// ProvidersConfig declares the STT and TTS backends and their fallbacks.
// Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	STT          ProviderEntry   `yaml:"stt"`
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
	TTS          ProviderEntry   `yaml:"tts"`
	TTSFallbacks []ProviderEntry `yaml:"tts_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any. When
	// empty, the provider's conventional environment variable is consulted
	// (see [ApplyDefaults]).
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "whisper-1",
	// "kokoro"). For whisper-native it is the path of the ggml model file.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// StringOption returns Options[key] when it is a string, otherwise def.
func (e ProviderEntry) StringOption(key, def string) string {
	if v, ok := e.Options[key].(string); ok {
		return v
	}
	return def
}

// IntOption returns Options[key] as an int. YAML decodes whole numbers as
// int; float values are truncated.
func (e ProviderEntry) IntOption(key string, def int) int {
	switch v := e.Options[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// VoiceConfig holds the defaults of the speak tool.
type VoiceConfig struct {
	// Voice is the provider voice ID (e.g., "af_heart").
	Voice string `yaml:"voice"`

	// Speed is the speaking rate multiplier in [0.5, 2.0].
	Speed float64 `yaml:"speed"`

	// Lang is the provider language code (Kokoro: "a" American English,
	// "b" British English, "e" Spanish, ...).
	Lang string `yaml:"lang"`
}

// TranscriptConfig configures transcription post-processing.
type TranscriptConfig struct {
	// Language is the ISO-639-1 code passed to the STT provider. Empty lets
	// the provider use its default.
	Language string `yaml:"language"`

	// Vocabulary lists domain terms that are passed as keyword hints and
	// used to correct misheard spans.
	Vocabulary []string `yaml:"vocabulary"`
}
