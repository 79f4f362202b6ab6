package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voicemcp/internal/config"
)

const fullYAML = `
server:
  log_level: debug
  diag_addr: 127.0.0.1:9464
audio:
  sample_rate: 16000
  frame_ms: 20
  cues: false
  cue_volume: 0.5
vad:
  name: energy
  mode: 2
  energy_threshold: 0.05
recorder:
  silence_timeout: 2s
  no_speech_timeout: 10s
  max_duration: 45s
  max_fixed_duration: 90s
  dump_dir: /tmp/utterances
providers:
  stt:
    name: whisper
    base_url: http://localhost:8080
  stt_fallbacks:
    - name: openai
      api_key: sk-test
      model: whisper-1
  tts:
    name: elevenlabs
    api_key: el-test
    model: eleven_flash_v2_5
  tts_fallbacks:
    - name: openai
      base_url: http://localhost:8880/v1
      model: kokoro
voice:
  voice: bf_emma
  speed: 1.2
  lang: b
transcript:
  language: en
  vocabulary: [Kubernetes, Grafana]
`

func TestLoadFromReader_ZeroNoSpeechTimeoutIsDefault(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader("recorder:\n  no_speech_timeout: 0s\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Recorder.NoSpeechTimeout != config.DefaultNoSpeechTimeout {
		t.Errorf("no_speech_timeout = %s, want %s", cfg.Recorder.NoSpeechTimeout, config.DefaultNoSpeechTimeout)
	}
}

func TestLoadFromReader_Full(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(fullYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.LogLevel != config.LogDebug || cfg.Server.DiagAddr != "127.0.0.1:9464" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Audio.FrameMs != 20 || cfg.Audio.CuesEnabled() || cfg.Audio.CueVolume != 0.5 {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.VAD.Name != "energy" || cfg.VAD.ModeValue() != 2 || cfg.VAD.EnergyThreshold != 0.05 {
		t.Errorf("vad = %+v", cfg.VAD)
	}
	if cfg.Recorder.SilenceTimeout != 2*time.Second || cfg.Recorder.MaxFixedDuration != 90*time.Second {
		t.Errorf("recorder = %+v", cfg.Recorder)
	}
	if cfg.Recorder.DumpDir != "/tmp/utterances" {
		t.Errorf("dump_dir = %q", cfg.Recorder.DumpDir)
	}
	if cfg.Providers.STT.Name != "whisper" || len(cfg.Providers.STTFallbacks) != 1 {
		t.Errorf("stt = %+v fallbacks=%d", cfg.Providers.STT, len(cfg.Providers.STTFallbacks))
	}
	if cfg.Providers.STTFallbacks[0].APIKey != "sk-test" {
		t.Errorf("stt fallback api_key = %q", cfg.Providers.STTFallbacks[0].APIKey)
	}
	if cfg.Providers.TTS.Name != "elevenlabs" || cfg.Providers.TTSFallbacks[0].Model != "kokoro" {
		t.Errorf("tts = %+v", cfg.Providers)
	}
	if cfg.Voice != (config.VoiceConfig{Voice: "bf_emma", Speed: 1.2, Lang: "b"}) {
		t.Errorf("voice = %+v", cfg.Voice)
	}
	if len(cfg.Transcript.Vocabulary) != 2 || cfg.Transcript.Language != "en" {
		t.Errorf("transcript = %+v", cfg.Transcript)
	}
}

func TestLoadFromReader_EmptyYieldsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	checks := []struct {
		name string
		ok   bool
	}{
		{"log_level", cfg.Server.LogLevel == config.LogInfo},
		{"diag_addr", cfg.Server.DiagAddr == ""},
		{"sample_rate", cfg.Audio.SampleRate == 16000},
		{"frame_ms", cfg.Audio.FrameMs == 30},
		{"cues", cfg.Audio.CuesEnabled()},
		{"cue_volume", cfg.Audio.CueVolume == 0.3},
		{"vad", cfg.VAD.Name == "webrtc" && cfg.VAD.ModeValue() == 3},
		{"energy_threshold", cfg.VAD.EnergyThreshold == 0.03},
		{"silence_timeout", cfg.Recorder.SilenceTimeout == 1500*time.Millisecond},
		{"no_speech_timeout", cfg.Recorder.NoSpeechTimeout == 15*time.Second},
		{"stt", cfg.Providers.STT.Name == "whisper-native" && cfg.Providers.STT.Model == config.DefaultWhisperBin},
		{"tts", cfg.Providers.TTS.Name == "openai" && cfg.Providers.TTS.Model == "kokoro"},
		{"tts base_url", cfg.Providers.TTS.BaseURL == config.DefaultTTSBaseURL},
		{"voice", cfg.Voice == config.VoiceConfig{Voice: "af_heart", Speed: 1.0, Lang: "a"}},
	}
	for _, c := range checks {
		if !c.ok {
			t.Errorf("default %s not applied: %+v", c.name, cfg)
		}
	}
}

func TestDefault_Validates(t *testing.T) {
	t.Parallel()
	if err := config.Validate(config.Default()); err != nil {
		t.Errorf("Validate(Default()) = %v", err)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("server:\n  colour: blue\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadFromReader_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"log level", "server:\n  log_level: loud\n", "server.log_level"},
		{"sample rate", "audio:\n  sample_rate: 44100\n", "audio.sample_rate"},
		{"frame ms", "audio:\n  frame_ms: 25\n", "audio.frame_ms"},
		{"cue volume", "audio:\n  cue_volume: 1.5\n", "audio.cue_volume"},
		{"vad mode", "vad:\n  mode: 4\n", "vad.mode"},
		{"energy threshold", "vad:\n  energy_threshold: 2\n", "vad.energy_threshold"},
		{"silence timeout", "recorder:\n  silence_timeout: 5ms\n", "recorder.silence_timeout"},
		{"no speech timeout", "recorder:\n  no_speech_timeout: -1s\n", "recorder.no_speech_timeout"},
		{"whisper without url", "providers:\n  stt:\n    name: whisper\n", "providers.stt.base_url"},
		{"deepgram without key", "providers:\n  stt:\n    name: deepgram\n    api_key: \"\"\n  stt_fallbacks:\n    - name: deepgram\n      api_key: ok\n    - {}\n", "providers.stt_fallbacks[1].name"},
		{"speed", "voice:\n  speed: 3\n", "voice.speed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Server.LogLevel = "loud"
	cfg.Voice.Speed = 9
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "server.log_level") || !strings.Contains(msg, "voice.speed") {
		t.Errorf("joined error missing entries: %q", msg)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Providers.TTS = config.ProviderEntry{Name: "elevenlabs", APIKey: "k"}
	cfg.Voice.Voice = "am_adam"
	config.ApplyDefaults(cfg)

	if cfg.Providers.TTS.BaseURL != "" || cfg.Providers.TTS.Model != "" {
		t.Errorf("explicit provider got openai defaults: %+v", cfg.Providers.TTS)
	}
	if cfg.Voice.Voice != "am_adam" {
		t.Errorf("voice = %q, want am_adam", cfg.Voice.Voice)
	}
	if cfg.Voice.Lang != "a" {
		t.Errorf("lang = %q, want default a", cfg.Voice.Lang)
	}
}

func TestApplyDefaults_APIKeyFromEnv(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "dg-env")

	cfg := &config.Config{}
	cfg.Providers.STT = config.ProviderEntry{Name: "deepgram"}
	config.ApplyDefaults(cfg)
	if cfg.Providers.STT.APIKey != "dg-env" {
		t.Errorf("api_key = %q, want dg-env", cfg.Providers.STT.APIKey)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "voicemcp.yaml")
	if err := os.WriteFile(path, []byte("voice:\n  voice: am_michael\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Voice.Voice != "am_michael" {
		t.Errorf("voice = %q", cfg.Voice.Voice)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := config.Load(filepath.Join("..", "..", "configs", "example.yaml"))
	if err != nil {
		t.Fatalf("Load example: %v", err)
	}
	if cfg.Providers.STT.Name != config.DefaultSTT || cfg.Providers.TTS.Name != config.DefaultTTS {
		t.Errorf("providers = %q/%q, want defaults", cfg.Providers.STT.Name, cfg.Providers.TTS.Name)
	}
	if len(cfg.Transcript.Vocabulary) != 3 {
		t.Errorf("vocabulary = %v, want 3 terms", cfg.Transcript.Vocabulary)
	}
	if got := cfg.Providers.STT.IntOption("threads", -1); got != 0 {
		t.Errorf("stt threads = %d, want 0", got)
	}
}
