package config_test

import (
	"testing"

	"github.com/MrWong99/voicemcp/internal/config"
)

func TestDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		check  func(t *testing.T, d config.ConfigDiff)
	}{
		{
			name:   "identical",
			mutate: func(*config.Config) {},
			check: func(t *testing.T, d config.ConfigDiff) {
				if d.Changed() {
					t.Errorf("Changed() = true for identical configs: %+v", d)
				}
			},
		},
		{
			name:   "log level",
			mutate: func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug || d.RestartRequired {
					t.Errorf("diff = %+v", d)
				}
			},
		},
		{
			name:   "voice",
			mutate: func(c *config.Config) { c.Voice.Voice = "bf_emma" },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.VoiceChanged || d.NewVoice.Voice != "bf_emma" || d.RestartRequired {
					t.Errorf("diff = %+v", d)
				}
			},
		},
		{
			name:   "vocabulary",
			mutate: func(c *config.Config) { c.Transcript.Vocabulary = []string{"Kubernetes"} },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.TranscriptChanged || len(d.NewTranscript.Vocabulary) != 1 {
					t.Errorf("diff = %+v", d)
				}
			},
		},
		{
			name:   "provider",
			mutate: func(c *config.Config) { c.Providers.TTS.Model = "tts-1" },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.RestartRequired || d.VoiceChanged {
					t.Errorf("diff = %+v", d)
				}
			},
		},
		{
			name:   "recorder",
			mutate: func(c *config.Config) { c.Recorder.DumpDir = "/tmp/x" },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.RestartRequired {
					t.Errorf("diff = %+v", d)
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			old, updated := config.Default(), config.Default()
			tc.mutate(updated)
			tc.check(t, config.Diff(old, updated))
		})
	}
}
