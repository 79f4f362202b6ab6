package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be applied without a restart are itemised;
// everything else sets RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	VoiceChanged bool
	NewVoice     VoiceConfig

	// TranscriptChanged is set when the vocabulary or language changed.
	TranscriptChanged bool
	NewTranscript     TranscriptConfig

	// RestartRequired is set when audio, VAD, recorder, provider, or
	// diagnostics settings changed. Those take effect on the next start.
	RestartRequired bool
}

// Changed reports whether the diff contains any change.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.VoiceChanged || d.TranscriptChanged || d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Voice != new.Voice {
		d.VoiceChanged = true
		d.NewVoice = new.Voice
	}

	if old.Transcript.Language != new.Transcript.Language ||
		!slices.Equal(old.Transcript.Vocabulary, new.Transcript.Vocabulary) {
		d.TranscriptChanged = true
		d.NewTranscript = new.Transcript
	}

	if old.Server.DiagAddr != new.Server.DiagAddr ||
		!reflect.DeepEqual(old.Audio, new.Audio) ||
		!reflect.DeepEqual(old.VAD, new.VAD) ||
		old.Recorder != new.Recorder ||
		!reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = true
	}

	return d
}
