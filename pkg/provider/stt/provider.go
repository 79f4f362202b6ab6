// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription engine (a local whisper.cpp model, a
// whisper-server instance, an OpenAI-compatible transcription endpoint, or
// Deepgram) behind a single batch call: the recorder hands over a finished
// utterance and gets text back. Streaming partials are not needed because
// recording always completes before transcription starts.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyUtterance is returned by providers asked to transcribe no audio.
var ErrEmptyUtterance = errors.New("stt: empty utterance")

// Utterance is a finished recording ready for transcription.
type Utterance struct {
	// Samples holds 16-bit mono PCM.
	Samples []int16

	// SampleRate of Samples in Hz. Providers resample when their engine
	// needs a different rate.
	SampleRate int

	// Language is an ISO-639-1 code (e.g., "en", "de"). Empty lets the
	// provider use its configured default or auto-detect.
	Language string

	// Keywords are vocabulary hints for uncommon words. Providers that
	// cannot use them ignore them.
	Keywords []string
}

// Duration returns the length of the utterance audio.
func (u Utterance) Duration() time.Duration {
	if u.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(u.Samples)) * time.Second / time.Duration(u.SampleRate)
}

// Transcript is the result of transcribing one utterance.
type Transcript struct {
	// Text is the transcribed speech with surrounding whitespace trimmed.
	// Empty when the engine heard nothing intelligible.
	Text string

	// Language is the language the engine reports, when it reports one.
	Language string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the provider does not report confidence.
	Confidence float64

	// Words contains per-word detail when available (Deepgram).
	Words []WordDetail
}

// WordDetail holds per-word metadata from STT providers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts the utterance to text. It returns
	// [ErrEmptyUtterance] for an utterance without samples, and an error if
	// the engine fails or ctx is cancelled.
	Transcribe(ctx context.Context, u Utterance) (Transcript, error)
}
