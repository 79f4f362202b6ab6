// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (an OpenAI-compatible speech
// endpoint such as Kokoro-FastAPI, or ElevenLabs) and presents a uniform
// streaming interface. The primary entry point is SynthesizeStream, which
// accepts a channel of text fragments and returns a channel of raw PCM audio
// bytes as they become available, so playback can start before the whole
// text is synthesised.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// SynthesizeStream consumes text fragments from the text channel and returns a
	// channel that emits raw little-endian 16-bit mono PCM at SampleRate as it is
	// synthesised.
	//
	// The returned audio channel is closed by the implementation when all text has
	// been synthesised or when ctx is cancelled. The caller must drain the audio
	// channel to avoid blocking the provider's internal goroutines.
	//
	// Returns a non-nil error only if the stream cannot be started. Errors
	// encountered during synthesis are signalled by closing the audio channel early;
	// callers should check ctx.Err() to distinguish cancellation from provider errors.
	SynthesizeStream(ctx context.Context, text <-chan string, voice VoiceProfile) (<-chan []byte, error)

	// ListVoices returns all voice profiles available from this provider.
	//
	// Returns an error if the provider cannot be reached or if ctx is cancelled
	// before the list is retrieved.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)

	// SampleRate is the rate of the PCM emitted by SynthesizeStream.
	SampleRate() int
}

// Text wraps a complete string as a closed fragment channel, for callers that
// have the whole text up front.
func Text(s string) <-chan string {
	ch := make(chan string, 1)
	ch <- s
	close(ch)
	return ch
}
