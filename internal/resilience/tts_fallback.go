package resilience

import (
	"context"

	"github.com/MrWong99/voicemcp/pkg/audio"
	"github.com/MrWong99/voicemcp/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	if cfg.Kind == "" {
		cfg.Kind = "tts"
	}
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// SampleRate reports the primary's rate. Audio from a fallback with a
// different rate is resampled to it.
func (f *TTSFallback) SampleRate() int {
	return f.group.Primary().SampleRate()
}

// SynthesizeStream consumes text fragments and returns a channel of audio bytes,
// trying the first healthy provider. Only the initial stream setup is covered by
// failover; mid-stream errors are the caller's responsibility.
func (f *TTSFallback) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	want := f.SampleRate()
	return ExecuteWithResult(ctx, f.group, func(p tts.Provider) (<-chan []byte, error) {
		ch, err := p.SynthesizeStream(ctx, text, voice)
		if err != nil || p.SampleRate() == want {
			return ch, err
		}
		return resampleStream(ctx, ch, p.SampleRate(), want), nil
	})
}

// ListVoices returns available voices from the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(ctx, f.group, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}

// resampleStream converts each PCM chunk from src to dst Hz.
func resampleStream(ctx context.Context, in <-chan []byte, src, dst int) <-chan []byte {
	out := make(chan []byte, cap(in))
	go func() {
		defer close(out)
		defer audio.Drain(in)
		var carry []byte
		for chunk := range in {
			if len(carry) > 0 {
				chunk = append(carry, chunk...)
				carry = nil
			}
			if len(chunk)%2 == 1 {
				carry = []byte{chunk[len(chunk)-1]}
				chunk = chunk[:len(chunk)-1]
			}
			samples := audio.ResampleMono16(audio.BytesToInt16(chunk), src, dst)
			select {
			case out <- audio.Int16ToBytes(samples):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Available reports whether any TTS backend can currently be tried.
func (f *TTSFallback) Available() bool {
	return f.group.Available()
}
