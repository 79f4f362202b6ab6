package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/voicemcp/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across multiple
// STT backends. Each backend has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
// An empty utterance is a caller error and never trips a breaker.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	if cfg.Kind == "" {
		cfg.Kind = "stt"
	}
	if cfg.CircuitBreaker.IsFailure == nil {
		cfg.CircuitBreaker.IsFailure = func(err error) bool {
			return defaultIsFailure(err) && !errors.Is(err, stt.ErrEmptyUtterance)
		}
	}
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe sends the utterance to the first healthy provider. An empty
// utterance is rejected without consulting any provider.
func (f *STTFallback) Transcribe(ctx context.Context, u stt.Utterance) (stt.Transcript, error) {
	if len(u.Samples) == 0 {
		return stt.Transcript{}, stt.ErrEmptyUtterance
	}
	return ExecuteWithResult(ctx, f.group, func(p stt.Provider) (stt.Transcript, error) {
		return p.Transcribe(ctx, u)
	})
}

// Available reports whether any STT backend can currently be tried.
func (f *STTFallback) Available() bool {
	return f.group.Available()
}
