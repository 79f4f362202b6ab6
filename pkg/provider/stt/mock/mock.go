// Package mock provides a test double for the stt.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Result: stt.Transcript{Text: "hello"}}
//	tr, _ := p.Transcribe(ctx, utt)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicemcp/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Utterance is the utterance passed to Transcribe.
	Utterance stt.Utterance
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe when Err is nil.
	Result stt.Transcript

	// Err, if non-nil, is returned by Transcribe.
	Err error

	// TranscribeFunc, if set, replaces Result and Err.
	TranscribeFunc func(ctx context.Context, u stt.Utterance) (stt.Transcript, error)

	// Calls records every call to Transcribe in order.
	Calls []TranscribeCall
}

// Transcribe records the call and returns the configured result.
func (p *Provider) Transcribe(ctx context.Context, u stt.Utterance) (stt.Transcript, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, TranscribeCall{Utterance: u})
	fn, res, err := p.TranscribeFunc, p.Result, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, u)
	}
	if err != nil {
		return stt.Transcript{}, err
	}
	return res, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
