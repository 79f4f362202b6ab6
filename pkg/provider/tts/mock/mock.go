// Package mock provides a scripted tts.Provider for tests.
//
//	p := &mock.Provider{Audio: [][]byte{pcm}}
//	ch, _ := p.SynthesizeStream(ctx, tts.Text("Build finished."), voice)
//	// drain ch, then:
//	p.SpokenText() // "Build finished."
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/MrWong99/voicemcp/pkg/provider/tts"
)

// Request is one SynthesizeStream call.
type Request struct {
	Voice tts.VoiceProfile

	// Text is everything read from the call's text channel. It is complete
	// once the returned audio channel has been closed.
	Text string
}

// Provider replays Audio for every synthesis request.
type Provider struct {
	// Audio is emitted chunk by chunk after the text channel is drained.
	Audio [][]byte

	// Err fails SynthesizeStream before a stream is started.
	Err error

	Voices    []tts.VoiceProfile
	VoicesErr error

	// Rate is returned by SampleRate. Zero means 24000.
	Rate int

	mu       sync.Mutex
	requests []Request
}

var _ tts.Provider = (*Provider)(nil)

func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	p.mu.Lock()
	idx := len(p.requests)
	p.requests = append(p.requests, Request{Voice: voice})
	err := p.Err
	chunks := append([][]byte(nil), p.Audio...)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make(chan []byte, len(chunks))
	go func() {
		defer close(out)
		var sb strings.Builder
		for fragment := range text {
			sb.WriteString(fragment)
		}
		p.mu.Lock()
		p.requests[idx].Text = sb.String()
		p.mu.Unlock()

		for _, c := range chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (p *Provider) ListVoices(context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Voices, p.VoicesErr
}

func (p *Provider) SampleRate() int {
	if p.Rate == 0 {
		return 24000
	}
	return p.Rate
}

// Requests returns a copy of the recorded calls.
func (p *Provider) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Request(nil), p.requests...)
}

// SpokenText joins the text of every request.
func (p *Provider) SpokenText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var sb strings.Builder
	for _, r := range p.requests {
		sb.WriteString(r.Text)
	}
	return sb.String()
}
